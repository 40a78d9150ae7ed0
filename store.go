package doc

import (
	"sync"

	"github.com/google/uuid"
)

// mutator applies a partial update to the view state. All state changes go
// through store.merge; nothing mutates State outside of one.
type mutator func(*State)

type subscriber struct {
	id string
	fn func(State)
}

// store is the single source of truth for one controller. Every merge
// recomputes the derived identity and dirty flags, then notifies subscribers
// synchronously with a snapshot. Notification happens outside the lock so a
// subscriber may trigger a re-entrant merge from its own callback.
type store struct {
	mu    sync.Mutex
	state State
	perms SchemaPermissions
	subs  []subscriber
}

func newStore(doctype string) *store {
	return &store{
		state: State{
			Doctype: doctype,
			Doc:     Document{},
			IsNew:   true,
			Errors:  map[string]string{},
			Fields:  map[string]FieldState{},
		},
	}
}

// snapshot returns a deep copy of the current state.
func (s *store) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// setPermissions records the schema-provider permission summary used to
// derive the per-state permission booleans.
func (s *store) setPermissions(perms SchemaPermissions) {
	s.mu.Lock()
	s.perms = perms
	s.mu.Unlock()
}

// merge applies the mutator, recomputes derived flags, and notifies
// subscribers in registration order before returning the new snapshot.
func (s *store) merge(apply mutator) State {
	s.mu.Lock()
	if apply != nil {
		apply(&s.state)
	}
	s.recomputeLocked()
	snap := s.state.clone()
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
	return snap
}

func (s *store) recomputeLocked() {
	state := &s.state
	if state.Doc == nil {
		state.Doc = Document{}
	}
	state.Name = state.Doc.Name()
	state.DocStatus = state.Doc.Status()
	state.IsNew = state.Name == ""
	state.IsDirty = !documentsEqual(state.Doc, state.Original)
	state.Permissions = derivePermissions(state, s.perms)
}

func derivePermissions(state *State, perms SchemaPermissions) Permissions {
	return Permissions{
		CanSave:   perms.Write && state.DocStatus == StatusDraft,
		CanSubmit: perms.Submit && state.DocStatus == StatusDraft,
		CanCancel: perms.Cancel && state.DocStatus == StatusSubmitted,
		CanDelete: perms.Delete && !state.IsNew,
		CanAmend:  perms.Amend && state.DocStatus == StatusCancelled,
	}
}

// subscribe registers fn for every merge and returns a remover.
func (s *store) subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
