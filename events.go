package doc

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// GatingEvent names a hook that can veto its triggering operation by
// returning an explicit false.
type GatingEvent string

const (
	BeforeSave   GatingEvent = "before_save"
	BeforeSubmit GatingEvent = "before_submit"
	BeforeDelete GatingEvent = "before_delete"
)

// Event names a notification hook. Handler results are ignored and every
// handler has returned before the triggering operation completes.
type Event string

const (
	EventLoad            Event = "load"
	EventRefresh         Event = "refresh"
	EventSave            Event = "save"
	EventAfterSave       Event = "after_save"
	EventSubmit          Event = "submit"
	EventAfterSubmit     Event = "after_submit"
	EventCancel          Event = "cancel"
	EventDelete          Event = "delete"
	EventValidate        Event = "validate"
	EventValidationError Event = "validation_error"
	EventAutoSave        Event = "auto_save"
)

// Error events carry the originating error alongside the state snapshot.
const (
	EventError         Event = "error"
	EventAutoSaveError Event = "auto_save_error"
)

// GatingHandler vetoes the triggering operation when it returns false.
type GatingHandler func(ctx context.Context, state State) bool

// Handler observes a lifecycle event.
type Handler func(ctx context.Context, state State)

// FieldChangeHandler observes a single field mutation.
type FieldChangeHandler func(ctx context.Context, state State, field string, value any)

// ErrorHandler observes a transport or auto-save failure.
type ErrorHandler func(ctx context.Context, state State, err error)

type gatingEntry struct {
	id string
	fn GatingHandler
}

type notifyEntry struct {
	id string
	fn Handler
}

type fieldChangeEntry struct {
	id string
	fn FieldChangeHandler
}

type errorEntry struct {
	id string
	fn ErrorHandler
}

// registry stores handlers per event keyed by registration token. Handlers
// run sequentially in registration order.
type registry struct {
	mu          sync.Mutex
	gating      map[GatingEvent][]gatingEntry
	notify      map[Event][]notifyEntry
	fieldChange []fieldChangeEntry
	errors      map[Event][]errorEntry
}

func newRegistry() *registry {
	return &registry{
		gating: map[GatingEvent][]gatingEntry{},
		notify: map[Event][]notifyEntry{},
		errors: map[Event][]errorEntry{},
	}
}

func (r *registry) onGating(event GatingEvent, fn GatingHandler) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.gating[event] = append(r.gating[event], gatingEntry{id: id, fn: fn})
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entries := r.gating[event]
		for i, entry := range entries {
			if entry.id == id {
				r.gating[event] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (r *registry) on(event Event, fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.notify[event] = append(r.notify[event], notifyEntry{id: id, fn: fn})
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entries := r.notify[event]
		for i, entry := range entries {
			if entry.id == id {
				r.notify[event] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func (r *registry) onFieldChange(fn FieldChangeHandler) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.fieldChange = append(r.fieldChange, fieldChangeEntry{id: id, fn: fn})
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, entry := range r.fieldChange {
			if entry.id == id {
				r.fieldChange = append(r.fieldChange[:i], r.fieldChange[i+1:]...)
				return
			}
		}
	}
}

func (r *registry) onError(event Event, fn ErrorHandler) func() {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.errors[event] = append(r.errors[event], errorEntry{id: id, fn: fn})
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entries := r.errors[event]
		for i, entry := range entries {
			if entry.id == id {
				r.errors[event] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// fireGating runs the handlers in order; the first explicit false aborts and
// skips the remaining handlers.
func (r *registry) fireGating(ctx context.Context, event GatingEvent, state State) bool {
	r.mu.Lock()
	entries := append([]gatingEntry(nil), r.gating[event]...)
	r.mu.Unlock()
	for _, entry := range entries {
		if !entry.fn(ctx, state) {
			return false
		}
	}
	return true
}

func (r *registry) fire(ctx context.Context, event Event, state State) {
	r.mu.Lock()
	entries := append([]notifyEntry(nil), r.notify[event]...)
	r.mu.Unlock()
	for _, entry := range entries {
		entry.fn(ctx, state)
	}
}

func (r *registry) fireFieldChange(ctx context.Context, state State, field string, value any) {
	r.mu.Lock()
	entries := append([]fieldChangeEntry(nil), r.fieldChange...)
	r.mu.Unlock()
	for _, entry := range entries {
		entry.fn(ctx, state, field, value)
	}
}

func (r *registry) fireError(ctx context.Context, event Event, state State, err error) {
	r.mu.Lock()
	entries := append([]errorEntry(nil), r.errors[event]...)
	r.mu.Unlock()
	for _, entry := range entries {
		entry.fn(ctx, state, err)
	}
}

// Hooks wires the declarative event map accepted by the controller
// configuration. Nil entries are skipped.
type Hooks struct {
	BeforeSave   GatingHandler
	BeforeSubmit GatingHandler
	BeforeDelete GatingHandler

	Load            Handler
	Refresh         Handler
	Save            Handler
	AfterSave       Handler
	Submit          Handler
	AfterSubmit     Handler
	Cancel          Handler
	Delete          Handler
	Validate        Handler
	ValidationError Handler
	AutoSave        Handler

	FieldChange FieldChangeHandler

	Error         ErrorHandler
	AutoSaveError ErrorHandler
}

func (r *registry) install(hooks Hooks) {
	if hooks.BeforeSave != nil {
		r.onGating(BeforeSave, hooks.BeforeSave)
	}
	if hooks.BeforeSubmit != nil {
		r.onGating(BeforeSubmit, hooks.BeforeSubmit)
	}
	if hooks.BeforeDelete != nil {
		r.onGating(BeforeDelete, hooks.BeforeDelete)
	}
	for event, handler := range map[Event]Handler{
		EventLoad:            hooks.Load,
		EventRefresh:         hooks.Refresh,
		EventSave:            hooks.Save,
		EventAfterSave:       hooks.AfterSave,
		EventSubmit:          hooks.Submit,
		EventAfterSubmit:     hooks.AfterSubmit,
		EventCancel:          hooks.Cancel,
		EventDelete:          hooks.Delete,
		EventValidate:        hooks.Validate,
		EventValidationError: hooks.ValidationError,
		EventAutoSave:        hooks.AutoSave,
	} {
		if handler != nil {
			r.on(event, handler)
		}
	}
	if hooks.FieldChange != nil {
		r.onFieldChange(hooks.FieldChange)
	}
	if hooks.Error != nil {
		r.onError(EventError, hooks.Error)
	}
	if hooks.AutoSaveError != nil {
		r.onError(EventAutoSaveError, hooks.AutoSaveError)
	}
}
