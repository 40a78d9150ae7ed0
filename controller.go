package doc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-document/pkg/activity"
)

var (
	// ErrAmendRequiresCancelled reports amend() called on a document that is
	// not cancelled. Amend is the one lifecycle operation that fails loudly:
	// calling it in the wrong state is programmer misuse, not an expected
	// runtime condition.
	ErrAmendRequiresCancelled = errors.New("doc: amend requires a cancelled document")

	// ErrNoTransport reports a lifecycle operation that needs the transport
	// collaborator while none is configured.
	ErrNoTransport = errors.New("doc: transport not configured")

	// ErrDestroyed reports use of a controller after Destroy.
	ErrDestroyed = errors.New("doc: controller destroyed")
)

// Controller owns the full lifecycle of one document: create, load, edit,
// validate, persist, submit, cancel, amend, delete, duplicate. All state
// lives in one observable store and every mutation flows through its merge
// primitive.
type Controller struct {
	doctype string
	cfg     Config

	transport Transport
	schemas   SchemaSource

	store    *store
	events   *registry
	autosave *autoSaver
	emitter  *activity.Emitter

	evaluator    Evaluator
	evalMu       sync.Mutex
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger

	schemaMu     sync.Mutex
	schema       *Schema
	schemaLoaded bool

	saving    atomic.Bool
	destroyed atomic.Bool
}

// New constructs a controller for one document type. The view state starts as
// an empty draft; call Load or LoadWithDefaults to populate it.
func New(doctype string, opts ...Option) *Controller {
	cfg := applyOptions(opts)
	c := &Controller{
		doctype:      doctype,
		cfg:          cfg.cfg,
		transport:    cfg.transport,
		schemas:      cfg.schemas,
		store:        newStore(doctype),
		events:       newRegistry(),
		evaluator:    cfg.evaluator,
		programCache: cfg.programCache,
		functions:    cfg.functions,
		logger:       cfg.logger,
	}
	for _, hooks := range cfg.hooks {
		c.events.install(hooks)
	}
	if cfg.activityHooks.Enabled() {
		c.emitter = activity.NewEmitter(cfg.activityHooks, cfg.activityCfg)
	}
	c.autosave = newAutoSaver(c.cfg.AutoSaveInterval(), c.cfg.AutoSaveMaxRetries, c.autoSaveFire)
	return c
}

// Doctype returns the document type this controller manages.
func (c *Controller) Doctype() string {
	return c.doctype
}

// Config returns the recognized-option surface the controller was built with.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns a deep snapshot of the current view state.
func (c *Controller) State() State {
	return c.store.snapshot()
}

// Subscribe delivers the full state to fn on every merge and returns a
// remover. Callbacks run synchronously and may trigger further merges.
func (c *Controller) Subscribe(fn func(State)) func() {
	return c.store.subscribe(fn)
}

// On registers a notification handler and returns a remover.
func (c *Controller) On(event Event, fn Handler) func() {
	return c.events.on(event, fn)
}

// OnBefore registers a gating handler; returning false aborts the operation.
func (c *Controller) OnBefore(event GatingEvent, fn GatingHandler) func() {
	return c.events.onGating(event, fn)
}

// OnFieldChange registers a handler observing individual field mutations.
func (c *Controller) OnFieldChange(fn FieldChangeHandler) func() {
	return c.events.onFieldChange(fn)
}

// OnError registers a handler for EventError or EventAutoSaveError.
func (c *Controller) OnError(event Event, fn ErrorHandler) func() {
	return c.events.onError(event, fn)
}

// Destroy cancels any pending auto-save and marks the controller unusable.
func (c *Controller) Destroy() {
	c.destroyed.Store(true)
	c.autosave.stop()
}

// Schema returns the cached field catalog, consulting the provider on first
// use. Provider failures fall back to an empty catalog.
func (c *Controller) Schema(ctx context.Context) *Schema {
	return c.ensureSchema(ctx)
}

func (c *Controller) ensureSchema(ctx context.Context) *Schema {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.schemaLoaded {
		return c.schema
	}
	schema := EmptySchema(c.doctype)
	if c.schemas != nil {
		if fetched, err := c.schemas.Schema(ctx, c.doctype); err == nil && fetched != nil {
			schema = fetched
		}
	}
	c.schema = schema
	c.schemaLoaded = true
	c.store.setPermissions(schema.Permissions)
	return schema
}

func (c *Controller) currentSchema() *Schema {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if c.schema == nil {
		return EmptySchema(c.doctype)
	}
	return c.schema
}

// Load fetches the named document, or builds a draft from catalog defaults
// when name is empty. Transport errors leave the state not-loading and
// propagate to the caller.
func (c *Controller) Load(ctx context.Context, name string) error {
	return c.load(ctx, name, nil)
}

// LoadWithDefaults builds a draft seeded with values merged over the catalog
// defaults.
func (c *Controller) LoadWithDefaults(ctx context.Context, values map[string]any) error {
	return c.load(ctx, "", values)
}

func (c *Controller) load(ctx context.Context, name string, seed map[string]any) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	c.autosave.cancel()
	schema := c.ensureSchema(ctx)

	if name == "" {
		document := schema.Defaults()
		if seed != nil {
			document = mergeValues(document, seed)
		}
		state := c.store.merge(func(s *State) {
			s.Doc = document
			s.Original = document.Clone()
			s.IsLoading = false
			s.Errors = map[string]string{}
			c.applyFieldStates(s)
		})
		c.events.fire(ctx, EventLoad, state)
		return nil
	}

	if c.transport == nil {
		return ErrNoTransport
	}
	c.store.merge(func(s *State) { s.IsLoading = true })
	fetched, err := c.transport.Fetch(ctx, c.doctype, name)
	if err != nil {
		state := c.store.merge(func(s *State) { s.IsLoading = false })
		c.events.fireError(ctx, EventError, state, err)
		return fmt.Errorf("doc: load %s/%s: %w", c.doctype, name, err)
	}
	state := c.store.merge(func(s *State) {
		s.Doc = fetched.Clone()
		s.Original = fetched.Clone()
		s.IsLoading = false
		s.Errors = map[string]string{}
		c.applyFieldStates(s)
	})
	c.events.fire(ctx, EventLoad, state)
	return nil
}

// Reload re-fetches the current document; a draft without a name is a no-op.
func (c *Controller) Reload(ctx context.Context) error {
	snap := c.store.snapshot()
	if snap.IsNew || snap.Name == "" {
		return nil
	}
	c.autosave.cancel()
	if err := c.load(ctx, snap.Name, nil); err != nil {
		return err
	}
	c.events.fire(ctx, EventRefresh, c.store.snapshot())
	return nil
}

// SetValue mutates one field, recomputes dirtiness and display conditions,
// and re-arms the auto-save scheduler when enabled.
func (c *Controller) SetValue(ctx context.Context, field string, value any) error {
	return c.SetValues(ctx, map[string]any{field: value})
}

// SetValues applies several field mutations in one merge. The field_change
// hook fires once per field with the post-merge snapshot.
func (c *Controller) SetValues(ctx context.Context, values map[string]any) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	if len(values) == 0 {
		return nil
	}
	c.ensureSchema(ctx)
	state := c.store.merge(func(s *State) {
		for field, value := range values {
			s.Doc[field] = cloneValue(value)
			fieldState := s.Fields[field]
			fieldState.Touched = true
			s.Fields[field] = fieldState
		}
		c.applyFieldStates(s)
	})
	if c.cfg.ValidateOnChange {
		for field := range values {
			c.ValidateField(ctx, field)
		}
		state = c.store.snapshot()
	}
	for field, value := range values {
		c.events.fireFieldChange(ctx, state, field, value)
	}
	if c.cfg.AutoSave {
		if state.IsDirty {
			c.autosave.arm()
		} else {
			c.autosave.cancel()
		}
	}
	return nil
}

// Validate runs the schema-driven pass over the whole document, mirrors the
// results into the per-field states, and fires the validate hook.
func (c *Controller) Validate(ctx context.Context) map[string]string {
	c.ensureSchema(ctx)
	snap := c.store.snapshot()
	schema := c.currentSchema()
	errs := validateDocument(schema, snap.Doc, c.requiredOverrides(snap.Doc))
	state := c.store.merge(func(s *State) {
		s.Errors = cloneStringMap(errs)
		if s.Errors == nil {
			s.Errors = map[string]string{}
		}
		for name, fieldState := range s.Fields {
			fieldState.Error = errs[name]
			s.Fields[name] = fieldState
		}
	})
	c.events.fire(ctx, EventValidate, state)
	return errs
}

// ValidateField runs the same pass for a single field and patches only that
// entry. The returned string is empty when the value passes.
func (c *Controller) ValidateField(ctx context.Context, name string) string {
	c.ensureSchema(ctx)
	schema := c.currentSchema()
	spec, ok := schema.Field(name)
	if !ok || spec.Type.IsLayout() {
		return ""
	}
	snap := c.store.snapshot()
	required := spec.Required
	if override, ok := c.requiredOverrides(snap.Doc)[name]; ok {
		required = override
	}
	message := validateFieldValue(spec, snap.Doc[name], required)
	state := c.store.merge(func(s *State) {
		if s.Errors == nil {
			s.Errors = map[string]string{}
		}
		if message == "" {
			delete(s.Errors, name)
		} else {
			s.Errors[name] = message
		}
		fieldState := s.Fields[name]
		fieldState.Error = message
		s.Fields[name] = fieldState
	})
	c.events.fire(ctx, EventValidate, state)
	return message
}

// Save persists the document: POST for a new document, PUT otherwise. On
// success the dirty baseline resets and any pending auto-save is cancelled.
func (c *Controller) Save(ctx context.Context) Result {
	return c.save(ctx, false)
}

func (c *Controller) save(ctx context.Context, auto bool) Result {
	if c.destroyed.Load() {
		return Result{Success: false, Message: ErrDestroyed.Error()}
	}
	if !auto {
		c.autosave.cancel()
	}

	snap := c.store.snapshot()
	if !c.events.fireGating(ctx, BeforeSave, snap) {
		return Result{Success: false, Message: "cancelled by before_save hook"}
	}

	if !auto || c.cfg.ValidateOnAutoSave {
		if errs := c.Validate(ctx); len(errs) > 0 {
			state := c.store.snapshot()
			c.events.fire(ctx, EventValidationError, state)
			return Result{Success: false, Message: "validation failed", Errors: errs}
		}
	}

	if c.transport == nil {
		return Result{Success: false, Message: ErrNoTransport.Error()}
	}
	if !c.saving.CompareAndSwap(false, true) {
		return Result{Success: false, Message: "save already in progress"}
	}
	defer c.saving.Store(false)

	snap = c.store.merge(func(s *State) { s.IsSaving = true })
	payload := snap.Doc.Clone()

	var saved Document
	var err error
	wasNew := snap.IsNew
	if wasNew {
		saved, err = c.transport.Create(ctx, c.doctype, payload)
	} else {
		saved, err = c.transport.Update(ctx, c.doctype, snap.Name, payload)
	}
	if err != nil {
		state := c.store.merge(func(s *State) { s.IsSaving = false })
		c.events.fireError(ctx, EventError, state, err)
		return Result{Success: false, Message: err.Error(), Errors: requestErrorFields(err)}
	}

	state := c.store.merge(func(s *State) {
		s.Doc = saved.Clone()
		s.Original = saved.Clone()
		s.IsSaving = false
		s.Errors = map[string]string{}
		c.applyFieldStates(s)
	})
	c.autosave.cancel()
	c.events.fire(ctx, EventSave, state)
	c.events.fire(ctx, EventAfterSave, state)
	if wasNew {
		c.emitActivity(ctx, activity.BuildDocumentCreatedEvent, state)
	} else {
		c.emitActivity(ctx, activity.BuildDocumentUpdatedEvent, state)
	}
	return Result{Success: true, Doc: state.Doc}
}

// autoSaveFire is the scheduler callback: re-check the guards, run the shared
// save path, and either reset or back off the retry counter.
func (c *Controller) autoSaveFire() {
	ctx := context.Background()
	snap := c.store.snapshot()
	if !snap.IsDirty || snap.IsSaving {
		return
	}
	result := c.save(ctx, true)
	if result.Success {
		c.autosave.succeeded()
		c.events.fire(ctx, EventAutoSave, c.store.snapshot())
		return
	}
	c.events.fireError(ctx, EventAutoSaveError, c.store.snapshot(), errors.New(result.Message))
	c.autosave.failed()
}

// Submit posts the document to the submit endpoint, saving first when the
// document is still unsaved.
func (c *Controller) Submit(ctx context.Context) Result {
	if c.destroyed.Load() {
		return Result{Success: false, Message: ErrDestroyed.Error()}
	}
	c.autosave.cancel()

	snap := c.store.snapshot()
	if snap.IsNew {
		if result := c.save(ctx, false); !result.Success {
			return result
		}
		snap = c.store.snapshot()
	}
	if !c.events.fireGating(ctx, BeforeSubmit, snap) {
		return Result{Success: false, Message: "cancelled by before_submit hook"}
	}
	if c.transport == nil {
		return Result{Success: false, Message: ErrNoTransport.Error()}
	}

	c.store.merge(func(s *State) { s.IsSubmitting = true })
	submitted, err := c.transport.Submit(ctx, c.doctype, snap.Name)
	if err != nil {
		state := c.store.merge(func(s *State) { s.IsSubmitting = false })
		c.events.fireError(ctx, EventError, state, err)
		return Result{Success: false, Message: err.Error()}
	}
	state := c.store.merge(func(s *State) {
		s.Doc = submitted.Clone()
		s.Original = submitted.Clone()
		s.IsSubmitting = false
		c.applyFieldStates(s)
	})
	c.events.fire(ctx, EventSubmit, state)
	c.events.fire(ctx, EventAfterSubmit, state)
	c.emitActivity(ctx, activity.BuildDocumentSubmittedEvent, state)
	return Result{Success: true, Doc: state.Doc}
}

// Cancel posts a submitted document to the cancel endpoint. Calling it in any
// other state fails structurally without a network call.
func (c *Controller) Cancel(ctx context.Context) Result {
	if c.destroyed.Load() {
		return Result{Success: false, Message: ErrDestroyed.Error()}
	}
	snap := c.store.snapshot()
	if snap.DocStatus != StatusSubmitted {
		return Result{Success: false, Message: "only submitted documents can be cancelled"}
	}
	if c.transport == nil {
		return Result{Success: false, Message: ErrNoTransport.Error()}
	}
	cancelled, err := c.transport.Cancel(ctx, c.doctype, snap.Name)
	if err != nil {
		c.events.fireError(ctx, EventError, c.store.snapshot(), err)
		return Result{Success: false, Message: err.Error()}
	}
	state := c.store.merge(func(s *State) {
		s.Doc = cancelled.Clone()
		s.Original = cancelled.Clone()
		c.applyFieldStates(s)
	})
	c.events.fire(ctx, EventCancel, state)
	c.emitActivity(ctx, activity.BuildDocumentCancelledEvent, state)
	return Result{Success: true, Doc: state.Doc}
}

// Amend turns a cancelled document into a new draft that references its
// predecessor through amended_from.
func (c *Controller) Amend(ctx context.Context) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	snap := c.store.snapshot()
	if snap.DocStatus != StatusCancelled {
		return ErrAmendRequiresCancelled
	}
	prior := snap.Name
	state := c.store.merge(func(s *State) {
		delete(s.Doc, KeyName)
		delete(s.Doc, KeyCreation)
		delete(s.Doc, KeyModified)
		delete(s.Doc, KeyModifiedBy)
		delete(s.Doc, KeyOwner)
		s.Doc[KeyAmendedFrom] = prior
		s.Doc[KeyDocStatus] = int(StatusDraft)
		s.Original = Document{}
		s.Errors = map[string]string{}
		c.applyFieldStates(s)
	})
	c.emitActivity(ctx, func(input activity.DocumentEventInput) activity.Event {
		input.Name = prior
		return activity.BuildDocumentAmendedEvent(input)
	}, state)
	return nil
}

// Delete removes the persisted document and resets the view state to a fresh
// draft. An unsaved document fails structurally without a network call.
func (c *Controller) Delete(ctx context.Context) Result {
	if c.destroyed.Load() {
		return Result{Success: false, Message: ErrDestroyed.Error()}
	}
	snap := c.store.snapshot()
	if snap.IsNew || snap.Name == "" {
		return Result{Success: false, Message: "cannot delete an unsaved document"}
	}
	if !c.events.fireGating(ctx, BeforeDelete, snap) {
		return Result{Success: false, Message: "cancelled by before_delete hook"}
	}
	if c.transport == nil {
		return Result{Success: false, Message: ErrNoTransport.Error()}
	}
	prior := snap.Name
	if err := c.transport.Delete(ctx, c.doctype, prior); err != nil {
		c.events.fireError(ctx, EventError, c.store.snapshot(), err)
		return Result{Success: false, Message: err.Error()}
	}
	c.autosave.cancel()
	schema := c.currentSchema()
	document := schema.Defaults()
	state := c.store.merge(func(s *State) {
		s.Doc = document
		s.Original = document.Clone()
		s.Errors = map[string]string{}
		s.Fields = map[string]FieldState{}
		c.applyFieldStates(s)
	})
	c.events.fire(ctx, EventDelete, state)
	c.emitActivity(ctx, func(input activity.DocumentEventInput) activity.Event {
		input.Name = prior
		return activity.BuildDocumentDeletedEvent(input)
	}, state)
	return Result{Success: true}
}

// Duplicate strips identity and audit fields so the remaining values can be
// saved as a new document. The baseline resets to empty, so every surviving
// field reads as dirty.
func (c *Controller) Duplicate(ctx context.Context) State {
	c.ensureSchema(ctx)
	return c.store.merge(func(s *State) {
		delete(s.Doc, KeyName)
		delete(s.Doc, KeyCreation)
		delete(s.Doc, KeyModified)
		delete(s.Doc, KeyModifiedBy)
		delete(s.Doc, KeyOwner)
		delete(s.Doc, KeyAmendedFrom)
		s.Doc[KeyDocStatus] = int(StatusDraft)
		s.Original = Document{}
		s.Errors = map[string]string{}
		c.applyFieldStates(s)
	})
}

type activityBuilder func(activity.DocumentEventInput) activity.Event

func (c *Controller) emitActivity(ctx context.Context, build activityBuilder, state State) {
	if c.emitter == nil || !c.emitter.Enabled() {
		return
	}
	event := build(activity.DocumentEventInput{
		Doctype: c.doctype,
		Name:    state.Name,
		Metadata: map[string]any{
			"docstatus": int(state.DocStatus),
		},
	})
	_ = c.emitter.Emit(ctx, event)
}

func requestErrorFields(err error) map[string]string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && len(reqErr.Fields) > 0 {
		return cloneStringMap(reqErr.Fields)
	}
	return nil
}
