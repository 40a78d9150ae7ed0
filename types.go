package doc

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Document is one metadata-typed record: an open-ended mapping from field
// name to value. Identity lives inside the map under the reserved keys.
type Document map[string]any

// Reserved document keys managed by the controller rather than the caller.
const (
	KeyName        = "name"
	KeyDocStatus   = "docstatus"
	KeyAmendedFrom = "amended_from"
	KeyCreation    = "creation"
	KeyModified    = "modified"
	KeyModifiedBy  = "modified_by"
	KeyOwner       = "owner"
)

// DocStatus is the three-state lifecycle flag governing which operations are
// legal on a document.
type DocStatus int

const (
	StatusDraft     DocStatus = 0
	StatusSubmitted DocStatus = 1
	StatusCancelled DocStatus = 2
)

// Name returns the opaque identifier, empty for unsaved documents.
func (d Document) Name() string {
	name, _ := d[KeyName].(string)
	return name
}

// Status returns the document lifecycle flag, defaulting to draft.
func (d Document) Status() DocStatus {
	return docStatusValue(d[KeyDocStatus])
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(map[string]any(d)))
}

func docStatusValue(value any) DocStatus {
	switch typed := value.(type) {
	case DocStatus:
		return typed
	case int:
		return DocStatus(typed)
	case int64:
		return DocStatus(typed)
	case float64:
		return DocStatus(int(typed))
	default:
		return StatusDraft
	}
}

// FieldState tracks the per-field view of a document.
type FieldState struct {
	Value    any
	Touched  bool
	Dirty    bool
	Disabled bool
	Hidden   bool
	Error    string
}

// Permissions summarises which lifecycle operations the current state allows.
type Permissions struct {
	CanSave   bool
	CanSubmit bool
	CanCancel bool
	CanDelete bool
	CanAmend  bool
}

// State is the full view state owned by one controller. Snapshots returned by
// the controller are deep copies; mutating them has no effect on the store.
type State struct {
	Doctype   string
	Name      string
	DocStatus DocStatus

	Doc      Document
	Original Document

	IsNew        bool
	IsDirty      bool
	IsLoading    bool
	IsSaving     bool
	IsSubmitting bool

	Errors      map[string]string
	Fields      map[string]FieldState
	Permissions Permissions
}

func (s State) clone() State {
	out := s
	out.Doc = s.Doc.Clone()
	out.Original = s.Original.Clone()
	out.Errors = cloneStringMap(s.Errors)
	if s.Fields != nil {
		out.Fields = make(map[string]FieldState, len(s.Fields))
		for name, field := range s.Fields {
			out.Fields[name] = field
		}
	}
	return out
}

// Result is the structured outcome of a guarded lifecycle operation. Expected
// precondition and transport failures surface here, never as panics.
type Result struct {
	Success bool
	Doc     Document
	Message string
	Errors  map[string]string
}

// Transport performs the persistence calls for one document type. Implementors
// return *RequestError for non-2xx responses so callers can inspect
// server-side validation detail.
type Transport interface {
	Fetch(ctx context.Context, doctype, name string) (Document, error)
	Create(ctx context.Context, doctype string, document Document) (Document, error)
	Update(ctx context.Context, doctype, name string, document Document) (Document, error)
	Delete(ctx context.Context, doctype, name string) error
	Submit(ctx context.Context, doctype, name string) (Document, error)
	Cancel(ctx context.Context, doctype, name string) (Document, error)
}

// SchemaSource supplies the field catalog for a document type. The controller
// consults it once and caches the result; failures fall back to an empty
// catalog.
type SchemaSource interface {
	Schema(ctx context.Context, doctype string) (*Schema, error)
}

// RequestError describes a non-2xx transport response.
type RequestError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("doc: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("doc: request failed with status %d: %s", e.StatusCode, e.Message)
}

// RuleContext carries inputs needed when evaluating a field condition.
type RuleContext struct {
	Doc      Document
	Field    string
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) fieldLabel() string {
	if field := strings.TrimSpace(ctx.Field); field != "" {
		return field
	}
	return "unknown"
}

// Evaluator executes condition expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}
