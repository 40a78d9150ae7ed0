// Package doc implements a client-side document lifecycle controller:
// create, load, edit, validate, persist, submit, cancel, amend, delete,
// and duplicate over a single observable state container.
//
// Responsibilities:
//   - Controller owns one document of one type and exposes every mutation
//     through an atomic merge into its view State; subscribers observe each
//     merge with a deep snapshot.
//   - Transport and SchemaSource are collaborator boundaries: persistence and
//     the field catalog live behind interfaces, with HTTP implementations in
//     pkg/client and an in-memory pair in pkg/memstore.
//   - Validation is schema-driven; field display conditions (depends_on,
//     read_only_depends_on, required_depends_on) run through a pluggable
//     expression evaluator, expr-lang by default with CEL and, behind the
//     js_eval build tag, goja alternatives.
//   - A debounced auto-save scheduler re-arms on every edit and retries
//     failures with exponential backoff before giving up until the next edit.
//
// Lifecycle legality follows the three-state docstatus flag: drafts save and
// submit, submitted documents cancel, cancelled documents amend into a fresh
// draft referencing their predecessor. Precondition failures come back as
// structured Results; only Amend on a non-cancelled document is programmer
// misuse and returns an error.
package doc
