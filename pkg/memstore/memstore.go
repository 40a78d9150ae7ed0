// Package memstore is a minimal in-memory Transport and SchemaSource
// implementation intended for tests and examples. It makes no persistence
// assumptions and is safe for concurrent use.
package memstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	doc "github.com/goliatone/go-document"
)

// Store keeps documents per doctype, assigning sequential names on create.
type Store struct {
	mu       sync.RWMutex
	records  map[string]map[string]doc.Document
	schemas  map[string]*doc.Schema
	counters map[string]int
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		records:  map[string]map[string]doc.Document{},
		schemas:  map[string]*doc.Schema{},
		counters: map[string]int{},
	}
}

var _ doc.Transport = (*Store)(nil)
var _ doc.SchemaSource = (*Store)(nil)

// RegisterSchema makes a field catalog available to Schema lookups.
func (s *Store) RegisterSchema(schema *doc.Schema) {
	if schema == nil || schema.Doctype == "" {
		return
	}
	s.mu.Lock()
	s.schemas[schema.Doctype] = schema
	s.mu.Unlock()
}

// Seed inserts a document without going through Create. Missing names are
// assigned.
func (s *Store) Seed(doctype string, document doc.Document) doc.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := document.Clone()
	if stored.Name() == "" {
		stored[doc.KeyName] = s.nextNameLocked(doctype)
	}
	s.bucketLocked(doctype)[stored.Name()] = stored
	return stored.Clone()
}

// Fetch retrieves a document by name.
func (s *Store) Fetch(_ context.Context, doctype, name string) (doc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.records[doctype][name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	return stored.Clone(), nil
}

// Create stores a new draft, assigning a sequential name and audit stamps.
func (s *Store) Create(_ context.Context, doctype string, document doc.Document) (doc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	stored := document.Clone()
	stored[doc.KeyName] = s.nextNameLocked(doctype)
	stored[doc.KeyDocStatus] = int(doc.StatusDraft)
	stored[doc.KeyCreation] = now
	stored[doc.KeyModified] = now
	s.bucketLocked(doctype)[stored.Name()] = stored
	return stored.Clone(), nil
}

// Update replaces the stored copy of an existing document.
func (s *Store) Update(_ context.Context, doctype, name string, document doc.Document) (doc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.records[doctype][name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	if prior.Status() != doc.StatusDraft {
		return nil, conflict(fmt.Sprintf("%s %s is not editable", doctype, name))
	}

	stored := document.Clone()
	stored[doc.KeyName] = name
	stored[doc.KeyModified] = time.Now().UTC().Format("2006-01-02 15:04:05")
	s.records[doctype][name] = stored
	return stored.Clone(), nil
}

// Delete removes a document by name.
func (s *Store) Delete(_ context.Context, doctype, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[doctype][name]; !ok {
		return notFound(doctype, name)
	}
	delete(s.records[doctype], name)
	return nil
}

// Submit moves a draft to docstatus 1.
func (s *Store) Submit(_ context.Context, doctype, name string) (doc.Document, error) {
	return s.transition(doctype, name, doc.StatusDraft, doc.StatusSubmitted)
}

// Cancel moves a submitted document to docstatus 2.
func (s *Store) Cancel(_ context.Context, doctype, name string) (doc.Document, error) {
	return s.transition(doctype, name, doc.StatusSubmitted, doc.StatusCancelled)
}

// Schema returns a registered catalog, or a not-found error that callers are
// expected to treat as "no catalog".
func (s *Store) Schema(_ context.Context, doctype string) (*doc.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, ok := s.schemas[doctype]
	if !ok {
		return nil, notFound("DocType", doctype)
	}
	return schema, nil
}

func (s *Store) transition(doctype, name string, from, to doc.DocStatus) (doc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[doctype][name]
	if !ok {
		return nil, notFound(doctype, name)
	}
	if stored.Status() != from {
		return nil, conflict(fmt.Sprintf("%s %s has docstatus %d", doctype, name, int(stored.Status())))
	}
	stored[doc.KeyDocStatus] = int(to)
	stored[doc.KeyModified] = time.Now().UTC().Format("2006-01-02 15:04:05")
	return stored.Clone(), nil
}

func (s *Store) bucketLocked(doctype string) map[string]doc.Document {
	bucket, ok := s.records[doctype]
	if !ok {
		bucket = map[string]doc.Document{}
		s.records[doctype] = bucket
	}
	return bucket
}

func (s *Store) nextNameLocked(doctype string) string {
	s.counters[doctype]++
	prefix := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(doctype), " ", "-"))
	return fmt.Sprintf("%s-%04d", prefix, s.counters[doctype])
}

func notFound(doctype, name string) error {
	return &doc.RequestError{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("%s %s not found", doctype, name),
	}
}

func conflict(message string) error {
	return &doc.RequestError{
		StatusCode: http.StatusConflict,
		Message:    message,
	}
}
