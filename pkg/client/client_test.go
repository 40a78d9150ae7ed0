package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	doc "github.com/goliatone/go-document"
)

func TestFetchDecodesDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/resource/task/TASK-001" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"name": "TASK-001", "subject": "Ship it"},
		})
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	got, err := c.Fetch(context.Background(), "Task", "TASK-001")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got["subject"] != "Ship it" {
		t.Fatalf("unexpected document: %v", got)
	}
}

func TestCreateSendsDocEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/resource/sales_order" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]doc.Document
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		sent := body["doc"]
		sent["name"] = "SO-0001"
		json.NewEncoder(w).Encode(map[string]any{"data": sent})
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	got, err := c.Create(context.Background(), "Sales Order", doc.Document{"customer": "ACME"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got["name"] != "SO-0001" || got["customer"] != "ACME" {
		t.Fatalf("unexpected document: %v", got)
	}
}

func TestSubmitAndCancelRoutes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"name": "SO-0001"}})
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	if _, err := c.Submit(context.Background(), "Sales Order", "SO-0001"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := c.Cancel(context.Background(), "Sales Order", "SO-0001"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	want := []string{
		"POST /api/resource/sales_order/SO-0001/submit",
		"POST /api/resource/sales_order/SO-0001/cancel",
	}
	for i, path := range want {
		if paths[i] != path {
			t.Errorf("request %d = %s, want %s", i, paths[i], path)
		}
	}
}

func TestDeleteIgnoresNullData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.Write([]byte(`{"data": null}`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	if err := c.Delete(context.Background(), "Task", "TASK-001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestSchemaRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/resource/doctype/task" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"fields": []map[string]any{
					{"name": "subject", "type": "text", "required": true},
				},
				"permissions": map[string]any{"read": true, "write": true},
			},
		})
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	schema, err := c.Schema(context.Background(), "task")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if schema.Doctype != "task" {
		t.Fatalf("doctype = %q", schema.Doctype)
	}
	if len(schema.Fields) != 1 || schema.Fields[0].Name != "subject" || !schema.Fields[0].Required {
		t.Fatalf("unexpected fields: %+v", schema.Fields)
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": {"message": "validation failed", "validation_errors": {"subject": "Subject is required"}}}`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL})
	_, err := c.Create(context.Background(), "Task", doc.Document{})
	var reqErr *doc.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *doc.RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", reqErr.StatusCode)
	}
	if reqErr.Message != "validation failed" {
		t.Errorf("message = %q", reqErr.Message)
	}
	if reqErr.Fields["subject"] != "Subject is required" {
		t.Errorf("fields = %v", reqErr.Fields)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"name": "TASK-001"}})
	}))
	defer server.Close()

	c := New(Options{
		BaseURL:   server.URL,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
	got, err := c.Fetch(context.Background(), "Task", "TASK-001")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got["name"] != "TASK-001" {
		t.Fatalf("unexpected document: %v", got)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"message": "Task TASK-404 not found"}}`))
	}))
	defer server.Close()

	c := New(Options{BaseURL: server.URL, BaseDelay: time.Millisecond})
	_, err := c.Fetch(context.Background(), "Task", "TASK-404")
	var reqErr *doc.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 request error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestTokenProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer server.Close()

	c := New(Options{
		BaseURL: server.URL,
		TokenProvider: func(context.Context) (string, error) {
			return "secret", nil
		},
	})
	if _, err := c.Fetch(context.Background(), "Task", "TASK-001"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Task":        "task",
		"Sales Order": "sales_order",
		" Quotation ": "quotation",
	}
	for input, want := range cases {
		if got := Slug(input); got != want {
			t.Errorf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}
