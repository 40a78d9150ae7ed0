package memstore

import (
	"context"
	"errors"
	"net/http"
	"testing"

	doc "github.com/goliatone/go-document"
)

func TestCreateAssignsSequentialNames(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.Create(ctx, "Task", doc.Document{"subject": "one"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.Create(ctx, "Task", doc.Document{"subject": "two"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Name() != "TASK-0001" || second.Name() != "TASK-0002" {
		t.Fatalf("names = %q, %q", first.Name(), second.Name())
	}
	if first.Status() != doc.StatusDraft {
		t.Fatalf("status = %d", first.Status())
	}
}

func TestFetchReturnsClone(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Task", doc.Document{"subject": "original"})
	fetched, err := store.Fetch(ctx, "Task", created.Name())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	fetched["subject"] = "mutated"

	again, _ := store.Fetch(ctx, "Task", created.Name())
	if again["subject"] != "original" {
		t.Fatal("stored copy was mutated through a fetched clone")
	}
}

func TestFetchMissing(t *testing.T) {
	store := New()
	_, err := store.Fetch(context.Background(), "Task", "TASK-0404")
	var reqErr *doc.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestUpdateRejectsSubmitted(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Task", doc.Document{"subject": "one"})
	if _, err := store.Submit(ctx, "Task", created.Name()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := store.Update(ctx, "Task", created.Name(), doc.Document{"subject": "two"})
	var reqErr *doc.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestSubmitCancelTransitions(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Task", doc.Document{})

	if _, err := store.Cancel(ctx, "Task", created.Name()); err == nil {
		t.Fatal("cancel of a draft should fail")
	}

	submitted, err := store.Submit(ctx, "Task", created.Name())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status() != doc.StatusSubmitted {
		t.Fatalf("status = %d", submitted.Status())
	}

	cancelled, err := store.Cancel(ctx, "Task", created.Name())
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status() != doc.StatusCancelled {
		t.Fatalf("status = %d", cancelled.Status())
	}

	if _, err := store.Submit(ctx, "Task", created.Name()); err == nil {
		t.Fatal("submit of a cancelled document should fail")
	}
}

func TestSchemaLookup(t *testing.T) {
	store := New()
	store.RegisterSchema(&doc.Schema{
		Doctype: "Task",
		Fields:  []doc.FieldSpec{{Name: "subject", Type: doc.FieldTypeText}},
	})

	schema, err := store.Schema(context.Background(), "Task")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(schema.Fields) != 1 {
		t.Fatalf("fields = %+v", schema.Fields)
	}

	if _, err := store.Schema(context.Background(), "Unknown"); err == nil {
		t.Fatal("expected error for unregistered doctype")
	}
}

func TestDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Task", doc.Document{})
	if err := store.Delete(ctx, "Task", created.Name()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "Task", created.Name()); err == nil {
		t.Fatal("second delete should fail")
	}
}
