package hydrate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type settings struct {
	AutoSave   bool   `json:"auto_save"`
	IntervalMS int    `json:"auto_save_interval_ms"`
	Label      string `json:"label"`
}

func TestDecodeBasic(t *testing.T) {
	decoder := NewDecoder[settings]()
	got, err := decoder.Decode(Context{Doctype: "Task"}, map[string]any{
		"auto_save":             true,
		"auto_save_interval_ms": 5000,
		"label":                 "Task settings",
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.AutoSave || got.IntervalMS != 5000 || got.Label != "Task settings" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDecodeNilPayload(t *testing.T) {
	decoder := NewDecoder[settings]()
	_, err := decoder.Decode(Context{Doctype: "Task"}, nil)
	if err == nil {
		t.Fatal("expected error for nil payload")
	}
	if !strings.Contains(err.Error(), `doctype "Task"`) {
		t.Fatalf("error should name the doctype: %v", err)
	}
}

func TestPreHookMutatesPayload(t *testing.T) {
	decoder := NewDecoder[settings](
		WithPreHook[settings](func(ctx Context, payload map[string]any) (map[string]any, error) {
			payload["label"] = ctx.Doctype
			return payload, nil
		}),
	)
	got, err := decoder.Decode(Context{Doctype: "Invoice"}, map[string]any{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Label != "Invoice" {
		t.Fatalf("pre-hook not applied, label=%q", got.Label)
	}
}

func TestPreHookDoesNotMutateOriginal(t *testing.T) {
	original := map[string]any{"label": "before"}
	decoder := NewDecoder[settings](
		WithPreHook[settings](func(_ Context, payload map[string]any) (map[string]any, error) {
			payload["label"] = "after"
			return payload, nil
		}),
	)
	if _, err := decoder.Decode(Context{Doctype: "Task"}, original); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if original["label"] != "before" {
		t.Fatalf("caller payload mutated: %v", original["label"])
	}
}

func TestPostHookValidation(t *testing.T) {
	wantErr := errors.New("interval too small")
	decoder := NewDecoder[settings](
		WithPostHook[settings](func(_ Context, result *settings) error {
			if result.IntervalMS < 1000 {
				return wantErr
			}
			return nil
		}),
	)
	_, err := decoder.Decode(Context{Doctype: "Task"}, map[string]any{
		"auto_save_interval_ms": 10,
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected post-hook error, got %v", err)
	}
}

func TestWithUseNumber(t *testing.T) {
	type raw struct {
		Value any `json:"value"`
	}
	decoder := NewDecoder[raw](WithUseNumber[raw]())
	got, err := decoder.Decode(Context{Doctype: "Task"}, map[string]any{"value": 42})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got.Value.(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", got.Value)
	}
}

func TestWithDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[settings](WithDisallowUnknownFields[settings]())
	_, err := decoder.Decode(Context{Doctype: "Task"}, map[string]any{"bogus": 1})
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestCustomDecoder(t *testing.T) {
	decoder := NewDecoder[settings](
		WithCustomDecoder[settings](func(ctx Context, payload map[string]any) (settings, error) {
			return settings{Label: ctx.Doctype}, nil
		}),
	)
	got, err := decoder.Decode(Context{Doctype: "Custom"}, map[string]any{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Label != "Custom" {
		t.Fatalf("custom decoder not used: %+v", got)
	}
}
