package openapi

import (
	"reflect"
	"testing"

	doc "github.com/goliatone/go-document"
)

func TestGenerate(t *testing.T) {
	schema := &doc.Schema{
		Doctype: "Task",
		Fields: []doc.FieldSpec{
			{Name: "subject", Type: doc.FieldTypeText, Required: true, Label: "Subject"},
			{Name: "details", Type: doc.FieldTypeSection},
			{Name: "priority", Type: doc.FieldTypeSelect, Options: []string{"Low", "High"}, Default: "Low"},
			{Name: "hours", Type: doc.FieldTypeDecimal},
			{Name: "due_date", Type: doc.FieldTypeDate},
			{Name: "done", Type: doc.FieldTypeBoolean, ReadOnly: true},
		},
	}

	got, err := Generate(schema)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Format != Format {
		t.Errorf("format = %q", got.Format)
	}
	if got.Document["title"] != "Task" {
		t.Errorf("title = %v", got.Document["title"])
	}
	if !reflect.DeepEqual(got.Document["required"], []string{"subject"}) {
		t.Errorf("required = %v", got.Document["required"])
	}

	properties := got.Document["properties"].(map[string]any)
	if _, ok := properties["details"]; ok {
		t.Error("layout marker should be skipped")
	}

	subject := properties["subject"].(map[string]any)
	if subject["type"] != "string" || subject["title"] != "Subject" {
		t.Errorf("subject = %v", subject)
	}

	priority := properties["priority"].(map[string]any)
	if !reflect.DeepEqual(priority["enum"], []any{"Low", "High"}) {
		t.Errorf("priority enum = %v", priority["enum"])
	}
	if priority["default"] != "Low" {
		t.Errorf("priority default = %v", priority["default"])
	}

	if properties["hours"].(map[string]any)["type"] != "number" {
		t.Error("decimal should map to number")
	}
	if properties["due_date"].(map[string]any)["format"] != "date" {
		t.Error("date should carry a date format")
	}
	if properties["done"].(map[string]any)["readOnly"] != true {
		t.Error("read-only flag should be carried")
	}

	docstatus := properties["docstatus"].(map[string]any)
	if !reflect.DeepEqual(docstatus["enum"], []any{0, 1, 2}) {
		t.Errorf("docstatus enum = %v", docstatus["enum"])
	}
}

func TestGenerateNilSchema(t *testing.T) {
	if _, err := Generate(nil); err == nil {
		t.Fatal("expected error for nil schema")
	}
}

func TestGenerateUnsupportedType(t *testing.T) {
	schema := &doc.Schema{
		Doctype: "Task",
		Fields:  []doc.FieldSpec{{Name: "blob", Type: doc.FieldType("attachment")}},
	}
	if _, err := Generate(schema); err == nil {
		t.Fatal("expected error for unsupported field type")
	}
}
