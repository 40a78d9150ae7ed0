// Package openapi renders a document field catalog as an OpenAPI 3 component
// schema, suitable for embedding in a larger API document.
package openapi

import (
	"fmt"
	"sort"

	doc "github.com/goliatone/go-document"
)

// Format identifies the schema dialect produced by this package.
const Format = "openapi-3.0"

// SchemaDocument bundles a generated schema with its dialect marker.
type SchemaDocument struct {
	Format   string
	Document map[string]any
}

// Generate builds the component schema for one field catalog. Layout markers
// are skipped; required fields are collected into the schema's required list.
func Generate(schema *doc.Schema) (SchemaDocument, error) {
	if schema == nil {
		return SchemaDocument{}, fmt.Errorf("openapi: schema is nil")
	}

	properties := map[string]any{
		doc.KeyName: map[string]any{"type": "string", "readOnly": true},
		doc.KeyDocStatus: map[string]any{
			"type":    "integer",
			"enum":    []any{0, 1, 2},
			"default": 0,
		},
	}
	var required []string

	for _, field := range schema.DataFields() {
		property, err := fieldProperty(field)
		if err != nil {
			return SchemaDocument{}, err
		}
		properties[field.Name] = property
		if field.Required {
			required = append(required, field.Name)
		}
	}
	sort.Strings(required)

	document := map[string]any{
		"type":       "object",
		"title":      schema.Doctype,
		"properties": properties,
	}
	if len(required) > 0 {
		document["required"] = required
	}

	return SchemaDocument{Format: Format, Document: document}, nil
}

func fieldProperty(field doc.FieldSpec) (map[string]any, error) {
	property := map[string]any{}

	switch field.Type {
	case doc.FieldTypeText, doc.FieldTypeLongText, doc.FieldTypeLink:
		property["type"] = "string"
	case doc.FieldTypeDate:
		property["type"] = "string"
		property["format"] = "date"
	case doc.FieldTypeDatetime:
		property["type"] = "string"
		property["format"] = "date-time"
	case doc.FieldTypeSelect:
		property["type"] = "string"
		if len(field.Options) > 0 {
			options := make([]any, len(field.Options))
			for i, option := range field.Options {
				options[i] = option
			}
			property["enum"] = options
		}
	case doc.FieldTypeInteger:
		property["type"] = "integer"
	case doc.FieldTypeDecimal, doc.FieldTypeCurrency, doc.FieldTypePercent:
		property["type"] = "number"
	case doc.FieldTypeBoolean:
		property["type"] = "boolean"
	default:
		return nil, fmt.Errorf("openapi: unsupported field type %q for %q", field.Type, field.Name)
	}

	if field.Label != "" {
		property["title"] = field.Label
	}
	if field.Default != nil {
		property["default"] = field.Default
	}
	if field.ReadOnly {
		property["readOnly"] = true
	}

	return property, nil
}
