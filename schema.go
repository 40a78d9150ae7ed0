package doc

import "strings"

// FieldType identifies the semantic kind of a catalog field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeLongText FieldType = "long_text"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeDecimal  FieldType = "decimal"
	FieldTypeCurrency FieldType = "currency"
	FieldTypePercent  FieldType = "percent"
	FieldTypeDate     FieldType = "date"
	FieldTypeDatetime FieldType = "datetime"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeSelect   FieldType = "select"
	FieldTypeLink     FieldType = "link"

	// Layout markers carry no data and are skipped by validation.
	FieldTypeSection FieldType = "section_break"
	FieldTypeColumn  FieldType = "column_break"
	FieldTypeTab     FieldType = "tab_break"
)

// IsLayout reports whether the type is a pure layout marker.
func (t FieldType) IsLayout() bool {
	switch t {
	case FieldTypeSection, FieldTypeColumn, FieldTypeTab:
		return true
	}
	return false
}

// IsNumeric reports whether values of the type must parse as numbers.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldTypeInteger, FieldTypeDecimal, FieldTypeCurrency, FieldTypePercent:
		return true
	}
	return false
}

// FieldSpec is one catalog entry: the schema-provider description of a single
// document field. Specs are immutable for the lifetime of a controller.
type FieldSpec struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  any       `json:"default,omitempty"`
	ReadOnly bool      `json:"read_only,omitempty"`
	Hidden   bool      `json:"hidden,omitempty"`
	Options  []string  `json:"options,omitempty"`

	// Display conditions evaluated against the current document. An empty
	// expression leaves the static flag in charge.
	DependsOn         string `json:"depends_on,omitempty"`
	ReadOnlyDependsOn string `json:"read_only_depends_on,omitempty"`
	RequiredDependsOn string `json:"required_depends_on,omitempty"`
}

// DisplayLabel returns the label, falling back to a title-cased field name.
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	words := strings.Split(f.Name, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// SchemaPermissions is the permission summary supplied by the schema provider
// for a document type.
type SchemaPermissions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Create bool `json:"create"`
	Delete bool `json:"delete"`
	Submit bool `json:"submit"`
	Cancel bool `json:"cancel"`
	Amend  bool `json:"amend"`
}

// Schema is the field catalog for one document type.
type Schema struct {
	Doctype     string            `json:"doctype"`
	Fields      []FieldSpec       `json:"fields"`
	Permissions SchemaPermissions `json:"permissions"`
}

// EmptySchema is the fallback catalog used when the provider cannot be
// reached: no fields, every operation permitted.
func EmptySchema(doctype string) *Schema {
	return &Schema{
		Doctype: doctype,
		Permissions: SchemaPermissions{
			Read:   true,
			Write:  true,
			Create: true,
			Delete: true,
			Submit: true,
			Cancel: true,
			Amend:  true,
		},
	}
}

// Field returns the spec for name, if present.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	if s == nil {
		return FieldSpec{}, false
	}
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// DataFields returns the catalog entries that hold values, skipping layout
// markers and unnamed specs.
func (s *Schema) DataFields() []FieldSpec {
	if s == nil {
		return nil
	}
	fields := make([]FieldSpec, 0, len(s.Fields))
	for _, field := range s.Fields {
		if field.Name == "" || field.Type.IsLayout() {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}

// Defaults builds a draft document seeded with catalog default values.
func (s *Schema) Defaults() Document {
	document := Document{KeyDocStatus: int(StatusDraft)}
	for _, field := range s.DataFields() {
		if field.Default == nil {
			continue
		}
		document[field.Name] = field.Default
	}
	return document
}
