package doc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// validateDocument runs the generic schema-driven pass: required checks for
// every data field, then type-shape checks for present values. required
// overrides from display conditions take precedence over the static flag.
func validateDocument(schema *Schema, document Document, required map[string]bool) map[string]string {
	errs := map[string]string{}
	if schema == nil {
		return errs
	}
	for _, field := range schema.DataFields() {
		mustHave := field.Required
		if override, ok := required[field.Name]; ok {
			mustHave = override
		}
		if message := validateFieldValue(field, document[field.Name], mustHave); message != "" {
			errs[field.Name] = message
		}
	}
	return errs
}

// validateFieldValue checks one value against its spec. The empty string
// result means the value passes.
func validateFieldValue(field FieldSpec, value any, required bool) string {
	if isEmptyValue(value) {
		if required {
			return fmt.Sprintf("%s is required", field.DisplayLabel())
		}
		return ""
	}

	switch field.Type {
	case FieldTypeInteger:
		if !integerShaped(value) {
			return fmt.Sprintf("%s must be an integer", field.DisplayLabel())
		}
	case FieldTypeDecimal, FieldTypeCurrency, FieldTypePercent:
		if !numberShaped(value) {
			return fmt.Sprintf("%s must be a number", field.DisplayLabel())
		}
	case FieldTypeDate, FieldTypeDatetime:
		if !dateShaped(value) {
			return fmt.Sprintf("%s must be a valid date", field.DisplayLabel())
		}
	}
	return ""
}

func integerShaped(value any) bool {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return typed == float64(int64(typed))
	case float32:
		return typed == float32(int64(typed))
	case string:
		_, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return err == nil
	default:
		return false
	}
}

func numberShaped(value any) bool {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return err == nil
	default:
		return false
	}
}

func dateShaped(value any) bool {
	switch typed := value.(type) {
	case time.Time:
		return true
	case string:
		trimmed := strings.TrimSpace(typed)
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, trimmed); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}
