package doc

import "reflect"

// cloneMap deep-copies nested maps and slices so snapshots never alias the
// live document.
func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case Document:
		return Document(cloneMap(map[string]any(typed)))
	case []any:
		out := make([]any, len(typed))
		for i, element := range typed {
			out[i] = cloneValue(element)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

// documentsEqual reports deep equality between a document and its baseline.
func documentsEqual(a, b Document) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(map[string]any(a), map[string]any(b))
}

// valuesEqual compares one field value against its baseline counterpart.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// mergeValues layers overrides on top of base, strongest first wins per key.
// Both inputs stay untouched.
func mergeValues(base Document, overrides map[string]any) Document {
	merged := base.Clone()
	if merged == nil {
		merged = Document{}
	}
	for key, value := range overrides {
		merged[key] = cloneValue(value)
	}
	return merged
}

// isEmptyValue reports whether value counts as absent for required checks.
func isEmptyValue(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	default:
		return false
	}
}
