package form

import "github.com/JakeFriedberg29/Patroller-sub001/model"

// ValidationResult lists every required field, in schema order, whose
// value is absent, an empty string, or an empty collection. Validation
// always covers the whole schema, not one page, so a required field on
// an earlier page cannot be skipped by navigating forward.
type ValidationResult struct {
	Missing []string `json:"missing"`
}

func (r ValidationResult) OK() bool {
	return len(r.Missing) == 0
}

func Validate(fields []model.FieldDefinition, values map[string]any) ValidationResult {
	var result ValidationResult
	for _, f := range fields {
		if !f.Required || f.Kind.Decorative() {
			continue
		}
		if emptyValue(values[f.ID]) {
			result.Missing = append(result.Missing, f.ID)
		}
	}
	return result
}

func emptyValue(v any) bool {
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
