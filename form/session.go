package form

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFriedberg29/Patroller-sub001/builder"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
)

var (
	ErrUnknownField    = errors.New("no field with that id")
	ErrDecorativeField = errors.New("field kind carries no value")
	ErrNotLastPage     = errors.New("submit is only reachable from the last page")
)

// BadValueError reports a value whose shape does not fit the field kind.
type BadValueError struct {
	FieldID string
	Reason  string
}

func (e *BadValueError) Error() string {
	return fmt.Sprintf("bad value for field %s: %s", e.FieldID, e.Reason)
}

// Session is one fill-out of a template: the paged view of the schema, a
// current-page index, and the values entered so far. Values survive page
// navigation in both directions and are only discarded with the session.
type Session struct {
	fields []model.FieldDefinition
	byID   map[string]model.FieldDefinition
	pages  []model.Page
	page   int
	values map[string]any
}

func NewSession(fields []model.FieldDefinition) *Session {
	s := &Session{
		fields: append([]model.FieldDefinition(nil), fields...),
		byID:   make(map[string]model.FieldDefinition, len(fields)),
		values: map[string]any{},
	}
	for _, f := range s.fields {
		s.byID[f.ID] = f
	}
	s.pages = builder.SplitIntoPages(s.fields)
	return s
}

func (s *Session) Pages() []model.Page { return s.pages }
func (s *Session) PageIndex() int      { return s.page }
func (s *Session) OnLastPage() bool    { return s.page == len(s.pages)-1 }

func (s *Session) CurrentPage() model.Page {
	return s.pages[s.page]
}

// Render returns the widgets of the current page with values filled in.
func (s *Session) Render() []Widget {
	return RenderPage(s.pages[s.page], s.values)
}

// Next moves forward one page; past the last page it is a no-op.
func (s *Session) Next() {
	if s.page < len(s.pages)-1 {
		s.page++
	}
}

// Previous moves back one page; before the first page it is a no-op.
func (s *Session) Previous() {
	if s.page > 0 {
		s.page--
	}
}

// SetValue records a value for a field anywhere in the schema, checking
// the value's shape against the field kind. Setting nil clears the entry.
func (s *Session) SetValue(fieldID string, value any) error {
	f, ok := s.byID[fieldID]
	if !ok {
		return ErrUnknownField
	}
	if f.Kind.Decorative() {
		return ErrDecorativeField
	}

	if value == nil {
		delete(s.values, fieldID)
		return nil
	}

	if err := checkShape(f, value); err != nil {
		return err
	}
	s.values[fieldID] = value
	return nil
}

func checkShape(f model.FieldDefinition, value any) error {
	switch f.Kind {
	case model.KindShortAnswer, model.KindParagraph, model.KindFileUpload:
		if _, ok := value.(string); !ok {
			return &BadValueError{f.ID, "expected a string"}
		}
	case model.KindDate:
		s, ok := value.(string)
		if !ok {
			return &BadValueError{f.ID, "expected an ISO-8601 date string"}
		}
		if _, err := time.Parse("2006-01-02", s); err != nil && s != "" {
			return &BadValueError{f.ID, "expected an ISO-8601 date string"}
		}
	case model.KindDropdown:
		if f.MultiSelect {
			return checkOptionSet(f, value)
		}
		s, ok := value.(string)
		if !ok {
			return &BadValueError{f.ID, "expected a single option"}
		}
		if s != "" && !isOption(f.Options, s) {
			return &BadValueError{f.ID, "value is not one of the field's options"}
		}
	case model.KindCheckboxGroup:
		return checkOptionSet(f, value)
	}
	return nil
}

// checkOptionSet accepts []string or []any of strings, every entry a
// known option, no duplicates.
func checkOptionSet(f model.FieldDefinition, value any) error {
	var entries []string
	switch v := value.(type) {
	case []string:
		entries = v
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return &BadValueError{f.ID, "expected a list of options"}
			}
			entries = append(entries, s)
		}
	default:
		return &BadValueError{f.ID, "expected a list of options"}
	}

	seen := map[string]bool{}
	for _, e := range entries {
		if !isOption(f.Options, e) {
			return &BadValueError{f.ID, "value is not one of the field's options"}
		}
		if seen[e] {
			return &BadValueError{f.ID, "duplicate option"}
		}
		seen[e] = true
	}
	return nil
}

func isOption(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

// Values returns a copy of the entered values.
func (s *Session) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Validate checks required fields on every page.
func (s *Session) Validate() ValidationResult {
	return Validate(s.fields, s.values)
}

// Submit validates the whole schema and, when clean, hands the collected
// record to the caller's handler. It is only reachable from the last
// page. A failed validation never reaches the handler.
func (s *Session) Submit(handler func(model.Submission) error) (ValidationResult, error) {
	if !s.OnLastPage() {
		return ValidationResult{}, ErrNotLastPage
	}

	result := s.Validate()
	if !result.OK() {
		return result, nil
	}

	return result, handler(model.Submission{
		Time:   time.Now(),
		Values: s.Values(),
	})
}
