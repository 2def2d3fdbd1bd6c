package builder

import (
	"errors"

	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/google/uuid"
)

var (
	// ErrInvalidReorder is returned when a reorder list is not a
	// permutation of the current field ids.
	ErrInvalidReorder = errors.New("reorder list must contain every field id exactly once")
	ErrFieldNotFound  = errors.New("no field with that id")
	ErrUnknownKind    = errors.New("unknown field kind")
)

// Editor maintains the ordered field list of a template under authoring.
// Every mutation is synchronous, keeps ids unique, and recomputes the
// derived page list before returning.
type Editor struct {
	fields []model.FieldDefinition
	pages  []model.Page
}

func NewEditor(fields []model.FieldDefinition) *Editor {
	e := &Editor{fields: append([]model.FieldDefinition(nil), fields...)}
	e.repaginate()
	return e
}

// Fields returns a copy of the ordered field list.
func (e *Editor) Fields() []model.FieldDefinition {
	return append([]model.FieldDefinition(nil), e.fields...)
}

// Pages returns the page list derived from the current fields.
func (e *Editor) Pages() []model.Page {
	return e.pages
}

func (e *Editor) repaginate() {
	e.pages = SplitIntoPages(e.fields)
}

// AddField creates a field with kind-appropriate defaults and inserts it
// immediately after index `after`. An out-of-range index appends. The new
// field is returned so the caller can focus it.
func (e *Editor) AddField(kind model.FieldKind, after int) (model.FieldDefinition, error) {
	if !kind.Valid() {
		return model.FieldDefinition{}, ErrUnknownKind
	}

	f := model.FieldDefinition{
		ID:    uuid.NewString(),
		Kind:  kind,
		Width: model.WidthFull,
	}
	if kind.HasOptions() {
		f.Options = []string{}
	}

	if after < 0 || after >= len(e.fields) {
		e.fields = append(e.fields, f)
	} else {
		e.fields = append(e.fields[:after+1], append([]model.FieldDefinition{f}, e.fields[after+1:]...)...)
	}
	e.repaginate()
	return f, nil
}

// Patch holds the updatable parts of a field; nil members are left alone.
type Patch struct {
	Name        *string
	Kind        *model.FieldKind
	Required    *bool
	Options     *[]string
	MultiSelect *bool
	Width       *model.FieldWidth
	Label       *string
}

// UpdateField merges patch into the field with the given id. The list
// order is never affected, present or not.
func (e *Editor) UpdateField(id string, patch Patch) error {
	i := e.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}

	f := &e.fields[i]
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Kind != nil {
		if !patch.Kind.Valid() {
			return ErrUnknownKind
		}
		f.Kind = *patch.Kind
		if !f.Kind.HasOptions() {
			f.Options = nil
		}
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.Options != nil {
		f.Options = append([]string(nil), (*patch.Options)...)
	}
	if patch.MultiSelect != nil {
		f.MultiSelect = *patch.MultiSelect
	}
	if patch.Width != nil {
		f.Width = *patch.Width
	}
	if patch.Label != nil {
		f.Label = *patch.Label
	}
	e.repaginate()
	return nil
}

func (e *Editor) RemoveField(id string) error {
	i := e.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	e.repaginate()
	return nil
}

// Reorder replaces the list order to match newOrder, which must contain
// every current field id exactly once. On failure the original order is
// left untouched.
func (e *Editor) Reorder(newOrder []string) error {
	if len(newOrder) != len(e.fields) {
		return ErrInvalidReorder
	}

	byID := make(map[string]model.FieldDefinition, len(e.fields))
	for _, f := range e.fields {
		byID[f.ID] = f
	}

	reordered := make([]model.FieldDefinition, 0, len(newOrder))
	for _, id := range newOrder {
		f, ok := byID[id]
		if !ok {
			// unknown or duplicate id
			return ErrInvalidReorder
		}
		delete(byID, id)
		reordered = append(reordered, f)
	}

	e.fields = reordered
	e.repaginate()
	return nil
}

// MoveField shifts one field by offset positions. This is the keyboard
// path for drag-and-drop reordering: one call per keypress, no pointer
// tracking needed.
func (e *Editor) MoveField(id string, offset int) error {
	i := e.indexOf(id)
	if i < 0 {
		return ErrFieldNotFound
	}

	j := i + offset
	if j < 0 {
		j = 0
	}
	if j >= len(e.fields) {
		j = len(e.fields) - 1
	}
	if j == i {
		return nil
	}

	f := e.fields[i]
	e.fields = append(e.fields[:i], e.fields[i+1:]...)
	e.fields = append(e.fields[:j], append([]model.FieldDefinition{f}, e.fields[j:]...)...)
	e.repaginate()
	return nil
}

func (e *Editor) indexOf(id string) int {
	for i, f := range e.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}
