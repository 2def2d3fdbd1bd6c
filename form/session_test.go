package form

import (
	"errors"
	"testing"

	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schema(fields ...model.FieldDefinition) []model.FieldDefinition {
	return fields
}

func req(id string, kind model.FieldKind) model.FieldDefinition {
	return model.FieldDefinition{ID: id, Kind: kind, Required: true, Width: model.WidthFull}
}

func brk() model.FieldDefinition {
	return model.FieldDefinition{ID: "brk", Kind: model.KindPageBreak}
}

func TestValidate_AllPages(t *testing.T) {
	// A on page 1, B on page 2; submitting from page 2 with only A filled
	// must name B
	fields := schema(req("A", model.KindShortAnswer), brk(), req("B", model.KindShortAnswer))

	s := NewSession(fields)
	require.NoError(t, s.SetValue("A", "filled"))
	s.Next()
	require.True(t, s.OnLastPage())

	result, err := s.Submit(func(model.Submission) error {
		t.Fatal("handler must not run on failed validation")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, result.Missing)

	require.NoError(t, s.SetValue("B", "also filled"))
	var got model.Submission
	result, err = s.Submit(func(sub model.Submission) error {
		got = sub
		return nil
	})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, map[string]any{"A": "filled", "B": "also filled"}, got.Values)
}

func TestValidate_EmptyShapes(t *testing.T) {
	fields := schema(
		req("text", model.KindShortAnswer),
		req("multi", model.KindCheckboxGroup),
		model.FieldDefinition{ID: "spacer", Kind: model.KindDivider, Required: true},
	)
	values := map[string]any{
		"text":  "",
		"multi": []string{},
	}

	result := Validate(fields, values)
	// divider is never required, empty string and empty set are missing
	assert.Equal(t, []string{"text", "multi"}, result.Missing)

	values["text"] = "x"
	values["multi"] = []string{"a"}
	assert.True(t, Validate(fields, values).OK())
}

func TestSubmit_OnlyFromLastPage(t *testing.T) {
	s := NewSession(schema(req("A", model.KindShortAnswer), brk(), req("B", model.KindShortAnswer)))

	_, err := s.Submit(func(model.Submission) error { return nil })
	assert.ErrorIs(t, err, ErrNotLastPage)
}

func TestNavigation_Clamped(t *testing.T) {
	s := NewSession(schema(req("A", model.KindShortAnswer), brk(), req("B", model.KindShortAnswer)))

	s.Previous()
	assert.Equal(t, 0, s.PageIndex())

	s.Next()
	s.Next()
	s.Next()
	assert.Equal(t, 1, s.PageIndex())

	// values survive navigation
	require.NoError(t, s.SetValue("B", "kept"))
	s.Previous()
	s.Next()
	assert.Equal(t, "kept", s.Values()["B"])
}

func TestSetValue_Shapes(t *testing.T) {
	dropdown := model.FieldDefinition{
		ID: "d", Kind: model.KindDropdown, Options: []string{"one", "two"},
	}
	multi := model.FieldDefinition{
		ID: "m", Kind: model.KindDropdown, MultiSelect: true, Options: []string{"one", "two"},
	}
	boxes := model.FieldDefinition{
		ID: "c", Kind: model.KindCheckboxGroup, Options: []string{"x", "y"},
	}
	date := model.FieldDefinition{ID: "t", Kind: model.KindDate}
	divider := model.FieldDefinition{ID: "s", Kind: model.KindDivider}

	s := NewSession(schema(dropdown, multi, boxes, date, divider))

	require.NoError(t, s.SetValue("d", "one"))
	assert.Error(t, s.SetValue("d", "three"))
	assert.Error(t, s.SetValue("d", []string{"one"}))

	require.NoError(t, s.SetValue("m", []string{"one", "two"}))
	assert.Error(t, s.SetValue("m", []string{"one", "one"}))

	require.NoError(t, s.SetValue("c", []any{"x"}))
	assert.Error(t, s.SetValue("c", []string{"z"}))

	require.NoError(t, s.SetValue("t", "2024-11-05"))
	assert.Error(t, s.SetValue("t", "November 5th"))

	assert.ErrorIs(t, s.SetValue("s", "anything"), ErrDecorativeField)
	assert.ErrorIs(t, s.SetValue("ghost", "x"), ErrUnknownField)

	var badValue *BadValueError
	assert.True(t, errors.As(s.SetValue("d", 42), &badValue))
}

func TestRenderPage_Dispatch(t *testing.T) {
	page := model.Page{Fields: schema(
		model.FieldDefinition{ID: "a", Kind: model.KindShortAnswer, Width: model.WidthHalf},
		model.FieldDefinition{ID: "b", Kind: model.KindParagraph},
		model.FieldDefinition{ID: "c", Kind: model.KindDate},
		model.FieldDefinition{ID: "d", Kind: model.KindDropdown, Options: []string{"x"}},
		model.FieldDefinition{ID: "e", Kind: model.KindDropdown, MultiSelect: true, Options: []string{"x"}},
		model.FieldDefinition{ID: "f", Kind: model.KindCheckboxGroup, Options: []string{"x"}},
		model.FieldDefinition{ID: "g", Kind: model.KindFileUpload},
		model.FieldDefinition{ID: "h", Kind: model.KindDivider, Label: "Section", Required: true},
	)}

	widgets := RenderPage(page, map[string]any{"a": "typed", "g": "upload-ref-1"})
	require.Len(t, widgets, 8)

	controls := make([]Control, len(widgets))
	for i, w := range widgets {
		controls[i] = w.Control
	}
	assert.Equal(t, []Control{
		ControlText, ControlTextarea, ControlDate, ControlSelect,
		ControlMultiSelect, ControlCheckboxGroup, ControlFileUpload, ControlDivider,
	}, controls)

	assert.Equal(t, "typed", widgets[0].Value)
	assert.Equal(t, model.WidthHalf, widgets[0].Width)
	assert.Equal(t, "upload-ref-1", widgets[6].Value)

	// dividers are markers: labeled, never required, no value
	assert.Equal(t, "Section", widgets[7].Label)
	assert.False(t, widgets[7].Required)
	assert.Nil(t, widgets[7].Value)
}
