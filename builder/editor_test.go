package builder

import (
	"testing"

	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(fields []model.FieldDefinition) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ID
	}
	return out
}

func TestAddField_Defaults(t *testing.T) {
	e := NewEditor(nil)

	f, err := e.AddField(model.KindDropdown, -1)
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, model.WidthFull, f.Width)
	assert.False(t, f.Required)
	assert.NotNil(t, f.Options)
	assert.Empty(t, f.Options)

	text, err := e.AddField(model.KindShortAnswer, -1)
	require.NoError(t, err)
	assert.Nil(t, text.Options)
}

func TestAddField_InsertAfter(t *testing.T) {
	e := NewEditor(nil)
	a, _ := e.AddField(model.KindShortAnswer, -1)
	b, _ := e.AddField(model.KindShortAnswer, -1)

	mid, err := e.AddField(model.KindParagraph, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, mid.ID, b.ID}, ids(e.Fields()))

	// out-of-range index appends
	tail, err := e.AddField(model.KindDate, 99)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, mid.ID, b.ID, tail.ID}, ids(e.Fields()))
}

func TestAddField_UnknownKind(t *testing.T) {
	e := NewEditor(nil)
	_, err := e.AddField(model.FieldKind("slider"), -1)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Empty(t, e.Fields())
}

func TestUpdateField(t *testing.T) {
	e := NewEditor(nil)
	f, _ := e.AddField(model.KindDropdown, -1)

	name := "Incident severity"
	req := true
	opts := []string{"low", "high"}
	multi := true
	err := e.UpdateField(f.ID, Patch{Name: &name, Required: &req, Options: &opts, MultiSelect: &multi})
	require.NoError(t, err)

	got := e.Fields()[0]
	assert.Equal(t, "Incident severity", got.Name)
	assert.True(t, got.Required)
	assert.Equal(t, []string{"low", "high"}, got.Options)
	assert.True(t, got.MultiSelect)

	err = e.UpdateField("nope", Patch{Name: &name})
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestUpdateField_KindChangeDropsOptions(t *testing.T) {
	e := NewEditor(nil)
	f, _ := e.AddField(model.KindDropdown, -1)
	opts := []string{"a", "b"}
	require.NoError(t, e.UpdateField(f.ID, Patch{Options: &opts}))

	kind := model.KindParagraph
	require.NoError(t, e.UpdateField(f.ID, Patch{Kind: &kind}))
	assert.Nil(t, e.Fields()[0].Options)
}

func TestRemoveField(t *testing.T) {
	e := NewEditor(nil)
	a, _ := e.AddField(model.KindShortAnswer, -1)
	b, _ := e.AddField(model.KindShortAnswer, -1)

	require.NoError(t, e.RemoveField(a.ID))
	assert.Equal(t, []string{b.ID}, ids(e.Fields()))

	assert.ErrorIs(t, e.RemoveField(a.ID), ErrFieldNotFound)
}

func TestReorder_RoundTrip(t *testing.T) {
	e := NewEditor(nil)
	a, _ := e.AddField(model.KindShortAnswer, -1)
	b, _ := e.AddField(model.KindParagraph, -1)
	c, _ := e.AddField(model.KindDate, -1)

	want := []string{c.ID, a.ID, b.ID}
	require.NoError(t, e.Reorder(want))
	assert.Equal(t, want, ids(e.Fields()))
}

func TestReorder_Invalid(t *testing.T) {
	e := NewEditor(nil)
	a, _ := e.AddField(model.KindShortAnswer, -1)
	b, _ := e.AddField(model.KindParagraph, -1)
	before := ids(e.Fields())

	cases := map[string][]string{
		"missing id":   {a.ID},
		"duplicate id": {a.ID, a.ID},
		"unknown id":   {a.ID, "stranger"},
		"extra id":     {a.ID, b.ID, "stranger"},
	}
	for name, order := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.Reorder(order), ErrInvalidReorder)
			assert.Equal(t, before, ids(e.Fields()), "failed reorder must not touch the list")
		})
	}
}

func TestMoveField_Steps(t *testing.T) {
	e := NewEditor(nil)
	a, _ := e.AddField(model.KindShortAnswer, -1)
	b, _ := e.AddField(model.KindParagraph, -1)
	c, _ := e.AddField(model.KindDate, -1)

	require.NoError(t, e.MoveField(a.ID, 1))
	assert.Equal(t, []string{b.ID, a.ID, c.ID}, ids(e.Fields()))

	require.NoError(t, e.MoveField(c.ID, -1))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(e.Fields()))

	// clamped at the edges
	require.NoError(t, e.MoveField(b.ID, -5))
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(e.Fields()))
}

func TestMutationsRepaginate(t *testing.T) {
	e := NewEditor(nil)
	e.AddField(model.KindShortAnswer, -1)
	assert.Len(t, e.Pages(), 1)

	brk, _ := e.AddField(model.KindPageBreak, -1)
	e.AddField(model.KindShortAnswer, -1)
	assert.Len(t, e.Pages(), 2)

	require.NoError(t, e.RemoveField(brk.ID))
	assert.Len(t, e.Pages(), 1)
}
