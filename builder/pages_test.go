package builder

import (
	"testing"

	"github.com/JakeFriedberg29/Patroller-sub001/model"
)

func field(id string, kind model.FieldKind) model.FieldDefinition {
	return model.FieldDefinition{ID: id, Kind: kind, Width: model.WidthFull}
}

func pageBreak(label string) model.FieldDefinition {
	return model.FieldDefinition{ID: "brk-" + label, Kind: model.KindPageBreak, Label: label}
}

func TestSplitIntoPages_Empty(t *testing.T) {
	pages := SplitIntoPages(nil)
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if len(pages[0].Fields) != 0 {
		t.Errorf("empty list should yield one empty page")
	}
}

func TestSplitIntoPages_CountInvariant(t *testing.T) {
	// k breaks always yield k+1 pages, wherever the breaks sit
	cases := [][]model.FieldDefinition{
		{pageBreak("")},
		{pageBreak(""), pageBreak("")},
		{field("a", model.KindShortAnswer), pageBreak(""), pageBreak(""), field("b", model.KindDate)},
		{pageBreak("x"), field("a", model.KindParagraph)},
	}
	for _, fields := range cases {
		breaks := 0
		for _, f := range fields {
			if f.Kind == model.KindPageBreak {
				breaks++
			}
		}
		pages := SplitIntoPages(fields)
		if len(pages) != breaks+1 {
			t.Errorf("%d breaks: got %d pages, want %d", breaks, len(pages), breaks+1)
		}
	}
}

func TestSplitIntoPages_OrderPreserved(t *testing.T) {
	fields := []model.FieldDefinition{
		field("a", model.KindShortAnswer),
		field("b", model.KindParagraph),
		pageBreak("Scene details"),
		field("c", model.KindDate),
		pageBreak(""),
		field("d", model.KindCheckboxGroup),
	}

	pages := SplitIntoPages(fields)
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if pages[1].Heading != "Scene details" {
		t.Errorf("break label should become the next page's heading, got %q", pages[1].Heading)
	}

	var got []string
	for _, p := range pages {
		for _, f := range p.Fields {
			got = append(got, f.ID)
		}
	}
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %d fields across pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSplitIntoPages_BreakOnNoPage(t *testing.T) {
	pages := SplitIntoPages([]model.FieldDefinition{pageBreak("second")})
	for _, p := range pages {
		for _, f := range p.Fields {
			if f.Kind == model.KindPageBreak {
				t.Errorf("page_break field must not appear on any page")
			}
		}
	}
}
