package model

import "time"

// FieldKind is the vocabulary of report form field types.
type FieldKind string

const (
	KindShortAnswer   FieldKind = "short_answer"
	KindParagraph     FieldKind = "paragraph"
	KindDate          FieldKind = "date"
	KindDropdown      FieldKind = "dropdown"
	KindCheckboxGroup FieldKind = "checkbox_group"
	KindFileUpload    FieldKind = "file_upload"
	KindDivider       FieldKind = "divider"
	KindPageBreak     FieldKind = "page_break"
)

func (k FieldKind) Valid() bool {
	switch k {
	case KindShortAnswer, KindParagraph, KindDate, KindDropdown,
		KindCheckboxGroup, KindFileUpload, KindDivider, KindPageBreak:
		return true
	}
	return false
}

// HasOptions reports whether fields of this kind carry an options list.
func (k FieldKind) HasOptions() bool {
	return k == KindDropdown || k == KindCheckboxGroup
}

// Decorative kinds are structural markers and never contribute a value
// to a submission.
func (k FieldKind) Decorative() bool {
	return k == KindDivider || k == KindPageBreak
}

// FieldWidth is a layout hint only.
type FieldWidth string

const (
	WidthFull  FieldWidth = "full"
	WidthHalf  FieldWidth = "half"
	WidthThird FieldWidth = "third"
)

// FieldDefinition is one field of a report template. The JSON shape is the
// persisted wire shape and must round-trip through storage without loss.
type FieldDefinition struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        FieldKind  `json:"kind"`
	Required    bool       `json:"required"`
	Options     []string   `json:"options,omitempty"`
	MultiSelect bool       `json:"multiSelect,omitempty"`
	Width       FieldWidth `json:"width"`
	Label       string     `json:"label,omitempty"`
}

type Template struct {
	ID          int               `json:"id,omitempty"`
	Version     int               `json:"version,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Fields      []FieldDefinition `json:"fields"`
}

// Page is a contiguous run of non-break fields, derived from the flat field
// list. Pages are never persisted.
type Page struct {
	Heading string            `json:"heading,omitempty"`
	Fields  []FieldDefinition `json:"fields"`
}

// Submission maps field ids to the values a user entered: a string, a
// []string for multi-value kinds, or an ISO-8601 date string.
type Submission struct {
	ID         int            `json:"id,omitempty"`
	TemplateID int            `json:"templateId,omitempty"`
	Time       time.Time      `json:"time,omitempty"`
	Values     map[string]any `json:"values"`
}
