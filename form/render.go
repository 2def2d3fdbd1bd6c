package form

import "github.com/JakeFriedberg29/Patroller-sub001/model"

// Control names the input widget a field renders as.
type Control string

const (
	ControlText          Control = "text"
	ControlTextarea      Control = "textarea"
	ControlDate          Control = "date"
	ControlSelect        Control = "select"
	ControlMultiSelect   Control = "multi_select"
	ControlCheckboxGroup Control = "checkbox_group"
	ControlFileUpload    Control = "file_upload"
	ControlDivider       Control = "divider"
)

// Widget is the render model for one field on a page: which control to
// draw, its current value, and the layout hint. Decorative widgets carry
// no value.
type Widget struct {
	FieldID  string           `json:"fieldId"`
	Control  Control          `json:"control"`
	Name     string           `json:"name,omitempty"`
	Label    string           `json:"label,omitempty"`
	Required bool             `json:"required,omitempty"`
	Options  []string         `json:"options,omitempty"`
	Width    model.FieldWidth `json:"width"`
	Value    any              `json:"value,omitempty"`
}

// RenderPage maps one page of fields to widgets, pulling current values
// from the submission record.
func RenderPage(page model.Page, values map[string]any) []Widget {
	widgets := make([]Widget, 0, len(page.Fields))
	for _, f := range page.Fields {
		w := Widget{
			FieldID:  f.ID,
			Name:     f.Name,
			Required: f.Required,
			Width:    f.Width,
		}

		switch f.Kind {
		case model.KindShortAnswer:
			w.Control = ControlText
		case model.KindParagraph:
			w.Control = ControlTextarea
		case model.KindDate:
			w.Control = ControlDate
		case model.KindDropdown:
			w.Control = ControlSelect
			if f.MultiSelect {
				w.Control = ControlMultiSelect
			}
			w.Options = f.Options
		case model.KindCheckboxGroup:
			w.Control = ControlCheckboxGroup
			w.Options = f.Options
		case model.KindFileUpload:
			// value is the reference handed back by the upload service
			w.Control = ControlFileUpload
		case model.KindDivider:
			w.Control = ControlDivider
			w.Label = f.Label
			w.Required = false
			widgets = append(widgets, w)
			continue
		default:
			// page_break never lands on a page; skip anything unknown
			continue
		}

		w.Value = values[f.ID]
		widgets = append(widgets, w)
	}
	return widgets
}
