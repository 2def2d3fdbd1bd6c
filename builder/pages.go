package builder

import "github.com/JakeFriedberg29/Patroller-sub001/model"

// SplitIntoPages derives the page list from a flat field list. Each
// page_break starts a new page and lends it its label as a heading; the
// break itself lands on no page. A list with k breaks always yields k+1
// pages, possibly empty ones.
func SplitIntoPages(fields []model.FieldDefinition) []model.Page {
	pages := []model.Page{{}}
	for _, f := range fields {
		if f.Kind == model.KindPageBreak {
			pages = append(pages, model.Page{Heading: f.Label})
			continue
		}
		p := &pages[len(pages)-1]
		p.Fields = append(p.Fields, f)
	}
	return pages
}
