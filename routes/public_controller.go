package routes

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/builder"
	"github.com/JakeFriedberg29/Patroller-sub001/form"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type formPage struct {
	Heading string        `json:"heading,omitempty"`
	Widgets []form.Widget `json:"widgets"`
}

// PublicGetTemplateForm serves a template as the paged form a reporter
// fills out: the schema split on its page breaks, each page rendered as
// a widget list.
func PublicGetTemplateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		template := model.Template{}
		err = app.QueryRowContext(r.Context(), `
			SELECT t.id, t.name, t.description
			FROM report_template t
			WHERE t.id = ?`,
			templateId,
		).Scan(&template.ID, &template.Name, &template.Description)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "get_form", templateId)
			} else {
				httpx.LogInternalError(w, "db.get_form", err)
			}
			return
		}

		fields, err := loadTemplateFields(r.Context(), app, templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_form.fields", err)
			return
		}

		pages := []formPage{}
		for _, p := range builder.SplitIntoPages(fields) {
			pages = append(pages, formPage{
				Heading: p.Heading,
				Widgets: form.RenderPage(p, nil),
			})
		}

		render.JSON(w, r, map[string]any{
			"id":          template.ID,
			"name":        template.Name,
			"description": template.Description,
			"pages":       pages,
		})
	}
}

// PublicSubmitReport files one report against a template. Values are
// shape-checked against the field kinds, then the whole schema is
// validated for missing required answers in one pass, so a rejection
// names every gap at once.
func PublicSubmitReport(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Values map[string]any `json:"values"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		// one submission at a time per template and caller
		ip := strings.Split(r.RemoteAddr, ":")[0]
		key := "submit:" + strconv.Itoa(templateId) + ":" + ip
		if !app.InFlight.Begin(key) {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "submission.in_flight")
			return
		}
		defer app.InFlight.Done(key)

		var exists int
		err = app.QueryRowContext(r.Context(), `
			SELECT 1 FROM report_template WHERE id = ?`,
			templateId,
		).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "submit_report", templateId)
			} else {
				httpx.LogInternalError(w, "db.submit_report.template", err)
			}
			return
		}

		fields, err := loadTemplateFields(r.Context(), app, templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.submit_report.fields", err)
			return
		}

		session := form.NewSession(fields)
		for fieldId, value := range body.Values {
			err = session.SetValue(fieldId, value)
			if err != nil {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "submission.validate_value", "%s: %s", fieldId, err)
				return
			}
		}

		if missing := session.Validate(); !missing.OK() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, missing)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var submissionId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO submission (template_id, time) VALUES (?, ?)
			RETURNING id`,
			templateId,
			time.Now(),
		).Scan(&submissionId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO submission_field (submission_id, field_id, value)
			VALUES (?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission.fields.prepare", err)
			return
		}
		defer stmt.Close()

		for fieldId, value := range session.Values() {
			valueJson, err := json.Marshal(value)
			if err != nil {
				httpx.LogInternalError(w, "db.insert_submission.fields.marshal_value", err)
				return
			}
			_, err = stmt.ExecContext(r.Context(), submissionId, fieldId, string(valueJson))
			if err != nil {
				httpx.LogInternalError(w, "db.insert_submission.fields.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_submission.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": submissionId,
		})
	}
}
