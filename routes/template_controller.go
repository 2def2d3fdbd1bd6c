package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// prepareFields normalizes an incoming field list before it is written:
// fresh fields get their stable id here, kinds must be known, ids must
// be unique within the template.
func prepareFields(fields []model.FieldDefinition) ([]model.FieldDefinition, string) {
	seen := make(map[string]bool, len(fields))
	out := make([]model.FieldDefinition, len(fields))
	for i, f := range fields {
		if !f.Kind.Valid() {
			return nil, "unknown field kind: " + string(f.Kind)
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if seen[f.ID] {
			return nil, "duplicate field id: " + f.ID
		}
		seen[f.ID] = true
		if f.Width == "" {
			f.Width = model.WidthFull
		}
		out[i] = f
	}
	return out, ""
}

func insertTemplateFields(ctx context.Context, tx *sql.Tx, templateId int, fields []model.FieldDefinition) (code string, err error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO template_field
			(template_id, position, field_id, name, kind, required, options, multi_select, width, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "fields.prepare", err
	}
	defer stmt.Close()

	for i, f := range fields {
		var optionsJson []byte
		if f.Options != nil {
			optionsJson, err = json.Marshal(f.Options)
			if err != nil {
				return "fields.marshal_options", err
			}
		}
		_, err = stmt.ExecContext(ctx, templateId, i, f.ID, f.Name, f.Kind, f.Required, string(optionsJson), f.MultiSelect, f.Width, f.Label)
		if err != nil {
			return "fields.insert", err
		}
	}
	return "", nil
}

// loadTemplateFields reads the ordered field rows back into the exact
// shape they were saved with.
func loadTemplateFields(ctx context.Context, app app.App, templateId int) ([]model.FieldDefinition, error) {
	rows, err := app.QueryContext(ctx, `
		SELECT field_id, name, kind, required, options, multi_select, width, label
		FROM template_field
		WHERE template_id = ?
		ORDER BY position`,
		templateId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []model.FieldDefinition{}
	for rows.Next() {
		f := model.FieldDefinition{}
		var opts string
		err = rows.Scan(&f.ID, &f.Name, &f.Kind, &f.Required, &opts, &f.MultiSelect, &f.Width, &f.Label)
		if err != nil {
			return nil, err
		}
		if opts != "" {
			err = json.Unmarshal([]byte(opts), &f.Options)
			if err != nil {
				return nil, err
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func CreateTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		template := model.Template{}
		err := render.DecodeJSON(r.Body, &template)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if template.Name == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "template.validate", "template name is required")
			return
		}
		fields, msg := prepareFields(template.Fields)
		if msg != "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "template.validate", "%s", msg)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var templateId int
		err = tx.QueryRowContext(r.Context(), `
		INSERT INTO report_template (name, description) VALUES (?, ?)
		RETURNING id`,
			template.Name,
			template.Description,
		).Scan(&templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_template", err)
			return
		}

		if code, err := insertTemplateFields(r.Context(), tx, templateId, fields); err != nil {
			httpx.LogInternalError(w, "db.insert_template."+code, err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_template.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": templateId,
		})
	}
}

func ListTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
		SELECT t.id, t.version, t.name, t.description
		FROM report_template t
		ORDER BY t.id`)
		if err != nil {
			httpx.LogInternalError(w, "db.get_templates", err)
			return
		}
		defer rows.Close()

		templates := []model.Template{}
		for rows.Next() {
			t := model.Template{}
			err = rows.Scan(&t.ID, &t.Version, &t.Name, &t.Description)
			if err != nil {
				httpx.LogInternalError(w, "db.get_templates.scan", err)
				return
			}

			templates = append(templates, t)
		}

		render.JSON(w, r, map[string]any{
			"templates": templates,
		})
	}
}

func GetTemplateById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		template := model.Template{}
		err = app.QueryRowContext(r.Context(), `
			SELECT t.id, t.version, t.name, t.description
			FROM report_template t
			WHERE t.id = ?`,
			templateId,
		).Scan(&template.ID, &template.Version, &template.Name, &template.Description)
		if err != nil {
			if err == sql.ErrNoRows {
				httpx.LogNotFound(w, "get_template", templateId)
			} else {
				httpx.LogInternalError(w, "db.get_template", err)
			}
			return
		}

		template.Fields, err = loadTemplateFields(r.Context(), app, templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_template.fields", err)
			return
		}

		render.JSON(w, r, template)
	}
}

func UpdateTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		template := model.Template{}
		err = render.DecodeJSON(r.Body, &template)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		fields, msg := prepareFields(template.Fields)
		if msg != "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "template.validate", "%s", msg)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		// replace all field rows with the submitted list
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM template_field
			WHERE template_id = ?`,
			templateId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_template.delete_fields", err)
			return
		}

		if code, err := insertTemplateFields(r.Context(), tx, templateId, fields); err != nil {
			httpx.LogInternalError(w, "db.update_template."+code, err)
			return
		}

		res, err := tx.ExecContext(r.Context(), `
			UPDATE report_template
			SET
				name = ?,
				description = ?,
				version = version+1
			WHERE	id = ?
				AND version = ?`,
			template.Name,
			template.Description,
			templateId,
			template.Version,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_template", err)
			return
		}
		// optimistic lock
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.update_template.verify", err)
			return
		}
		if n < 1 {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_template.verify.conflict")
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_template.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		for _, del := range []struct {
			code  string
			query string
		}{
			{"fields", `DELETE FROM template_field WHERE template_id = ?`},
			{"assignments", `DELETE FROM repository_assignment WHERE template_id = ?`},
			{"legacy_links", `DELETE FROM org_template_link WHERE template_id = ?`},
		} {
			_, err = tx.ExecContext(r.Context(), del.query, templateId)
			if err != nil {
				httpx.LogInternalError(w, "db.delete_template."+del.code, err)
				return
			}
		}

		res, err := tx.ExecContext(r.Context(), `
			DELETE FROM report_template WHERE id = ?`,
			templateId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_template", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_template.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_template", templateId)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_template.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetTemplateSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var exists int
		err = app.QueryRowContext(r.Context(), `
			SELECT 1 FROM report_template WHERE id = ?`,
			templateId,
		).Scan(&exists)
		if err != nil {
			if err == sql.ErrNoRows {
				httpx.LogNotFound(w, "get_submissions", templateId)
			} else {
				httpx.LogInternalError(w, "db.get_submissions.template", err)
			}
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT s.id, s.time, v.field_id, v.value
			FROM submission s
			INNER JOIN submission_field v ON (s.id = v.submission_id)
			WHERE s.template_id = ?
			ORDER BY s.id`,
			templateId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions", err)
			return
		}
		defer rows.Close()

		submissions := []model.Submission{}
		for rows.Next() {
			s := model.Submission{TemplateID: templateId}
			var fieldId, value string

			err = rows.Scan(&s.ID, &s.Time, &fieldId, &value)
			if err != nil {
				httpx.LogInternalError(w, "db.get_submissions.scan", err)
				return
			}

			var parsed any
			if value != "" {
				err = json.Unmarshal([]byte(value), &parsed)
				if err != nil {
					httpx.LogInternalError(w, "db.get_submissions.parse_value", err)
					return
				}
			}

			lastIdx := len(submissions) - 1
			if lastIdx > -1 && submissions[lastIdx].ID == s.ID {
				submissions[lastIdx].Values[fieldId] = parsed
			} else {
				s.Values = map[string]any{fieldId: parsed}
				submissions = append(submissions, s)
			}
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
		})
	}
}
