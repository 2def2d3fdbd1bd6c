package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/assign"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func GetTemplateAssignments(app app.App) http.HandlerFunc {
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
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "get_assignments", templateId)
			} else {
				httpx.LogInternalError(w, "db.get_assignments.template", err)
			}
			return
		}

		labels, err := app.AssignStore.CurrentLabels(r.Context(), templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_assignments", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"labels": labels,
		})
	}
}

// PutTemplateAssignments declares the full desired label set for one
// template; the reconciler computes the delta against the current state
// and fans it out across tenants.
func PutTemplateAssignments(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Labels []string `json:"labels"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		for _, label := range body.Labels {
			if strings.TrimSpace(label) == "" {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "assignments.validate", "labels must not be blank")
				return
			}
		}

		var exists int
		err = app.QueryRowContext(r.Context(), `
			SELECT 1 FROM report_template WHERE id = ?`,
			templateId,
		).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "put_assignments", templateId)
			} else {
				httpx.LogInternalError(w, "db.put_assignments.template", err)
			}
			return
		}

		current, err := app.AssignStore.CurrentLabels(r.Context(), templateId)
		if err != nil {
			httpx.LogInternalError(w, "db.put_assignments.current", err)
			return
		}

		result, err := app.Assigner.Reconcile(r.Context(), templateId, body.Labels, current)
		if err != nil {
			if errors.Is(err, assign.ErrNoMatchingOrganizations) {
				httpx.LogStatusMsg(w, http.StatusUnprocessableEntity, log.DebugLevel, "assignments.no_match", "%s", err)
				return
			}
			// the run has no rollback: report the partial tally so the
			// caller knows what already landed before the retry
			log.Errorf("assignments.reconcile: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, map[string]any{
				"error":  "reconcile aborted, re-run to converge",
				"result": result,
			})
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"template.assignments", "template", strconv.Itoa(templateId),
			strings.Join(body.Labels, ","))
		if err != nil {
			httpx.LogInternalError(w, "db.put_assignments.audit", err)
			return
		}
		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.put_assignments.commit", err)
			return
		}

		render.JSON(w, r, result)
	}
}
