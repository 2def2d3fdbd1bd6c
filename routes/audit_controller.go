package routes

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/go-chi/oauth"
	"github.com/go-chi/render"
)

// actorUserId resolves the authenticated caller to their user row. Zero
// means the request carried no resolvable credential (public routes).
func actorUserId(ctx context.Context, app app.App) int {
	email, ok := ctx.Value(oauth.CredentialContext).(string)
	if !ok {
		return 0
	}

	var id int
	err := app.QueryRowContext(ctx, `
		SELECT id FROM user WHERE email = ?`,
		email,
	).Scan(&id)
	if err != nil {
		return 0
	}
	return id
}

func writeAudit(ctx context.Context, tx *sql.Tx, actor int, action, entityType, entityId, details string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (actor_user_id, action, entity_type, entity_id, details, time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		actor, action, entityType, entityId, details, time.Now(),
	)
	return err
}

func ListAuditLog(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := `
			SELECT id, actor_user_id, action, entity_type, entity_id, COALESCE(details, ''), time
			FROM audit_log`
		args := []any{}

		where := ""
		if entityType := r.URL.Query().Get("entity_type"); entityType != "" {
			where = " WHERE entity_type = ?"
			args = append(args, entityType)
		}
		if actor := r.URL.Query().Get("actor"); actor != "" {
			if where == "" {
				where = " WHERE actor_user_id = ?"
			} else {
				where += " AND actor_user_id = ?"
			}
			args = append(args, actor)
		}

		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_query_param.limit")
				return
			}
			if n > 500 {
				n = 500
			}
			limit = n
		}

		rows, err := app.QueryContext(r.Context(), query+where+`
			ORDER BY id DESC
			LIMIT ?`,
			append(args, limit)...,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_audit_log", err)
			return
		}
		defer rows.Close()

		entries := []model.AuditEntry{}
		for rows.Next() {
			e := model.AuditEntry{}
			err = rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.Time)
			if err != nil {
				httpx.LogInternalError(w, "db.get_audit_log.scan", err)
				return
			}
			entries = append(entries, e)
		}

		render.JSON(w, r, map[string]any{
			"entries": entries,
		})
	}
}
