package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/batch"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/mailer"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func CreateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TenantID *int           `json:"tenantId"`
			Email    string         `json:"email"`
			FullName string         `json:"fullName"`
			Role     model.UserRole `json:"role"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Email == "" || body.FullName == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "user.validate", "email and fullName are required")
			return
		}
		if body.Role == "" {
			body.Role = model.RoleMember
		}
		if body.Role != model.RoleAdmin && body.Role != model.RoleMember {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "user.validate", "unknown role: %s", body.Role)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		activationToken := uuid.NewString()

		var userId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO user (tenant_id, email, full_name, role, status, activation_token)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`,
			body.TenantID,
			body.Email,
			body.FullName,
			body.Role,
			model.StatusPending,
			activationToken,
		).Scan(&userId)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.insert_user.duplicate_email")
			} else {
				httpx.LogInternalError(w, "db.insert_user", err)
			}
			return
		}

		var tenantName string
		if body.TenantID != nil {
			err = tx.QueryRowContext(r.Context(), `
				SELECT name FROM tenant WHERE id = ?`,
				*body.TenantID,
			).Scan(&tenantName)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					httpx.LogNotFound(w, "insert_user.tenant", *body.TenantID)
				} else {
					httpx.LogInternalError(w, "db.insert_user.tenant", err)
				}
				return
			}
		}

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"user.create", "user", strconv.Itoa(userId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.insert_user.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_user.commit", err)
			return
		}

		// the account exists either way; the mail outcome is reported, not
		// rolled back
		emailSent := false
		provider := ""
		if app.Mailer != nil {
			receipt, err := app.Mailer.SendActivation(r.Context(), mailer.Request{
				UserID:           userId,
				Email:            body.Email,
				FullName:         body.FullName,
				OrganizationName: tenantName,
				ActivationToken:  activationToken,
			})
			if err != nil {
				log.Errorf("mail.send_activation: %s", err)
			} else {
				emailSent = true
				provider = receipt.Provider
			}
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":        userId,
			"emailSent": emailSent,
			"provider":  provider,
		})
	}
}

// ActivateUser completes account setup from the emailed link: the token
// identifies the pending user, the chosen password is hashed and stored,
// and the account goes active.
func ActivateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Token == "" || len(body.Password) < 8 {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "user.activate.validate", "token and a password of at least 8 characters are required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, "user.activate.hash", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var userId int
		err = tx.QueryRowContext(r.Context(), `
			SELECT id FROM user
			WHERE activation_token = ?
				AND status = ?`,
			body.Token,
			model.StatusPending,
		).Scan(&userId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "activate_user", body.Token)
			} else {
				httpx.LogInternalError(w, "db.activate_user", err)
			}
			return
		}

		_, err = tx.ExecContext(r.Context(), `
			UPDATE user
			SET
				password_hash = ?,
				status = ?,
				activation_token = NULL
			WHERE id = ?`,
			string(hash),
			model.StatusActive,
			userId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.activate_user.update", err)
			return
		}

		err = writeAudit(r.Context(), tx, userId,
			"user.activate", "user", strconv.Itoa(userId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.activate_user.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.activate_user.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ListUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := `
			SELECT id, tenant_id, email, full_name, role, status
			FROM user`
		clauses := []string{}
		args := []any{}

		if tenantId := r.URL.Query().Get("tenantId"); tenantId != "" {
			clauses = append(clauses, "tenant_id = ?")
			args = append(args, tenantId)
		}
		if role := r.URL.Query().Get("role"); role != "" {
			clauses = append(clauses, "role = ?")
			args = append(args, role)
		}
		if status := r.URL.Query().Get("status"); status != "" {
			clauses = append(clauses, "status = ?")
			args = append(args, status)
		}
		if len(clauses) > 0 {
			query += " WHERE " + strings.Join(clauses, " AND ")
		}
		query += " ORDER BY id"

		rows, err := app.QueryContext(r.Context(), query, args...)
		if err != nil {
			httpx.LogInternalError(w, "db.get_users", err)
			return
		}
		defer rows.Close()

		users := []model.User{}
		for rows.Next() {
			u := model.User{}
			err = rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.Role, &u.Status)
			if err != nil {
				httpx.LogInternalError(w, "db.get_users.scan", err)
				return
			}
			users = append(users, u)
		}

		render.JSON(w, r, map[string]any{
			"users": users,
		})
	}
}

// retryWrite runs a write twice at most: one retry absorbs a transient
// failure (a briefly locked database file), anything persistent surfaces.
func retryWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	log.Warnf("write failed, retrying once: %s", err)
	return fn(ctx)
}

func UpdateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			FullName string         `json:"fullName"`
			Role     model.UserRole `json:"role"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Role != model.RoleAdmin && body.Role != model.RoleMember {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "user.validate", "unknown role: %s", body.Role)
			return
		}

		// a double-click must not race two updates of the same row
		key := "user.update:" + strconv.Itoa(userId)
		if !app.InFlight.Begin(key) {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "user.update.in_flight")
			return
		}
		defer app.InFlight.Done(key)

		var notFound bool
		err = retryWrite(r.Context(), func(ctx context.Context) error {
			tx, err := app.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			defer tx.Rollback()

			res, err := tx.ExecContext(ctx, `
				UPDATE user
				SET
					full_name = ?,
					role = ?
				WHERE id = ?`,
				body.FullName,
				body.Role,
				userId,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n < 1 {
				notFound = true
				return nil
			}

			err = writeAudit(ctx, tx, actorUserId(ctx, app),
				"user.update", "user", strconv.Itoa(userId), "")
			if err != nil {
				return err
			}
			return tx.Commit()
		})
		if err != nil {
			httpx.LogInternalError(w, "db.update_user", err)
			return
		}
		if notFound {
			httpx.LogNotFound(w, "update_user", userId)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func ToggleUserStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		key := "user.status:" + strconv.Itoa(userId)
		if !app.InFlight.Begin(key) {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "user.status.in_flight")
			return
		}
		defer app.InFlight.Done(key)

		var status model.UserStatus
		var notFound, pending bool
		err = retryWrite(r.Context(), func(ctx context.Context) error {
			notFound, pending = false, false

			tx, err := app.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			defer tx.Rollback()

			err = tx.QueryRowContext(ctx, `
				SELECT status FROM user WHERE id = ?`,
				userId,
			).Scan(&status)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					notFound = true
					return nil
				}
				return err
			}
			// pending accounts activate through their token, not here
			if status == model.StatusPending {
				pending = true
				return nil
			}

			if status == model.StatusActive {
				status = model.StatusInactive
			} else {
				status = model.StatusActive
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE user SET status = ? WHERE id = ?`,
				status,
				userId,
			)
			if err != nil {
				return err
			}

			err = writeAudit(ctx, tx, actorUserId(ctx, app),
				"user.status."+string(status), "user", strconv.Itoa(userId), "")
			if err != nil {
				return err
			}
			return tx.Commit()
		})
		if err != nil {
			httpx.LogInternalError(w, "db.toggle_user_status", err)
			return
		}
		if notFound {
			httpx.LogNotFound(w, "toggle_user_status", userId)
			return
		}
		if pending {
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "user.status.pending")
			return
		}

		render.JSON(w, r, map[string]any{
			"id":     userId,
			"status": status,
		})
	}
}

// BulkDeleteAdmins removes a batch of admin accounts one by one and
// reports a per-item tally instead of failing the whole request on the
// first bad id.
func BulkDeleteAdmins(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs    []int              `json:"ids"`
			Kind   model.DeletionKind `json:"kind"`
			Reason string             `json:"reason"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if len(body.IDs) == 0 {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "users.bulk_delete.validate", "ids must not be empty")
			return
		}
		if body.Kind == "" {
			body.Kind = model.DeletionSoft
		}
		if body.Kind != model.DeletionSoft && body.Kind != model.DeletionHard {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "users.bulk_delete.validate", "unknown deletion kind: %s", body.Kind)
			return
		}

		detail, err := json.Marshal(model.AdminDeletionDetail{
			Kind:   body.Kind,
			Reason: body.Reason,
		})
		if err != nil {
			httpx.LogInternalError(w, "users.bulk_delete.detail", err)
			return
		}

		actor := actorUserId(r.Context(), app)

		items := make([]string, len(body.IDs))
		for i, id := range body.IDs {
			items[i] = strconv.Itoa(id)
		}

		runner := batch.Runner{Delay: app.BulkDelay}
		tally := runner.Run(r.Context(), items, func(ctx context.Context, item string) error {
			tx, err := app.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			defer tx.Rollback()

			var res sql.Result
			if body.Kind == model.DeletionHard {
				res, err = tx.ExecContext(ctx, `
					DELETE FROM user
					WHERE id = ?
						AND role = ?`,
					item,
					model.RoleAdmin,
				)
			} else {
				res, err = tx.ExecContext(ctx, `
					UPDATE user
					SET status = ?
					WHERE id = ?
						AND role = ?`,
					model.StatusInactive,
					item,
					model.RoleAdmin,
				)
			}
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n < 1 {
				return errors.New("no admin with that id")
			}

			err = writeAudit(ctx, tx, actor,
				"user.delete", "user", item, string(detail))
			if err != nil {
				return err
			}
			return tx.Commit()
		})

		render.JSON(w, r, tally)
	}
}
