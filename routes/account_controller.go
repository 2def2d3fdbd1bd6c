package routes

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFriedberg29/Patroller-sub001/app"
	"github.com/JakeFriedberg29/Patroller-sub001/httpx"
	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/JakeFriedberg29/Patroller-sub001/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// ensureSubtype resolves the tenant-local row for a catalog label,
// creating the catalog entry and the local row on first use. Both
// inserts are idempotent, so concurrent callers converge on one row.
func ensureSubtype(ctx context.Context, tx *sql.Tx, tenantId int, label string) (subtypeId int, created bool, err error) {
	_, err = tx.ExecContext(ctx, `
		INSERT INTO subtype_catalog (label) VALUES (?)
		ON CONFLICT (label) DO NOTHING`,
		label,
	)
	if err != nil {
		return 0, false, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO organization_subtype (tenant_id, label) VALUES (?, ?)
		ON CONFLICT (tenant_id, label) DO NOTHING`,
		tenantId,
		label,
	)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT id FROM organization_subtype
		WHERE tenant_id = ?
			AND label = ?`,
		tenantId,
		label,
	).Scan(&subtypeId)
	if err != nil {
		return 0, false, err
	}
	return subtypeId, n > 0, nil
}

func CreateTenant(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name             string `json:"name"`
			Slug             string `json:"slug"`
			Subtype          string `json:"subtype"`
			OrganizationName string `json:"organizationName"`
			AutoAssign       bool   `json:"autoAssign"`
		}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Name == "" || body.Slug == "" || body.Subtype == "" || body.OrganizationName == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "tenant.validate", "name, slug, subtype and organizationName are required")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var tenantId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO tenant (name, slug, auto_assign) VALUES (?, ?, ?)
			RETURNING id`,
			body.Name,
			body.Slug,
			body.AutoAssign,
		).Scan(&tenantId)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.insert_tenant.duplicate_slug")
			} else {
				httpx.LogInternalError(w, "db.insert_tenant", err)
			}
			return
		}

		subtypeId, _, err := ensureSubtype(r.Context(), tx, tenantId, body.Subtype)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_tenant.subtype", err)
			return
		}

		// every tenant starts with one organization, never zero
		var organizationId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO organization (tenant_id, subtype_id, name) VALUES (?, ?, ?)
			RETURNING id`,
			tenantId,
			subtypeId,
			body.OrganizationName,
		).Scan(&organizationId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_tenant.organization", err)
			return
		}

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"tenant.create", "tenant", strconv.Itoa(tenantId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.insert_tenant.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_tenant.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":             tenantId,
			"subtypeId":      subtypeId,
			"organizationId": organizationId,
		})
	}
}

func ListTenants(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, name, slug, auto_assign, created_at
			FROM tenant
			ORDER BY id`)
		if err != nil {
			httpx.LogInternalError(w, "db.get_tenants", err)
			return
		}
		defer rows.Close()

		tenants := []model.Tenant{}
		for rows.Next() {
			t := model.Tenant{}
			err = rows.Scan(&t.ID, &t.Name, &t.Slug, &t.AutoAssign, &t.CreatedAt)
			if err != nil {
				httpx.LogInternalError(w, "db.get_tenants.scan", err)
				return
			}
			tenants = append(tenants, t)
		}

		render.JSON(w, r, map[string]any{
			"tenants": tenants,
		})
	}
}

func GetTenantById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		tenant := model.Tenant{}
		err = app.QueryRowContext(r.Context(), `
			SELECT id, name, slug, auto_assign, created_at
			FROM tenant
			WHERE id = ?`,
			tenantId,
		).Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.AutoAssign, &tenant.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "get_tenant", tenantId)
			} else {
				httpx.LogInternalError(w, "db.get_tenant", err)
			}
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT id, tenant_id, label
			FROM organization_subtype
			WHERE tenant_id = ?
			ORDER BY label`,
			tenantId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_tenant.subtypes", err)
			return
		}
		defer rows.Close()

		subtypes := []model.Subtype{}
		for rows.Next() {
			s := model.Subtype{}
			err = rows.Scan(&s.ID, &s.TenantID, &s.Label)
			if err != nil {
				httpx.LogInternalError(w, "db.get_tenant.subtypes.scan", err)
				return
			}
			subtypes = append(subtypes, s)
		}

		render.JSON(w, r, map[string]any{
			"tenant":   tenant,
			"subtypes": subtypes,
		})
	}
}

func UpdateTenant(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Name       string `json:"name"`
			AutoAssign bool   `json:"autoAssign"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Name == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "tenant.validate", "name is required")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(r.Context(), `
			UPDATE tenant
			SET
				name = ?,
				auto_assign = ?
			WHERE id = ?`,
			body.Name,
			body.AutoAssign,
			tenantId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_tenant", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.update_tenant.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "update_tenant", tenantId)
			return
		}

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"tenant.update", "tenant", strconv.Itoa(tenantId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.update_tenant.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_tenant.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteTenant removes a tenant and everything scoped to it. Assignment
// and link rows go first so the foreign keys never trip mid-way.
func DeleteTenant(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
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
			{"assignments", `DELETE FROM repository_assignment WHERE tenant_id = ?`},
			{"legacy_links", `
				DELETE FROM org_template_link
				WHERE organization_id IN (
					SELECT id FROM organization WHERE tenant_id = ?
				)`},
			{"organizations", `DELETE FROM organization WHERE tenant_id = ?`},
			{"subtypes", `DELETE FROM organization_subtype WHERE tenant_id = ?`},
			{"users", `DELETE FROM user WHERE tenant_id = ?`},
		} {
			_, err = tx.ExecContext(r.Context(), del.query, tenantId)
			if err != nil {
				httpx.LogInternalError(w, "db.delete_tenant."+del.code, err)
				return
			}
		}

		res, err := tx.ExecContext(r.Context(), `
			DELETE FROM tenant WHERE id = ?`,
			tenantId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_tenant", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_tenant.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, "delete_tenant", tenantId)
			return
		}

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"tenant.delete", "tenant", strconv.Itoa(tenantId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.delete_tenant.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_tenant.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func AddSubtype(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Label string `json:"label"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Label == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "subtype.validate", "label is required")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var exists int
		err = tx.QueryRowContext(r.Context(), `
			SELECT 1 FROM tenant WHERE id = ?`,
			tenantId,
		).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "add_subtype.tenant", tenantId)
			} else {
				httpx.LogInternalError(w, "db.add_subtype.tenant", err)
			}
			return
		}

		subtypeId, created, err := ensureSubtype(r.Context(), tx, tenantId, body.Label)
		if err != nil {
			httpx.LogInternalError(w, "db.add_subtype", err)
			return
		}

		if created {
			err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
				"subtype.add", "subtype", strconv.Itoa(subtypeId), body.Label)
			if err != nil {
				httpx.LogInternalError(w, "db.add_subtype.audit", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.add_subtype.commit", err)
			return
		}

		if created {
			w.WriteHeader(http.StatusCreated)
		}
		render.JSON(w, r, model.Subtype{
			ID:       subtypeId,
			TenantID: tenantId,
			Label:    body.Label,
		})
	}
}

func CreateOrganization(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var body struct {
			Name    string `json:"name"`
			Subtype string `json:"subtype"`
		}
		err = render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if body.Name == "" || body.Subtype == "" {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "organization.validate", "name and subtype are required")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var autoAssign bool
		err = tx.QueryRowContext(r.Context(), `
			SELECT auto_assign FROM tenant WHERE id = ?`,
			tenantId,
		).Scan(&autoAssign)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				httpx.LogNotFound(w, "insert_organization.tenant", tenantId)
			} else {
				httpx.LogInternalError(w, "db.insert_organization.tenant", err)
			}
			return
		}

		subtypeId, newSubtype, err := ensureSubtype(r.Context(), tx, tenantId, body.Subtype)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_organization.subtype", err)
			return
		}

		var organizationId int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO organization (tenant_id, subtype_id, name) VALUES (?, ?, ?)
			RETURNING id`,
			tenantId,
			subtypeId,
			body.Name,
		).Scan(&organizationId)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_organization", err)
			return
		}

		// with the preference on, a subtype new to this tenant inherits
		// the templates already assigned to the same label elsewhere
		copied := 0
		if autoAssign && newSubtype {
			copied, err = copyLabelAssignments(r.Context(), tx, tenantId, subtypeId, body.Subtype)
			if err != nil {
				httpx.LogInternalError(w, "db.insert_organization.copy_assignments", err)
				return
			}
		}

		err = writeAudit(r.Context(), tx, actorUserId(r.Context(), app),
			"organization.create", "organization", strconv.Itoa(organizationId), "")
		if err != nil {
			httpx.LogInternalError(w, "db.insert_organization.audit", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_organization.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":                organizationId,
			"subtypeId":         subtypeId,
			"copiedAssignments": copied,
		})
	}
}

func copyLabelAssignments(ctx context.Context, tx *sql.Tx, tenantId, subtypeId int, label string) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT a.template_id
		FROM repository_assignment a
		INNER JOIN organization_subtype s ON (a.subtype_id = s.id)
		WHERE s.label = ?
			AND a.tenant_id != ?`,
		label,
		tenantId,
	)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	templateIds := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		templateIds = append(templateIds, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	copied := 0
	for _, templateId := range templateIds {
		var exists int
		err = tx.QueryRowContext(ctx, `
			SELECT 1 FROM repository_assignment
			WHERE tenant_id = ?
				AND template_id = ?
				AND subtype_id = ?`,
			tenantId,
			templateId,
			subtypeId,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return copied, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO repository_assignment (tenant_id, template_id, subtype_id)
			VALUES (?, ?, ?)`,
			tenantId,
			templateId,
			subtypeId,
		)
		if err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func ListOrganizations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantId, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		rows, err := app.QueryContext(r.Context(), `
			SELECT o.id, o.tenant_id, o.name, o.subtype_id, s.label
			FROM organization o
			INNER JOIN organization_subtype s ON (o.subtype_id = s.id)
			WHERE o.tenant_id = ?
			ORDER BY o.id`,
			tenantId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_organizations", err)
			return
		}
		defer rows.Close()

		organizations := []model.Organization{}
		for rows.Next() {
			o := model.Organization{}
			err = rows.Scan(&o.ID, &o.TenantID, &o.Name, &o.SubtypeID, &o.Subtype)
			if err != nil {
				httpx.LogInternalError(w, "db.get_organizations.scan", err)
				return
			}
			organizations = append(organizations, o)
		}

		render.JSON(w, r, map[string]any{
			"organizations": organizations,
		})
	}
}
