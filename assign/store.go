package assign

import (
	"context"
	"database/sql"
	"errors"
)

// Store is the persistence contract the reconciler fans out over. The
// backing platform owns the real constraints; this interface only
// promises the reads and writes the fan-out needs.
type Store interface {
	// CurrentLabels lists the distinct subtype labels a template is
	// assigned to, across all tenants.
	CurrentLabels(ctx context.Context, templateID int) ([]string, error)
	// CatalogAdd registers a subtype label; adding a known label is a
	// no-op.
	CatalogAdd(ctx context.Context, label string) error
	// OrgTenantsByLabel lists tenants with at least one organization of
	// the labeled subtype.
	OrgTenantsByLabel(ctx context.Context, label string) ([]int, error)
	// ResolveSubtype maps a label to the tenant-local subtype id.
	ResolveSubtype(ctx context.Context, tenantID int, label string) (int, bool, error)
	AssignmentExists(ctx context.Context, tenantID, templateID, subtypeID int) (bool, error)
	CreateAssignment(ctx context.Context, tenantID, templateID, subtypeID int) error
	// DeleteAssignments removes every assignment of the template to the
	// labeled subtype, in any tenant, returning how many went away.
	DeleteAssignments(ctx context.Context, templateID int, label string) (int, error)
	// DeleteLegacyLinks sweeps the old direct org-to-template links for
	// organizations of the labeled subtype.
	DeleteLegacyLinks(ctx context.Context, templateID int, label string) (int, error)
}

// SQLStore implements Store over the console's own tables.
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) CurrentLabels(ctx context.Context, templateID int) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT st.label
		FROM repository_assignment a
		INNER JOIN organization_subtype st ON (a.subtype_id = st.id)
		WHERE a.template_id = ?
		ORDER BY st.label`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (s *SQLStore) CatalogAdd(ctx context.Context, label string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO subtype_catalog (label) VALUES (?)
		ON CONFLICT (label) DO NOTHING`,
		label,
	)
	return err
}

func (s *SQLStore) OrgTenantsByLabel(ctx context.Context, label string) ([]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT o.tenant_id
		FROM organization o
		INNER JOIN organization_subtype st ON (o.subtype_id = st.id)
		WHERE st.label = ?
		ORDER BY o.tenant_id`,
		label,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func (s *SQLStore) ResolveSubtype(ctx context.Context, tenantID int, label string) (int, bool, error) {
	var id int
	err := s.DB.QueryRowContext(ctx, `
		SELECT id FROM organization_subtype
		WHERE tenant_id = ? AND label = ?`,
		tenantID, label,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *SQLStore) AssignmentExists(ctx context.Context, tenantID, templateID, subtypeID int) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `
		SELECT 1 FROM repository_assignment
		WHERE tenant_id = ? AND template_id = ? AND subtype_id = ?`,
		tenantID, templateID, subtypeID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) CreateAssignment(ctx context.Context, tenantID, templateID, subtypeID int) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO repository_assignment (tenant_id, template_id, subtype_id)
		VALUES (?, ?, ?)`,
		tenantID, templateID, subtypeID,
	)
	return err
}

func (s *SQLStore) DeleteAssignments(ctx context.Context, templateID int, label string) (int, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM repository_assignment
		WHERE template_id = ?
			AND subtype_id IN (
				SELECT id FROM organization_subtype WHERE label = ?
			)`,
		templateID, label,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLStore) DeleteLegacyLinks(ctx context.Context, templateID int, label string) (int, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM org_template_link
		WHERE template_id = ?
			AND organization_id IN (
				SELECT o.id
				FROM organization o
				INNER JOIN organization_subtype st ON (o.subtype_id = st.id)
				WHERE st.label = ?
			)`,
		templateID, label,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Store = (*SQLStore)(nil)
