package assign

import (
	"context"
	"sort"

	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/pkg/errors"
)

// ErrNoMatchingOrganizations guards against assigning a template to
// labels that no tenant's organizations carry: such an assignment would
// be reachable by nobody, so the reconcile refuses before any write.
var ErrNoMatchingOrganizations = errors.New("no organizations match the requested subtype labels")

// Result tallies what one reconcile run changed. On error the counts
// reflect the writes that were already committed; the run has no
// rollback and is meant to be re-run to convergence.
type Result struct {
	Added           int `json:"added"`
	SkippedExisting int `json:"skippedExisting"`
	Removed         int `json:"removed"`
	LegacyRemoved   int `json:"legacyRemoved"`
}

// Reconciler fans template-to-subtype assignments out across every
// tenant that has organizations of the affected subtypes.
type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile drives the assignment state of one template toward the
// desired label set. Additions are deduplicated per (tenant, template,
// subtype) with an existence check before insert; the window between
// check and insert is an accepted race under concurrent admins.
// Removals also sweep the legacy org-level links. The first write error
// aborts the rest; re-running converges since every step is idempotent.
func (r *Reconciler) Reconcile(ctx context.Context, templateID int, desired, current []string) (Result, error) {
	var result Result

	toAdd := difference(desired, current)
	toRemove := difference(current, desired)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return result, nil
	}

	// resolve tenant matches up front so the no-match guard runs before
	// the first write
	tenantsByLabel := make(map[string][]int, len(toAdd))
	anyMatch := false
	for _, label := range toAdd {
		tenants, err := r.store.OrgTenantsByLabel(ctx, label)
		if err != nil {
			return result, errors.Wrapf(err, "list tenants for label %q", label)
		}
		tenantsByLabel[label] = tenants
		if len(tenants) > 0 {
			anyMatch = true
		}
	}
	if len(toAdd) > 0 && !anyMatch {
		return result, ErrNoMatchingOrganizations
	}

	for _, label := range toAdd {
		if err := r.store.CatalogAdd(ctx, label); err != nil {
			return result, errors.Wrapf(err, "add catalog entry %q", label)
		}

		for _, tenantID := range tenantsByLabel[label] {
			subtypeID, ok, err := r.store.ResolveSubtype(ctx, tenantID, label)
			if err != nil {
				return result, errors.Wrapf(err, "resolve subtype %q in tenant %d", label, tenantID)
			}
			if !ok {
				// tenant has orgs of the label but no local subtype row;
				// inconsistent data, skip rather than invent an id
				log.Warnf("assign.reconcile: tenant %d has organizations labeled %q but no subtype row", tenantID, label)
				continue
			}

			exists, err := r.store.AssignmentExists(ctx, tenantID, templateID, subtypeID)
			if err != nil {
				return result, errors.Wrapf(err, "check assignment %q in tenant %d", label, tenantID)
			}
			if exists {
				result.SkippedExisting++
				continue
			}

			if err := r.store.CreateAssignment(ctx, tenantID, templateID, subtypeID); err != nil {
				return result, errors.Wrapf(err, "create assignment %q in tenant %d", label, tenantID)
			}
			result.Added++
		}
	}

	for _, label := range toRemove {
		n, err := r.store.DeleteAssignments(ctx, templateID, label)
		result.Removed += n
		if err != nil {
			return result, errors.Wrapf(err, "remove assignments for label %q", label)
		}

		n, err = r.store.DeleteLegacyLinks(ctx, templateID, label)
		result.LegacyRemoved += n
		if err != nil {
			return result, errors.Wrapf(err, "sweep legacy links for label %q", label)
		}
	}

	log.Debugf("assign.reconcile: template %d added=%d skipped=%d removed=%d legacy=%d",
		templateID, result.Added, result.SkippedExisting, result.Removed, result.LegacyRemoved)
	return result, nil
}

// difference returns the members of a not in b, sorted for a
// deterministic write order.
func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}

	var out []string
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		if !in[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	sort.Strings(out)
	return out
}
