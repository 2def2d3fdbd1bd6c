package assign

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tenantLabel struct {
	tenant int
	label  string
}

type assignmentKey struct {
	tenant, template, subtype int
}

// fakeStore is an in-memory Store that counts writes and can be told to
// fail a specific operation.
type fakeStore struct {
	catalog     map[string]bool
	subtypes    map[tenantLabel]int
	orgTenants  map[string][]int
	assignments map[assignmentKey]bool
	legacyLinks map[string]int // label -> surviving link count

	writes   int
	failNext string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		catalog:     map[string]bool{},
		subtypes:    map[tenantLabel]int{},
		orgTenants:  map[string][]int{},
		assignments: map[assignmentKey]bool{},
		legacyLinks: map[string]int{},
	}
}

// seed registers a subtype label in a tenant, with organizations of it.
func (s *fakeStore) seed(tenant int, label string, subtypeID int) {
	s.catalog[label] = true
	s.subtypes[tenantLabel{tenant, label}] = subtypeID
	s.orgTenants[label] = append(s.orgTenants[label], tenant)
}

func (s *fakeStore) fail(op string) error {
	if s.failNext == op {
		return fmt.Errorf("forced %s failure", op)
	}
	return nil
}

func (s *fakeStore) CurrentLabels(ctx context.Context, templateID int) ([]string, error) {
	seen := map[string]bool{}
	for key, ok := range s.assignments {
		if !ok || key.template != templateID {
			continue
		}
		for tl, id := range s.subtypes {
			if tl.tenant == key.tenant && id == key.subtype {
				seen[tl.label] = true
			}
		}
	}
	var labels []string
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}

func (s *fakeStore) CatalogAdd(ctx context.Context, label string) error {
	if err := s.fail("catalog"); err != nil {
		return err
	}
	if !s.catalog[label] {
		s.catalog[label] = true
		s.writes++
	}
	return nil
}

func (s *fakeStore) OrgTenantsByLabel(ctx context.Context, label string) ([]int, error) {
	if err := s.fail("tenants"); err != nil {
		return nil, err
	}
	return s.orgTenants[label], nil
}

func (s *fakeStore) ResolveSubtype(ctx context.Context, tenantID int, label string) (int, bool, error) {
	id, ok := s.subtypes[tenantLabel{tenantID, label}]
	return id, ok, nil
}

func (s *fakeStore) AssignmentExists(ctx context.Context, tenantID, templateID, subtypeID int) (bool, error) {
	return s.assignments[assignmentKey{tenantID, templateID, subtypeID}], nil
}

func (s *fakeStore) CreateAssignment(ctx context.Context, tenantID, templateID, subtypeID int) error {
	if err := s.fail("create"); err != nil {
		return err
	}
	s.assignments[assignmentKey{tenantID, templateID, subtypeID}] = true
	s.writes++
	return nil
}

func (s *fakeStore) DeleteAssignments(ctx context.Context, templateID int, label string) (int, error) {
	if err := s.fail("delete"); err != nil {
		return 0, err
	}
	n := 0
	for key := range s.assignments {
		if key.template != templateID {
			continue
		}
		if s.subtypes[tenantLabel{key.tenant, label}] == key.subtype {
			delete(s.assignments, key)
			s.writes++
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteLegacyLinks(ctx context.Context, templateID int, label string) (int, error) {
	n := s.legacyLinks[label]
	if n > 0 {
		s.legacyLinks[label] = 0
		s.writes += n
	}
	return n, nil
}

var _ Store = (*fakeStore)(nil)

func TestReconcile_NoChangeIsNoWrite(t *testing.T) {
	store := newFakeStore()
	store.seed(1, "ski_patrol", 11)

	r := NewReconciler(store)
	result, err := r.Reconcile(context.Background(), 7,
		[]string{"ski_patrol"}, []string{"ski_patrol"})
	require.NoError(t, err)
	assert.Zero(t, store.writes)
	assert.Equal(t, Result{}, result)
}

func TestReconcile_AddOneTenant(t *testing.T) {
	// desired adds park_service; exactly one tenant has such orgs and the
	// existing ski_patrol assignment is untouched
	store := newFakeStore()
	store.seed(1, "ski_patrol", 11)
	store.seed(2, "park_service", 21)
	store.assignments[assignmentKey{1, 7, 11}] = true

	r := NewReconciler(store)
	result, err := r.Reconcile(context.Background(), 7,
		[]string{"ski_patrol", "park_service"}, []string{"ski_patrol"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.True(t, store.assignments[assignmentKey{2, 7, 21}])
	assert.True(t, store.assignments[assignmentKey{1, 7, 11}], "existing assignment must survive")
}

func TestReconcile_FanOutAcrossTenants(t *testing.T) {
	// the same label recurs in three tenants; one already has the row
	store := newFakeStore()
	store.seed(1, "ski_patrol", 11)
	store.seed(2, "ski_patrol", 21)
	store.seed(3, "ski_patrol", 31)
	store.assignments[assignmentKey{2, 7, 21}] = true

	r := NewReconciler(store)
	result, err := r.Reconcile(context.Background(), 7, []string{"ski_patrol"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.SkippedExisting)
}

func TestReconcile_NoMatchingOrganizations(t *testing.T) {
	store := newFakeStore()

	r := NewReconciler(store)
	_, err := r.Reconcile(context.Background(), 7, []string{"heli_rescue"}, nil)
	assert.ErrorIs(t, err, ErrNoMatchingOrganizations)
	assert.Zero(t, store.writes, "guard must fire before any write")
	assert.False(t, store.catalog["heli_rescue"], "net-new label must not be cataloged on refusal")
}

func TestReconcile_RemoveSweepsLegacyLinks(t *testing.T) {
	store := newFakeStore()
	store.seed(1, "ski_patrol", 11)
	store.assignments[assignmentKey{1, 7, 11}] = true
	store.legacyLinks["ski_patrol"] = 2

	r := NewReconciler(store)
	result, err := r.Reconcile(context.Background(), 7, nil, []string{"ski_patrol"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 2, result.LegacyRemoved)
	assert.Empty(t, store.assignments)
}

func TestReconcile_Converges(t *testing.T) {
	store := newFakeStore()
	store.seed(1, "ski_patrol", 11)
	store.seed(2, "park_service", 21)
	store.assignments[assignmentKey{2, 7, 21}] = true

	r := NewReconciler(store)
	desired := []string{"ski_patrol"}

	current, err := store.CurrentLabels(context.Background(), 7)
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), 7, desired, current)
	require.NoError(t, err)

	// second run from the converged state is a no-op
	current, err = store.CurrentLabels(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, desired, current)

	writes := store.writes
	result, err := r.Reconcile(context.Background(), 7, desired, current)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Equal(t, writes, store.writes)
}

func TestReconcile_WriteFailureAbortsButKeepsTally(t *testing.T) {
	store := newFakeStore()
	store.seed(1, "alpha", 11)
	store.seed(2, "beta", 21)
	store.failNext = "delete"
	store.assignments[assignmentKey{1, 7, 11}] = true

	r := NewReconciler(store)
	result, err := r.Reconcile(context.Background(), 7, []string{"beta"}, []string{"alpha", "beta"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoMatchingOrganizations)
	// the add side ran; the failed removal left its rows behind
	assert.Equal(t, 0, result.Removed)
	assert.True(t, store.assignments[assignmentKey{1, 7, 11}])

	// re-run after the fault clears converges
	store.failNext = ""
	current, _ := store.CurrentLabels(context.Background(), 7)
	_, err = r.Reconcile(context.Background(), 7, []string{"beta"}, current)
	require.NoError(t, err)
	current, _ = store.CurrentLabels(context.Background(), 7)
	assert.Equal(t, []string{"beta"}, current)
}
