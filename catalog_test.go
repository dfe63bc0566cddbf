package ability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeRoleStore struct {
	roles map[string]*Role
	err   error
}

func (s *fakeRoleStore) CreateRole(context.Context, *Role) error { return nil }
func (s *fakeRoleStore) UpdateRole(context.Context, *Role) error { return nil }
func (s *fakeRoleStore) DeleteRole(context.Context, string) error {
	return nil
}

func (s *fakeRoleStore) GetRole(_ context.Context, id string) (*Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	return r, nil
}

func (s *fakeRoleStore) ListRoles(context.Context) ([]*Role, error) { return nil, nil }

type fakeMembershipStore struct {
	assignments []RoleAssignment
}

func (s *fakeMembershipStore) AssignRole(context.Context, string, string, time.Time) error {
	return nil
}
func (s *fakeMembershipStore) RevokeRole(context.Context, string, string) error { return nil }
func (s *fakeMembershipStore) ListAssignments(context.Context, string) ([]RoleAssignment, error) {
	return s.assignments, nil
}

type fakeGrantStore struct {
	grants []UserGrant
}

func (s *fakeGrantStore) Grant(context.Context, string, UserGrant) error  { return nil }
func (s *fakeGrantStore) Revoke(context.Context, string, string) error    { return nil }
func (s *fakeGrantStore) ListGrants(context.Context, string) ([]UserGrant, error) {
	return s.grants, nil
}

func TestCompositeCatalogSkipsDanglingAssignments(t *testing.T) {
	catalog := NewCompositeCatalog(
		&fakeRoleStore{roles: map[string]*Role{}},
		&fakeMembershipStore{assignments: []RoleAssignment{{RoleID: "deleted-role"}}},
		&fakeGrantStore{grants: []UserGrant{{ID: "g-1", Action: ActionRead, Subject: SubjectPayPeriod}}},
	)

	loaded, err := catalog.LoadGrants(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("dangling assignment must not fail the load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Source != SourceDirect {
		t.Fatalf("expected only the direct grant, got %v", loaded)
	}
}

func TestCompositeCatalogPropagatesRoleStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	catalog := NewCompositeCatalog(
		&fakeRoleStore{err: storeErr},
		&fakeMembershipStore{assignments: []RoleAssignment{{RoleID: "role-doctor"}}},
		&fakeGrantStore{grants: []UserGrant{{ID: "g-1", Action: ActionRead, Subject: SubjectPayPeriod}}},
	)

	loaded, err := catalog.LoadGrants(context.Background(), "u-1")
	if err == nil {
		t.Fatalf("role-store failure must fail the load, got %d grants", len(loaded))
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected the store error in the chain, got %v", err)
	}
	if loaded != nil {
		t.Fatalf("failed load must not return a partial grant list: %v", loaded)
	}
}

func TestEngineDegradesOnRoleStoreFailure(t *testing.T) {
	log := &captureLogger{}
	catalog := NewCompositeCatalog(
		&fakeRoleStore{err: errors.New("connection refused")},
		&fakeMembershipStore{assignments: []RoleAssignment{{RoleID: "role-doctor"}}},
		&fakeGrantStore{},
	)
	engine, err := NewEngine(catalog, WithLogger(log))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	rs, err := engine.Build(context.Background(), "u-1", orgContext("H1"))
	if err != nil {
		t.Fatalf("build must degrade, not fail: %v", err)
	}
	if !rs.Can(ActionRead, SubjectAll, map[string]any{"isPublic": true}) {
		t.Fatalf("degraded build should produce the public ruleset")
	}
	if rs.Can(ActionRead, SubjectPayPeriod, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("degraded build must not carry partial grants or the org floor")
	}
	if len(log.errors) == 0 {
		t.Fatalf("role-store failure must be operator-visible")
	}
}
