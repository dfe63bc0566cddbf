package ability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound is returned by catalog implementations when the user id
// does not exist. The builder treats it the same as a user with zero grants.
var ErrUserNotFound = errors.New("ability: user not found")

// ErrRoleNotFound is returned by role stores when the role id does not exist.
// CompositeCatalog skips assignments to missing roles; any other role-store
// error aborts the load so a transient failure is never mistaken for a
// dangling assignment.
var ErrRoleNotFound = errors.New("ability: role not found")

// PermissionCatalog supplies the raw grant list for a user id, aggregating
// the permissions of the user's role memberships and the user's direct
// permission overrides. How grants are fetched and stored is up to the
// implementation; see the stores package.
type PermissionCatalog interface {
	LoadGrants(ctx context.Context, userID string) ([]Grant, error)
}

// CatalogFunc adapts a plain function to the PermissionCatalog interface.
type CatalogFunc func(ctx context.Context, userID string) ([]Grant, error)

func (f CatalogFunc) LoadGrants(ctx context.Context, userID string) ([]Grant, error) {
	return f(ctx, userID)
}

// ============================================================================
// CATALOG BUILDING BLOCKS
// ============================================================================

// PermissionDef is one action/subject/condition triple attached to a role.
type PermissionDef struct {
	Action    Action      `json:"action" yaml:"action"`
	Subject   SubjectType `json:"subject" yaml:"subject"`
	Condition any         `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Role is a named collection of permissions. System roles (such as the
// Super Admin role) are seeded by operations and are not organization-scoped.
type Role struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	IsSystemRole bool            `json:"is_system_role" yaml:"is_system_role"`
	Permissions  []PermissionDef `json:"permissions" yaml:"permissions"`
	CreatedAt    time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// RoleAssignment links a user to a role, optionally until a point in time.
type RoleAssignment struct {
	RoleID    string    `json:"role_id" yaml:"role_id"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero = no expiry
}

// UserGrant is a direct per-user permission override with its own expiry.
type UserGrant struct {
	ID        string      `json:"id" yaml:"id"`
	Action    Action      `json:"action" yaml:"action"`
	Subject   SubjectType `json:"subject" yaml:"subject"`
	Condition any         `json:"condition,omitempty" yaml:"condition,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero = no expiry
}

// RoleStore manages role persistence.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
}

// RoleMembershipStore manages which roles a user holds.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, userID, roleID string, expiresAt time.Time) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	ListAssignments(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// UserGrantStore manages direct per-user permission overrides.
type UserGrantStore interface {
	Grant(ctx context.Context, userID string, g UserGrant) error
	Revoke(ctx context.Context, userID, grantID string) error
	ListGrants(ctx context.Context, userID string) ([]UserGrant, error)
}

// CompositeCatalog assembles the grant list from a role store, a membership
// store and a user-grant store so memory, SQL and Redis backends compose
// freely.
type CompositeCatalog struct {
	roles       RoleStore
	memberships RoleMembershipStore
	grants      UserGrantStore
}

func NewCompositeCatalog(roles RoleStore, memberships RoleMembershipStore, grants UserGrantStore) *CompositeCatalog {
	return &CompositeCatalog{roles: roles, memberships: memberships, grants: grants}
}

// LoadGrants flattens role permissions (each inheriting its assignment's
// expiry) and appends direct user grants. Dangling assignments to deleted
// roles are skipped; any other role-store error fails the whole load rather
// than returning a silently partial grant list. Expiry filtering itself
// happens at build time, so the same catalog answer can be reused by the
// caller while remaining correct.
func (c *CompositeCatalog) LoadGrants(ctx context.Context, userID string) ([]Grant, error) {
	assignments, err := c.memberships.ListAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Grant, 0, len(assignments))
	for _, assignment := range assignments {
		role, err := c.roles.GetRole(ctx, assignment.RoleID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				continue
			}
			return nil, fmt.Errorf("load role %s: %w", assignment.RoleID, err)
		}
		for _, perm := range role.Permissions {
			out = append(out, Grant{
				Action:    perm.Action,
				Subject:   perm.Subject,
				Condition: perm.Condition,
				Source:    SourceRole,
				Role:      role.Name,
				ExpiresAt: assignment.ExpiresAt,
			})
		}
	}

	direct, err := c.grants.ListGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range direct {
		out = append(out, Grant{
			Action:    g.Action,
			Subject:   g.Subject,
			Condition: g.Condition,
			Source:    SourceDirect,
			ExpiresAt: g.ExpiresAt,
		})
	}

	return out, nil
}
