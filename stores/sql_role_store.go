package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/medforge/ability"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *ability.Role) error {
	perms, _ := json.Marshal(r.Permissions)
	q := `INSERT INTO roles(id, name, is_system_role, permissions_json, created_at) VALUES(:id, :name, :is_system_role, :permissions_json, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"is_system_role":   boolToInt(r.IsSystemRole),
		"permissions_json": string(perms),
		"created_at":       time.Now(),
	})
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *ability.Role) error {
	perms, _ := json.Marshal(r.Permissions)
	q := `UPDATE roles SET name=:name, is_system_role=:is_system_role, permissions_json=:permissions_json WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":               r.ID,
		"name":             r.Name,
		"is_system_role":   boolToInt(r.IsSystemRole),
		"permissions_json": string(perms),
	})
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id string) error {
	q := `DELETE FROM roles WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLRoleStore) GetRole(ctx context.Context, id string) (*ability.Role, error) {
	q := `SELECT id, name, is_system_role, permissions_json, created_at FROM roles WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: %s", ability.ErrRoleNotFound, id)
	}
	var idv, name, permsJSON string
	var systemRole int
	var createdRaw interface{}
	if err := r.Scan(&idv, &name, &systemRole, &permsJSON, &createdRaw); err != nil {
		return nil, err
	}
	role := &ability.Role{ID: idv, Name: name, IsSystemRole: systemRole != 0}
	var perms []ability.PermissionDef
	_ = json.Unmarshal([]byte(permsJSON), &perms)
	role.Permissions = perms
	if createdRaw != nil {
		role.CreatedAt = scanTime(createdRaw)
	}
	return role, nil
}

func (s *SQLRoleStore) ListRoles(ctx context.Context) ([]*ability.Role, error) {
	q := `SELECT id FROM roles`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*ability.Role, 0)
	for r.Next() {
		var id string
		_ = r.Scan(&id)
		if rr, err := s.GetRole(ctx, id); err == nil {
			out = append(out, rr)
		}
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
