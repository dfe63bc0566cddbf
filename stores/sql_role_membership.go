package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/medforge/ability"
)

// SQLRoleMembershipStore persists user->role assignments in SQL (squealx)
type SQLRoleMembershipStore struct {
	db *squealx.DB
}

func NewSQLRoleMembershipStore(db *squealx.DB) *SQLRoleMembershipStore {
	return &SQLRoleMembershipStore{db: db}
}

func (s *SQLRoleMembershipStore) AssignRole(ctx context.Context, userID, roleID string, expiresAt time.Time) error {
	// upsert so re-assigning refreshes the expiry
	if err := s.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	q := `INSERT INTO role_assignments(user_id, role_id, expires_at) VALUES(:user_id, :role_id, :expires_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":    userID,
		"role_id":    roleID,
		"expires_at": sqlNullTimeOrNil(expiresAt),
	})
	return err
}

func (s *SQLRoleMembershipStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	q := `DELETE FROM role_assignments WHERE user_id = :user_id AND role_id = :role_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID})
	return err
}

func (s *SQLRoleMembershipStore) ListAssignments(ctx context.Context, userID string) ([]ability.RoleAssignment, error) {
	q := `SELECT role_id, expires_at FROM role_assignments WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]ability.RoleAssignment, 0)
	for r.Next() {
		var roleID string
		var expiresRaw interface{}
		if err := r.Scan(&roleID, &expiresRaw); err != nil {
			return nil, err
		}
		a := ability.RoleAssignment{RoleID: roleID}
		if expiresRaw != nil {
			a.ExpiresAt = scanTime(expiresRaw)
		}
		out = append(out, a)
	}
	return out, nil
}
