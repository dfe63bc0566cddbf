package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/medforge/ability"
)

// SQLUserGrantStore persists direct user grants in SQL (squealx)
type SQLUserGrantStore struct {
	db *squealx.DB
}

func NewSQLUserGrantStore(db *squealx.DB) *SQLUserGrantStore {
	return &SQLUserGrantStore{db: db}
}

func (s *SQLUserGrantStore) Grant(ctx context.Context, userID string, g ability.UserGrant) error {
	if err := s.Revoke(ctx, userID, g.ID); err != nil {
		return err
	}
	var condJSON interface{}
	if g.Condition != nil {
		b, err := json.Marshal(g.Condition)
		if err != nil {
			return err
		}
		condJSON = string(b)
	}
	q := `INSERT INTO user_grants(id, user_id, action, subject, condition_json, expires_at) VALUES(:id, :user_id, :action, :subject, :condition_json, :expires_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             g.ID,
		"user_id":        userID,
		"action":         string(g.Action),
		"subject":        string(g.Subject),
		"condition_json": condJSON,
		"expires_at":     sqlNullTimeOrNil(g.ExpiresAt),
	})
	return err
}

func (s *SQLUserGrantStore) Revoke(ctx context.Context, userID, grantID string) error {
	q := `DELETE FROM user_grants WHERE user_id = :user_id AND id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "id": grantID})
	return err
}

func (s *SQLUserGrantStore) ListGrants(ctx context.Context, userID string) ([]ability.UserGrant, error) {
	q := `SELECT id, action, subject, condition_json, expires_at FROM user_grants WHERE user_id = :user_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]ability.UserGrant, 0)
	for r.Next() {
		var id, action, subject string
		var condRaw, expiresRaw interface{}
		if err := r.Scan(&id, &action, &subject, &condRaw, &expiresRaw); err != nil {
			return nil, err
		}
		g := ability.UserGrant{ID: id, Action: ability.Action(action), Subject: ability.SubjectType(subject)}
		if condRaw != nil {
			var condJSON string
			switch v := condRaw.(type) {
			case string:
				condJSON = v
			case []byte:
				condJSON = string(v)
			}
			if condJSON != "" {
				var cond map[string]any
				if err := json.Unmarshal([]byte(condJSON), &cond); err == nil {
					g.Condition = cond
				}
			}
		}
		if expiresRaw != nil {
			g.ExpiresAt = scanTime(expiresRaw)
		}
		out = append(out, g)
	}
	return out, nil
}
