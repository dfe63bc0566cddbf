package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medforge/ability"
)

// RedisRoleMembershipStore stores user->role assignments in Redis hashes
// (key: rolemem:{userID}, field: roleID, value: RFC3339 expiry or empty).
type RedisRoleMembershipStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "rolemem:%s"
}

func NewRedisRoleMembershipStore(client *redis.Client) *RedisRoleMembershipStore {
	return &RedisRoleMembershipStore{client: client, keyFmt: "rolemem:%s"}
}

func (r *RedisRoleMembershipStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisRoleMembershipStore) AssignRole(ctx context.Context, userID, roleID string, expiresAt time.Time) error {
	value := ""
	if !expiresAt.IsZero() {
		value = expiresAt.UTC().Format(time.RFC3339Nano)
	}
	return r.client.HSet(ctx, r.key(userID), roleID, value).Err()
}

func (r *RedisRoleMembershipStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	return r.client.HDel(ctx, r.key(userID), roleID).Err()
}

func (r *RedisRoleMembershipStore) ListAssignments(ctx context.Context, userID string) ([]ability.RoleAssignment, error) {
	res, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ability.RoleAssignment, 0, len(res))
	for roleID, raw := range res {
		a := ability.RoleAssignment{RoleID: roleID}
		if raw != "" {
			if t, err := parseFlexibleTime(raw); err == nil {
				a.ExpiresAt = t
			}
		}
		out = append(out, a)
	}
	return out, nil
}
