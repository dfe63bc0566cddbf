package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medforge/ability"
)

// MemoryRoleStore implements in-memory role persistence
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*ability.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*ability.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *ability.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.roles[r.ID]; exists {
		return fmt.Errorf("role already exists: %s", r.ID)
	}
	r.CreatedAt = time.Now()
	s.roles[r.ID] = cloneRole(r)
	return nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *ability.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.roles[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ability.ErrRoleNotFound, r.ID)
	}
	dup := cloneRole(r)
	dup.CreatedAt = old.CreatedAt
	s.roles[r.ID] = dup
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, id string) (*ability.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ability.ErrRoleNotFound, id)
	}
	return cloneRole(r), nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context) ([]*ability.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*ability.Role, 0, len(s.roles))
	for _, r := range s.roles {
		result = append(result, cloneRole(r))
	}
	return result, nil
}

// MemoryRoleMembershipStore implements in-memory user->role assignments
type MemoryRoleMembershipStore struct {
	mu          sync.RWMutex
	assignments map[string]map[string]time.Time // userID -> roleID -> expiry (zero = none)
}

func NewMemoryRoleMembershipStore() *MemoryRoleMembershipStore {
	return &MemoryRoleMembershipStore{assignments: make(map[string]map[string]time.Time)}
}

func (s *MemoryRoleMembershipStore) AssignRole(ctx context.Context, userID, roleID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byRole, ok := s.assignments[userID]
	if !ok {
		byRole = make(map[string]time.Time)
		s.assignments[userID] = byRole
	}
	byRole[roleID] = expiresAt
	return nil
}

func (s *MemoryRoleMembershipStore) RevokeRole(ctx context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byRole, ok := s.assignments[userID]; ok {
		delete(byRole, roleID)
	}
	return nil
}

func (s *MemoryRoleMembershipStore) ListAssignments(ctx context.Context, userID string) ([]ability.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byRole, ok := s.assignments[userID]
	if !ok {
		return nil, nil
	}
	out := make([]ability.RoleAssignment, 0, len(byRole))
	for roleID, expiresAt := range byRole {
		out = append(out, ability.RoleAssignment{RoleID: roleID, ExpiresAt: expiresAt})
	}
	return out, nil
}

// MemoryUserGrantStore implements in-memory direct grant persistence
type MemoryUserGrantStore struct {
	mu     sync.RWMutex
	grants map[string][]ability.UserGrant // userID -> grants
}

func NewMemoryUserGrantStore() *MemoryUserGrantStore {
	return &MemoryUserGrantStore{grants: make(map[string][]ability.UserGrant)}
}

func (s *MemoryUserGrantStore) Grant(ctx context.Context, userID string, g ability.UserGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.grants[userID] {
		if existing.ID == g.ID {
			s.grants[userID][i] = g
			return nil
		}
	}
	s.grants[userID] = append(s.grants[userID], g)
	return nil
}

func (s *MemoryUserGrantStore) Revoke(ctx context.Context, userID, grantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.grants[userID]
	for i, g := range list {
		if g.ID == grantID {
			s.grants[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryUserGrantStore) ListGrants(ctx context.Context, userID string) ([]ability.UserGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ability.UserGrant(nil), s.grants[userID]...), nil
}
