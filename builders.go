package ability

import "time"

// Fluent builders for roles, grants and contexts, mainly used by seeding
// code and tests.

// RoleBuilder builds a Role.
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{Permissions: []PermissionDef{}}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder     { b.r.ID = id; return b }
func (b *RoleBuilder) Name(name string) *RoleBuilder { b.r.Name = name; return b }
func (b *RoleBuilder) System() *RoleBuilder          { b.r.IsSystemRole = true; return b }
func (b *RoleBuilder) Permission(action Action, subject SubjectType, condition map[string]any) *RoleBuilder {
	var cond any
	if condition != nil {
		cond = condition
	}
	b.r.Permissions = append(b.r.Permissions, PermissionDef{Action: action, Subject: subject, Condition: cond})
	return b
}
func (b *RoleBuilder) Build() *Role { return b.r }

// GrantBuilder builds a direct UserGrant.
type GrantBuilder struct {
	g UserGrant
}

func NewGrantBuilder() *GrantBuilder { return &GrantBuilder{} }

func (b *GrantBuilder) ID(id string) *GrantBuilder             { b.g.ID = id; return b }
func (b *GrantBuilder) Action(a Action) *GrantBuilder          { b.g.Action = a; return b }
func (b *GrantBuilder) Subject(s SubjectType) *GrantBuilder    { b.g.Subject = s; return b }
func (b *GrantBuilder) ExpiresAt(t time.Time) *GrantBuilder    { b.g.ExpiresAt = t; return b }
func (b *GrantBuilder) Condition(c map[string]any) *GrantBuilder {
	if c != nil {
		b.g.Condition = c
	}
	return b
}
func (b *GrantBuilder) Build() UserGrant { return b.g }

// ContextBuilder assembles a request context with the standard user keys.
type ContextBuilder struct {
	user  map[string]any
	extra map[string]any
}

func NewContextBuilder(userID string) *ContextBuilder {
	return &ContextBuilder{
		user:  map[string]any{"id": userID},
		extra: map[string]any{},
	}
}

func (b *ContextBuilder) Organization(orgID string) *ContextBuilder {
	b.user["organizationId"] = orgID
	return b
}

func (b *ContextBuilder) Departments(ids ...string) *ContextBuilder {
	b.user["departmentIds"] = ids
	return b
}

func (b *ContextBuilder) HeadOfDepartments(ids ...string) *ContextBuilder {
	b.user["headOfDepartmentIds"] = ids
	return b
}

func (b *ContextBuilder) StaffProfile(id string) *ContextBuilder {
	b.user["staffProfileId"] = id
	return b
}

// Extra attaches a caller-supplied extension key (e.g. the in-flight
// request).
func (b *ContextBuilder) Extra(key string, value any) *ContextBuilder {
	b.extra[key] = value
	return b
}

func (b *ContextBuilder) Build() Context {
	ctx := Context{"user": b.user}
	for k, v := range b.extra {
		ctx[k] = v
	}
	return ctx
}
