package ability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/date"
	"gopkg.in/yaml.v3"
)

// Config is the declarative catalog seed: roles, role assignments, direct
// user grants and engine tuning. Operations teams author it in YAML; JSON is
// accepted for machine-generated seeds.
type Config struct {
	Version     int                `json:"version" yaml:"version"`
	Roles       []RoleConfig       `json:"roles" yaml:"roles"`
	Assignments []AssignmentConfig `json:"assignments" yaml:"assignments"`
	Grants      []UserGrantConfig  `json:"grants" yaml:"grants"`
	Engine      EngineConfig       `json:"engine" yaml:"engine"`
}

type RoleConfig struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	SystemRole  bool               `json:"system_role" yaml:"system_role"`
	Permissions []PermissionConfig `json:"permissions" yaml:"permissions"`
}

type PermissionConfig struct {
	Action    string         `json:"action" yaml:"action"`
	Subject   string         `json:"subject" yaml:"subject"`
	Condition map[string]any `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type AssignmentConfig struct {
	UserID    string `json:"user_id" yaml:"user_id"`
	RoleID    string `json:"role_id" yaml:"role_id"`
	ExpiresAt string `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

type UserGrantConfig struct {
	ID        string         `json:"id" yaml:"id"`
	UserID    string         `json:"user_id" yaml:"user_id"`
	Action    string         `json:"action" yaml:"action"`
	Subject   string         `json:"subject" yaml:"subject"`
	Condition map[string]any `json:"condition,omitempty" yaml:"condition,omitempty"`
	ExpiresAt string         `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

type EngineConfig struct {
	RulesetCacheTTL      int64 `json:"ruleset_cache_ttl_ms" yaml:"ruleset_cache_ttl_ms"`
	RistrettoNumCounters int64 `json:"ristretto_num_counters" yaml:"ristretto_num_counters"`
	RistrettoMaxCost     int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBufferItems int64 `json:"ristretto_buffer_items" yaml:"ristretto_buffer_items"`
}

// CacheConfig converts the engine section into ruleset cache settings.
func (c EngineConfig) CacheConfig() RulesetCacheConfig {
	return RulesetCacheConfig{
		NumCounters: c.RistrettoNumCounters,
		MaxCost:     c.RistrettoMaxCost,
		BufferItems: c.RistrettoBufferItems,
		TTL:         time.Duration(c.RulesetCacheTTL) * time.Millisecond,
	}
}

// ConfigLoader loads catalog configuration from YAML or JSON.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	normalizeConditions(cfg)
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML exports the config.
func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

// ToJSON exports the config.
func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }

// normalizeConditions rewrites yaml.v3's map[string]any nesting in place.
// yaml.v3 already decodes mappings with string keys to map[string]any, but
// nested sequences of mappings come back as []any of map[string]any, which
// is fine — conditions treat arrays as literals.
func normalizeConditions(cfg *Config) {
	for i := range cfg.Roles {
		for j := range cfg.Roles[i].Permissions {
			cfg.Roles[i].Permissions[j].Condition = normalizeMap(cfg.Roles[i].Permissions[j].Condition)
		}
	}
	for i := range cfg.Grants {
		cfg.Grants[i].Condition = normalizeMap(cfg.Grants[i].Condition)
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	for k, v := range m {
		if inner, ok := v.(map[any]any); ok {
			m[k] = normalizeAnyMap(inner)
		}
	}
	return m
}

func normalizeAnyMap(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		ks := fmt.Sprint(k)
		if inner, ok := v.(map[any]any); ok {
			out[ks] = normalizeAnyMap(inner)
			continue
		}
		out[ks] = v
	}
	return out
}

// Validate enforces the closed action/subject enums and the write-time
// condition template rules (operator-style keys rejected).
func (c *Config) Validate() error {
	seenRoles := make(map[string]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		if r.ID == "" {
			return fmt.Errorf("role missing id")
		}
		if r.Name == "" {
			return fmt.Errorf("role %s missing name", r.ID)
		}
		if _, dup := seenRoles[r.ID]; dup {
			return fmt.Errorf("duplicate role id %s", r.ID)
		}
		seenRoles[r.ID] = struct{}{}
		for _, p := range r.Permissions {
			if err := validatePermission(p.Action, p.Subject, p.Condition); err != nil {
				return fmt.Errorf("role %s: %w", r.ID, err)
			}
		}
	}
	for _, a := range c.Assignments {
		if a.UserID == "" || a.RoleID == "" {
			return fmt.Errorf("assignment requires user_id and role_id")
		}
		if _, ok := seenRoles[a.RoleID]; !ok {
			return fmt.Errorf("assignment for %s references unknown role %s", a.UserID, a.RoleID)
		}
		if _, err := parseExpiry(a.ExpiresAt); err != nil {
			return fmt.Errorf("assignment %s/%s: %w", a.UserID, a.RoleID, err)
		}
	}
	for _, g := range c.Grants {
		if g.UserID == "" {
			return fmt.Errorf("grant %s missing user_id", g.ID)
		}
		if err := validatePermission(g.Action, g.Subject, g.Condition); err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
		if _, err := parseExpiry(g.ExpiresAt); err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
	}
	return nil
}

func validatePermission(action, subject string, condition map[string]any) error {
	if _, ok := ParseAction(action); !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	if _, ok := ParseSubjectType(subject); !ok {
		return fmt.Errorf("unknown subject %q", subject)
	}
	if condition != nil {
		if err := ValidateTemplate(condition); err != nil {
			return err
		}
	}
	return nil
}

func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := date.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad expires_at %q: %w", s, err)
	}
	return t, nil
}

// ApplyConfig seeds the given stores from a validated config. Existing roles
// are updated in place so re-applying a config converges.
func ApplyConfig(ctx context.Context, cfg *Config, roles RoleStore, memberships RoleMembershipStore, grants UserGrantStore) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, rc := range cfg.Roles {
		role := &Role{ID: rc.ID, Name: rc.Name, IsSystemRole: rc.SystemRole}
		for _, pc := range rc.Permissions {
			action, _ := ParseAction(pc.Action)
			subject, _ := ParseSubjectType(pc.Subject)
			var cond any
			if pc.Condition != nil {
				cond = pc.Condition
			}
			role.Permissions = append(role.Permissions, PermissionDef{Action: action, Subject: subject, Condition: cond})
		}
		switch _, err := roles.GetRole(ctx, role.ID); {
		case errors.Is(err, ErrRoleNotFound):
			if err := roles.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("create role %s: %w", role.ID, err)
			}
		case err != nil:
			return fmt.Errorf("load role %s: %w", role.ID, err)
		default:
			if err := roles.UpdateRole(ctx, role); err != nil {
				return fmt.Errorf("update role %s: %w", role.ID, err)
			}
		}
	}

	for _, ac := range cfg.Assignments {
		expiresAt, _ := parseExpiry(ac.ExpiresAt)
		if err := memberships.AssignRole(ctx, ac.UserID, ac.RoleID, expiresAt); err != nil {
			return fmt.Errorf("assign role %s to %s: %w", ac.RoleID, ac.UserID, err)
		}
	}

	for _, gc := range cfg.Grants {
		action, _ := ParseAction(gc.Action)
		subject, _ := ParseSubjectType(gc.Subject)
		expiresAt, _ := parseExpiry(gc.ExpiresAt)
		var cond any
		if gc.Condition != nil {
			cond = gc.Condition
		}
		ug := UserGrant{ID: gc.ID, Action: action, Subject: subject, Condition: cond, ExpiresAt: expiresAt}
		if err := grants.Grant(ctx, gc.UserID, ug); err != nil {
			return fmt.Errorf("grant %s to %s: %w", gc.ID, gc.UserID, err)
		}
	}

	return nil
}
