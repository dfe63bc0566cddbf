package ability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medforge/ability/logger"
)

// AuthorizeRequest is the shape every route guard and business-logic call
// site supplies. UserID may be empty for anonymous callers.
type AuthorizeRequest struct {
	UserID   string         `json:"user_id"`
	Action   Action         `json:"action"`
	Subject  SubjectType    `json:"subject"`
	Instance map[string]any `json:"instance,omitempty"`
	Context  Context        `json:"context"`
}

// Decision is the explained form of an authorization answer.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Matched   *Rule     `json:"-"`
	Trace     []string  `json:"trace,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine ties the permission catalog, the ruleset builder and the optional
// ruleset cache together. It is stateless per request and safe for
// concurrent use; every authorization attempt builds (or fetches) its own
// ruleset and no shared mutable state survives a call.
type Engine struct {
	catalog  PermissionCatalog
	cache    *RulesetCache
	notifier *ChangeNotifier
	logger   logger.Logger
	now      func() time.Time
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine) error

// WithLogger installs the operator-visible logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		if l == nil {
			return errors.New("ability: nil logger")
		}
		e.logger = l
		return nil
	}
}

// WithRulesetCache installs a ruleset cache.
func WithRulesetCache(c *RulesetCache) EngineOption {
	return func(e *Engine) error {
		e.cache = c
		return nil
	}
}

// WithChangeNotifier subscribes the engine's cache (when present) to grant
// change notifications.
func WithChangeNotifier(n *ChangeNotifier) EngineOption {
	return func(e *Engine) error {
		e.notifier = n
		return nil
	}
}

// WithClock overrides the time source used for grant expiry. Tests use this
// to pin "now".
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return errors.New("ability: nil clock")
		}
		e.now = now
		return nil
	}
}

func NewEngine(catalog PermissionCatalog, opts ...EngineOption) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("ability: permission catalog is required")
	}
	e := &Engine{
		catalog: catalog,
		logger:  logger.NewPhusluLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.notifier != nil && e.cache != nil {
		cache := e.cache
		e.notifier.Subscribe(ChangeSubscriberFunc(func(_ context.Context, userID string) {
			cache.Invalidate(userID)
		}))
	}
	return e, nil
}

// Build derives the ruleset for one (user, context) pair.
//
// Catalog failures never surface as authorization errors: an unknown user or
// a failed load degrades to the minimal public ruleset, with the failure
// reported on the engine logger. The only error Build returns is the
// caller's own cancellation, in which case no partial ruleset is produced.
func (e *Engine) Build(ctx context.Context, userID string, reqCtx Context) (Ruleset, error) {
	if userID == "" {
		return PublicRuleset(), nil
	}

	if e.cache != nil {
		if rs, ok := e.cache.Get(userID, reqCtx); ok {
			return rs, nil
		}
	}

	grants, err := e.catalog.LoadGrants(ctx, userID)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Ruleset{}, fmt.Errorf("ability: build aborted: %w", err)
		}
		if errors.Is(err, ErrUserNotFound) {
			e.logger.Debug("unknown user, using public ruleset", "user_id", userID)
			return PublicRuleset(), nil
		}
		// Degraded builds are not cached so the next request retries the
		// catalog.
		e.logger.Error("catalog load failed, degrading to public ruleset",
			"user_id", userID, "error", err)
		return PublicRuleset(), nil
	}

	rs := BuildRuleset(grants, reqCtx, e.now())
	if e.cache != nil {
		e.cache.Set(userID, reqCtx, rs)
	}
	return rs, nil
}

// Authorize answers one authorization query end to end.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (bool, error) {
	rs, err := e.Build(ctx, req.UserID, req.Context)
	if err != nil {
		return false, err
	}
	return rs.Can(req.Action, req.Subject, req.Instance), nil
}

// Check runs a gate's predicates against the user's ruleset.
func (e *Engine) Check(ctx context.Context, userID string, reqCtx Context, gate Gate) (bool, error) {
	rs, err := e.Build(ctx, userID, reqCtx)
	if err != nil {
		return false, err
	}
	return gate.Check(rs), nil
}

// Explain evaluates like Authorize but materializes a trace of every rule
// considered, for admin tooling and debugging. The trace allocation cost is
// deliberately kept off the Authorize path.
func (e *Engine) Explain(ctx context.Context, req AuthorizeRequest) (*Decision, error) {
	rs, err := e.Build(ctx, req.UserID, req.Context)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Reason:    "default deny",
		Trace:     make([]string, 0, rs.Len()),
		Timestamp: e.now(),
	}
	for i := len(rs.rules) - 1; i >= 0; i-- {
		rule := rs.rules[i]
		label := fmt.Sprintf("rule[%d] %s %s", i, rule.Action, rule.Subject)
		switch {
		case !rule.matches(req.Action, req.Subject):
			decision.Trace = append(decision.Trace, label+" no_match")
		case rule.never:
			decision.Trace = append(decision.Trace, label+" malformed_condition")
		case !rule.satisfied(req.Instance):
			decision.Trace = append(decision.Trace, label+" condition_unsatisfied")
		default:
			decision.Trace = append(decision.Trace, label+" MATCH")
			decision.Allowed = true
			decision.Reason = ruleReason(rule)
			matched := rule
			decision.Matched = &matched
		}
		if decision.Allowed {
			break
		}
	}
	return decision, nil
}

func ruleReason(rule Rule) string {
	if rule.Action == ActionManage && rule.Subject == SubjectAll && rule.Condition == nil {
		return "super admin"
	}
	if rule.Action == ActionRead && rule.Subject == SubjectAll && len(rule.Condition) == 1 {
		if _, ok := rule.Condition["organizationId"]; ok {
			return "organization read floor"
		}
		if _, ok := rule.Condition["isPublic"]; ok {
			return "public record"
		}
	}
	return "explicit grant"
}
