package ability

import "time"

// PublicRuleset is the minimal anonymous ability: read anything explicitly
// marked public. It is the floor the builder degrades to for unknown users,
// users with no surviving grants, and catalog failures.
func PublicRuleset() Ruleset {
	return NewRuleset(Rule{
		Action:    ActionRead,
		Subject:   SubjectAll,
		Condition: map[string]any{"isPublic": true},
	})
}

// BuildRuleset derives the ordered, immutable Ruleset for one (user, context)
// pair from the raw grant list:
//
//  1. no grants at all -> the minimal public ruleset;
//  2. expired grants are discarded (none survive -> public ruleset again);
//  3. each surviving grant's condition template is resolved against the
//     context — grants without a condition become unconditional rules and
//     malformed templates become rules that can never be satisfied;
//  4. a synthetic organization-boundary read rule is appended when the
//     context carries a user organization;
//  5. an unconditional manage-all rule is appended when any surviving
//     role-sourced grant belongs to the system Super Admin role.
//
// The result is a pure function of (grants, context, now) and is never
// mutated after construction.
func BuildRuleset(grants []Grant, reqCtx Context, now time.Time) Ruleset {
	if len(grants) == 0 {
		return PublicRuleset()
	}

	active := make([]Grant, 0, len(grants))
	for _, g := range grants {
		if g.IsExpired(now) {
			continue
		}
		active = append(active, g)
	}
	if len(active) == 0 {
		return PublicRuleset()
	}

	rules := make([]Rule, 0, len(active)+2)
	superAdmin := false
	for _, g := range active {
		rules = append(rules, resolveGrant(g, reqCtx))
		if g.Source == SourceRole && g.Role == SuperAdminRoleName {
			superAdmin = true
		}
	}

	if orgID, ok := reqCtx.OrganizationID(); ok {
		// Organization-wide read floor: members always see records of
		// their own organization.
		rules = append(rules, Rule{
			Action:    ActionRead,
			Subject:   SubjectAll,
			Condition: map[string]any{"organizationId": orgID},
		})
	}

	if superAdmin {
		rules = append(rules, Rule{Action: ActionManage, Subject: SubjectAll})
	}

	return Ruleset{rules: rules}
}

// resolveGrant turns one unexpired grant into a rule. A malformed condition
// template neutralizes the rule instead of over-granting or crashing the
// build.
func resolveGrant(g Grant, reqCtx Context) Rule {
	rule := Rule{Action: g.Action, Subject: g.Subject}
	if g.Condition == nil {
		return rule
	}
	template, ok := g.Condition.(map[string]any)
	if !ok {
		rule.never = true
		return rule
	}
	resolved, err := ResolveTemplate(template, reqCtx)
	if err != nil {
		rule.never = true
		return rule
	}
	// an empty condition constrains nothing; normalize to unconditional so
	// it matches a nil instance too
	if len(resolved) == 0 {
		return rule
	}
	rule.Condition = resolved
	return rule
}
