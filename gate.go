package ability

// Predicate is one boolean policy check over a ruleset, typically a closure
// over one or more Can calls.
type Predicate func(Ruleset) bool

// Gate combines the predicates a route guard declares into a single
// allow/deny decision.
type Gate struct {
	predicates []Predicate
}

// NewGate builds a gate from zero or more predicates. A gate with no
// predicates requires no policy and always allows; the caller is expected to
// rely on a separate authentication gate in that case.
func NewGate(predicates ...Predicate) Gate {
	g := Gate{predicates: make([]Predicate, len(predicates))}
	copy(g.predicates, predicates)
	return g
}

// Check returns true only if every predicate allows.
func (g Gate) Check(rs Ruleset) bool {
	for _, p := range g.predicates {
		if p == nil || !p(rs) {
			return false
		}
	}
	return true
}

// RequireCan is the common predicate: the ruleset must allow the action on
// the subject type without reference to a concrete record.
func RequireCan(action Action, subject SubjectType) Predicate {
	return func(rs Ruleset) bool { return rs.Can(action, subject, nil) }
}

// RequireCanInstance checks the action against one concrete record.
func RequireCanInstance(action Action, subject SubjectType, instance map[string]any) Predicate {
	return func(rs Ruleset) bool { return rs.Can(action, subject, instance) }
}
