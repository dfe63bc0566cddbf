package ability

import "reflect"

// Can answers a point-in-time authorization query against the ruleset.
//
// A rule matches the query when its subject is the queried subject type or
// the wildcard, and its action is the queried action or manage. Among
// matching rules, a rule is satisfied when it has no condition or every
// condition field equals the corresponding field of the instance (a missing
// instance field is never equal). Rules are accumulated additively and later
// rules override earlier ones for the same action/subject pair, so the last
// satisfied matching rule decides; with no deny construct this reduces to
// "any satisfied match allows". No satisfied match means deny.
func (r Ruleset) Can(action Action, subject SubjectType, instance map[string]any) bool {
	for i := len(r.rules) - 1; i >= 0; i-- {
		rule := r.rules[i]
		if !rule.matches(action, subject) {
			continue
		}
		if rule.satisfied(instance) {
			return true
		}
	}
	return false
}

// CanInstance classifies the instance with DetectSubjectType before querying.
// Intended for business logic that filters heterogeneous records.
func (r Ruleset) CanInstance(action Action, instance map[string]any) bool {
	return r.Can(action, DetectSubjectType(instance), instance)
}

func (ru Rule) matches(action Action, subject SubjectType) bool {
	if ru.Subject != subject && ru.Subject != SubjectAll {
		return false
	}
	return ru.Action == action || ru.Action == ActionManage
}

func (ru Rule) satisfied(instance map[string]any) bool {
	if ru.never {
		return false
	}
	if ru.Condition == nil {
		return true
	}
	return conditionMatches(ru.Condition, instance)
}

func conditionMatches(condition map[string]any, instance map[string]any) bool {
	if instance == nil {
		return false
	}
	for field, want := range condition {
		got, ok := instance[field]
		if !ok {
			return false
		}
		if nested, isMap := want.(map[string]any); isMap {
			inner, innerOk := got.(map[string]any)
			if !innerOk || !conditionMatches(nested, inner) {
				return false
			}
			continue
		}
		if !equalValues(want, got) {
			return false
		}
	}
	return true
}

// equalValues compares a resolved condition leaf against an instance field.
// Numeric values compare across int/int64/float64 since instances frequently
// arrive through JSON decoding.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
