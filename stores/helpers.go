package stores

import (
	"time"

	"github.com/oarkflow/date"

	"github.com/medforge/ability"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// scanTime normalizes the driver-specific shapes a timestamp column can come
// back as. sqlite returns strings, other drivers time.Time or []byte.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func cloneRole(r *ability.Role) *ability.Role {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Permissions = append([]ability.PermissionDef(nil), r.Permissions...)
	return &dup
}
