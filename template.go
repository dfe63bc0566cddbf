package ability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/medforge/ability/utils"
)

// Condition templates are trees of string keys to literal values, nested
// templates, or variable references: strings beginning with '$' followed by a
// dot-path into the request context (e.g. "$user.organizationId").

// maxTemplateDepth bounds template recursion so a cyclic template degrades to
// a malformed-template error instead of overflowing the stack.
const maxTemplateDepth = 32

// ErrMalformedTemplate is returned when a condition template is not a map
// tree or exceeds the nesting bound. The builder turns such grants into rules
// that can never be satisfied rather than failing the whole build.
var ErrMalformedTemplate = errors.New("ability: malformed condition template")

// ResolveTemplate resolves a condition template against the request context,
// producing the concrete condition for one rule. Leaf strings starting with
// '$' are replaced by the context value at their dot-path; if the walk fails
// at any segment the leaf keeps its original literal text. Nested maps are
// resolved recursively; arrays are left as literals. A nil template resolves
// to nil (unconditional).
func ResolveTemplate(template map[string]any, ctx Context) (map[string]any, error) {
	if template == nil {
		return nil, nil
	}
	resolved, err := resolveValue(template, ctx, 0)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

func resolveValue(v any, ctx Context, depth int) (any, error) {
	if depth > maxTemplateDepth {
		return nil, ErrMalformedTemplate
	}
	switch vv := v.(type) {
	case string:
		if strings.HasPrefix(vv, "$") {
			if val, ok := utils.Lookup(ctx, vv[1:]); ok {
				return val, nil
			}
			// Unresolvable path: keep the literal text. Preserved source
			// behavior; see ValidateTemplate for the write-time guard.
			return vv, nil
		}
		return vv, nil
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, nested := range vv {
			r, err := resolveValue(nested, ctx, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return vv, nil
	}
}

// ValidateTemplate checks a raw condition template at write time: it must be
// a (possibly nested) map with plain string keys. Keys starting with '$'
// (operator-style conditions such as "$eq"/"$in") are rejected outright —
// build-time resolution only performs variable substitution, so accepting
// them would silently mismatch.
func ValidateTemplate(template any) error {
	if template == nil {
		return nil
	}
	m, ok := template.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: expected a map, got %T", ErrMalformedTemplate, template)
	}
	return validateTemplateMap(m, 0)
}

func validateTemplateMap(m map[string]any, depth int) error {
	if depth > maxTemplateDepth {
		return fmt.Errorf("%w: nesting exceeds %d levels", ErrMalformedTemplate, maxTemplateDepth)
	}
	for k, v := range m {
		if strings.HasPrefix(k, "$") {
			return fmt.Errorf("%w: operator-style key %q is not supported", ErrMalformedTemplate, k)
		}
		if nested, ok := v.(map[string]any); ok {
			if err := validateTemplateMap(nested, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
