package utils

import "strings"

// Lookup walks a nested map structure segment by segment and returns the value
// at the given dot-separated path. The walk succeeds only if every segment but
// the last resolves to a map; the final value may be of any type, including nil.
func Lookup(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = data
	for _, seg := range segments {
		m, ok := asStringMap(current)
		if !ok {
			return nil, false
		}
		v, exists := m[seg]
		if !exists {
			return nil, false
		}
		current = v
	}
	return current, true
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// CloneMap returns a deep copy of a nested map. Slices are copied shallowly;
// nested maps are cloned recursively.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = CloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
