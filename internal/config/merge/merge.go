// Package merge implements the deep merge used to combine configuration
// values from the config file, inline overrides and plugin hooks.
//
// Only map[string]any and []any are treated as structure. Every other value,
// including functions, plugin instances and compiled patterns, is atomic and
// is carried by reference.
package merge

// Merge returns a new map combining left and right.
//
// Keys present in both are combined as follows:
//   - both values are maps: merged recursively
//   - both values are slices: left followed by right
//   - otherwise: the right value wins
//
// A nil right value never erases the left one. Neither input is modified.
func Merge(left, right map[string]any) map[string]any {
	result := Clone(left)
	if result == nil {
		result = make(map[string]any, len(right))
	}

	for key, rightVal := range right {
		if rightVal == nil {
			continue
		}
		leftVal, exists := result[key]
		if !exists || leftVal == nil {
			result[key] = cloneValue(rightVal)
			continue
		}
		result[key] = mergeValues(leftVal, rightVal)
	}

	return result
}

func mergeValues(left, right any) any {
	switch r := right.(type) {
	case map[string]any:
		if l, ok := left.(map[string]any); ok {
			return Merge(l, r)
		}
	case []any:
		if l, ok := left.([]any); ok {
			out := make([]any, 0, len(l)+len(r))
			out = append(out, cloneSlice(l)...)
			return append(out, cloneSlice(r)...)
		}
	}
	return cloneValue(right)
}

// Clone returns a deep copy of the plain-data structure of m. Atomic values
// are shared with the original.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a shallow copy of m with the given top-level keys removed.
func Without(m map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		return cloneSlice(v)
	default:
		return val
	}
}

func cloneSlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = cloneValue(v)
	}
	return out
}
