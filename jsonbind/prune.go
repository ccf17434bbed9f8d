package jsonbind

// Prune returns a copy of m with null values, empty lists and empty maps
// removed, recursively. Zero numbers, false and empty strings are real values
// and survive. List elements are pruned but never dropped: element positions
// are meaningful on the wire.
func Prune(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		pv := pruneNested(v)
		if isEmpty(pv) {
			continue
		}
		out[k] = pv
	}
	return out
}

func pruneNested(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Prune(t)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = pruneNested(el)
		}
		return out
	default:
		return v
	}
}

// isEmpty reports whether v is platform noise: null, an empty list or an
// empty map.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
