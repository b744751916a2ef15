package query

import (
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Clean removes empty strings, nils and empty containers at every depth.
// It returns nil when nothing remains.
func Clean(q dynis.Query) dynis.Query {
	out := cleanMap(q)
	if len(out) == 0 {
		return nil
	}
	return dynis.Query(out)
}

// Resolve returns the usable query of a saved query: the structured form
// when present, the decoded legacy form otherwise. The second result is
// false when the item set is not dynamic.
func Resolve(saved dynis.SavedQuery) (dynis.Query, bool) {
	q := saved.Query
	if len(q) == 0 && saved.Legacy != "" {
		q = ParseLegacy(saved.Legacy)
	}
	q = Clean(q)
	return q, q != nil
}

func cleanMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if cv, keep := cleanValue(v); keep {
			out[k] = cv
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case dynis.Query:
		m := cleanMap(val)
		return m, m != nil
	case map[string]any:
		m := cleanMap(val)
		return m, m != nil
	case []any:
		list := make([]any, 0, len(val))
		for _, item := range val {
			if cv, keep := cleanValue(item); keep {
				list = append(list, cv)
			}
		}
		return list, len(list) > 0
	case []string:
		list := make([]any, 0, len(val))
		for _, item := range val {
			if item != "" {
				list = append(list, item)
			}
		}
		return list, len(list) > 0
	default:
		return v, true
	}
}
