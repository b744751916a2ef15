package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// ParseLegacy decodes a URL-encoded query string with bracket syntax.
// Keys like a[]=1 append to a list, a[b]=1 nest a map, and sequential
// numeric keys become lists. It returns nil when nothing is decoded.
func ParseLegacy(s string) dynis.Query {
	s = strings.TrimPrefix(strings.TrimSpace(s), "?")
	if s == "" {
		return nil
	}

	root := newNode()
	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key := unescape(rawKey)
		value := unescape(rawValue)

		base, path := splitKey(key)
		if base == "" {
			continue
		}
		root.assign(append([]string{base}, path...), value)
	}

	if len(root.keys) == 0 {
		return nil
	}
	out, _ := root.export().(map[string]any)
	if out == nil {
		// Only numeric top-level keys; keep them as a map.
		out = root.exportMap()
	}
	return dynis.Query(out)
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// splitKey separates "a.b[c][]" into base "a_b" and path ["c", ""].
// When the first bracket is never closed it becomes part of the base as
// "_" ("a[b" is "a_b"). A later unmatched bracket ends the path and the
// remainder is ignored.
func splitKey(key string) (string, []string) {
	open := strings.IndexByte(key, '[')
	if open == 0 {
		return "", nil
	}
	if open < 0 {
		return sanitizeBase(key), nil
	}
	if !strings.Contains(key[open:], "]") {
		return sanitizeBase(key[:open]) + "_" + key[open+1:], nil
	}

	base := sanitizeBase(key[:open])
	var path []string
	rest := key[open:]
	for strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return base, path
}

func sanitizeBase(s string) string {
	return strings.NewReplacer(".", "_", " ", "_").Replace(s)
}

// node is an ordered, auto-indexing container mirroring form arrays.
type node struct {
	keys []string
	vals map[string]any
	next int
}

func newNode() *node {
	return &node{vals: make(map[string]any)}
}

func (n *node) assign(path []string, value string) {
	key := path[0]
	if key == "" {
		key = strconv.Itoa(n.next)
	}
	if i, err := strconv.Atoi(key); err == nil && i >= n.next {
		n.next = i + 1
	}

	if _, exists := n.vals[key]; !exists {
		n.keys = append(n.keys, key)
	}

	if len(path) == 1 {
		n.vals[key] = value
		return
	}

	child, ok := n.vals[key].(*node)
	if !ok {
		child = newNode()
		n.vals[key] = child
	}
	child.assign(path[1:], value)
}

// export returns []any when the keys are exactly 0..n-1 in order,
// map[string]any otherwise.
func (n *node) export() any {
	sequential := true
	for i, k := range n.keys {
		if k != strconv.Itoa(i) {
			sequential = false
			break
		}
	}
	if !sequential {
		return n.exportMap()
	}

	list := make([]any, 0, len(n.keys))
	for _, k := range n.keys {
		list = append(list, exportValue(n.vals[k]))
	}
	return list
}

func (n *node) exportMap() map[string]any {
	out := make(map[string]any, len(n.keys))
	for _, k := range n.keys {
		out[k] = exportValue(n.vals[k])
	}
	return out
}

func exportValue(v any) any {
	if child, ok := v.(*node); ok {
		return child.export()
	}
	return v
}
