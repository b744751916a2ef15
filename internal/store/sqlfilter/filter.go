// Package sqlfilter turns saved search queries into a typed filter and
// renders it as a SQL WHERE clause for the supported dialects.
package sqlfilter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vvka-141/dynis/internal/query"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// PropertyType is the comparison of a property clause.
type PropertyType string

const (
	PropertyEquals      PropertyType = "eq"
	PropertyNotEquals   PropertyType = "neq"
	PropertyContains    PropertyType = "in"
	PropertyNotContains PropertyType = "nin"
	PropertyExists      PropertyType = "ex"
	PropertyNotExists   PropertyType = "nex"
)

const defaultPropertyType = PropertyEquals

// PropertyClause is one property[n] group of a query.
type PropertyClause struct {
	// Property is the property term; empty matches any property.
	Property string
	Type     PropertyType
	Text     string

	// Or joins this clause to the previous ones with OR instead of AND.
	Or bool
}

// Negated reports whether the clause matches resources without a value.
func (p PropertyClause) Negated() bool {
	return p.Type == PropertyNotEquals || p.Type == PropertyNotContains || p.Type == PropertyNotExists
}

// Filter is the typed form of a query. Empty slices do not filter.
type Filter struct {
	IDs           []int64
	ItemSetIDs    []int64
	NotItemSetIDs []int64
	ClassIDs      []int64
	ClassTerms    []string
	TemplateIDs   []int64
	OwnerIDs      []int64
	IsPublic      *bool
	Search        string
	Properties    []PropertyClause
}

// Parse reads the supported keys of q. Unknown keys are ignored, as are
// values that cannot apply (non-numeric ids, empty strings).
func Parse(q dynis.Query) Filter {
	var f Filter
	f.IDs = query.IntIDs(q["id"])
	f.ItemSetIDs = query.IntIDs(q["item_set_id"])
	f.NotItemSetIDs = query.IntIDs(q["not_item_set_id"])
	f.ClassIDs = query.IntIDs(q["resource_class_id"])
	f.ClassTerms = append(stringValues(q["resource_class_term"]), stringValues(q["class"])...)
	f.TemplateIDs = query.IntIDs(q["resource_template_id"])
	f.OwnerIDs = query.IntIDs(q["owner_id"])
	f.IsPublic = boolValue(q["is_public"])

	if s := firstString(q["fulltext_search"]); s != "" {
		f.Search = s
	} else {
		f.Search = firstString(q["search"])
	}

	for _, group := range groups(q["property"]) {
		clause, ok := parseProperty(group)
		if ok {
			f.Properties = append(f.Properties, clause)
		}
	}
	return f
}

// IsEmpty reports whether the filter matches every resource.
func (f Filter) IsEmpty() bool {
	return len(f.IDs) == 0 && len(f.ItemSetIDs) == 0 && len(f.NotItemSetIDs) == 0 &&
		len(f.ClassIDs) == 0 && len(f.ClassTerms) == 0 && len(f.TemplateIDs) == 0 &&
		len(f.OwnerIDs) == 0 && f.IsPublic == nil && f.Search == "" && len(f.Properties) == 0
}

func parseProperty(group map[string]any) (PropertyClause, bool) {
	clause := PropertyClause{
		Property: firstString(group["property"]),
		Type:     PropertyType(strings.ToLower(firstString(group["type"]))),
		Text:     firstString(group["text"]),
		Or:       strings.EqualFold(firstString(group["joiner"]), "or"),
	}

	switch clause.Type {
	case "":
		clause.Type = defaultPropertyType
	case PropertyEquals, PropertyNotEquals, PropertyContains, PropertyNotContains, PropertyExists, PropertyNotExists:
	default:
		return PropertyClause{}, false
	}

	if clause.Type != PropertyExists && clause.Type != PropertyNotExists && clause.Text == "" {
		return PropertyClause{}, false
	}
	return clause, true
}

// groups accepts the list or the index-keyed map form of property[].
func groups(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, g := range t {
			if m, ok := g.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, errA := strconv.Atoi(keys[i])
			b, errB := strconv.Atoi(keys[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]map[string]any, 0, len(t))
		for _, k := range keys {
			if m, ok := t[k].(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case []map[string]any:
		return t
	default:
		return nil
	}
}

func stringValues(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
	case []any:
		for _, e := range t {
			out = append(out, stringValues(e)...)
		}
	case []string:
		for _, s := range t {
			out = append(out, stringValues(s)...)
		}
	default:
		if s := strings.TrimSpace(toString(t)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstString(v any) string {
	values := stringValues(v)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool, int, int32, int64, float64:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func boolValue(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case int:
		b = t != 0
	case int64:
		b = t != 0
	case float64:
		b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			b = true
		case "0", "false", "no":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}
