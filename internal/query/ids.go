package query

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// IntIDs normalizes a filter value to positive, de-duplicated ids in
// first-seen order. Scalars, lists and maps (values only) are accepted;
// anything that is not a positive integer is dropped.
func IntIDs(v any) []int64 {
	var out []int64
	collectIDs(v, &out)
	return lo.Uniq(out)
}

// Dedupe removes duplicate ids, keeping first-seen order.
func Dedupe(ids []int64) []int64 {
	return lo.Uniq(ids)
}

// Sorted returns a sorted copy of ids.
func Sorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func collectIDs(v any, out *[]int64) {
	switch val := v.(type) {
	case nil:
	case int:
		appendPositive(out, int64(val))
	case int32:
		appendPositive(out, int64(val))
	case int64:
		appendPositive(out, val)
	case float64:
		if val == math.Trunc(val) {
			appendPositive(out, int64(val))
		}
	case json.Number:
		if n, err := val.Int64(); err == nil {
			appendPositive(out, n)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			appendPositive(out, n)
		}
	case []int64:
		for _, n := range val {
			appendPositive(out, n)
		}
	case []int:
		for _, n := range val {
			appendPositive(out, int64(n))
		}
	case []string:
		for _, s := range val {
			collectIDs(s, out)
		}
	case []any:
		for _, item := range val {
			collectIDs(item, out)
		}
	case map[string]any:
		keys := lo.Keys(val)
		sort.Strings(keys)
		for _, k := range keys {
			collectIDs(val[k], out)
		}
	}
}

func appendPositive(out *[]int64, n int64) {
	if n > 0 {
		*out = append(*out, n)
	}
}
