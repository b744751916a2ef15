package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntIDs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []int64
	}{
		{"nil", nil, nil},
		{"int", 4, []int64{4}},
		{"int64", int64(9), []int64{9}},
		{"json float", float64(12), []int64{12}},
		{"fractional float dropped", 1.5, nil},
		{"json number", json.Number("33"), []int64{33}},
		{"numeric string", " 8 ", []int64{8}},
		{"non numeric string", "none", nil},
		{"zero and negative dropped", []any{0, -3, "2"}, []int64{2}},
		{"duplicates removed in order", []any{"5", 3, 5, "3"}, []int64{5, 3}},
		{"int64 slice", []int64{2, 2, 1}, []int64{2, 1}},
		{"string slice", []string{"7", "x", "8"}, []int64{7, 8}},
		{"map values sorted by key", map[string]any{"1": "20", "0": "10"}, []int64{10, 20}},
		{"bool ignored", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntIDs(tt.input)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupeAndSorted(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, Dedupe([]int64{3, 1, 3, 2, 1}))
	assert.Equal(t, []int64{1, 2, 3}, Sorted([]int64{3, 1, 2}))
}
