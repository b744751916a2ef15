package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/dynis/pkg/dynis"
)

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  dynis.Query
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "only question mark",
			input: "?",
			want:  nil,
		},
		{
			name:  "scalars",
			input: "resource_class_id=12&fulltext_search=old+maps",
			want:  dynis.Query{"resource_class_id": "12", "fulltext_search": "old maps"},
		},
		{
			name:  "leading question mark and percent encoding",
			input: "?search=caf%C3%A9",
			want:  dynis.Query{"search": "café"},
		},
		{
			name:  "appended list",
			input: "item_set_id[]=3&item_set_id[]=4",
			want:  dynis.Query{"item_set_id": []any{"3", "4"}},
		},
		{
			name:  "indexed groups",
			input: "property[0][property]=dcterms:title&property[0][type]=eq&property[0][text]=Atlas&property[1][property]=dcterms:date&property[1][type]=ex",
			want: dynis.Query{"property": []any{
				map[string]any{"property": "dcterms:title", "type": "eq", "text": "Atlas"},
				map[string]any{"property": "dcterms:date", "type": "ex"},
			}},
		},
		{
			name:  "named nested map",
			input: "sort[by]=title&sort[order]=asc",
			want:  dynis.Query{"sort": map[string]any{"by": "title", "order": "asc"}},
		},
		{
			name:  "sparse numeric keys stay a map",
			input: "id[2]=5&id[7]=6",
			want:  dynis.Query{"id": map[string]any{"2": "5", "7": "6"}},
		},
		{
			name:  "dots and spaces in base key",
			input: "a.b=1&c+d=2",
			want:  dynis.Query{"a_b": "1", "c_d": "2"},
		},
		{
			name:  "unmatched first bracket becomes underscore",
			input: "a[b=1&c.d[e=2",
			want:  dynis.Query{"a_b": "1", "c_d_e": "2"},
		},
		{
			name:  "later unmatched bracket is dropped",
			input: "a[b][c=1",
			want:  dynis.Query{"a": map[string]any{"b": "1"}},
		},
		{
			name:  "key without value",
			input: "is_public&x=",
			want:  dynis.Query{"is_public": "", "x": ""},
		},
		{
			name:  "later scalar overrides",
			input: "a=1&a=2",
			want:  dynis.Query{"a": "2"},
		},
		{
			name:  "empty base skipped",
			input: "=1&[x]=2",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLegacy(tt.input))
		})
	}
}
