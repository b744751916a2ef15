package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vvka-141/dynis/pkg/dynis"
)

func TestClean_RemovesEmptyValuesRecursively(t *testing.T) {
	in := dynis.Query{
		"resource_class_id": "",
		"item_set_id":       []any{"", nil},
		"property": []any{
			map[string]any{"property": "", "type": "", "text": ""},
			map[string]any{"property": "dcterms:title", "type": "ex", "text": ""},
		},
		"is_public": "0",
		"owner_id":  nil,
		"tags":      []string{"", "maps"},
	}

	got := Clean(in)

	assert.Equal(t, dynis.Query{
		"property": []any{
			map[string]any{"property": "dcterms:title", "type": "ex"},
		},
		"is_public": "0",
		"tags":      []any{"maps"},
	}, got)
}

func TestClean_AllEmptyReturnsNil(t *testing.T) {
	assert.Nil(t, Clean(dynis.Query{"a": "", "b": []any{}, "c": map[string]any{"d": ""}}))
	assert.Nil(t, Clean(nil))
}

func TestClean_KeepsFalseAndZero(t *testing.T) {
	got := Clean(dynis.Query{"is_public": false, "n": 0})

	assert.Equal(t, dynis.Query{"is_public": false, "n": 0}, got)
}

func TestResolve(t *testing.T) {
	t.Run("structured wins", func(t *testing.T) {
		q, ok := Resolve(dynis.SavedQuery{Query: dynis.Query{"a": "1"}, Legacy: "b=2"})
		assert.True(t, ok)
		assert.Equal(t, dynis.Query{"a": "1"}, q)
	})

	t.Run("legacy parsed", func(t *testing.T) {
		q, ok := Resolve(dynis.SavedQuery{Legacy: "resource_class_id=7&search="})
		assert.True(t, ok)
		assert.Equal(t, dynis.Query{"resource_class_id": "7"}, q)
	})

	t.Run("legacy yielding nothing is not dynamic", func(t *testing.T) {
		q, ok := Resolve(dynis.SavedQuery{Legacy: "search=&id[]="})
		assert.False(t, ok)
		assert.Nil(t, q)
	})

	t.Run("zero", func(t *testing.T) {
		_, ok := Resolve(dynis.SavedQuery{})
		assert.False(t, ok)
	})
}
