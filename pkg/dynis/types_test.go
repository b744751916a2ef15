package dynis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfig_WithDefaults(t *testing.T) {
	cfg := RunConfig{}.WithDefaults()

	assert.Equal(t, DefaultFullChunkSize, cfg.FullChunkSize)
	assert.Equal(t, DefaultDirectChunkSize, cfg.DirectChunkSize)
	assert.Equal(t, DefaultMaxStatementBytes, cfg.MaxStatementBytes)
	assert.True(t, cfg.AllItemSets())
}

func TestRunConfig_WithDefaults_KeepsEmptyList(t *testing.T) {
	cfg := RunConfig{ItemSetIDs: []int64{}}.WithDefaults()

	require.NotNil(t, cfg.ItemSetIDs)
	assert.False(t, cfg.AllItemSets())
	assert.Empty(t, cfg.ItemSetIDs)
}

func TestRunConfig_WithDefaults_CopiesIDs(t *testing.T) {
	ids := []int64{3, 4}
	cfg := RunConfig{ItemSetIDs: ids}.WithDefaults()
	ids[0] = 99

	assert.Equal(t, []int64{3, 4}, cfg.ItemSetIDs)
}

func TestRunConfig_Validate(t *testing.T) {
	assert.NoError(t, RunConfig{ItemSetIDs: []int64{1}}.WithDefaults().Validate())
	assert.NoError(t, RunConfig{ItemSetIDs: []int64{0, -2}}.Validate())

	err := RunConfig{FullChunkSize: -1, MaxStatementBytes: -1}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "full chunk size")
	assert.Contains(t, err.Error(), "max statement bytes")
}

func TestSavedQuery_IsZero(t *testing.T) {
	assert.True(t, SavedQuery{}.IsZero())
	assert.False(t, SavedQuery{Legacy: "a=b"}.IsZero())
	assert.False(t, SavedQuery{Query: Query{"a": "b"}}.IsZero())
}

func TestResource_HasItemSet(t *testing.T) {
	r := &Resource{ID: 1, Kind: KindItems, ItemSetIDs: []int64{4, 7}}

	assert.True(t, r.HasItemSet(7))
	assert.False(t, r.HasItemSet(8))
}
