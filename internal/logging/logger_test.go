package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/dynis/pkg/dynis"
)

func TestInterpolate(t *testing.T) {
	got := Interpolate("{count}/{total} new items attached to item set #{item_set_id}.",
		dynis.Fields{"count": 100, "total": 250, "item_set_id": int64(12)})

	assert.Equal(t, "100/250 new items attached to item set #12.", got)
	assert.Equal(t, "left {alone}", Interpolate("left {alone}", dynis.Fields{"x": 1}))
	assert.Equal(t, "plain", Interpolate("plain", nil))
}

func TestLogger_JSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Format: FormatJSON})

	logger.With(dynis.Fields{"reference_id": "job_1"}).
		Info("Processing attach/detach items from {total} item sets.", dynis.Fields{"total": 3})

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "Processing attach/detach items from 3 item sets.", event["msg"])
	assert.Equal(t, "info", event["level"])
	assert.Equal(t, "job_1", event["reference_id"])
	assert.Equal(t, float64(3), event["total"])
}

func TestLogger_NoticeIsWarnWithSeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Format: FormatJSON})

	logger.Notice("Item set #{item_set_id} skipped.", dynis.Fields{"item_set_id": 9})

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warning", event["level"])
	assert.Equal(t, "notice", event["severity"])
}

func TestLogger_VerboseOnlyWhenEnabled(t *testing.T) {
	var quiet, loud bytes.Buffer

	New(Options{Output: &quiet, Format: FormatText}).Verbose("hidden", nil)
	New(Options{Output: &loud, Format: FormatText, Verbose: true}).Verbose("shown", nil)

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "shown")
}

func TestLogger_AutoFormatOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf}).Error("failed", nil)

	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
}

func TestMemoryLogger_SharedRecordsAndFields(t *testing.T) {
	root := NewMemoryLogger()
	child := root.With(dynis.Fields{"reference_id": "r"})

	root.Info("a {x}", dynis.Fields{"x": 1})
	child.Notice("b", nil)

	entries := root.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a 1", entries[0].Message)
	assert.Equal(t, "notice", entries[1].Level)
	assert.Equal(t, "r", entries[1].Fields["reference_id"])
	assert.Len(t, root.Find("b"), 1)
}

func TestMemoryLogger_ConcurrentSafety(t *testing.T) {
	logger := NewMemoryLogger()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.Info("message {id}", dynis.Fields{"id": id})
			logger.With(dynis.Fields{"g": id}).Verbose("verbose", nil)
		}(i)
	}
	wg.Wait()

	assert.Len(t, logger.Entries(), 20)
}

func TestNullLogger(t *testing.T) {
	var l dynis.Logger = NewNullLogger()
	l.Info("x", nil)
	assert.Same(t, l, l.With(dynis.Fields{"a": 1}))
}
