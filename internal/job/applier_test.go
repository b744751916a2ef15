package job

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/dynis/internal/logging"
	"github.com/vvka-141/dynis/internal/stopsignal"
	"github.com/vvka-141/dynis/internal/store/memory"
	"github.com/vvka-141/dynis/pkg/dynis"
)

func fullConfig(chunk int) dynis.RunConfig {
	return dynis.RunConfig{FullChunkSize: chunk}.WithDefaults()
}

func TestApplyFull_DetachesBeforeAttaching(t *testing.T) {
	s := bookStore()
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

	result, err := a.Apply(context.Background(), Diff(10, []int64{2, 3, 4}, []int64{1, 2, 3}))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Detached)
	assert.Equal(t, 1, result.NewlyAttached)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, []int64{1, 2, 3}, s.Members(10))

	var methods []string
	for _, op := range s.Ops() {
		if op.Kind == dynis.KindItems && (op.Method == "BatchUpdate" || op.Method == "Update") {
			methods = append(methods, op.Method)
		}
	}
	assert.Equal(t, []string{"BatchUpdate", "Update"}, methods)
}

func TestApplyFull_ChunksAreBoundedAndFlushed(t *testing.T) {
	s := memory.New().AddItemSet(12)
	s.AddItems(ids(1, 250))
	logger := logging.NewMemoryLogger()
	a := NewApplier(s, stopsignal.Never, logger, fullConfig(100))

	result, err := a.Apply(context.Background(), Diff(12, nil, ids(1, 250)))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 250, result.NewlyAttached)
	assert.Equal(t, []int{100, 100, 50}, updatesPerFlush(s, "Update"))
	assert.Equal(t, 3, s.Flushes())

	var progress []string
	for _, e := range logger.Find("new items attached to item set") {
		progress = append(progress, e.Message)
	}
	assert.Equal(t, []string{
		"100/250 new items attached to item set #12.",
		"200/250 new items attached to item set #12.",
		"250/250 new items attached to item set #12.",
	}, progress)
}

func TestApplyFull_DetachBatchesAreBounded(t *testing.T) {
	s := memory.New().AddItemSet(12)
	s.AddItems(ids(1, 230), 12)
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

	result, err := a.Apply(context.Background(), Diff(12, ids(1, 230), nil))
	require.NoError(t, err)

	assert.Equal(t, 230, result.Detached)
	assert.Empty(t, s.Members(12))
	batches := s.OpsOf("BatchUpdate")
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.IDs), 100)
	}
}

func TestApplyFull_PartialFailureIsolation(t *testing.T) {
	s := memory.New().AddItemSet(10)
	s.AddItems(ids(1, 5))
	s.AddItems(ids(6, 8), 10)
	s.FailRead(2, errors.New("read failed"))
	s.FailUpdate(3, errors.New("write failed"))
	s.FailUpdate(7, errors.New("locked"))
	logger := logging.NewMemoryLogger()
	a := NewApplier(s, stopsignal.Never, logger, fullConfig(2))

	result, err := a.Apply(context.Background(), Diff(10, ids(6, 8), ids(1, 5)))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Detached)
	assert.Equal(t, 3, result.NewlyAttached)
	assert.Len(t, result.Failures, 3)
	assert.Equal(t, []int64{1, 4, 5, 7}, s.Members(10))
	assert.Len(t, logger.Find("could not be detached"), 1)
	assert.Len(t, logger.Find("could not be read"), 1)
	assert.Len(t, logger.Find("could not be attached"), 1)
}

func TestApplyFull_SkipsItemsAttachedMeanwhile(t *testing.T) {
	s := memory.New().AddItemSet(10)
	s.AddItems([]int64{1}, 10)
	s.AddItems([]int64{2})
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

	// The delta is stale: item 1 was attached after it was computed.
	result, err := a.Apply(context.Background(), Diff(10, nil, []int64{1, 2}))
	require.NoError(t, err)

	assert.Equal(t, 1, result.AlreadyAttached)
	assert.Equal(t, 1, result.NewlyAttached)
	assert.Len(t, s.OpsOf("Update"), 1)
}

func TestApplyFull_StopsBetweenChunks(t *testing.T) {
	s := memory.New().AddItemSet(13)
	s.AddItems(ids(1, 300))
	a := NewApplier(s, stopAfterFlush(s, 1), logging.NewNullLogger(), fullConfig(100))

	result, err := a.Apply(context.Background(), Diff(13, nil, ids(1, 300)))
	require.NoError(t, err)

	assert.True(t, result.Stopped)
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, ids(1, 100), s.Members(13))
	assert.Len(t, s.OpsOf("Update"), 100)
}

func TestApply_StopSignalErrorIsFatal(t *testing.T) {
	boom := errors.New("redis down")
	stop := stopsignal.Func(func(context.Context) (bool, error) { return false, boom })
	s := bookStore()
	a := NewApplier(s, stop, logging.NewNullLogger(), fullConfig(100))

	_, err := a.Apply(context.Background(), Diff(10, nil, []int64{1}))
	assert.ErrorIs(t, err, boom)
}

func TestApply_FlushFailureIsFatal(t *testing.T) {
	boom := errors.New("commit failed")
	s := bookStore().FailFlush(boom)
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

	_, err := a.Apply(context.Background(), Diff(10, nil, []int64{1}))
	assert.ErrorIs(t, err, boom)
}

func TestApplyDirect_LinksDesiredAndKeepsStaleMembers(t *testing.T) {
	s := memory.New().AddItemSet(12)
	s.AddItems(ids(1, 250))
	s.AddItems([]int64{900}, 12)
	config := dynis.RunConfig{Direct: true, DirectChunkSize: 100}.WithDefaults()
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), config)

	result, err := a.Apply(context.Background(), Diff(12, []int64{900}, ids(1, 250)))
	require.NoError(t, err)

	links := s.OpsOf("LinkItems")
	require.Len(t, links, 3)
	assert.Len(t, links[0].IDs, 100)
	assert.Len(t, links[1].IDs, 100)
	assert.Len(t, links[2].IDs, 50)
	assert.Equal(t, 3, s.Flushes())
	assert.Equal(t, 250, result.NewlyAttached)
	assert.Equal(t, 0, result.Detached)
	assert.Contains(t, s.Members(12), int64(900))
	assert.Empty(t, s.OpsOf("BatchUpdate"))
	assert.Empty(t, s.OpsOf("Update"))
}

func TestApplyDirect_IsIdempotent(t *testing.T) {
	s := memory.New().AddItemSet(12)
	s.AddItems(ids(1, 10))
	config := dynis.RunConfig{Direct: true}.WithDefaults()
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), config)

	_, err := a.Apply(context.Background(), Diff(12, nil, ids(1, 10)))
	require.NoError(t, err)
	result, err := a.Apply(context.Background(), Diff(12, ids(1, 10), ids(1, 10)))
	require.NoError(t, err)

	assert.Equal(t, ids(1, 10), s.Members(12))
	assert.Equal(t, 10, result.AlreadyAttached)
	assert.Zero(t, result.NewlyAttached)
}

func TestDirectChunkSize(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		maxBytes int
		maxID    int64
		setID    int64
		want     int
	}{
		{"default limit wins", dynis.DefaultDirectChunkSize, dynis.DefaultMaxStatementBytes, 999999, 10, 100000},
		{"statement size wins", 100000, 1000, 999999, 10, 57},
		{"large ids shrink chunks", 100000, 1 << 20, 999999999999, 123456, 45579},
		{"never below one", 100000, 10, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DirectChunkSize(tt.limit, tt.maxBytes, tt.maxID, tt.setID))
		})
	}
}

func TestApplyFull_StoreUnavailableIsFatal(t *testing.T) {
	down := func(op string) error {
		return fmt.Errorf("%s: %w: connection reset", op, dynis.ErrStoreUnavailable)
	}

	t.Run("read", func(t *testing.T) {
		s := bookStore().FailRead(1, down("read items #1"))
		a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

		_, err := a.Apply(context.Background(), Diff(10, nil, []int64{1}))
		assert.ErrorIs(t, err, dynis.ErrStoreUnavailable)
		assert.Zero(t, s.Flushes())
	})

	t.Run("attach", func(t *testing.T) {
		s := bookStore().FailUpdate(1, down("update items #1"))
		a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

		_, err := a.Apply(context.Background(), Diff(10, nil, []int64{1}))
		assert.ErrorIs(t, err, dynis.ErrStoreUnavailable)
	})

	t.Run("detach", func(t *testing.T) {
		s := bookStore().FailUpdate(4, down("update items #4"))
		a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(100))

		_, err := a.Apply(context.Background(), Diff(10, []int64{4}, nil))
		assert.ErrorIs(t, err, dynis.ErrStoreUnavailable)
		assert.Contains(t, s.Members(10), int64(4))
	})
}

func TestApply_RefreshesLockBeforeEachChunk(t *testing.T) {
	s := memory.New().AddItemSet(13)
	s.AddItems(ids(1, 5))
	s.AddItems(ids(6, 7), 13)
	held := &countingLocker{}
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(2)).WithLock(held)

	result, err := a.Apply(context.Background(), Diff(13, ids(6, 7), ids(1, 5)))
	require.NoError(t, err)

	assert.Equal(t, 4, result.Chunks)
	assert.Equal(t, result.Chunks, held.refreshed)
}

func TestApply_ExpiredLockIsFatal(t *testing.T) {
	s := memory.New().AddItemSet(13)
	s.AddItems(ids(1, 5))
	held := &expiringLock{refreshes: 2}
	a := NewApplier(s, stopsignal.Never, logging.NewNullLogger(), fullConfig(1)).WithLock(held)

	result, err := a.Apply(context.Background(), Diff(13, nil, ids(1, 5)))
	assert.ErrorIs(t, err, dynis.ErrLockNotObtained)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, ids(1, 2), s.Members(13))
}

func TestApplyDirect_StoppedRunCountsWrittenChunks(t *testing.T) {
	s := memory.New().AddItemSet(12)
	s.AddItems(ids(1, 3))
	s.AddItems(ids(4, 6), 12)
	config := dynis.RunConfig{Direct: true, DirectChunkSize: 2}.WithDefaults()
	a := NewApplier(s, stopAfterFlush(s, 2), logging.NewNullLogger(), config)

	result, err := a.Apply(context.Background(), Diff(12, ids(4, 6), ids(1, 6)))
	require.NoError(t, err)

	assert.True(t, result.Stopped)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 3, result.NewlyAttached)
	assert.Equal(t, 1, result.AlreadyAttached)
}

// expiringLock refreshes successfully a fixed number of times.
type expiringLock struct {
	refreshes int
}

func (l *expiringLock) Refresh(context.Context) error {
	if l.refreshes == 0 {
		return fmt.Errorf("lock expired: %w", dynis.ErrLockNotObtained)
	}
	l.refreshes--
	return nil
}

func (l *expiringLock) Release(context.Context) error { return nil }
