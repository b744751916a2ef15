package job

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/vvka-141/dynis/internal/logging"
	"github.com/vvka-141/dynis/internal/stopsignal"
	"github.com/vvka-141/dynis/internal/store/memory"
	"github.com/vvka-141/dynis/pkg/dynis"
)

func ids(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}

// bookStore returns item sets 10 and 11 with books 1..3 and map 4.
// Items 2, 3 and 4 belong to 10.
func bookStore() *memory.Store {
	s := memory.New().AddItemSet(10).AddItemSet(11)
	s.AddItem(memory.Resource{ID: 1, ClassTerm: "book"})
	s.AddItem(memory.Resource{ID: 2, ClassTerm: "book", ItemSetIDs: []int64{10}})
	s.AddItem(memory.Resource{ID: 3, ClassTerm: "book", ItemSetIDs: []int64{10}})
	s.AddItem(memory.Resource{ID: 4, ClassTerm: "map", ItemSetIDs: []int64{10}})
	return s
}

func mustSet(t *testing.T, s *memory.Store, itemSetID int64, q dynis.Query) {
	t.Helper()
	if err := s.Set(context.Background(), itemSetID, q); err != nil {
		t.Fatal(err)
	}
}

// stopAfterFlush returns a signal that is set once the store flushed n times.
func stopAfterFlush(s *memory.Store, n int) dynis.StopSignal {
	var stop atomic.Bool
	s.OnFlush(func(count int) {
		if count >= n {
			stop.Store(true)
		}
	})
	return stopsignal.Func(func(context.Context) (bool, error) {
		return stop.Load(), nil
	})
}

// updatesPerFlush splits the recorded item writes by flush.
func updatesPerFlush(s *memory.Store, method string) []int {
	var (
		sizes   []int
		current int
	)
	for _, op := range s.Ops() {
		switch {
		case op.Method == method && op.Kind == dynis.KindItems:
			current += len(op.IDs)
		case op.Method == "Flush":
			if current > 0 {
				sizes = append(sizes, current)
			}
			current = 0
		}
	}
	return sizes
}

func newJob(s *memory.Store, opts ...Option) (*AttachItemsToItemSets, *logging.MemoryLogger) {
	logger := logging.NewMemoryLogger()
	return NewAttachItemsToItemSets(s, logger, opts...), logger
}
