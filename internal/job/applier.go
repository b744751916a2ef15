package job

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/vvka-141/dynis/internal/lock"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// statementOverhead is the size reserved for the INSERT header and the
// ON DUPLICATE KEY clause of one bulk statement.
const statementOverhead = 256

// Writer is what the applier needs from a backend.
type Writer interface {
	dynis.ResourceService
	dynis.BulkLinker
	dynis.UnitOfWork
}

// ApplyResult is the outcome of applying one delta.
type ApplyResult struct {
	Detached        int
	NewlyAttached   int
	AlreadyAttached int
	Failures        []dynis.ItemFailure

	// Chunks counts the chunks written, both phases included.
	Chunks  int
	Stopped bool
}

// Applier writes deltas in chunks, polling the stop signal before each one
// and flushing the unit of work after each one.
type Applier struct {
	writer Writer
	stop   dynis.StopSignal
	held   lock.Lock
	logger dynis.Logger
	config dynis.RunConfig
}

// NewApplier creates an applier. config must have defaults applied.
func NewApplier(writer Writer, stop dynis.StopSignal, logger dynis.Logger, config dynis.RunConfig) *Applier {
	if writer == nil {
		panic("writer cannot be nil")
	}
	if stop == nil {
		panic("stop signal cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Applier{writer: writer, stop: stop, logger: logger, config: config}
}

// WithLock refreshes held before each chunk.
func (a *Applier) WithLock(held lock.Lock) *Applier {
	a.held = held
	return a
}

// Apply makes membership match delta.Desired. In direct mode stale members
// are kept.
func (a *Applier) Apply(ctx context.Context, delta Delta) (ApplyResult, error) {
	if a.config.Direct {
		return a.applyDirect(ctx, delta)
	}
	return a.applyFull(ctx, delta)
}

func (a *Applier) applyDirect(ctx context.Context, delta Delta) (ApplyResult, error) {
	var result ApplyResult
	if len(delta.Desired) == 0 {
		return result, nil
	}

	size := DirectChunkSize(a.config.DirectChunkSize, a.config.MaxStatementBytes, slices.Max(delta.Desired), delta.ItemSetID)
	chunks := lo.Chunk(delta.Desired, size)
	total := len(delta.Desired)
	toAttach := lo.Keyify(delta.ToAttach)

	for i, chunk := range chunks {
		if stopped, err := a.shouldStop(ctx); err != nil || stopped {
			result.Stopped = stopped
			return result, err
		}
		if err := a.writer.LinkItems(ctx, delta.ItemSetID, chunk); err != nil {
			return result, fmt.Errorf("link items to item set #%d: %w", delta.ItemSetID, err)
		}
		if err := a.writer.Flush(ctx); err != nil {
			return result, fmt.Errorf("flush: %w", err)
		}
		result.Chunks++
		added := lo.CountBy(chunk, func(id int64) bool {
			_, ok := toAttach[id]
			return ok
		})
		result.NewlyAttached += added
		result.AlreadyAttached += len(chunk) - added
		a.progress("{count}/{total} items linked to item set #{item_set_id}.", "{total} items linked to item set #{item_set_id}.",
			delta.ItemSetID, i+1, size, total)
	}

	return result, nil
}

func (a *Applier) applyFull(ctx context.Context, delta Delta) (ApplyResult, error) {
	var result ApplyResult
	size := a.config.FullChunkSize

	detachOpts := dynis.UpdateOptions{IsPartial: true, ContinueOnError: true, CollectionAction: dynis.CollectionRemove}
	patch := dynis.Patch{ItemSetIDs: []int64{delta.ItemSetID}}

	for i, chunk := range lo.Chunk(delta.ToDetach, size) {
		if stopped, err := a.shouldStop(ctx); err != nil || stopped {
			result.Stopped = stopped
			return result, err
		}

		batch, err := a.writer.BatchUpdate(ctx, dynis.KindItems, chunk, patch, detachOpts)
		if err != nil {
			return result, fmt.Errorf("detach items from item set #%d: %w", delta.ItemSetID, err)
		}
		result.Detached += len(batch.Updated)
		for _, failure := range batch.Failures {
			if fatal(ctx, failure.Err) {
				return result, fmt.Errorf("detach item #%d from item set #%d: %w", failure.ID, delta.ItemSetID, failure.Err)
			}
			a.itemFailed("Item #{item_id} could not be detached from item set #{item_set_id}: {error}", delta.ItemSetID, failure)
			result.Failures = append(result.Failures, failure)
		}

		if err := a.writer.Flush(ctx); err != nil {
			return result, fmt.Errorf("flush: %w", err)
		}
		result.Chunks++
		a.progress("{count}/{total} items detached from item set #{item_set_id}.", "{total} items detached from item set #{item_set_id}.",
			delta.ItemSetID, i+1, size, len(delta.ToDetach))
	}

	attachOpts := dynis.UpdateOptions{IsPartial: true, CollectionAction: dynis.CollectionAppend}

	for i, chunk := range lo.Chunk(delta.ToAttach, size) {
		if stopped, err := a.shouldStop(ctx); err != nil || stopped {
			result.Stopped = stopped
			return result, err
		}

		for _, id := range chunk {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			item, err := a.writer.Read(ctx, dynis.KindItems, id)
			if err != nil {
				if fatal(ctx, err) {
					return result, fmt.Errorf("read item #%d: %w", id, err)
				}
				failure := dynis.ItemFailure{ID: id, Err: err}
				a.itemFailed("Item #{item_id} could not be read for item set #{item_set_id}: {error}", delta.ItemSetID, failure)
				result.Failures = append(result.Failures, failure)
				continue
			}
			// Membership may have changed since the delta was computed.
			if item.HasItemSet(delta.ItemSetID) {
				result.AlreadyAttached++
				continue
			}
			if err := a.writer.Update(ctx, dynis.KindItems, id, patch, attachOpts); err != nil {
				if fatal(ctx, err) {
					return result, fmt.Errorf("attach item #%d to item set #%d: %w", id, delta.ItemSetID, err)
				}
				failure := dynis.ItemFailure{ID: id, Err: err}
				a.itemFailed("Item #{item_id} could not be attached to item set #{item_set_id}: {error}", delta.ItemSetID, failure)
				result.Failures = append(result.Failures, failure)
				continue
			}
			result.NewlyAttached++
		}

		if err := a.writer.Flush(ctx); err != nil {
			return result, fmt.Errorf("flush: %w", err)
		}
		result.Chunks++
		a.progress("{count}/{total} new items attached to item set #{item_set_id}.", "{total} new items attached to item set #{item_set_id}.",
			delta.ItemSetID, i+1, size, len(delta.ToAttach))
	}

	return result, nil
}

// shouldStop refreshes the run lock, then polls the stop signal.
func (a *Applier) shouldStop(ctx context.Context) (bool, error) {
	if a.held != nil {
		if err := a.held.Refresh(ctx); err != nil {
			return false, err
		}
	}
	stopped, err := a.stop.ShouldStop(ctx)
	if err != nil {
		return false, fmt.Errorf("poll stop signal: %w", err)
	}
	return stopped, nil
}

// fatal reports whether err ends the run instead of failing one item: the
// store is gone or the run context is done.
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, dynis.ErrStoreUnavailable) || ctx.Err() != nil
}

func (a *Applier) itemFailed(message string, itemSetID int64, failure dynis.ItemFailure) {
	a.logger.Notice(message, dynis.Fields{
		"item_id":     failure.ID,
		"item_set_id": itemSetID,
		"error":       failure.Err.Error(),
	})
}

// progress logs count = min(chunks × size, total) of total, or the single
// form when everything fits in one chunk.
func (a *Applier) progress(message, single string, itemSetID int64, chunks, size, total int) {
	if total <= size {
		a.logger.Info(single, dynis.Fields{"total": total, "item_set_id": itemSetID})
		return
	}
	a.logger.Info(message, dynis.Fields{
		"count":       min(chunks*size, total),
		"total":       total,
		"item_set_id": itemSetID,
	})
}

// DirectChunkSize returns the number of ids per bulk statement: limit, or
// fewer when the worst-case encoded tuples would exceed maxStatementBytes.
// Each tuple is estimated as "(<maxItemID>,<itemSetID>),\n".
func DirectChunkSize(limit, maxStatementBytes int, maxItemID, itemSetID int64) int {
	tuple := len(fmt.Sprintf("(%d,%d),\n", maxItemID, itemSetID))
	fit := (maxStatementBytes - statementOverhead) / tuple
	size := min(limit, fit)
	if size < 1 {
		return 1
	}
	return size
}
