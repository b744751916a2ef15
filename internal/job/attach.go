package job

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/vvka-141/dynis/internal/lock"
	"github.com/vvka-141/dynis/internal/query"
	"github.com/vvka-141/dynis/internal/stopsignal"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Backend is what a run needs from the host persistence.
type Backend interface {
	dynis.QueryStore
	Writer
}

// AttachItemsToItemSets attaches the items matching the saved query of
// each dynamic item set and detaches the ones that no longer match.
type AttachItemsToItemSets struct {
	backend Backend
	logger  dynis.Logger
	stop    dynis.StopSignal
	locker  lock.Locker
	lockKey string
}

// Option configures AttachItemsToItemSets.
type Option func(*AttachItemsToItemSets)

// WithStopSignal sets the signal polled before each item set and chunk.
func WithStopSignal(stop dynis.StopSignal) Option {
	return func(j *AttachItemsToItemSets) {
		if stop != nil {
			j.stop = stop
		}
	}
}

// WithLocker makes runs exclusive on key.
func WithLocker(locker lock.Locker, key string) Option {
	return func(j *AttachItemsToItemSets) {
		if locker != nil {
			j.locker = locker
		}
		if key != "" {
			j.lockKey = key
		}
	}
}

// NewAttachItemsToItemSets creates the job. Without options it never stops
// early and takes no lock.
func NewAttachItemsToItemSets(backend Backend, logger dynis.Logger, opts ...Option) *AttachItemsToItemSets {
	if backend == nil {
		panic("backend cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	j := &AttachItemsToItemSets{
		backend: backend,
		logger:  logger,
		stop:    stopsignal.Never,
		locker:  lock.Noop{},
		lockKey: lock.DefaultKey,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ReferenceID is the value of the reference_id field of every log event of
// a run.
func ReferenceID(jobID string) string {
	return dynis.ReferenceIDPrefix + jobID
}

// Run processes the item sets of config. Per item set problems are
// reported in the outcomes; the returned error is fatal and means the run
// failed.
func (j *AttachItemsToItemSets) Run(ctx context.Context, config dynis.RunConfig) (Report, error) {
	if err := config.Validate(); err != nil {
		return Report{JobID: config.JobID}, err
	}
	config = config.WithDefaults()
	if config.JobID == "" {
		config.JobID = uuid.NewString()
	}

	report := Report{JobID: config.JobID}
	logger := j.logger.With(dynis.Fields{"reference_id": ReferenceID(config.JobID)})

	if !config.AllItemSets() && len(config.ItemSetIDs) == 0 {
		logger.Info("No item set to process.", nil)
		return report, nil
	}

	held, err := j.locker.Obtain(ctx, j.lockKey)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Notice("Job lock could not be released: {error}", dynis.Fields{"error": err.Error()})
		}
	}()

	queries, err := j.backend.All(ctx)
	if err != nil {
		return report, fmt.Errorf("load item set queries: %w", err)
	}

	itemSetIDs := config.ItemSetIDs
	if config.AllItemSets() {
		itemSetIDs = query.Sorted(lo.Keys(queries))
	}

	logger.Info("Processing attach/detach items from {total} item sets.", dynis.Fields{"total": len(itemSetIDs)})

	itemSetIDs = query.Dedupe(itemSetIDs)

	itemSetIDs, err = j.existing(ctx, logger, itemSetIDs, &report)
	if err != nil {
		return report, err
	}

	targets := j.resolveQueries(ctx, logger, itemSetIDs, queries, &report)
	if len(targets) == 0 {
		logger.Info("No more item sets to process.", nil)
		return report, nil
	}

	if config.Direct {
		logger.Notice("Direct mode only attaches matching items: items that no longer match are not detached.", nil)
	}

	reconciler := NewReconciler(j.backend, logger)
	applier := NewApplier(j.backend, j.stop, logger, config).WithLock(held)

	for i, target := range targets {
		stopped, err := j.stop.ShouldStop(ctx)
		if err != nil {
			return report, fmt.Errorf("poll stop signal: %w", err)
		}
		if stopped {
			j.markStopped(&report, targets[i:])
			break
		}
		if err := held.Refresh(ctx); err != nil {
			return report, err
		}

		outcome, err := j.process(ctx, logger, reconciler, applier, config, target)
		if err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == StatusStopped {
			j.markStopped(&report, targets[i+1:])
			break
		}
	}

	if report.Stopped {
		logger.Info("Processing attach/detach items from {total} item sets stopped.", dynis.Fields{"total": len(targets)})
		return report, nil
	}

	logger.Info("Processing attach/detach items from {total} item sets ended.", dynis.Fields{"total": len(targets)})
	return report, nil
}

type target struct {
	itemSetID int64
	query     dynis.Query
}

// existing drops the ids that do not resolve to an item set. Non-positive
// ids never do.
func (j *AttachItemsToItemSets) existing(ctx context.Context, logger dynis.Logger, ids []int64, report *Report) ([]int64, error) {
	missing, valid := lo.FilterReject(ids, func(id int64, _ int) bool { return id <= 0 })

	if len(valid) > 0 {
		found, err := j.backend.Search(ctx, dynis.KindItemSets, dynis.Query{"id": lo.ToAnySlice(valid)})
		if err != nil {
			return nil, fmt.Errorf("list item sets: %w", err)
		}
		unknown, _ := lo.Difference(valid, found)
		missing = append(missing, unknown...)
		valid = lo.Without(valid, unknown...)
	}

	if len(missing) > 0 {
		logger.Notice("The following item sets do not exist or you don’t have the right to manage them: #{item_set_ids}.",
			dynis.Fields{"item_set_ids": joinIDs(missing)})
		for _, id := range missing {
			report.Outcomes = append(report.Outcomes, Outcome{ItemSetID: id, Status: StatusSkipped, Reason: ReasonMissingItemSet})
		}
	}
	return valid, nil
}

// resolveQueries keeps the item sets with a usable query. Legacy string
// queries are rewritten in structured form.
func (j *AttachItemsToItemSets) resolveQueries(ctx context.Context, logger dynis.Logger, ids []int64, queries map[int64]dynis.SavedQuery, report *Report) []target {
	var (
		targets      []target
		withoutQuery []int64
	)

	for _, id := range ids {
		saved := queries[id]
		q, ok := query.Resolve(saved)
		if !ok {
			withoutQuery = append(withoutQuery, id)
			continue
		}
		if len(saved.Query) == 0 && saved.Legacy != "" {
			if err := j.backend.Set(ctx, id, q); err != nil {
				logger.Notice("The query of item set #{item_set_id} could not be normalized: {error}",
					dynis.Fields{"item_set_id": id, "error": err.Error()})
			}
		}
		targets = append(targets, target{itemSetID: id, query: q})
	}

	if len(withoutQuery) > 0 {
		logger.Info("The following item sets have no more query and items attached to it are kept: #{item_set_ids}.",
			dynis.Fields{"item_set_ids": joinIDs(withoutQuery)})
		for _, id := range withoutQuery {
			report.Outcomes = append(report.Outcomes, Outcome{ItemSetID: id, Status: StatusSkipped, Reason: ReasonNoQuery})
		}
	}
	return targets
}

func (j *AttachItemsToItemSets) process(ctx context.Context, logger dynis.Logger, reconciler *Reconciler, applier *Applier, config dynis.RunConfig, t target) (Outcome, error) {
	delta, outcome, err := reconciler.Reconcile(ctx, t.itemSetID, t.query)
	if err != nil || outcome.Status == StatusSkipped {
		return outcome, err
	}

	result, err := applier.Apply(ctx, delta)
	if err != nil {
		return outcome, err
	}

	outcome.Detached = result.Detached
	outcome.NewlyAttached = result.NewlyAttached
	outcome.AlreadyAttached = result.AlreadyAttached
	outcome.Failures = result.Failures
	outcome.Attached = len(delta.Current) - result.Detached + result.NewlyAttached
	fields := dynis.Fields{"item_set_id": t.itemSetID}

	if result.Stopped {
		outcome.Status, outcome.Reason = StatusStopped, ReasonStopRequested
		logger.Info("Process stopped for item set #{item_set_id}.", fields)
		return outcome, nil
	}
	outcome.Status = StatusApplied

	if config.Direct {
		outcome.Attached = len(delta.Desired) + len(delta.ToDetach)
		fields["count"] = len(delta.Desired)
		logger.Info("Process ended for item set #{item_set_id}: {count} items are attached.", fields)
		return outcome, nil
	}

	// Touch the item set so host hooks run. The query is unchanged, so the
	// hooks do not dispatch this job again.
	if err := j.backend.Update(ctx, dynis.KindItemSets, t.itemSetID, dynis.Patch{}, dynis.UpdateOptions{IsPartial: true}); err != nil {
		logger.Notice("Item set #{item_set_id} could not be updated: {error}", dynis.Fields{"item_set_id": t.itemSetID, "error": err.Error()})
	}
	if err := j.backend.Flush(ctx); err != nil {
		return outcome, fmt.Errorf("flush: %w", err)
	}

	fields["attached"] = outcome.Attached
	fields["detached"] = outcome.Detached
	fields["new"] = outcome.NewlyAttached
	logger.Info("Process ended for item set #{item_set_id}: {attached} items were attached, {detached} items were detached, {new} new items were attached.", fields)
	if len(outcome.Failures) > 0 {
		logger.Notice("{count} items of item set #{item_set_id} could not be processed.",
			dynis.Fields{"item_set_id": t.itemSetID, "count": len(outcome.Failures)})
	}
	return outcome, nil
}

func (j *AttachItemsToItemSets) markStopped(report *Report, remaining []target) {
	report.Stopped = true
	for _, t := range remaining {
		report.Outcomes = append(report.Outcomes, Outcome{ItemSetID: t.itemSetID, Status: StatusStopped, Reason: ReasonStopRequested})
	}
}

// joinIDs renders ids as "1, #2, #3" for the "#{item_set_ids}" placeholder.
func joinIDs(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", #")
}
