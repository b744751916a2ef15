package job

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/vvka-141/dynis/internal/query"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Delta is the membership difference of one item set. ToAttach and
// ToDetach are disjoint and sorted.
type Delta struct {
	ItemSetID int64
	Current   []int64
	Desired   []int64
	ToAttach  []int64
	ToDetach  []int64
}

// Unchanged reports whether membership already matches the query.
func (d Delta) Unchanged() bool {
	return len(d.ToAttach) == 0 && len(d.ToDetach) == 0
}

// Reconciler computes deltas. It only reads.
type Reconciler struct {
	resources dynis.ResourceService
	logger    dynis.Logger
}

func NewReconciler(resources dynis.ResourceService, logger dynis.Logger) *Reconciler {
	if resources == nil {
		panic("resources cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Reconciler{resources: resources, logger: logger}
}

// Reconcile returns the delta of an item set. A missing item set or an
// empty query yields a skipped outcome and no error; the returned error is
// always fatal.
func (r *Reconciler) Reconcile(ctx context.Context, itemSetID int64, q dynis.Query) (Delta, Outcome, error) {
	outcome := Outcome{ItemSetID: itemSetID}
	fields := dynis.Fields{"item_set_id": itemSetID}

	if _, err := r.resources.Read(ctx, dynis.KindItemSets, itemSetID); err != nil {
		if errors.Is(err, dynis.ErrNotFound) {
			r.logger.Notice("Item set #{item_set_id} does not exist anymore and is skipped.", fields)
			outcome.Status, outcome.Reason = StatusSkipped, ReasonMissingItemSet
			return Delta{}, outcome, nil
		}
		return Delta{}, outcome, fmt.Errorf("read item set #%d: %w", itemSetID, err)
	}

	if len(q) == 0 {
		r.logger.Info("Item set #{item_set_id} has no query: items attached to it are kept.", fields)
		outcome.Status, outcome.Reason = StatusSkipped, ReasonNoQuery
		return Delta{}, outcome, nil
	}

	desired, err := r.resources.Search(ctx, dynis.KindItems, q)
	if err != nil {
		return Delta{}, outcome, fmt.Errorf("search items matching the query of item set #%d: %w", itemSetID, err)
	}
	current, err := r.resources.Search(ctx, dynis.KindItems, dynis.Query{"item_set_id": itemSetID})
	if err != nil {
		return Delta{}, outcome, fmt.Errorf("search items of item set #%d: %w", itemSetID, err)
	}

	delta := Diff(itemSetID, current, desired)
	r.logger.Verbose("Item set #{item_set_id}: {desired} matching items, {current} attached, {to_attach} to attach, {to_detach} to detach.", dynis.Fields{
		"item_set_id": itemSetID,
		"desired":     len(delta.Desired),
		"current":     len(delta.Current),
		"to_attach":   len(delta.ToAttach),
		"to_detach":   len(delta.ToDetach),
	})
	return delta, outcome, nil
}

// Diff builds a delta from raw id lists. Inputs are de-duplicated.
func Diff(itemSetID int64, current, desired []int64) Delta {
	current = query.Sorted(query.Dedupe(current))
	desired = query.Sorted(query.Dedupe(desired))
	toAttach, toDetach := lo.Difference(desired, current)
	slices.Sort(toAttach)
	slices.Sort(toDetach)
	return Delta{
		ItemSetID: itemSetID,
		Current:   current,
		Desired:   desired,
		ToAttach:  toAttach,
		ToDetach:  toDetach,
	}
}
