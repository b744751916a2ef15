package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/dynis/internal/store/sqlfilter"
	"github.com/vvka-141/dynis/pkg/dynis"
)

const (
	readResourceSQL = `
SELECT r.id,
       COALESCE(array_agg(iis.item_set_id ORDER BY iis.item_set_id)
                FILTER (WHERE iis.item_set_id IS NOT NULL), '{}')
FROM resource r
LEFT JOIN item_item_set iis ON iis.item_id = r.id
WHERE r.id = $1 AND r.resource_type = $2
GROUP BY r.id`

	touchResourceSQL = `UPDATE resource SET modified = now() WHERE id = $1 AND resource_type = $2`

	appendItemSetsSQL = `
INSERT INTO item_item_set (item_id, item_set_id)
SELECT $1::bigint, r.id FROM resource r WHERE r.id = ANY($2) AND r.resource_type = 'item_sets'
ON CONFLICT DO NOTHING`

	removeItemSetsSQL = `DELETE FROM item_item_set WHERE item_id = $1 AND item_set_id = ANY($2)`

	clearItemSetsSQL = `DELETE FROM item_item_set WHERE item_id = $1`

	linkItemsSQL = `
INSERT INTO item_item_set (item_id, item_set_id)
SELECT r.id, $2::bigint FROM resource r WHERE r.id = ANY($1) AND r.resource_type = 'items'
ON CONFLICT DO NOTHING`
)

// Search implements dynis.ResourceService.
func (s *Store) Search(ctx context.Context, kind dynis.ResourceKind, filter dynis.Query) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args, err := sqlfilter.NewBuilder(sqlfilter.Postgres).
		Where("r.resource_type = ?", string(kind)).
		Filter(sqlfilter.Parse(filter)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}

	rows, err := s.reader().Query(ctx, "SELECT r.id FROM resource r WHERE "+where+" ORDER BY r.id", args...)
	if err != nil {
		return nil, storeError("search "+string(kind), err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, storeError("search "+string(kind), err)
	}
	return ids, nil
}

// Read implements dynis.ResourceService. Loaded resources are kept in the
// identity map until the next flush.
func (s *Store) Read(ctx context.Context, kind dynis.ResourceKind, id int64) (*dynis.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{kind: kind, id: id}
	if r, ok := s.loaded[key]; ok {
		return cloneResource(r), nil
	}

	r := &dynis.Resource{Kind: kind}
	err := s.reader().QueryRow(ctx, readResourceSQL, id, string(kind)).Scan(&r.ID, &r.ItemSetIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s #%d: %w", kind, id, dynis.ErrNotFound)
	}
	if err != nil {
		return nil, storeError(fmt.Sprintf("read %s #%d", kind, id), err)
	}
	s.loaded[key] = r
	return cloneResource(r), nil
}

// Update implements dynis.ResourceService. The write is isolated in a
// savepoint so a failure leaves the chunk transaction usable.
func (s *Store) Update(ctx context.Context, kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	return s.inSavepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.apply(ctx, sp, kind, id, patch, opts)
	})
}

// BatchUpdate implements dynis.ResourceService.
func (s *Store) BatchUpdate(ctx context.Context, kind dynis.ResourceKind, ids []int64, patch dynis.Patch, opts dynis.UpdateOptions) (dynis.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result dynis.BatchResult
	tx, err := s.writer(ctx)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		err := s.inSavepoint(ctx, tx, func(sp pgx.Tx) error {
			return s.apply(ctx, sp, kind, id, patch, opts)
		})
		if err != nil {
			if !opts.ContinueOnError || errors.Is(err, dynis.ErrStoreUnavailable) {
				return result, err
			}
			result.Failures = append(result.Failures, dynis.ItemFailure{ID: id, Err: err})
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	return result, nil
}

// LinkItems implements dynis.BulkLinker. Ids that are not items are skipped.
func (s *Store) LinkItems(ctx context.Context, itemSetID int64, itemIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(itemIDs) == 0 {
		return nil
	}
	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, linkItemsSQL, itemIDs, itemSetID); err != nil {
		return storeError(fmt.Sprintf("link items to item set #%d", itemSetID), err)
	}
	for _, id := range itemIDs {
		delete(s.loaded, identityKey{kind: dynis.KindItems, id: id})
	}
	return nil
}

func (s *Store) inSavepoint(ctx context.Context, tx pgx.Tx, fn func(sp pgx.Tx) error) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return storeError("savepoint", err)
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return storeError("rollback savepoint", rbErr)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return storeError("release savepoint", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx pgx.Tx, kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	tag, err := tx.Exec(ctx, touchResourceSQL, id, string(kind))
	if err != nil {
		return itemError(fmt.Sprintf("update %s #%d", kind, id), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s #%d: %w", kind, id, dynis.ErrNotFound)
	}
	defer delete(s.loaded, identityKey{kind: kind, id: id})

	if kind != dynis.KindItems {
		return nil
	}

	switch opts.CollectionAction {
	case dynis.CollectionRemove:
		if patch.IsEmpty() {
			return nil
		}
		_, err = tx.Exec(ctx, removeItemSetsSQL, id, patch.ItemSetIDs)
	case dynis.CollectionReplace:
		if _, err = tx.Exec(ctx, clearItemSetsSQL, id); err == nil && !patch.IsEmpty() {
			_, err = tx.Exec(ctx, appendItemSetsSQL, id, patch.ItemSetIDs)
		}
	default:
		if patch.IsEmpty() {
			return nil
		}
		_, err = tx.Exec(ctx, appendItemSetsSQL, id, patch.ItemSetIDs)
	}
	if err != nil {
		return itemError(fmt.Sprintf("update item sets of %s #%d", kind, id), err)
	}
	return nil
}

func cloneResource(r *dynis.Resource) *dynis.Resource {
	c := *r
	c.ItemSetIDs = slices.Clone(r.ItemSetIDs)
	return &c
}
