package mysql

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vvka-141/dynis/internal/store/sqlfilter"
	"github.com/vvka-141/dynis/pkg/dynis"
)

// Search implements dynis.ResourceService.
func (s *Store) Search(ctx context.Context, kind dynis.ResourceKind, filter dynis.Query) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := searchStatement(s.reader(ctx), kind, filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	ids := make([]int64, 0)
	if err := stmt.Scan(&ids).Error; err != nil {
		return nil, storeError("search "+string(kind), err)
	}
	return ids, nil
}

func searchStatement(tx *gorm.DB, kind dynis.ResourceKind, filter dynis.Query) (*gorm.DB, error) {
	where, args, err := sqlfilter.NewBuilder(sqlfilter.MySQL).
		Where("r.resource_type = ?", string(kind)).
		Filter(sqlfilter.Parse(filter)).
		Build()
	if err != nil {
		return nil, err
	}
	return tx.Raw("SELECT r.id FROM resource r WHERE "+where+" ORDER BY r.id", args...), nil
}

// Read implements dynis.ResourceService.
func (s *Store) Read(ctx context.Context, kind dynis.ResourceKind, id int64) (*dynis.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey{kind: kind, id: id}
	if r, ok := s.loaded[key]; ok {
		return cloneResource(r), nil
	}

	tx := s.reader(ctx)
	if err := exists(tx, kind, id); err != nil {
		return nil, err
	}
	r := &dynis.Resource{ID: id, Kind: kind, ItemSetIDs: []int64{}}
	err := tx.Model(&itemItemSet{}).Where("item_id = ?", id).Order("item_set_id").Pluck("item_set_id", &r.ItemSetIDs).Error
	if err != nil {
		return nil, storeError(fmt.Sprintf("read %s #%d", kind, id), err)
	}
	s.loaded[key] = r
	return cloneResource(r), nil
}

// Update implements dynis.ResourceService.
func (s *Store) Update(ctx context.Context, kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.writer(ctx)
	if err != nil {
		return err
	}
	return s.inSavepoint(tx, func(tx *gorm.DB) error {
		return s.apply(tx, kind, id, patch, opts)
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
		err := s.inSavepoint(tx, func(tx *gorm.DB) error {
			return s.apply(tx, kind, id, patch, opts)
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

// maxPlaceholders is the bind variable limit of one prepared statement
// (error 1390 beyond it).
const maxPlaceholders = 65535

// maxLinkRows keeps both the existence check (one var per id plus the kind)
// and the insert (two vars per row) under maxPlaceholders.
const maxLinkRows = (maxPlaceholders - 1) / 2

// LinkItems implements dynis.BulkLinker with multi-row
// INSERT ... ON DUPLICATE KEY UPDATE statements of at most maxLinkRows rows.
// Ids that are not items are skipped.
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

	for _, batch := range lo.Chunk(itemIDs, maxLinkRows) {
		var known []int64
		if err := knownItemsStatement(tx, batch, &known).Error; err != nil {
			return storeError(fmt.Sprintf("link items to item set #%d", itemSetID), err)
		}
		if len(known) == 0 {
			continue
		}
		if err := linkStatement(tx, itemSetID, known).Error; err != nil {
			return storeError(fmt.Sprintf("link items to item set #%d", itemSetID), err)
		}
		for _, id := range known {
			delete(s.loaded, identityKey{kind: dynis.KindItems, id: id})
		}
	}
	return nil
}

func knownItemsStatement(tx *gorm.DB, itemIDs []int64, known *[]int64) *gorm.DB {
	return tx.Model(&resourceRow{}).
		Where("id IN ? AND resource_type = ?", itemIDs, string(dynis.KindItems)).
		Pluck("id", known)
}

// linkStatement renders as INSERT ... ON DUPLICATE KEY UPDATE on MySQL.
func linkStatement(tx *gorm.DB, itemSetID int64, itemIDs []int64) *gorm.DB {
	rows := make([]itemItemSet, len(itemIDs))
	for i, id := range itemIDs {
		rows[i] = itemItemSet{ItemID: id, ItemSetID: itemSetID}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
}

func exists(tx *gorm.DB, kind dynis.ResourceKind, id int64) error {
	var count int64
	err := tx.Model(&resourceRow{}).Where("id = ? AND resource_type = ?", id, string(kind)).Count(&count).Error
	if err != nil {
		return storeError(fmt.Sprintf("read %s #%d", kind, id), err)
	}
	if count == 0 {
		return fmt.Errorf("%s #%d: %w", kind, id, dynis.ErrNotFound)
	}
	return nil
}

func (s *Store) apply(tx *gorm.DB, kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	if err := exists(tx, kind, id); err != nil {
		return err
	}
	defer delete(s.loaded, identityKey{kind: kind, id: id})

	err := tx.Model(&resourceRow{}).Where("id = ?", id).Update("modified", time.Now().UTC()).Error
	if err != nil {
		return itemError(fmt.Sprintf("update %s #%d", kind, id), err)
	}
	if kind != dynis.KindItems {
		return nil
	}

	switch opts.CollectionAction {
	case dynis.CollectionRemove:
		if patch.IsEmpty() {
			return nil
		}
		err = tx.Where("item_id = ? AND item_set_id IN ?", id, patch.ItemSetIDs).Delete(&itemItemSet{}).Error
	case dynis.CollectionReplace:
		if err = tx.Where("item_id = ?", id).Delete(&itemItemSet{}).Error; err == nil && !patch.IsEmpty() {
			err = s.appendItemSets(tx, id, patch.ItemSetIDs)
		}
	default:
		if patch.IsEmpty() {
			return nil
		}
		err = s.appendItemSets(tx, id, patch.ItemSetIDs)
	}
	if err != nil {
		return itemError(fmt.Sprintf("update item sets of %s #%d", kind, id), err)
	}
	return nil
}

func (s *Store) appendItemSets(tx *gorm.DB, itemID int64, itemSetIDs []int64) error {
	var known []int64
	err := tx.Model(&resourceRow{}).
		Where("id IN ? AND resource_type = ?", itemSetIDs, string(dynis.KindItemSets)).
		Pluck("id", &known).Error
	if err != nil || len(known) == 0 {
		return err
	}
	rows := make([]itemItemSet, len(known))
	for i, setID := range known {
		rows[i] = itemItemSet{ItemID: itemID, ItemSetID: setID}
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func cloneResource(r *dynis.Resource) *dynis.Resource {
	c := *r
	c.ItemSetIDs = slices.Clone(r.ItemSetIDs)
	return &c
}
