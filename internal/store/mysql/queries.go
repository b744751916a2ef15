package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Get implements dynis.QueryStore.
func (s *Store) Get(ctx context.Context, itemSetID int64) (dynis.SavedQuery, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row dynamicItemSetQuery
	err := s.reader(ctx).Take(&row, "item_set_id = ?", itemSetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dynis.SavedQuery{}, false, nil
	}
	if err != nil {
		return dynis.SavedQuery{}, false, storeError(fmt.Sprintf("get query of item set #%d", itemSetID), err)
	}
	saved, err := decodeSavedQuery(row.Query)
	if err != nil {
		return dynis.SavedQuery{}, false, fmt.Errorf("decode query of item set #%d: %w", itemSetID, err)
	}
	return saved, true, nil
}

// Set implements dynis.QueryStore.
func (s *Store) Set(ctx context.Context, itemSetID int64, query dynis.Query) error {
	raw, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encode query of item set #%d: %w", itemSetID, err)
	}
	return s.upsert(ctx, itemSetID, string(raw))
}

// SetLegacy stores the URL-encoded form, as written by older releases.
func (s *Store) SetLegacy(ctx context.Context, itemSetID int64, legacy string) error {
	raw, err := json.Marshal(legacy)
	if err != nil {
		return err
	}
	return s.upsert(ctx, itemSetID, string(raw))
}

func (s *Store) upsert(ctx context.Context, itemSetID int64, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := dynamicItemSetQuery{ItemSetID: itemSetID, Query: raw}
	err := s.reader(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_set_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"query"}),
	}).Create(&row).Error
	if err != nil {
		return storeError(fmt.Sprintf("set query of item set #%d", itemSetID), err)
	}
	return nil
}

// Delete implements dynis.QueryStore.
func (s *Store) Delete(ctx context.Context, itemSetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.reader(ctx).Where("item_set_id = ?", itemSetID).Delete(&dynamicItemSetQuery{}).Error
	if err != nil {
		return storeError(fmt.Sprintf("delete query of item set #%d", itemSetID), err)
	}
	return nil
}

// All implements dynis.QueryStore.
func (s *Store) All(ctx context.Context) (map[int64]dynis.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []dynamicItemSetQuery
	if err := s.reader(ctx).Order("item_set_id").Find(&rows).Error; err != nil {
		return nil, storeError("list queries", err)
	}

	out := make(map[int64]dynis.SavedQuery, len(rows))
	for _, row := range rows {
		saved, err := decodeSavedQuery(row.Query)
		if err != nil {
			return nil, fmt.Errorf("decode query of item set #%d: %w", row.ItemSetID, err)
		}
		out[row.ItemSetID] = saved
	}
	return out, nil
}

func decodeSavedQuery(raw string) (dynis.SavedQuery, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return dynis.SavedQuery{}, err
	}
	switch t := v.(type) {
	case map[string]any:
		return dynis.SavedQuery{Query: dynis.Query(t)}, nil
	case string:
		return dynis.SavedQuery{Legacy: t}, nil
	default:
		return dynis.SavedQuery{}, nil
	}
}
