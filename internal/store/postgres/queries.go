package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/dynis/pkg/dynis"
)

const (
	getQuerySQL = `SELECT query FROM dynamic_item_set_query WHERE item_set_id = $1`

	allQueriesSQL = `SELECT item_set_id, query FROM dynamic_item_set_query ORDER BY item_set_id`

	upsertQuerySQL = `
INSERT INTO dynamic_item_set_query (item_set_id, query) VALUES ($1, $2)
ON CONFLICT (item_set_id) DO UPDATE SET query = EXCLUDED.query`

	upsertLegacyQuerySQL = `
INSERT INTO dynamic_item_set_query (item_set_id, query) VALUES ($1, to_jsonb($2::text))
ON CONFLICT (item_set_id) DO UPDATE SET query = EXCLUDED.query`

	deleteQuerySQL = `DELETE FROM dynamic_item_set_query WHERE item_set_id = $1`
)

// Get implements dynis.QueryStore.
func (s *Store) Get(ctx context.Context, itemSetID int64) (dynis.SavedQuery, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw []byte
	err := s.reader().QueryRow(ctx, getQuerySQL, itemSetID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return dynis.SavedQuery{}, false, nil
	}
	if err != nil {
		return dynis.SavedQuery{}, false, storeError(fmt.Sprintf("get query of item set #%d", itemSetID), err)
	}
	saved, err := decodeSavedQuery(raw)
	if err != nil {
		return dynis.SavedQuery{}, false, fmt.Errorf("decode query of item set #%d: %w", itemSetID, err)
	}
	return saved, true, nil
}

// Set implements dynis.QueryStore.
func (s *Store) Set(ctx context.Context, itemSetID int64, query dynis.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("encode query of item set #%d: %w", itemSetID, err)
	}
	if _, err := s.reader().Exec(ctx, upsertQuerySQL, itemSetID, raw); err != nil {
		return storeError(fmt.Sprintf("set query of item set #%d", itemSetID), err)
	}
	return nil
}

// SetLegacy stores the URL-encoded form, as written by older releases.
func (s *Store) SetLegacy(ctx context.Context, itemSetID int64, legacy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.reader().Exec(ctx, upsertLegacyQuerySQL, itemSetID, legacy); err != nil {
		return storeError(fmt.Sprintf("set legacy query of item set #%d", itemSetID), err)
	}
	return nil
}

// Delete implements dynis.QueryStore.
func (s *Store) Delete(ctx context.Context, itemSetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.reader().Exec(ctx, deleteQuerySQL, itemSetID); err != nil {
		return storeError(fmt.Sprintf("delete query of item set #%d", itemSetID), err)
	}
	return nil
}

// All implements dynis.QueryStore.
func (s *Store) All(ctx context.Context) (map[int64]dynis.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.reader().Query(ctx, allQueriesSQL)
	if err != nil {
		return nil, storeError("list queries", err)
	}
	defer rows.Close()

	out := make(map[int64]dynis.SavedQuery)
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, storeError("scan query", err)
		}
		saved, err := decodeSavedQuery(raw)
		if err != nil {
			return nil, fmt.Errorf("decode query of item set #%d: %w", id, err)
		}
		out[id] = saved
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list queries", err)
	}
	return out, nil
}

// decodeSavedQuery accepts a JSON object (structured form) or a JSON string
// (legacy form). Anything else is an empty query.
func decodeSavedQuery(raw []byte) (dynis.SavedQuery, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
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
