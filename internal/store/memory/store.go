// Package memory is an in-memory dynis.Store for tests and dry runs. It
// evaluates the same filters as the SQL backends and records every call.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/vvka-141/dynis/internal/store/sqlfilter"
	"github.com/vvka-141/dynis/pkg/dynis"
)

var _ dynis.Store = (*Store)(nil)

// Resource is an item or item set held by the store.
type Resource struct {
	ID         int64
	Kind       dynis.ResourceKind
	Title      string
	ClassID    int64
	ClassTerm  string
	TemplateID int64
	OwnerID    int64
	IsPublic   bool
	// Values maps property terms to their literal values.
	Values     map[string][]string
	ItemSetIDs []int64
}

// Op is one recorded call.
type Op struct {
	Method    string
	Kind      dynis.ResourceKind
	IDs       []int64
	ItemSetID int64
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	resources map[int64]*Resource
	queries   map[int64]dynis.SavedQuery
	touches   map[int64]int
	ops       []Op

	readErrors   map[int64]error
	updateErrors map[int64]error
	searchErr    error
	flushErr     error
	onFlush      func(n int)
	flushes      int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		resources:    make(map[int64]*Resource),
		queries:      make(map[int64]dynis.SavedQuery),
		touches:      make(map[int64]int),
		readErrors:   make(map[int64]error),
		updateErrors: make(map[int64]error),
	}
}

// AddItemSet registers an item set.
func (s *Store) AddItemSet(id int64) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[id] = &Resource{ID: id, Kind: dynis.KindItemSets}
	return s
}

// AddItem registers an item. Kind is forced to items.
func (s *Store) AddItem(r Resource) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Kind = dynis.KindItems
	r.ItemSetIDs = slices.Clone(r.ItemSetIDs)
	s.resources[r.ID] = &r
	return s
}

// AddItems registers bare items that belong to the given item sets.
func (s *Store) AddItems(ids []int64, itemSetIDs ...int64) *Store {
	for _, id := range ids {
		s.AddItem(Resource{ID: id, ItemSetIDs: itemSetIDs})
	}
	return s
}

// SetLegacy stores the URL-encoded form of a query.
func (s *Store) SetLegacy(itemSetID int64, legacy string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[itemSetID] = dynis.SavedQuery{Legacy: legacy}
	return s
}

// FailRead makes Read of id return err.
func (s *Store) FailRead(id int64, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrors[id] = err
	return s
}

// FailUpdate makes Update and BatchUpdate of id fail with err.
func (s *Store) FailUpdate(id int64, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErrors[id] = err
	return s
}

// FailSearch makes every Search return err.
func (s *Store) FailSearch(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchErr = err
	return s
}

// FailFlush makes every Flush return err.
func (s *Store) FailFlush(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushErr = err
	return s
}

// OnFlush registers a hook called after each flush with the flush count.
func (s *Store) OnFlush(fn func(n int)) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFlush = fn
	return s
}

// Members returns the sorted item ids attached to an item set.
func (s *Store) Members(itemSetID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, r := range s.resources {
		if r.Kind == dynis.KindItems && slices.Contains(r.ItemSetIDs, itemSetID) {
			ids = append(ids, r.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Touches returns how many times a resource was updated with an empty patch.
func (s *Store) Touches(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches[id]
}

// Flushes returns the number of flushes.
func (s *Store) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Ops returns a copy of the recorded calls.
func (s *Store) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

// OpsOf returns the recorded calls of one method.
func (s *Store) OpsOf(method string) []Op {
	var out []Op
	for _, op := range s.Ops() {
		if op.Method == method {
			out = append(out, op)
		}
	}
	return out
}

// ResetOps forgets recorded calls and the flush count.
func (s *Store) ResetOps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.flushes = 0
}

func (s *Store) record(op Op) {
	op.IDs = slices.Clone(op.IDs)
	s.ops = append(s.ops, op)
}

// Get implements dynis.QueryStore.
func (s *Store) Get(_ context.Context, itemSetID int64) (dynis.SavedQuery, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Get", ItemSetID: itemSetID})
	q, ok := s.queries[itemSetID]
	return q, ok, nil
}

// Set implements dynis.QueryStore.
func (s *Store) Set(_ context.Context, itemSetID int64, q dynis.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Set", ItemSetID: itemSetID})
	s.queries[itemSetID] = dynis.SavedQuery{Query: maps.Clone(q)}
	return nil
}

// Delete implements dynis.QueryStore.
func (s *Store) Delete(_ context.Context, itemSetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Delete", ItemSetID: itemSetID})
	delete(s.queries, itemSetID)
	return nil
}

// All implements dynis.QueryStore.
func (s *Store) All(_ context.Context) (map[int64]dynis.SavedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "All"})
	return maps.Clone(s.queries), nil
}

// Search implements dynis.ResourceService. Results are sorted by id.
func (s *Store) Search(_ context.Context, kind dynis.ResourceKind, filter dynis.Query) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Search", Kind: kind})
	if s.searchErr != nil {
		return nil, s.searchErr
	}

	f := sqlfilter.Parse(filter)
	ids := make([]int64, 0)
	for _, r := range s.resources {
		if r.Kind == kind && matches(f, r) {
			ids = append(ids, r.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Read implements dynis.ResourceService.
func (s *Store) Read(_ context.Context, kind dynis.ResourceKind, id int64) (*dynis.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Read", Kind: kind, IDs: []int64{id}})
	if err := s.readErrors[id]; err != nil {
		return nil, err
	}
	r, err := s.lookup(kind, id)
	if err != nil {
		return nil, err
	}
	return &dynis.Resource{ID: r.ID, Kind: r.Kind, ItemSetIDs: slices.Clone(r.ItemSetIDs)}, nil
}

// Update implements dynis.ResourceService.
func (s *Store) Update(_ context.Context, kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "Update", Kind: kind, IDs: []int64{id}, ItemSetID: firstOrZero(patch.ItemSetIDs)})
	return s.apply(kind, id, patch, opts)
}

// BatchUpdate implements dynis.ResourceService.
func (s *Store) BatchUpdate(_ context.Context, kind dynis.ResourceKind, ids []int64, patch dynis.Patch, opts dynis.UpdateOptions) (dynis.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "BatchUpdate", Kind: kind, IDs: ids, ItemSetID: firstOrZero(patch.ItemSetIDs)})

	var result dynis.BatchResult
	for _, id := range ids {
		if err := s.apply(kind, id, patch, opts); err != nil {
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

// LinkItems implements dynis.BulkLinker. Unknown items are ignored.
func (s *Store) LinkItems(_ context.Context, itemSetID int64, itemIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(Op{Method: "LinkItems", Kind: dynis.KindItems, IDs: itemIDs, ItemSetID: itemSetID})
	for _, id := range itemIDs {
		r, ok := s.resources[id]
		if !ok || r.Kind != dynis.KindItems {
			continue
		}
		if !slices.Contains(r.ItemSetIDs, itemSetID) {
			r.ItemSetIDs = append(r.ItemSetIDs, itemSetID)
		}
	}
	return nil
}

// Flush implements dynis.UnitOfWork. Writes are applied immediately, so
// flushing only counts and runs the hook.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	s.record(Op{Method: "Flush"})
	if s.flushErr != nil {
		s.mu.Unlock()
		return s.flushErr
	}
	s.flushes++
	n, hook := s.flushes, s.onFlush
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Close implements dynis.Store.
func (s *Store) Close() {}

func (s *Store) lookup(kind dynis.ResourceKind, id int64) (*Resource, error) {
	r, ok := s.resources[id]
	if !ok || r.Kind != kind {
		return nil, fmt.Errorf("%s #%d: %w", kind, id, dynis.ErrNotFound)
	}
	return r, nil
}

func (s *Store) apply(kind dynis.ResourceKind, id int64, patch dynis.Patch, opts dynis.UpdateOptions) error {
	if err := s.updateErrors[id]; err != nil {
		return err
	}
	r, err := s.lookup(kind, id)
	if err != nil {
		return err
	}
	if patch.IsEmpty() && opts.CollectionAction != dynis.CollectionReplace {
		s.touches[id]++
		return nil
	}

	switch opts.CollectionAction {
	case dynis.CollectionRemove:
		r.ItemSetIDs = slices.DeleteFunc(r.ItemSetIDs, func(v int64) bool {
			return slices.Contains(patch.ItemSetIDs, v)
		})
	case dynis.CollectionReplace:
		r.ItemSetIDs = slices.Clone(patch.ItemSetIDs)
	default:
		for _, v := range patch.ItemSetIDs {
			if !slices.Contains(r.ItemSetIDs, v) {
				r.ItemSetIDs = append(r.ItemSetIDs, v)
			}
		}
	}
	return nil
}

func firstOrZero(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

func matches(f sqlfilter.Filter, r *Resource) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	if len(f.ItemSetIDs) > 0 && !containsAny(r.ItemSetIDs, f.ItemSetIDs) {
		return false
	}
	if len(f.NotItemSetIDs) > 0 && containsAny(r.ItemSetIDs, f.NotItemSetIDs) {
		return false
	}
	if len(f.ClassIDs) > 0 && !slices.Contains(f.ClassIDs, r.ClassID) {
		return false
	}
	if len(f.ClassTerms) > 0 && !slices.Contains(f.ClassTerms, r.ClassTerm) {
		return false
	}
	if len(f.TemplateIDs) > 0 && !slices.Contains(f.TemplateIDs, r.TemplateID) {
		return false
	}
	if len(f.OwnerIDs) > 0 && !slices.Contains(f.OwnerIDs, r.OwnerID) {
		return false
	}
	if f.IsPublic != nil && *f.IsPublic != r.IsPublic {
		return false
	}
	if f.Search != "" && !matchesSearch(f.Search, r) {
		return false
	}
	if len(f.Properties) > 0 && !matchesProperties(f.Properties, r) {
		return false
	}
	return true
}

func containsAny(have, want []int64) bool {
	for _, v := range want {
		if slices.Contains(have, v) {
			return true
		}
	}
	return false
}

func matchesSearch(text string, r *Resource) bool {
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(r.Title), needle) {
		return true
	}
	for _, values := range r.Values {
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	}
	return false
}

func matchesProperties(clauses []sqlfilter.PropertyClause, r *Resource) bool {
	var result bool
	for i, clause := range clauses {
		ok := matchesProperty(clause, r)
		switch {
		case i == 0:
			result = ok
		case clause.Or:
			result = result || ok
		default:
			result = result && ok
		}
	}
	return result
}

func matchesProperty(clause sqlfilter.PropertyClause, r *Resource) bool {
	found := false
	for term, values := range r.Values {
		if clause.Property != "" && term != clause.Property {
			continue
		}
		for _, v := range values {
			switch clause.Type {
			case sqlfilter.PropertyEquals, sqlfilter.PropertyNotEquals:
				found = found || v == clause.Text
			case sqlfilter.PropertyContains, sqlfilter.PropertyNotContains:
				found = found || strings.Contains(strings.ToLower(v), strings.ToLower(clause.Text))
			default:
				found = true
			}
		}
	}
	if clause.Negated() {
		return !found
	}
	return found
}
