package dynis

import (
	"errors"
	"fmt"
	"slices"
)

// Query is a structured search filter: filter field to filter value.
// Values are scalars, []any, or nested map[string]any for indexed groups
// such as property[0][property].
type Query map[string]any

// SavedQuery is a query as persisted by a QueryStore.
type SavedQuery struct {
	// Query is the structured form.
	Query Query

	// Legacy holds the URL-encoded form written by older releases
	// ("resource_class_id=12&property[0][type]=ex"). It is normalized into
	// Query on first use by the job.
	Legacy string
}

// IsZero reports whether neither form is present.
func (s SavedQuery) IsZero() bool {
	return len(s.Query) == 0 && s.Legacy == ""
}

// ResourceKind names a resource collection of the host catalog.
type ResourceKind string

const (
	KindItems    ResourceKind = "items"
	KindItemSets ResourceKind = "item_sets"
)

// Resource is the part of a host record the job reads.
type Resource struct {
	ID         int64
	Kind       ResourceKind
	ItemSetIDs []int64
}

// HasItemSet reports whether the resource already belongs to itemSetID.
func (r *Resource) HasItemSet(itemSetID int64) bool {
	return slices.Contains(r.ItemSetIDs, itemSetID)
}

// CollectionAction tells an update how to combine a collection field with
// the stored one.
type CollectionAction string

const (
	CollectionAppend  CollectionAction = "append"
	CollectionRemove  CollectionAction = "remove"
	CollectionReplace CollectionAction = "replace"
)

// Patch is a partial set of fields for an update. An empty Patch only
// touches the resource (modification time and lifecycle hooks).
type Patch struct {
	ItemSetIDs []int64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.ItemSetIDs) == 0
}

// UpdateOptions mirror the host update options.
type UpdateOptions struct {
	IsPartial        bool
	ContinueOnError  bool
	CollectionAction CollectionAction
}

// ItemFailure records one resource that could not be processed.
type ItemFailure struct {
	ID  int64
	Err error
}

// BatchResult is returned by BatchUpdate. With ContinueOnError, failures
// are collected instead of aborting the batch.
type BatchResult struct {
	Updated  []int64
	Failures []ItemFailure
}

// Fields carries named placeholder values for log messages.
type Fields map[string]any

// Default chunk sizing.
const (
	// DefaultFullChunkSize bounds the entities held by the unit of work.
	DefaultFullChunkSize = 100

	// DefaultDirectChunkSize bounds the ids of one bulk upsert statement.
	DefaultDirectChunkSize = 100000

	// DefaultMaxStatementBytes is the default max_allowed_packet of
	// MySQL/MariaDB.
	DefaultMaxStatementBytes = 4 << 20
)

// RunConfig is the immutable configuration of one job run.
type RunConfig struct {
	// JobID identifies the run in logs and in the stop key. Generated when empty.
	JobID string

	// ItemSetIDs restricts the run. nil means every item set with a stored
	// query; an empty non-nil slice means nothing to do.
	ItemSetIDs []int64

	// Direct selects the bulk upsert fast path. It attaches matching items
	// without per-item side effects and never detaches.
	Direct bool

	// FullChunkSize is the number of ids per chunk in full mode.
	FullChunkSize int

	// DirectChunkSize is the upper bound of ids per bulk upsert statement.
	DirectChunkSize int

	// MaxStatementBytes is the ceiling of one encoded bulk upsert statement.
	MaxStatementBytes int
}

// AllItemSets reports whether the run targets every item set with a query.
func (c RunConfig) AllItemSets() bool {
	return c.ItemSetIDs == nil
}

// WithDefaults returns a copy where zero sizes are replaced by defaults.
func (c RunConfig) WithDefaults() RunConfig {
	if c.FullChunkSize == 0 {
		c.FullChunkSize = DefaultFullChunkSize
	}
	if c.DirectChunkSize == 0 {
		c.DirectChunkSize = DefaultDirectChunkSize
	}
	if c.MaxStatementBytes == 0 {
		c.MaxStatementBytes = DefaultMaxStatementBytes
	}
	if c.ItemSetIDs != nil {
		c.ItemSetIDs = slices.Clone(c.ItemSetIDs)
	}
	return c
}

// Validate checks sizes. Non-positive item set ids are not an error: runs
// report them as missing item sets. It returns a multi-error.
func (c RunConfig) Validate() error {
	var errs []error

	if c.FullChunkSize < 0 {
		errs = append(errs, fmt.Errorf("full chunk size cannot be negative: %w", ErrInvalidConfig))
	}
	if c.DirectChunkSize < 0 {
		errs = append(errs, fmt.Errorf("direct chunk size cannot be negative: %w", ErrInvalidConfig))
	}
	if c.MaxStatementBytes < 0 {
		errs = append(errs, fmt.Errorf("max statement bytes cannot be negative: %w", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}
