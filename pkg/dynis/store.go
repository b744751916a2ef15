package dynis

import "context"

// QueryStore is the durable item set id to saved query mapping.
type QueryStore interface {
	// Get returns the saved query of an item set; false if none is stored.
	Get(ctx context.Context, itemSetID int64) (SavedQuery, bool, error)

	// Set stores the structured query of an item set.
	Set(ctx context.Context, itemSetID int64, query Query) error

	// Delete removes the query of an item set. Deleting a missing key is a no-op.
	Delete(ctx context.Context, itemSetID int64) error

	// All enumerates every stored query.
	All(ctx context.Context) (map[int64]SavedQuery, error)
}

// ResourceService searches, reads and updates host resources.
type ResourceService interface {
	// Search returns the ids of resources of kind matching filter.
	// Only identifiers are loaded.
	Search(ctx context.Context, kind ResourceKind, filter Query) ([]int64, error)

	// Read loads one resource. Returns an error wrapping ErrNotFound when the
	// id does not resolve.
	Read(ctx context.Context, kind ResourceKind, id int64) (*Resource, error)

	// Update applies a patch to one resource.
	Update(ctx context.Context, kind ResourceKind, id int64, patch Patch, opts UpdateOptions) error

	// BatchUpdate applies the same patch to several resources. With
	// opts.ContinueOnError, per-resource failures are collected in the result.
	BatchUpdate(ctx context.Context, kind ResourceKind, ids []int64, patch Patch, opts UpdateOptions) (BatchResult, error)
}

// BulkLinker writes item to item set links directly, bypassing per-item
// lifecycle. Inserting an existing link is a no-op.
type BulkLinker interface {
	LinkItems(ctx context.Context, itemSetID int64, itemIDs []int64) error
}

// UnitOfWork tracks pending writes and loaded entities.
type UnitOfWork interface {
	// Flush commits pending writes and clears tracked entities.
	Flush(ctx context.Context) error
}

// StopSignal is polled between chunks to request early termination.
type StopSignal interface {
	ShouldStop(ctx context.Context) (bool, error)
}

// Store bundles the collaborators a backend provides.
type Store interface {
	QueryStore
	ResourceService
	BulkLinker
	UnitOfWork

	// Close releases connections. Pending writes are rolled back.
	Close()
}
