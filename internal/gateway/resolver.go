package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/rcliao/vector-memory/internal/vectordb"
)

// ErrCollectionMissing means a collection could not be found right after it
// was created. It points at the store, not the caller.
var ErrCollectionMissing = errors.New("collection missing after creation")

// Resolver maps collection names to store ids. Nothing is cached; every call
// goes back to the store.
type Resolver struct {
	db  vectordb.DB
	log *bolt.Logger
	// metadata is attached to collections the resolver creates.
	metadata map[string]any
}

// NewResolver creates a Resolver over db.
func NewResolver(db vectordb.DB, log *bolt.Logger) *Resolver {
	return &Resolver{db: db, log: log, metadata: map[string]any{"auto_created": true}}
}

// ResolveOrCreate creates the collection if needed and returns its id.
// A conflicting create is success. Any other create failure is logged and
// left for the lookup to surface.
func (r *Resolver) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	err := r.db.CreateCollection(ctx, name, r.metadata)
	if err != nil && !errors.Is(err, vectordb.ErrConflict) {
		r.log.Warn().Str("collection", name).Err(err).Msg("collection create failed, continuing with lookup")
	}

	id, ok, err := r.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCollectionMissing, name)
	}
	return id, nil
}

// Lookup scans the collection list for name.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, bool, error) {
	cols, err := r.db.ListCollections(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list collections: %w", err)
	}
	for _, c := range cols {
		if c.Name == name {
			return c.ID, true, nil
		}
	}
	return "", false, nil
}
