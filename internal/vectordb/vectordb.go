// Package vectordb provides the vector database interface and its Chroma and
// SQLite implementations.
package vectordb

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned by CreateCollection when the name is taken.
	ErrConflict = errors.New("collection already exists")
	// ErrNotFound is returned when a named collection does not exist.
	ErrNotFound = errors.New("collection not found")
)

// UpstreamError is a non-success reply from the database.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("chromadb %s error (%d): %s", e.Op, e.Status, e.Body)
}

// MetaSpace is the collection metadata key that selects the distance
// function, named as Chroma names it.
const MetaSpace = "hnsw:space"

// Distance spaces understood by both backends.
const (
	SpaceL2     = "l2"
	SpaceCosine = "cosine"
)

// ValidSpace reports whether space is a supported distance space.
func ValidSpace(space string) bool {
	return space == SpaceL2 || space == SpaceCosine
}

// Collection is a named partition of the store. ID is store-assigned.
type Collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is a single document as inserted into a collection.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// QueryResult holds nearest-neighbour results as parallel arrays, one outer
// entry per query embedding.
type QueryResult struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// GetResult holds a page of documents as parallel arrays.
type GetResult struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

// GetParams selects a page of a collection. Where is an exact-match filter on
// metadata keys; empty means no filter.
type GetParams struct {
	Limit  int
	Offset int
	Where  map[string]string
}

// DB defines the vector database operations the gateway relies on.
type DB interface {
	// CreateCollection creates a collection. Returns ErrConflict when a
	// collection with the same name exists.
	CreateCollection(ctx context.Context, name string, metadata map[string]any) error

	// ListCollections lists every collection.
	ListCollections(ctx context.Context) ([]Collection, error)

	// DeleteCollection drops a collection by name. Returns ErrNotFound when it
	// does not exist.
	DeleteCollection(ctx context.Context, name string) error

	// Add inserts records into the collection with the given id.
	Add(ctx context.Context, collectionID string, records []Record) error

	// Query returns the n nearest neighbours of embedding.
	Query(ctx context.Context, collectionID string, embedding []float32, n int) (*QueryResult, error)

	// Get returns a page of documents in store-native order.
	Get(ctx context.Context, collectionID string, p GetParams) (*GetResult, error)

	// Delete removes documents by id. Unknown ids are ignored.
	Delete(ctx context.Context, collectionID string, ids []string) error

	// Close releases resources.
	Close() error
}
