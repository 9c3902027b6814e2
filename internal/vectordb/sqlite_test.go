package vectordb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func collectionID(t *testing.T, s *SQLiteDB, name string) string {
	t.Helper()
	cols, err := s.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("list collections: %v", err)
	}
	for _, c := range cols {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("collection %s not found", name)
	return ""
}

func TestCreateCollectionConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if err := s.CreateCollection(ctx, "global", map[string]any{"scope": "global"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateCollection(ctx, "global", nil); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	cols, _ := s.ListCollections(ctx)
	if len(cols) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(cols))
	}
	if cols[0].ID == "" || cols[0].Metadata["scope"] != "global" {
		t.Errorf("unexpected collection %+v", cols[0])
	}
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "project_demo", nil)
	id := collectionID(t, s, "project_demo")
	s.Add(ctx, id, []Record{{ID: "a", Text: "x", Embedding: []float32{1, 0}}})

	if err := s.DeleteCollection(ctx, "project_demo"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteCollection(ctx, "project_demo"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	// Documents go with their collection.
	res, err := s.Get(ctx, id, GetParams{Limit: 10})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(res.IDs) != 0 {
		t.Errorf("expected orphaned documents removed, got %v", res.IDs)
	}
}

func TestQueryNearest(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "global", nil)
	id := collectionID(t, s, "global")
	err := s.Add(ctx, id, []Record{
		{ID: "far", Text: "far", Embedding: []float32{0, 1}, Metadata: map[string]any{"type": "note"}},
		{ID: "near", Text: "near", Embedding: []float32{1, 0}, Metadata: map[string]any{"type": "note"}},
		{ID: "mid", Text: "mid", Embedding: []float32{0.7, 0.7}},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := s.Query(ctx, id, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.IDs) != 1 || len(res.IDs[0]) != 2 {
		t.Fatalf("expected 1x2 results, got %v", res.IDs)
	}
	if res.IDs[0][0] != "near" || res.IDs[0][1] != "mid" {
		t.Errorf("unexpected order %v", res.IDs[0])
	}
	if res.Distances[0][0] != 0 {
		t.Errorf("expected exact match distance 0, got %f", res.Distances[0][0])
	}
	if res.Metadatas[0][0]["type"] != "note" {
		t.Errorf("expected metadata round-trip, got %v", res.Metadatas[0][0])
	}
}

func TestGetPagesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "global", nil)
	id := collectionID(t, s, "global")
	for i := range 5 {
		s.Add(ctx, id, []Record{{ID: fmt.Sprintf("d%d", i), Text: "t", Embedding: []float32{float32(i)}}})
	}

	page, err := s.Get(ctx, id, GetParams{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(page.IDs) != 2 || page.IDs[0] != "d2" || page.IDs[1] != "d3" {
		t.Errorf("unexpected page %v", page.IDs)
	}

	tail, _ := s.Get(ctx, id, GetParams{Limit: 10, Offset: 4})
	if len(tail.IDs) != 1 {
		t.Errorf("expected 1 trailing document, got %d", len(tail.IDs))
	}

	empty, _ := s.Get(ctx, id, GetParams{Limit: 10, Offset: 5})
	if empty.IDs == nil || len(empty.IDs) != 0 {
		t.Errorf("expected empty non-nil page, got %v", empty.IDs)
	}
}

func TestGetWhere(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "global", nil)
	id := collectionID(t, s, "global")
	s.Add(ctx, id, []Record{
		{ID: "n1", Text: "note", Embedding: []float32{1}, Metadata: map[string]any{"type": "note"}},
		{ID: "c1", Text: "compact", Embedding: []float32{1}, Metadata: map[string]any{"type": "compact"}},
		{ID: "c2", Text: "compact", Embedding: []float32{1}, Metadata: map[string]any{"type": "compact", "agent": "x"}},
	})

	res, err := s.Get(ctx, id, GetParams{Limit: 10, Where: map[string]string{"type": "compact"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(res.IDs) != 2 {
		t.Errorf("expected 2 compacts, got %v", res.IDs)
	}

	res, _ = s.Get(ctx, id, GetParams{Limit: 10, Where: map[string]string{"type": "compact", "agent": "x"}})
	if len(res.IDs) != 1 || res.IDs[0] != "c2" {
		t.Errorf("expected only c2, got %v", res.IDs)
	}

	if _, err := s.Get(ctx, id, GetParams{Where: map[string]string{"bad key'": "x"}}); err == nil {
		t.Error("expected error for unsafe metadata key")
	}
}

func TestDeleteDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "global", nil)
	id := collectionID(t, s, "global")
	s.Add(ctx, id, []Record{
		{ID: "a", Text: "a", Embedding: []float32{1}},
		{ID: "b", Text: "b", Embedding: []float32{1}},
	})

	if err := s.Delete(ctx, id, []string{"a", "missing"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	res, _ := s.Get(ctx, id, GetParams{})
	if len(res.IDs) != 1 || res.IDs[0] != "b" {
		t.Errorf("expected only b to remain, got %v", res.IDs)
	}
}

func TestAddUnknownCollection(t *testing.T) {
	s := newTestDB(t)
	err := s.Add(context.Background(), "nope", []Record{{ID: "a", Text: "a", Embedding: []float32{1}}})
	if err == nil {
		t.Error("expected error adding to unknown collection")
	}
}

func TestQuerySkipsOtherDimensions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "global", nil)
	id := collectionID(t, s, "global")
	err := s.Add(ctx, id, []Record{
		{ID: "old-model", Text: "old", Embedding: []float32{1, 0, 0}},
		{ID: "new-model", Text: "new", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	res, err := s.Query(ctx, id, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.IDs[0]) != 1 || res.IDs[0][0] != "new-model" {
		t.Fatalf("expected only the same-length vector, got %v", res.IDs[0])
	}
	if res.Distances[0][0] != 0 {
		t.Errorf("expected distance 0, got %f", res.Distances[0][0])
	}
}

func TestQueryCosineSpace(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	s.CreateCollection(ctx, "l2", nil)
	s.CreateCollection(ctx, "cos", map[string]any{MetaSpace: SpaceCosine})
	records := []Record{
		{ID: "long", Text: "same direction, far away", Embedding: []float32{10, 0}},
		{ID: "tilted", Text: "close but tilted", Embedding: []float32{1, 0.5}},
	}
	for _, name := range []string{"l2", "cos"} {
		if err := s.Add(ctx, collectionID(t, s, name), records); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	res, err := s.Query(ctx, collectionID(t, s, "l2"), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("query l2: %v", err)
	}
	if res.IDs[0][0] != "tilted" {
		t.Errorf("l2: expected tilted first, got %v", res.IDs[0])
	}

	res, err = s.Query(ctx, collectionID(t, s, "cos"), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("query cos: %v", err)
	}
	if res.IDs[0][0] != "long" {
		t.Errorf("cosine: expected long first, got %v", res.IDs[0])
	}
	if d := res.Distances[0][0]; d < -1e-6 || d > 1e-6 {
		t.Errorf("cosine: expected distance 0 for same direction, got %f", d)
	}
}

func TestValidSpace(t *testing.T) {
	for _, space := range []string{SpaceL2, SpaceCosine} {
		if !ValidSpace(space) {
			t.Errorf("%s should be valid", space)
		}
	}
	if ValidSpace("ip") {
		t.Error("ip is not supported")
	}
}
