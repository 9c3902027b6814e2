package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/vector-memory/internal/embedding"
)

var whereKeyRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SQLiteDB implements DB on a local SQLite file. Vectors are stored as JSON
// and searched by brute force, which is fine for a single user's memories.
type SQLiteDB struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteDB opens or creates a SQLite vector store at the given path.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteDB{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		metadata    TEXT,
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		id            TEXT NOT NULL,
		text          TEXT NOT NULL,
		embedding     TEXT NOT NULL,
		metadata      TEXT,
		PRIMARY KEY (collection_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) CreateCollection(ctx context.Context, name string, metadata map[string]any) error {
	var meta *string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode collection metadata: %w", err)
		}
		m := string(b)
		meta = &m
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, metadata, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		s.newID(), name, meta, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLiteDB) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, metadata FROM collections ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Collection
	for rows.Next() {
		var c Collection
		var meta sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &meta); err != nil {
			return nil, err
		}
		if meta.Valid {
			json.Unmarshal([]byte(meta.String), &c.Metadata)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (s *SQLiteDB) DeleteCollection(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) Add(ctx context.Context, collectionID string, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE id = ?`, collectionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("add: unknown collection id %s", collectionID)
		}
		return err
	}

	for _, r := range records {
		emb, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		var meta *string
		if len(r.Metadata) > 0 {
			b, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			m := string(b)
			meta = &m
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection_id, id, text, embedding, metadata) VALUES (?, ?, ?, ?, ?)`,
			collectionID, r.ID, r.Text, string(emb), meta)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

type scoredRow struct {
	id       string
	text     string
	meta     map[string]any
	distance float64
}

// distanceFor returns the distance function for a collection's space.
// Anything but cosine falls back to squared L2, Chroma's default.
func distanceFor(space any) func(a, b embedding.Vector) float64 {
	if space == SpaceCosine {
		return func(a, b embedding.Vector) float64 { return 1 - embedding.CosineSimilarity(a, b) }
	}
	return embedding.SquaredL2
}

func (s *SQLiteDB) Query(ctx context.Context, collectionID string, emb []float32, n int) (*QueryResult, error) {
	var colMeta sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT metadata FROM collections WHERE id = ?`, collectionID).Scan(&colMeta)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	distance := distanceFor(decodeMeta(colMeta)[MetaSpace])

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, metadata FROM documents WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []scoredRow
	for rows.Next() {
		var r scoredRow
		var embJSON string
		var meta sql.NullString
		if err := rows.Scan(&r.id, &r.text, &embJSON, &meta); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		// Rows embedded by a different model are not comparable.
		if len(vec) != len(emb) {
			continue
		}
		r.meta = decodeMeta(meta)
		r.distance = distance(emb, vec)
		scored = append(scored, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].distance < scored[j].distance })
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}

	res := &QueryResult{
		IDs:       [][]string{{}},
		Documents: [][]string{{}},
		Metadatas: [][]map[string]any{{}},
		Distances: [][]float64{{}},
	}
	for _, r := range scored {
		res.IDs[0] = append(res.IDs[0], r.id)
		res.Documents[0] = append(res.Documents[0], r.text)
		res.Metadatas[0] = append(res.Metadatas[0], r.meta)
		res.Distances[0] = append(res.Distances[0], r.distance)
	}
	return res, nil
}

func (s *SQLiteDB) Get(ctx context.Context, collectionID string, p GetParams) (*GetResult, error) {
	where := []string{"collection_id = ?"}
	args := []any{collectionID}
	for k, v := range p.Where {
		if !whereKeyRe.MatchString(k) {
			return nil, fmt.Errorf("invalid metadata key %q", k)
		}
		where = append(where, fmt.Sprintf("json_extract(metadata, '$.%s') = ?", k))
		args = append(args, v)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(p.Offset, 0))

	query := fmt.Sprintf(`SELECT id, text, metadata FROM documents WHERE %s ORDER BY rowid LIMIT ? OFFSET ?`,
		strings.Join(where, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &GetResult{IDs: []string{}, Documents: []string{}, Metadatas: []map[string]any{}}
	for rows.Next() {
		var id, text string
		var meta sql.NullString
		if err := rows.Scan(&id, &text, &meta); err != nil {
			return nil, err
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, text)
		res.Metadatas = append(res.Metadatas, decodeMeta(meta))
	}
	return res, rows.Err()
}

func (s *SQLiteDB) Delete(ctx context.Context, collectionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{collectionID}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM documents WHERE collection_id = ? AND id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func decodeMeta(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return map[string]any{}
	}
	m := map[string]any{}
	json.Unmarshal([]byte(ns.String), &m)
	return m
}
