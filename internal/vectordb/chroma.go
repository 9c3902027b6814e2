package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultChromaTimeout bounds every call to Chroma.
const DefaultChromaTimeout = 10 * time.Second

// ChromaDB talks to a Chroma server through its v2 REST API.
type ChromaDB struct {
	apiBase string
	client  *http.Client
}

// ChromaOptions configures a ChromaDB. Zero values fall back to Chroma's
// defaults.
type ChromaOptions struct {
	URL      string
	Tenant   string
	Database string
	Timeout  time.Duration
}

// NewChromaDB creates a client for the Chroma server at opts.URL.
func NewChromaDB(opts ChromaOptions) *ChromaDB {
	if opts.URL == "" {
		opts.URL = "http://localhost:8000"
	}
	if opts.Tenant == "" {
		opts.Tenant = "default_tenant"
	}
	if opts.Database == "" {
		opts.Database = "default_database"
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultChromaTimeout
	}
	return &ChromaDB{
		apiBase: fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s",
			strings.TrimRight(opts.URL, "/"), url.PathEscape(opts.Tenant), url.PathEscape(opts.Database)),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// do sends a JSON request and returns the status and body. Transport errors
// are returned as-is; status handling is left to the caller.
func (c *ChromaDB) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("chromadb request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read chromadb response: %w", err)
	}
	return resp.StatusCode, b, nil
}

func (c *ChromaDB) CreateCollection(ctx context.Context, name string, metadata map[string]any) error {
	status, body, err := c.do(ctx, http.MethodPost, "/collections", map[string]any{
		"name":     name,
		"metadata": metadata,
	})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	default:
		return &UpstreamError{Op: "create", Status: status, Body: string(body)}
	}
}

func (c *ChromaDB) ListCollections(ctx context.Context) ([]Collection, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "list collections", Status: status, Body: string(body)}
	}

	var cols []Collection
	if err := json.Unmarshal(body, &cols); err == nil {
		return cols, nil
	}
	// Some deployments answer with a single object.
	var single Collection
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode collections: %w", err)
	}
	return []Collection{single}, nil
}

func (c *ChromaDB) DeleteCollection(ctx context.Context, name string) error {
	status, body, err := c.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &UpstreamError{Op: "delete collection", Status: status, Body: string(body)}
	}
}

func (c *ChromaDB) Add(ctx context.Context, collectionID string, records []Record) error {
	payload := struct {
		IDs        []string         `json:"ids"`
		Documents  []string         `json:"documents"`
		Embeddings [][]float32      `json:"embeddings"`
		Metadatas  []map[string]any `json:"metadatas"`
	}{}
	for _, r := range records {
		payload.IDs = append(payload.IDs, r.ID)
		payload.Documents = append(payload.Documents, r.Text)
		payload.Embeddings = append(payload.Embeddings, r.Embedding)
		payload.Metadatas = append(payload.Metadatas, scalarMetadata(r.Metadata))
	}

	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collectionID+"/add", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return &UpstreamError{Op: "add", Status: status, Body: string(body)}
	}
	return nil
}

func (c *ChromaDB) Query(ctx context.Context, collectionID string, embedding []float32, n int) (*QueryResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collectionID+"/query", map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        n,
		"include":          []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "query", Status: status, Body: string(body)}
	}

	var res QueryResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return &res, nil
}

func (c *ChromaDB) Get(ctx context.Context, collectionID string, p GetParams) (*GetResult, error) {
	payload := map[string]any{
		"limit":   p.Limit,
		"offset":  p.Offset,
		"include": []string{"documents", "metadatas"},
	}
	if where := chromaWhere(p.Where); where != nil {
		payload["where"] = where
	}

	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collectionID+"/get", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "list", Status: status, Body: string(body)}
	}

	var res GetResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode get result: %w", err)
	}
	return &res, nil
}

func (c *ChromaDB) Delete(ctx context.Context, collectionID string, ids []string) error {
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collectionID+"/delete", map[string]any{
		"ids": ids,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return &UpstreamError{Op: "delete", Status: status, Body: string(body)}
	}
	return nil
}

func (c *ChromaDB) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// chromaWhere builds a Chroma where clause. A single key is a plain equality
// map; several keys are combined with $and.
func chromaWhere(where map[string]string) map[string]any {
	switch len(where) {
	case 0:
		return nil
	case 1:
		for k, v := range where {
			return map[string]any{k: v}
		}
	}
	clauses := make([]map[string]any, 0, len(where))
	for _, k := range slices.Sorted(maps.Keys(where)) {
		clauses = append(clauses, map[string]any{k: where[k]})
	}
	return map[string]any{"$and": clauses}
}

// scalarMetadata flattens list values into comma-joined strings; Chroma only
// stores scalar metadata.
func scalarMetadata(m map[string]any) map[string]any {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case []string:
			out[k] = strings.Join(vv, ",")
		case []any:
			parts := make([]string, 0, len(vv))
			for _, p := range vv {
				parts = append(parts, fmt.Sprint(p))
			}
			out[k] = strings.Join(parts, ",")
		default:
			out[k] = v
		}
	}
	return out
}
