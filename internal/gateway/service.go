// Package gateway implements the storage gateway: collection resolution,
// embedding and the write/query/list/delete paths over a vector database.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/embedding"
	"github.com/rcliao/vector-memory/internal/model"
	"github.com/rcliao/vector-memory/internal/observe"
	"github.com/rcliao/vector-memory/internal/vectordb"
)

// ErrInvalidRequest marks caller mistakes. The server maps it to 400.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Service is the gateway's request handling core. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	db       vectordb.DB
	embedder embedding.Embedder
	resolver *Resolver
	obs      *observe.Observer
	now      func() time.Time
	space    string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSpace sets the distance space of collections the gateway creates.
// Existing collections keep the space they were created with.
func WithSpace(space string) Option {
	return func(s *Service) { s.space = space }
}

// New creates a Service.
func New(db vectordb.DB, embedder embedding.Embedder, obs *observe.Observer, opts ...Option) *Service {
	if obs == nil {
		obs = observe.Nop()
	}
	s := &Service{
		db:       db,
		embedder: embedder,
		resolver: NewResolver(db, obs.Log()),
		obs:      obs,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.space != "" {
		s.resolver.metadata[vectordb.MetaSpace] = s.space
	}
	return s
}

func (s *Service) collection(scope model.Scope, projectID string) (string, error) {
	name, err := model.CollectionName(scope, projectID)
	if err != nil {
		return "", invalid("%v", err)
	}
	return name, nil
}

func (s *Service) embed(ctx context.Context, text string) (embedding.Vector, error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.embed", attribute.String("model", s.embedder.Model()))
	vec, err := s.embedder.Embed(ctx, text)
	observe.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

// MergeMetadata overlays the system-assigned fields onto caller metadata.
// Visibility, timestamps and (for project writes) project_slug always come
// from the gateway; agent, source and type keep the caller's value and are
// defaulted only when absent. Extension keys pass through unchanged.
func MergeMetadata(caller map[string]any, scope model.Scope, projectSlug string, now time.Time) model.Metadata {
	m := model.MetadataFromMap(caller)
	ts := model.FormatTime(now)
	m.Visibility = string(scope)
	m.CreatedAt = ts
	m.UpdatedAt = ts
	if scope == model.ScopeProject {
		m.ProjectSlug = projectSlug
	}
	if m.Agent == "" {
		m.Agent = "unknown"
	}
	if m.Source == "" {
		m.Source = model.SourceManual
	}
	if m.Type == "" {
		m.Type = model.TypeNote
	}
	return m
}

// Write stores one document. The embedding is computed before the collection
// is resolved, so a failed embed leaves the store untouched.
func (s *Service) Write(ctx context.Context, scope model.Scope, req api.WriteRequest) (resp *api.WriteResponse, err error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.write", attribute.String("scope", string(scope)))
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(req.Text) == "" {
		return nil, invalid("text is required")
	}
	name, err := s.collection(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := NewDocumentID(now)
	meta := MergeMetadata(req.Metadata, scope, model.Slugify(req.ProjectID), now)

	vec, err := s.embed(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	collID, err := s.resolver.ResolveOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	err = s.db.Add(ctx, collID, []vectordb.Record{{
		ID:        id,
		Text:      req.Text,
		Embedding: vec,
		Metadata:  meta.ToMap(),
	}})
	if err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}

	s.obs.Log().Info().Str("collection", name).Str("id", id).Msg("document written")
	return &api.WriteResponse{Status: "success", Collection: name, ID: id}, nil
}

// Query returns the top_k nearest documents. Querying a scope that was never
// written creates its empty collection and yields no matches.
func (s *Service) Query(ctx context.Context, scope model.Scope, req api.QueryRequest) (resp *api.QueryResponse, err error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.query", attribute.String("scope", string(scope)))
	defer func() { observe.EndSpan(span, err) }()

	if strings.TrimSpace(req.Query) == "" {
		return nil, invalid("query is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = api.DefaultTopK
	}
	name, err := s.collection(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	collID, err := s.resolver.ResolveOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Query(ctx, collID, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	matches := reshapeQuery(res)
	return &api.QueryResponse{
		Query:      req.Query,
		Collection: name,
		Count:      len(matches),
		Matches:    matches,
	}, nil
}

// reshapeQuery turns the first row of the store's parallel arrays into
// matches. Short or missing columns leave the zero value.
func reshapeQuery(res *vectordb.QueryResult) []model.Match {
	matches := []model.Match{}
	if res == nil || len(res.IDs) == 0 {
		return matches
	}
	for i, id := range res.IDs[0] {
		m := model.Match{ID: id}
		if len(res.Documents) > 0 && i < len(res.Documents[0]) {
			m.Text = res.Documents[0][i]
		}
		if len(res.Metadatas) > 0 && i < len(res.Metadatas[0]) {
			m.Metadata = model.MetadataFromMap(res.Metadatas[0][i])
		}
		if len(res.Distances) > 0 && i < len(res.Distances[0]) {
			m.Distance = res.Distances[0][i]
			m.Similarity = model.Similarity(m.Distance)
		}
		matches = append(matches, m)
	}
	return matches
}

// List returns one page of a collection in store order.
func (s *Service) List(ctx context.Context, scope model.Scope, req api.ListRequest) (resp *api.ListResponse, err error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.list",
		attribute.String("scope", string(scope)), attribute.Int("offset", req.Offset))
	defer func() { observe.EndSpan(span, err) }()

	if req.Offset < 0 {
		return nil, invalid("offset must not be negative")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = api.DefaultLimit
	}
	name, err := s.collection(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}

	collID, err := s.resolver.ResolveOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Get(ctx, collID, vectordb.GetParams{Limit: limit, Offset: req.Offset, Where: req.Where})
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}

	docs := make([]model.Document, 0, len(res.IDs))
	for i, id := range res.IDs {
		d := model.Document{ID: id}
		if i < len(res.Documents) {
			d.Text = res.Documents[i]
		}
		if i < len(res.Metadatas) {
			d.Metadata = model.MetadataFromMap(res.Metadatas[i])
		}
		docs = append(docs, d)
	}
	return &api.ListResponse{Collection: name, Count: len(docs), Documents: docs}, nil
}

// DeleteDocuments removes ids from a collection. Unknown ids are not an error
// and are still reported as deleted.
func (s *Service) DeleteDocuments(ctx context.Context, req api.DeleteDocumentsRequest) (resp *api.DeleteDocumentsResponse, err error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.delete_documents",
		attribute.String("collection", req.Collection), attribute.Int("count", len(req.IDs)))
	defer func() { observe.EndSpan(span, err) }()

	if req.Collection == "" {
		return nil, invalid("collection is required")
	}
	ids := req.IDs
	if ids == nil {
		ids = []string{}
	}

	if len(ids) > 0 {
		collID, err := s.resolver.ResolveOrCreate(ctx, req.Collection)
		if err != nil {
			return nil, err
		}
		if err := s.db.Delete(ctx, collID, ids); err != nil {
			return nil, fmt.Errorf("delete documents: %w", err)
		}
	}

	s.obs.Log().Info().Str("collection", req.Collection).Int("count", len(ids)).Msg("documents deleted")
	return &api.DeleteDocumentsResponse{
		Status:       "success",
		Collection:   req.Collection,
		DeletedCount: len(ids),
		DeletedIDs:   ids,
	}, nil
}

// DeleteProject drops a project's collection. A missing collection is success.
func (s *Service) DeleteProject(ctx context.Context, req api.DeleteProjectRequest) (resp *api.DeleteProjectResponse, err error) {
	ctx, span := s.obs.StartSpan(ctx, "gateway.delete_project")
	defer func() { observe.EndSpan(span, err) }()

	name, err := s.collection(model.ScopeProject, req.ProjectID)
	if err != nil {
		return nil, err
	}

	err = s.db.DeleteCollection(ctx, name)
	switch {
	case errors.Is(err, vectordb.ErrNotFound):
		return &api.DeleteProjectResponse{
			Status:     "success",
			Collection: name,
			Message:    fmt.Sprintf("Project collection '%s' not found, nothing to delete", name),
		}, nil
	case err != nil:
		return nil, fmt.Errorf("delete collection: %w", err)
	}

	s.obs.Log().Info().Str("collection", name).Msg("project collection dropped")
	return &api.DeleteProjectResponse{
		Status:     "success",
		Collection: name,
		Message:    fmt.Sprintf("Project collection '%s' deleted", name),
	}, nil
}
