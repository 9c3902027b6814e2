// Package memory is the client-side core of vmem: scoped saves and queries,
// offset pagination over the gateway, retention sweeps and compact
// bookkeeping.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/model"
	"github.com/rcliao/vector-memory/internal/observe"
)

const (
	// DefaultPageSize is the list page size used when fetching a whole
	// collection.
	DefaultPageSize = 1000
	// DefaultCompactCap is the number of compacts kept per collection.
	DefaultCompactCap = 10
	// RelevanceFloor drops matches whose similarity is at or below it.
	RelevanceFloor = 0.001
)

// ErrInvalidIndex is returned for a 1-based index outside the listing.
var ErrInvalidIndex = errors.New("invalid index")

// Gateway is the subset of the gateway API the client needs.
type Gateway interface {
	Write(ctx context.Context, scope model.Scope, req api.WriteRequest) (*api.WriteResponse, error)
	Query(ctx context.Context, scope model.Scope, req api.QueryRequest) (*api.QueryResponse, error)
	List(ctx context.Context, scope model.Scope, req api.ListRequest) (*api.ListResponse, error)
	DeleteDocuments(ctx context.Context, req api.DeleteDocumentsRequest) (*api.DeleteDocumentsResponse, error)
	DeleteProject(ctx context.Context, req api.DeleteProjectRequest) (*api.DeleteProjectResponse, error)
}

// Service runs memory operations for one project.
type Service struct {
	gw         Gateway
	projectID  string
	log        *bolt.Logger
	now        func() time.Time
	pageSize   int
	compactCap int
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *bolt.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithPageSize(n int) Option { return func(s *Service) { s.pageSize = max(n, 1) } }

func WithCompactCap(n int) Option { return func(s *Service) { s.compactCap = max(n, 1) } }

// New creates a Service for projectID. projectID may be empty when only the
// global scope is used.
func New(gw Gateway, projectID string, opts ...Option) *Service {
	s := &Service{
		gw:         gw,
		projectID:  projectID,
		log:        observe.Nop().Log(),
		now:        time.Now,
		pageSize:   DefaultPageSize,
		compactCap: DefaultCompactCap,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProjectID returns the project the service is bound to.
func (s *Service) ProjectID() string { return s.projectID }

// CompactCap returns the number of compacts kept per collection.
func (s *Service) CompactCap() int { return s.compactCap }

// Collection returns the collection name for scope, derived the same way the
// gateway derives it.
func (s *Service) Collection(scope model.Scope) (string, error) {
	return model.CollectionName(scope, s.projectID)
}

func (s *Service) projectFor(scope model.Scope) string {
	if scope == model.ScopeGlobal {
		return ""
	}
	return s.projectID
}

// SaveParams describes a single save.
type SaveParams struct {
	Scope      model.Scope
	Text       string
	Type       string
	Agent      string
	Tags       []string
	Importance string
	// Force marks an explicit user save; otherwise the save counts as auto.
	Force bool
}

// Save writes one document with client-side metadata.
func (s *Service) Save(ctx context.Context, p SaveParams) (*api.WriteResponse, error) {
	if p.Text == "" {
		return nil, fmt.Errorf("text is required")
	}
	meta := model.Metadata{
		Agent:  p.Agent,
		Source: model.SourceAuto,
		Type:   p.Type,
	}
	if p.Force {
		meta.Source = model.SourceManual
	}
	if meta.Agent == "" {
		meta.Agent = "cli"
	}
	if meta.Type == "" {
		meta.Type = model.TypeNote
	}
	if len(p.Tags) > 0 || p.Importance != "" {
		meta.Extra = map[string]any{}
		if len(p.Tags) > 0 {
			meta.Extra["tags"] = p.Tags
		}
		if p.Importance != "" {
			meta.Extra["importance"] = p.Importance
		}
	}
	return s.gw.Write(ctx, p.Scope, api.WriteRequest{
		ProjectID: s.projectFor(p.Scope),
		Text:      p.Text,
		Metadata:  meta.ToMap(),
	})
}

// QueryResult is a filtered query response.
type QueryResult struct {
	Collection string
	Matches    []model.Match
}

// Query runs a nearest-neighbour query and drops matches at or below the
// relevance floor.
func (s *Service) Query(ctx context.Context, scope model.Scope, query string, topK int) (*QueryResult, error) {
	resp, err := s.gw.Query(ctx, scope, api.QueryRequest{
		ProjectID: s.projectFor(scope),
		Query:     query,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}
	return &QueryResult{Collection: resp.Collection, Matches: FilterRelevant(resp.Matches, RelevanceFloor)}, nil
}

// ScopedMatch is a match tagged with the collection it came from.
type ScopedMatch struct {
	model.Match
	Collection string `json:"collection"`
}

// Search queries the project and global collections and keeps the topK best
// matches across both.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]ScopedMatch, error) {
	var all [][]ScopedMatch
	for _, scope := range []model.Scope{model.ScopeProject, model.ScopeGlobal} {
		res, err := s.Query(ctx, scope, query, topK)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", scope, err)
		}
		scoped := make([]ScopedMatch, 0, len(res.Matches))
		for _, m := range res.Matches {
			scoped = append(scoped, ScopedMatch{Match: m, Collection: res.Collection})
		}
		all = append(all, scoped)
	}
	return MergeMatches(topK, all...), nil
}

// Listing is the result of a full collection fetch.
type Listing struct {
	Collection string
	Documents  []model.Document
	// Pages counts the non-empty pages fetched.
	Pages int
}

// FetchAll pages through a collection with increasing offsets until a page
// comes back short. Concurrent writers can shift the window; documents
// inserted mid-sweep may be skipped or seen twice.
func (s *Service) FetchAll(ctx context.Context, scope model.Scope, where map[string]string) (*Listing, error) {
	listing := &Listing{Documents: []model.Document{}}
	offset := 0
	for {
		resp, err := s.gw.List(ctx, scope, api.ListRequest{
			ProjectID: s.projectFor(scope),
			Limit:     s.pageSize,
			Offset:    offset,
			Where:     where,
		})
		if err != nil {
			return nil, fmt.Errorf("list offset %d: %w", offset, err)
		}
		listing.Collection = resp.Collection
		if len(resp.Documents) == 0 {
			break
		}
		listing.Documents = append(listing.Documents, resp.Documents...)
		listing.Pages++
		offset += len(resp.Documents)
		s.log.Info().Str("collection", resp.Collection).Int("fetched", len(listing.Documents)).Msg("fetched page")
		if len(resp.Documents) < s.pageSize {
			break
		}
	}
	return listing, nil
}

// History returns the most recent limit documents, newest first. limit <= 0
// returns everything.
func (s *Service) History(ctx context.Context, scope model.Scope, limit int) (*Listing, error) {
	listing, err := s.FetchAll(ctx, scope, nil)
	if err != nil {
		return nil, err
	}
	SortNewestFirst(listing.Documents)
	if limit > 0 && len(listing.Documents) > limit {
		listing.Documents = listing.Documents[:limit]
	}
	return listing, nil
}

// Compacts returns every compact in scope, newest first.
func (s *Service) Compacts(ctx context.Context, scope model.Scope) (*Listing, error) {
	listing, err := s.FetchAll(ctx, scope, map[string]string{model.KeyType: model.TypeCompact})
	if err != nil {
		return nil, err
	}
	// The filter is applied again locally for stores that ignore it.
	kept := listing.Documents[:0]
	for _, d := range listing.Documents {
		if d.Metadata.Type == model.TypeCompact {
			kept = append(kept, d)
		}
	}
	listing.Documents = kept
	SortNewestFirst(listing.Documents)
	return listing, nil
}

// CompactResult reports a compact save.
type CompactResult struct {
	Write   *api.WriteResponse
	Evicted []model.Document
	// Total is the number of compacts after the save.
	Total int
}

// SaveCompact stores a compact, first evicting the oldest so that at most
// the cap remain. This is check-then-act: two concurrent savers can both
// pass the check and briefly exceed the cap; the next save trims the excess.
func (s *Service) SaveCompact(ctx context.Context, scope model.Scope, text string) (*CompactResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	listing, err := s.Compacts(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("fetch compacts: %w", err)
	}

	res := &CompactResult{}
	if n := len(listing.Documents); n >= s.compactCap {
		res.Evicted = listing.Documents[s.compactCap-1:]
		if _, err := s.Delete(ctx, scope, res.Evicted); err != nil {
			return nil, fmt.Errorf("evict oldest compact: %w", err)
		}
		s.log.Info().Int("evicted", len(res.Evicted)).Int("cap", s.compactCap).Msg("evicted oldest compacts")
	}

	meta := model.Metadata{Type: model.TypeCompact, Agent: "cli", Source: model.SourceManual}
	w, err := s.gw.Write(ctx, scope, api.WriteRequest{
		ProjectID: s.projectFor(scope),
		Text:      text,
		Metadata:  meta.ToMap(),
	})
	if err != nil {
		return nil, err
	}
	res.Write = w
	res.Total = len(listing.Documents) - len(res.Evicted) + 1
	return res, nil
}

// Delete removes docs from scope's collection. Nothing is sent for an empty
// list.
func (s *Service) Delete(ctx context.Context, scope model.Scope, docs []model.Document) (*api.DeleteDocumentsResponse, error) {
	collection, err := s.Collection(scope)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &api.DeleteDocumentsResponse{Status: "success", Collection: collection, DeletedIDs: []string{}}, nil
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return s.gw.DeleteDocuments(ctx, api.DeleteDocumentsRequest{Collection: collection, IDs: ids})
}

// Import writes docs into scope one by one and returns how many were
// written. The gateway assigns new ids and timestamps; a document's previous
// created_at is kept as original_created_at.
func (s *Service) Import(ctx context.Context, scope model.Scope, docs []model.Document) (int, error) {
	n := 0
	for _, d := range docs {
		if d.Text == "" {
			continue
		}
		meta := d.Metadata
		meta.Extra = maps.Clone(meta.Extra)
		if meta.CreatedAt != "" {
			if meta.Extra == nil {
				meta.Extra = map[string]any{}
			}
			meta.Extra["original_created_at"] = meta.CreatedAt
		}
		meta.Visibility, meta.CreatedAt, meta.UpdatedAt, meta.ProjectSlug = "", "", "", ""
		if _, err := s.gw.Write(ctx, scope, api.WriteRequest{
			ProjectID: s.projectFor(scope),
			Text:      d.Text,
			Metadata:  meta.ToMap(),
		}); err != nil {
			return n, fmt.Errorf("import %s: %w", d.ID, err)
		}
		n++
	}
	return n, nil
}

// DropProject deletes the project's whole collection. Missing is success.
func (s *Service) DropProject(ctx context.Context) (*api.DeleteProjectResponse, error) {
	if model.Slugify(s.projectID) == "" {
		return nil, model.ErrEmptyProject
	}
	return s.gw.DeleteProject(ctx, api.DeleteProjectRequest{ProjectID: s.projectID})
}

// Pick returns docs[index-1] for a 1-based index.
func Pick(docs []model.Document, index int) (model.Document, error) {
	if index < 1 || index > len(docs) {
		if len(docs) == 0 {
			return model.Document{}, fmt.Errorf("%w %d: nothing to select", ErrInvalidIndex, index)
		}
		return model.Document{}, fmt.Errorf("%w %d: valid range is 1-%d", ErrInvalidIndex, index, len(docs))
	}
	return docs[index-1], nil
}
