package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/model"
)

// fakeGateway keeps documents per collection in insertion order.
type fakeGateway struct {
	docs      map[string][]model.Document
	writes    []api.WriteRequest
	listCalls int
	deletes   []api.DeleteDocumentsRequest
	dropped   []string
	matches   map[string][]model.Match
	nextID    int
	clock     time.Time
	// ignoreWhere makes List return unfiltered pages.
	ignoreWhere bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		docs:    map[string][]model.Document{},
		matches: map[string][]model.Match{},
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeGateway) add(collection string, docs ...model.Document) {
	f.docs[collection] = append(f.docs[collection], docs...)
}

func (f *fakeGateway) Write(_ context.Context, scope model.Scope, req api.WriteRequest) (*api.WriteResponse, error) {
	name, err := model.CollectionName(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}
	f.nextID++
	id := fmt.Sprintf("w%d", f.nextID)
	f.writes = append(f.writes, req)
	f.clock = f.clock.Add(time.Minute)
	meta := model.MetadataFromMap(req.Metadata)
	meta.CreatedAt = model.FormatTime(f.clock)
	f.docs[name] = append(f.docs[name], model.Document{ID: id, Text: req.Text, Metadata: meta})
	return &api.WriteResponse{Status: "success", Collection: name, ID: id}, nil
}

func (f *fakeGateway) Query(_ context.Context, scope model.Scope, req api.QueryRequest) (*api.QueryResponse, error) {
	name, err := model.CollectionName(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}
	m := f.matches[name]
	return &api.QueryResponse{Query: req.Query, Collection: name, Count: len(m), Matches: m}, nil
}

func (f *fakeGateway) List(_ context.Context, scope model.Scope, req api.ListRequest) (*api.ListResponse, error) {
	f.listCalls++
	name, err := model.CollectionName(scope, req.ProjectID)
	if err != nil {
		return nil, err
	}
	var all []model.Document
	for _, d := range f.docs[name] {
		if !f.ignoreWhere && req.Where[model.KeyType] != "" && d.Metadata.Type != req.Where[model.KeyType] {
			continue
		}
		all = append(all, d)
	}
	start := min(req.Offset, len(all))
	end := min(start+req.Limit, len(all))
	page := slices.Clone(all[start:end])
	if page == nil {
		page = []model.Document{}
	}
	return &api.ListResponse{Collection: name, Count: len(page), Documents: page}, nil
}

func (f *fakeGateway) DeleteDocuments(_ context.Context, req api.DeleteDocumentsRequest) (*api.DeleteDocumentsResponse, error) {
	f.deletes = append(f.deletes, req)
	f.docs[req.Collection] = slices.DeleteFunc(f.docs[req.Collection], func(d model.Document) bool {
		return slices.Contains(req.IDs, d.ID)
	})
	return &api.DeleteDocumentsResponse{Status: "success", Collection: req.Collection, DeletedCount: len(req.IDs), DeletedIDs: req.IDs}, nil
}

func (f *fakeGateway) DeleteProject(_ context.Context, req api.DeleteProjectRequest) (*api.DeleteProjectResponse, error) {
	name, err := model.CollectionName(model.ScopeProject, req.ProjectID)
	if err != nil {
		return nil, err
	}
	f.dropped = append(f.dropped, name)
	delete(f.docs, name)
	return &api.DeleteProjectResponse{Status: "success", Collection: name}, nil
}
