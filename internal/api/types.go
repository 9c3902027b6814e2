// Package api defines the JSON bodies exchanged between vmem and the gateway.
package api

import "github.com/rcliao/vector-memory/internal/model"

// Defaults applied by the gateway when a field is zero.
const (
	DefaultTopK  = 5
	DefaultLimit = 20
)

type HealthResponse struct {
	Status string `json:"status"`
}

// WriteRequest is the body of /write/global and /write/project. ProjectID is
// ignored for global writes.
type WriteRequest struct {
	ProjectID string         `json:"project_id,omitempty"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type WriteResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type QueryRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
}

type QueryResponse struct {
	Query      string        `json:"query"`
	Collection string        `json:"collection"`
	Count      int           `json:"count"`
	Matches    []model.Match `json:"matches"`
}

// ListRequest pages through a collection. Where is an optional exact-match
// filter on metadata keys.
type ListRequest struct {
	ProjectID string            `json:"project_id,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
	Where     map[string]string `json:"where,omitempty"`
}

type ListResponse struct {
	Collection string           `json:"collection"`
	Count      int              `json:"count"`
	Documents  []model.Document `json:"documents"`
}

type DeleteDocumentsRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

type DeleteDocumentsResponse struct {
	Status       string   `json:"status"`
	Collection   string   `json:"collection"`
	DeletedCount int      `json:"deleted_count"`
	DeletedIDs   []string `json:"deleted_ids"`
}

type DeleteProjectRequest struct {
	ProjectID string `json:"project_id"`
}

type DeleteProjectResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	Message    string `json:"message"`
}

// ErrorResponse is the body of every non-2xx gateway reply.
type ErrorResponse struct {
	Message string `json:"message"`
}
