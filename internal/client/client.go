// Package client calls the storage gateway over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/rcliao/vector-memory/internal/api"
	"github.com/rcliao/vector-memory/internal/model"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-2xx gateway reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	var er api.ErrorResponse
	if json.Unmarshal([]byte(e.Body), &er) == nil && er.Message != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.Code, er.Message)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Code, strings.TrimSpace(e.Body))
}

type userAgentTransport struct {
	agent string
	rt    http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", u.agent)
	return u.rt.RoundTrip(r2)
}

// Client is a gateway client. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	version string
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithVersion sets the version reported in the User-Agent.
func WithVersion(v string) Option {
	return func(c *clientConfig) { c.version = v }
}

// New creates a Client for the gateway at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	cfg := clientConfig{timeout: DefaultTimeout, version: "dev"}
	for _, o := range opts {
		o(&cfg)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: cfg.timeout,
			Transport: &userAgentTransport{
				agent: fmt.Sprintf("vmem/%s (%s; %s)", cfg.version, runtime.GOOS, runtime.GOARCH),
				rt:    http.DefaultTransport,
			},
		},
	}
}

// BaseURL returns the gateway URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	// ngrok free tunnels answer with an HTML interstitial without this.
	req.Header.Set("ngrok-skip-browser-warning", "true")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Write(ctx context.Context, scope model.Scope, req api.WriteRequest) (*api.WriteResponse, error) {
	if scope == model.ScopeGlobal {
		req.ProjectID = ""
	}
	var resp api.WriteResponse
	if err := c.do(ctx, http.MethodPost, "/write/"+string(scope), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Query(ctx context.Context, scope model.Scope, req api.QueryRequest) (*api.QueryResponse, error) {
	if scope == model.ScopeGlobal {
		req.ProjectID = ""
	}
	var resp api.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query/"+string(scope), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) List(ctx context.Context, scope model.Scope, req api.ListRequest) (*api.ListResponse, error) {
	if scope == model.ScopeGlobal {
		req.ProjectID = ""
	}
	var resp api.ListResponse
	if err := c.do(ctx, http.MethodPost, "/list/"+string(scope), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteDocuments(ctx context.Context, req api.DeleteDocumentsRequest) (*api.DeleteDocumentsResponse, error) {
	var resp api.DeleteDocumentsResponse
	if err := c.do(ctx, http.MethodPost, "/delete/document", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteProject(ctx context.Context, req api.DeleteProjectRequest) (*api.DeleteProjectResponse, error) {
	var resp api.DeleteProjectResponse
	if err := c.do(ctx, http.MethodPost, "/delete/project", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
