// Package mcptools exposes vmem memory operations as MCP tools over stdio.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/vector-memory/internal/config"
	"github.com/rcliao/vector-memory/internal/memory"
	"github.com/rcliao/vector-memory/internal/model"
)

// ModeFunc returns the effective auto-save mode at call time.
type ModeFunc func() config.Mode

// NewServer builds the MCP server with every vmem tool registered.
func NewServer(svc *memory.Service, mode ModeFunc, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vmem",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	save := NewSaveTool(svc, mode)
	s.AddTool(save.Definition(), save.Handle)

	query := NewQueryTool(svc)
	s.AddTool(query.Definition(), query.Handle)

	search := NewSearchTool(svc)
	s.AddTool(search.Definition(), search.Handle)

	compact := NewCompactTool(svc)
	s.AddTool(compact.Definition(), compact.Handle)

	retrieve := NewRetrieveCompactTool(svc)
	s.AddTool(retrieve.Definition(), retrieve.Handle)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = "vmem is long-term vector memory for this project. " +
	"Call vmem_query or vmem_search before starting work on a topic. " +
	"Call vmem_save after finishing a task with a 2-4 sentence summary of what was decided and why. " +
	"Use vmem_compact at the end of a long session to store a full snapshot."

func scopeArg(req mcp.CallToolRequest) (model.Scope, error) {
	switch s := model.Scope(strings.ToLower(req.GetString("scope", string(model.ScopeProject)))); s {
	case model.ScopeProject, model.ScopeGlobal:
		return s, nil
	default:
		return "", fmt.Errorf("'scope' must be project or global, got %q", s)
	}
}

func scopeParam() mcp.ToolOption {
	return mcp.WithString("scope",
		mcp.Description("Collection to use: project (default) or global"),
	)
}

// snippet is the first line of text cut to n runes.
func snippet(text string, n int) string {
	line, _, _ := strings.Cut(text, "\n")
	if r := []rune(line); len(r) > n {
		return string(r[:n]) + "..."
	}
	return line
}

func day(d model.Document) string {
	if len(d.Metadata.CreatedAt) >= 10 {
		return d.Metadata.CreatedAt[:10]
	}
	return "unknown"
}

// --- vmem_save ---

// SaveTool handles vmem_save.
type SaveTool struct {
	svc  *memory.Service
	mode ModeFunc
}

func NewSaveTool(svc *memory.Service, mode ModeFunc) *SaveTool {
	return &SaveTool{svc: svc, mode: mode}
}

func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("vmem_save",
		mcp.WithDescription(
			"Save a short note to vector memory. Respects the auto-save toggle unless force is set; "+
				"set force when the user explicitly asked to remember something.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What was done, why it matters and the key names involved"),
		),
		scopeParam(),
		mcp.WithString("type",
			mcp.Description("Content type: note (default), workflow, bug, decision, ..."),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("importance",
			mcp.Description("low, medium or high"),
		),
		mcp.WithString("agent",
			mcp.Description("Name of the calling agent (default: mcp)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Save even when auto-save is off"),
		),
	)
}

func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	scope, err := scopeArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	importance := req.GetString("importance", "")
	switch importance {
	case "", "low", "medium", "high":
	default:
		return mcp.NewToolResultError("'importance' must be low, medium or high"), nil
	}

	force := req.GetBool("force", false)
	if !force {
		if mode := t.mode(); mode != config.ModeOn {
			return mcp.NewToolResultText(fmt.Sprintf("Auto-save is %s. Nothing saved; pass force=true to save anyway.", strings.ToUpper(string(mode)))), nil
		}
	}

	resp, err := t.svc.Save(ctx, memory.SaveParams{
		Scope:      scope,
		Text:       text,
		Type:       req.GetString("type", ""),
		Agent:      req.GetString("agent", "mcp"),
		Tags:       splitTags(req.GetString("tags", "")),
		Importance: importance,
		Force:      force,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved to %s (id %s)", resp.Collection, resp.ID)), nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- vmem_query ---

// QueryTool handles vmem_query.
type QueryTool struct {
	svc *memory.Service
}

func NewQueryTool(svc *memory.Service) *QueryTool { return &QueryTool{svc: svc} }

func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool("vmem_query",
		mcp.WithDescription("Semantic search in one collection (project by default)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keywords or a question"),
		),
		scopeParam(),
		mcp.WithNumber("top_k",
			mcp.Description("Number of results (default 5)"),
		),
	)
}

func (t *QueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	scope, err := scopeArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.svc.Query(ctx, scope, query, int(req.GetFloat("top_k", 5)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if len(res.Matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No relevant results found in %s", res.Collection)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Results from %s:\n", res.Collection)
	for i, m := range res.Matches {
		fmt.Fprintf(&b, "\n[%d] %.2f%%\n%s\n", i+1, m.Similarity*100, m.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// --- vmem_search ---

// SearchTool handles vmem_search.
type SearchTool struct {
	svc *memory.Service
}

func NewSearchTool(svc *memory.Service) *SearchTool { return &SearchTool{svc: svc} }

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("vmem_search",
		mcp.WithDescription("Semantic search across the project and global collections, best matches first."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keywords or a question"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of results (default 3)"),
		),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	matches, err := t.svc.Search(ctx, query, int(req.GetFloat("top_k", 3)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No relevant results found"), nil
	}
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] %.2f%% (%s)\n%s\n\n", i+1, m.Similarity*100, m.Collection, m.Text)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

// --- vmem_compact ---

// CompactTool handles vmem_compact.
type CompactTool struct {
	svc *memory.Service
}

func NewCompactTool(svc *memory.Service) *CompactTool { return &CompactTool{svc: svc} }

func (t *CompactTool) Definition() mcp.Tool {
	return mcp.NewTool("vmem_compact",
		mcp.WithDescription("Store a session snapshot. Only the most recent compacts are kept; the oldest is evicted."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Full snapshot: fixes, features, open issues, files touched"),
		),
		scopeParam(),
	)
}

func (t *CompactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := strings.TrimSpace(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	scope, err := scopeArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.svc.SaveCompact(ctx, scope, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compact failed: %v", err)), nil
	}
	msg := fmt.Sprintf("Compact saved to %s (id %s). Total compacts: %d/%d", res.Write.Collection, res.Write.ID, res.Total, t.svc.CompactCap())
	if len(res.Evicted) > 0 {
		msg += fmt.Sprintf(". Evicted %d oldest.", len(res.Evicted))
	}
	return mcp.NewToolResultText(msg), nil
}

// --- vmem_retrieve_compact ---

// RetrieveCompactTool handles vmem_retrieve_compact.
type RetrieveCompactTool struct {
	svc *memory.Service
}

func NewRetrieveCompactTool(svc *memory.Service) *RetrieveCompactTool {
	return &RetrieveCompactTool{svc: svc}
}

func (t *RetrieveCompactTool) Definition() mcp.Tool {
	return mcp.NewTool("vmem_retrieve_compact",
		mcp.WithDescription("Read a stored compact. Index 1 is the newest. Set all to list every compact instead."),
		mcp.WithNumber("index",
			mcp.Description("1-based compact index (default 1)"),
		),
		mcp.WithBoolean("all",
			mcp.Description("List all compacts with their first line"),
		),
		scopeParam(),
	)
}

func (t *RetrieveCompactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := scopeArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	listing, err := t.svc.Compacts(ctx, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch compacts: %v", err)), nil
	}
	if len(listing.Documents) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No compacts found in %s", listing.Collection)), nil
	}

	if req.GetBool("all", false) {
		var b strings.Builder
		fmt.Fprintf(&b, "Compacts (%s): %d/%d\n", listing.Collection, len(listing.Documents), t.svc.CompactCap())
		for i, d := range listing.Documents {
			fmt.Fprintf(&b, "[%d] %s | %s\n", i+1, day(d), snippet(d.Text, 60))
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	index := int(req.GetFloat("index", 1))
	d, err := memory.Pick(listing.Documents, index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Compact [%d/%d] %s\n\n%s", index, len(listing.Documents), day(d), d.Text)), nil
}
