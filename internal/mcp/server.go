// Package mcp exposes the catalog as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	catalog   *services.CatalogService
}

func NewServer(catalog *services.CatalogService, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Workflow Catalog",
			version,
			server.WithToolCapabilities(true),
		),
		catalog: catalog,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"search_workflows",
			mcp.WithDescription("Find workflows whose purpose matches a free-text query"),
			mcp.WithString("query", mcp.Required(), mcp.Description("What the workflow should do")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10, max 100)")),
		),
		s.handleSearch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List catalog entries in creation order"),
			mcp.WithNumber("offset", mcp.Description("Number of entries to skip")),
			mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
			mcp.WithString("category", mcp.Description("Only entries in this category")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Get a workflow with its generated description and SEO metadata"),
			mcp.WithString("slug", mcp.Required(), mcp.Description("The workflow slug")),
		),
		s.handleGet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"sync_catalog",
			mcp.WithDescription("Synchronize the catalog with the source repository"),
		),
		s.handleSync,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"enrich_catalog",
			mcp.WithDescription("Generate one batch of artifacts for entries that lack them"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("description", "seo", "embedding"), mcp.Description("The artifact kind")),
			mcp.WithNumber("offset", mcp.Description("Cursor returned by the previous batch as nextOffset")),
			mcp.WithNumber("limit", mcp.Description("Batch size")),
		),
		s.handleEnrich,
	)
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, bool) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, true
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	return args, ok
}

// intArg reads an optional numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("parameter %s must be a number", key)
	}
	return int(f), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("Missing required parameter: query"), nil
	}
	limit, err := intArg(args, "limit", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.catalog.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	opts := repository.ListOptions{}
	var err error
	if opts.Offset, err = intArg(args, "offset", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if opts.Limit, err = intArg(args, "limit", 50); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts.Category, _ = args["category"].(string)

	workflows, err := s.catalog.ListWorkflows(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}
	return jsonResult(workflows)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	slug, ok := args["slug"].(string)
	if !ok || slug == "" {
		return mcp.NewToolResultError("Missing required parameter: slug"), nil
	}

	detail, err := s.catalog.GetWorkflow(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get workflow: %v", err)), nil
	}
	return jsonResult(detail)
}

func (s *Server) handleSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.catalog.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to sync: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleEnrich(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	name, _ := args["kind"].(string)
	kind, ok := models.ParseArtifactKind(name)
	if !ok {
		return mcp.NewToolResultError("Parameter kind must be description, seo or embedding"), nil
	}
	var window models.EnrichWindow
	var err error
	if window.Offset, err = intArg(args, "offset", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if window.Limit, err = intArg(args, "limit", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.catalog.Enrich(ctx, kind, window)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to enrich: %v", err)), nil
	}
	return jsonResult(result)
}

// MountHTTPHandlers serves the SSE transport under /mcp.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
