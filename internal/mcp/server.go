package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mfenderov/recaplet/pkg/models"
)

const defaultLimit = 20

// DocumentSource provides the current news document.
type DocumentSource interface {
	Load(ctx context.Context) models.NewsDocument
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server exposes the news document as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	source    DocumentSource
}

// NewServer creates a new MCP server with news tools.
func NewServer(config Config, source DocumentSource) (*Server, error) {
	if source == nil {
		return nil, fmt.Errorf("document source is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		source:    source,
	}

	listTool := mcp.NewTool("list_news",
		mcp.WithDescription("List the most recent summarized news items, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of items to return (default: 20)"),
		),
		mcp.WithString("source",
			mcp.Description("Only return items from this feed source"),
		),
	)
	mcpServer.AddTool(listTool, s.listHandler)

	getTool := mcp.NewTool("get_news",
		mcp.WithDescription("Get a single news item by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("News item ID (12 hex characters)"),
		),
	)
	mcpServer.AddTool(getTool, s.getHandler)

	return s, nil
}

// listHandler handles the list_news tool call.
func (s *Server) listHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultLimit)
	source := req.GetString("source", "")

	items := s.handleList(ctx, limit, source)

	result, err := json.Marshal(items)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal items: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// getHandler handles the get_news tool call.
func (s *Server) getHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	item := s.handleGet(ctx, id)
	if item == nil {
		return mcp.NewToolResultError(fmt.Sprintf("news item not found: %s", id)), nil
	}

	result, err := json.Marshal(item)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal item: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// handleList returns up to limit items, optionally filtered by source.
func (s *Server) handleList(ctx context.Context, limit int, source string) []models.NewsItem {
	if limit <= 0 {
		limit = defaultLimit
	}

	doc := s.source.Load(ctx)
	items := make([]models.NewsItem, 0, min(limit, len(doc.Items)))
	for _, item := range doc.Items {
		if source != "" && item.Source != source {
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items
}

// handleGet retrieves an item by ID, or nil when absent.
func (s *Server) handleGet(ctx context.Context, id string) *models.NewsItem {
	doc := s.source.Load(ctx)
	for i := range doc.Items {
		if doc.Items[i].ID == id {
			return &doc.Items[i]
		}
	}
	return nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
