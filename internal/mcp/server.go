package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the responder tools over MCP
type Server struct {
	server  *mcpsdk.Server
	handler *Handler
}

// EmptyInput is used by tools that take no arguments
type EmptyInput struct{}

// LimitInput bounds list-style tools
type LimitInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of entries to return"`
}

// NewServer creates a new responder MCP server
func NewServer(handler *Handler, version string) *Server {
	if version == "" {
		version = "v1.0.0"
	}
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "offline-responder",
			Version: version,
		}, nil),
		handler: handler,
	}
	s.registerTools()
	return s
}

// registerTools registers all responder tools
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_status",
		Description: "Get the auto-responder state: ONLINE or OFFLINE, how long offline, and how many messages are pending.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
		out, err := s.handler.Status(ctx)
		return nil, out, err
	})

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_set_online",
		Description: "Mark the operator as online. Auto-replies stop and per-user reply counters reset.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StateOutput, error) {
		out, err := s.handler.SetOnline(ctx)
		return nil, out, err
	})

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_set_offline",
		Description: "Mark the operator as offline. Incoming messages get template auto-replies.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StateOutput, error) {
		out, err := s.handler.SetOffline(ctx)
		return nil, out, err
	})

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_list_pending",
		Description: "List messages received while offline, oldest first.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in LimitInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
		out, err := s.handler.ListPending(ctx, in.Limit)
		return nil, out, err
	})

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_clear_pending",
		Description: "Clear the list of messages received while offline, after they have been reviewed.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ClearOutput, error) {
		out, err := s.handler.ClearPending(ctx)
		return nil, out, err
	})

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "responder_history",
		Description: "Show recently received messages and whether each one got an auto-reply.",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in LimitInput) (*mcpsdk.CallToolResult, HistoryOutput, error) {
		out, err := s.handler.History(ctx, in.Limit)
		return nil, out, err
	})
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *Server) GetServer() *mcpsdk.Server {
	return s.server
}
