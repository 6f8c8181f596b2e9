// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing count session tools.
func NewHandler(cfg Config, counts common.CountService) (*Handler, error) {
	if counts == nil {
		return nil, fmt.Errorf("count service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerSessionTools(mcpSrv, counts)
	registerItemTools(mcpSrv, counts)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "tally"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerSessionTools registers session listing and lifecycle tools.
func registerSessionTools(srv *mcpserver.MCPServer, counts common.CountService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.list_sessions",
			mcp.WithDescription("List count sessions, newest first."),
			mcp.WithString("status", mcp.Description("Filter by session status"), mcp.Enum("draft", "in_progress", "completed", "cancelled")),
			mcp.WithString("location_id", mcp.Description("Filter by location")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessions, err := counts.ListSessions(ctx, common.ListSessionsRequest{
				Status:     req.GetString("status", ""),
				LocationID: req.GetString("location_id", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_sessions", map[string]any{"sessions": sessions})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.create_session",
			mcp.WithDescription("Create a draft count session and seed its items from the catalog."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Session name")),
			mcp.WithString("location_id", mcp.Required(), mcp.Description("Location to count")),
			mcp.WithString("kind", mcp.Description("full or partial"), mcp.Enum("full", "partial")),
			mcp.WithArray("product_ids", mcp.Description("Products for a partial count"), mcp.WithStringItems()),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("created_by", mcp.Description("Actor creating the session")),
			mcp.WithString("notes", mcp.Description("Optional notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			locationID, err := req.RequireString("location_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			session, err := counts.CreateSession(ctx, common.CreateSessionRequest{
				Name:        name,
				LocationID:  locationID,
				Kind:        req.GetString("kind", ""),
				ProductIDs:  req.GetStringSlice("product_ids", nil),
				Description: req.GetString("description", ""),
				CreatedBy:   req.GetString("created_by", ""),
				Notes:       req.GetString("notes", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_session", session)
		},
	)

	registerSessionTransition(srv, "tally.start_session", "Start a draft count session.", counts.StartSession)
	registerSessionTransition(srv, "tally.reopen_session", "Reopen a completed count session for recounts.", counts.ReopenSession)

	srv.AddTool(
		mcp.NewTool(
			"tally.delete_session",
			mcp.WithDescription("Delete a count session that has not been completed."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := counts.DeleteSession(ctx, sessionID); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_session", map[string]any{"deleted": sessionID})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.session_progress",
			mcp.WithDescription("Return counting progress and variance totals for one session."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			progress, err := counts.SessionProgress(ctx, sessionID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("session_progress", progress)
		},
	)
}

// registerSessionTransition registers one id-only session state change.
func registerSessionTransition(srv *mcpserver.MCPServer, name, description string, fn func(context.Context, string) (common.Session, error)) {
	srv.AddTool(
		mcp.NewTool(
			name,
			mcp.WithDescription(description),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			session, err := fn(ctx, sessionID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(strings.TrimPrefix(name, "tally."), session)
		},
	)
}

// registerItemTools registers item listing, counting, and reconciliation tools.
func registerItemTools(srv *mcpserver.MCPServer, counts common.CountService) {
	srv.AddTool(
		mcp.NewTool(
			"tally.list_items",
			mcp.WithDescription("List the items of one session in seed order."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithArray("statuses", mcp.Description("Optional status filter"), mcp.WithStringItems()),
			mcp.WithString("variance", mcp.Description("with or without a variance"), mcp.Enum("with", "without")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			items, err := counts.ListItems(ctx, common.ListItemsRequest{
				SessionID: sessionID,
				Statuses:  req.GetStringSlice("statuses", nil),
				Variance:  req.GetString("variance", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_items", map[string]any{"items": items})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.record_count",
			mcp.WithDescription("Record the physical count for one item. Stock is not changed until reconciliation."),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("Item identifier")),
			mcp.WithNumber("quantity", mcp.Required(), mcp.Description("Counted quantity"), mcp.Min(0)),
			mcp.WithString("actor", mcp.Description("Who counted")),
			mcp.WithString("notes", mcp.Description("Optional notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			itemID, err := req.RequireString("item_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			quantity, err := requireWholeNumber(req, "quantity")
			if err != nil {
				return toolResultFromError(err), nil
			}
			item, err := counts.RecordCount(ctx, common.RecordCountRequest{
				ItemID:   itemID,
				Quantity: &quantity,
				Actor:    req.GetString("actor", ""),
				Notes:    req.GetString("notes", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("record_count", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"tally.reconcile",
			mcp.WithDescription("Apply a reconciliation policy to counted variances and update stock."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
			mcp.WithString("policy", mcp.Required(), mcp.Description("Reconciliation policy"), mcp.Enum("accept_count", "keep_system", "manual_adjust")),
			mcp.WithArray("item_ids", mcp.Description("Items to reconcile; empty selects every open variance"), mcp.WithStringItems()),
			mcp.WithNumber("manual_quantity", mcp.Description("Final quantity for manual_adjust"), mcp.Min(0)),
			mcp.WithString("notes", mcp.Description("Optional notes")),
			mcp.WithString("actor", mcp.Description("Who reconciled")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sessionID, err := req.RequireString("session_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			policy, err := req.RequireString("policy")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			var manual *int
			if _, ok := req.GetArguments()["manual_quantity"]; ok {
				value, err := requireWholeNumber(req, "manual_quantity")
				if err != nil {
					return toolResultFromError(err), nil
				}
				manual = &value
			}
			result, err := counts.Reconcile(ctx, common.ReconcileRequest{
				SessionID:      sessionID,
				Policy:         policy,
				ItemIDs:        req.GetStringSlice("item_ids", nil),
				ManualQuantity: manual,
				Notes:          req.GetString("notes", ""),
				Actor:          req.GetString("actor", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("reconcile", result)
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// requireWholeNumber reads a numeric argument that must hold an integer value.
// JSON numbers arrive as float64, so fractions are rejected instead of truncated.
func requireWholeNumber(req mcp.CallToolRequest, key string) (int, error) {
	value, err := req.RequireFloat(key)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", key, err, common.ErrInvalidRequest)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || math.Trunc(value) != value {
		return 0, fmt.Errorf("%s must be a whole number, got %v: %w", key, value, common.ErrInvalidRequest)
	}
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, fmt.Errorf("%s is out of range: %w", key, common.ErrInvalidRequest)
	}
	return int(value), nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrInvalidState):
		return mcp.NewToolResultError("invalid_state: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
