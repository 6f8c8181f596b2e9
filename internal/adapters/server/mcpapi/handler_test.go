package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/evanschultz/tally/internal/adapters/server/common"
	"github.com/evanschultz/tally/internal/report"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubCountService provides deterministic responses for MCP tool tests.
type stubCountService struct {
	err error

	sessions []common.Session
	session  common.Session
	items    []common.Item
	item     common.Item
	result   common.ReconcileResult
	progress common.Progress

	lastSessionID  string
	lastTransition string
	lastList       common.ListSessionsRequest
	lastCreate     common.CreateSessionRequest
	lastItems      common.ListItemsRequest
	lastCount      common.RecordCountRequest
	lastReconcile  common.ReconcileRequest
}

func (s *stubCountService) ListSessions(_ context.Context, req common.ListSessionsRequest) ([]common.Session, error) {
	s.lastList = req
	return s.sessions, s.err
}

func (s *stubCountService) CreateSession(_ context.Context, req common.CreateSessionRequest) (common.Session, error) {
	s.lastCreate = req
	return s.session, s.err
}

func (s *stubCountService) GetSession(_ context.Context, id string) (common.Session, error) {
	s.lastSessionID = id
	return s.session, s.err
}

func (s *stubCountService) StartSession(_ context.Context, id string) (common.Session, error) {
	s.lastSessionID, s.lastTransition = id, "start"
	return s.session, s.err
}

func (s *stubCountService) ReopenSession(_ context.Context, id string) (common.Session, error) {
	s.lastSessionID, s.lastTransition = id, "reopen"
	return s.session, s.err
}

func (s *stubCountService) CancelSession(_ context.Context, id string) (common.Session, error) {
	s.lastSessionID, s.lastTransition = id, "cancel"
	return s.session, s.err
}

func (s *stubCountService) DeleteSession(_ context.Context, id string) error {
	s.lastSessionID = id
	return s.err
}

func (s *stubCountService) ListItems(_ context.Context, req common.ListItemsRequest) ([]common.Item, error) {
	s.lastItems = req
	return s.items, s.err
}

func (s *stubCountService) RecordCount(_ context.Context, req common.RecordCountRequest) (common.Item, error) {
	s.lastCount = req
	return s.item, s.err
}

func (s *stubCountService) Reconcile(_ context.Context, req common.ReconcileRequest) (common.ReconcileResult, error) {
	s.lastReconcile = req
	return s.result, s.err
}

func (s *stubCountService) SessionProgress(_ context.Context, id string) (common.Progress, error) {
	s.lastSessionID = id
	return s.progress, s.err
}

func (s *stubCountService) SessionReport(context.Context, string) (report.VarianceReport, error) {
	return report.VarianceReport{}, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "tally-test",
				"version": "1.0.0",
			},
		},
	}
}

// startServer builds the handler over svc and serves it from an httptest server.
func startServer(t *testing.T, svc common.CountService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubCountService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersCountTools verifies tool discovery lists every count tool.
func TestHandlerRegistersCountTools(t *testing.T) {
	server := startServer(t, &stubCountService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"tally.list_sessions",
		"tally.create_session",
		"tally.start_session",
		"tally.reopen_session",
		"tally.delete_session",
		"tally.list_items",
		"tally.record_count",
		"tally.reconcile",
		"tally.session_progress",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerCreateSessionToolCall verifies argument mapping for session creation.
func TestHandlerCreateSessionToolCall(t *testing.T) {
	svc := &stubCountService{session: common.Session{ID: "s1", Name: "March", Status: "draft"}}
	server := startServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.create_session", map[string]any{
		"name":        "March",
		"location_id": "loc-1",
		"kind":        "partial",
		"product_ids": []string{"p1", "p2"},
	}))
	structured := toolResultStructured(t, callResp.Result)
	if got, _ := structured["id"].(string); got != "s1" {
		t.Fatalf("id = %q, want s1", got)
	}
	if svc.lastCreate.LocationID != "loc-1" || svc.lastCreate.Kind != "partial" || len(svc.lastCreate.ProductIDs) != 2 {
		t.Fatalf("unexpected create request %#v", svc.lastCreate)
	}
}

// TestHandlerSessionTransitionTools verifies start and reopen routing.
func TestHandlerSessionTransitionTools(t *testing.T) {
	for _, tc := range []struct {
		tool string
		want string
	}{
		{tool: "tally.start_session", want: "start"},
		{tool: "tally.reopen_session", want: "reopen"},
	} {
		svc := &stubCountService{session: common.Session{ID: "s1"}}
		server := startServer(t, svc)
		_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, tc.tool, map[string]any{"session_id": "s1"}))
		if svc.lastTransition != tc.want || svc.lastSessionID != "s1" {
			t.Fatalf("%s routed to %q for %q", tc.tool, svc.lastTransition, svc.lastSessionID)
		}
	}
}

// TestHandlerRecordCountToolCall verifies numeric argument handling.
func TestHandlerRecordCountToolCall(t *testing.T) {
	svc := &stubCountService{item: common.Item{ID: "i1", Status: "counted"}}
	server := startServer(t, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.record_count", map[string]any{
		"item_id":  "i1",
		"quantity": 42,
		"actor":    "ana",
	}))
	structured := toolResultStructured(t, callResp.Result)
	if got, _ := structured["status"].(string); got != "counted" {
		t.Fatalf("status = %q, want counted", got)
	}
	if svc.lastCount.Quantity == nil || *svc.lastCount.Quantity != 42 || svc.lastCount.Actor != "ana" {
		t.Fatalf("unexpected count request %#v", svc.lastCount)
	}

	svc.lastCount = common.RecordCountRequest{}
	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tally.record_count", map[string]any{
		"item_id":  "i1",
		"quantity": 4.7,
	}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected fractional quantity to fail, got %#v", callResp.Result)
	}
	if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request prefix", text)
	}
	if svc.lastCount.Quantity != nil {
		t.Fatalf("fractional quantity must not reach the service, got %d", *svc.lastCount.Quantity)
	}
}

// TestHandlerReconcileToolCall verifies optional manual quantity handling.
func TestHandlerReconcileToolCall(t *testing.T) {
	svc := &stubCountService{result: common.ReconcileResult{Processed: 1, Message: "done"}}
	server := startServer(t, svc)

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.reconcile", map[string]any{
		"session_id": "s1",
		"policy":     "accept_count",
	}))
	if svc.lastReconcile.ManualQuantity != nil || svc.lastReconcile.Policy != "accept_count" {
		t.Fatalf("unexpected reconcile request %#v", svc.lastReconcile)
	}

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "tally.reconcile", map[string]any{
		"session_id":      "s1",
		"policy":          "manual_adjust",
		"manual_quantity": 45,
		"item_ids":        []string{"i1"},
	}))
	if svc.lastReconcile.ManualQuantity == nil || *svc.lastReconcile.ManualQuantity != 45 || len(svc.lastReconcile.ItemIDs) != 1 {
		t.Fatalf("unexpected manual reconcile request %#v", svc.lastReconcile)
	}
	structured := toolResultStructured(t, callResp.Result)
	if got, _ := structured["message"].(string); got != "done" {
		t.Fatalf("message = %q, want done", got)
	}

	svc.lastReconcile = common.ReconcileRequest{}
	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "tally.reconcile", map[string]any{
		"session_id":      "s1",
		"policy":          "manual_adjust",
		"manual_quantity": 45.9,
	}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("expected fractional manual quantity to fail, got %#v", callResp.Result)
	}
	if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request prefix", text)
	}
	if svc.lastReconcile.SessionID != "" {
		t.Fatalf("fractional manual quantity must not reach the service, got %#v", svc.lastReconcile)
	}
}

func TestRequireWholeNumber(t *testing.T) {
	cases := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{name: "integer", value: 42, want: 42},
		{name: "whole float", value: 42.0, want: 42},
		{name: "zero", value: 0, want: 0},
		{name: "fraction", value: 4.7, wantErr: true},
		{name: "too large", value: 1e12, wantErr: true},
		{name: "not a number", value: "many", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req mcp.CallToolRequest
			req.Params.Arguments = map[string]any{"quantity": tc.value}
			got, err := requireWholeNumber(req, "quantity")
			if tc.wantErr {
				if !errors.Is(err, common.ErrInvalidRequest) {
					t.Fatalf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("requireWholeNumber() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("requireWholeNumber() = %d, want %d", got, tc.want)
			}
		})
	}
}

// TestHandlerToolErrors verifies service errors surface as coded tool errors.
func TestHandlerToolErrors(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{err: fmt.Errorf("start: %w", common.ErrInvalidState), code: "invalid_state"},
		{err: fmt.Errorf("start: %w", common.ErrNotFound), code: "not_found"},
		{err: fmt.Errorf("start: %w", common.ErrInvalidRequest), code: "invalid_request"},
	}
	for _, tc := range cases {
		server := startServer(t, &stubCountService{err: tc.err})
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.start_session", map[string]any{"session_id": "s1"}))
		if isErr, _ := callResp.Result["isError"].(bool); !isErr {
			t.Fatalf("isError = false for %v", tc.err)
		}
		if text := toolResultText(t, callResp.Result); !strings.HasPrefix(text, tc.code+":") {
			t.Fatalf("text = %q, want prefix %q", text, tc.code)
		}
	}
}

// TestHandlerMissingRequiredArgument verifies required argument checks.
func TestHandlerMissingRequiredArgument(t *testing.T) {
	svc := &stubCountService{}
	server := startServer(t, svc)
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "tally.session_progress", map[string]any{}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("isError = false, want true: %#v", callResp.Result)
	}
	if svc.lastSessionID != "" {
		t.Fatalf("service called with %q", svc.lastSessionID)
	}
}

// TestNewHandlerRequiresCountService verifies dependency enforcement.
func TestNewHandlerRequiresCountService(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies deterministic config defaults and path normalization.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "tally", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trimmed values and slash prefix",
			in:   Config{ServerName: " tally-server ", ServerVersion: " v1.2.3 ", EndpointPath: "custom/path"},
			want: Config{ServerName: "tally-server", ServerVersion: "v1.2.3", EndpointPath: "/custom/path"},
		},
		{
			name: "endpoint trim of repeated slashes",
			in:   Config{ServerName: "tally", ServerVersion: "dev", EndpointPath: "///mcp///"},
			want: Config{ServerName: "tally", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler paths fail closed with 503.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	for _, handler := range []*Handler{nil, {}} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	}
}
