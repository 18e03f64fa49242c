package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hylla/morfo/internal/adapters/server/common"
	"github.com/hylla/morfo/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubFormService provides deterministic controller responses for MCP tool tests.
type stubFormService struct {
	outcome    domain.Outcome
	health     string
	healthErr  error
	entries    []domain.HistoryEntry
	historyErr error

	lastMode  domain.Mode
	lastInput domain.FormInput
	lastLimit int
}

// SubmitMode records the latest submission and returns the fixture outcome.
func (s *stubFormService) SubmitMode(_ context.Context, mode domain.Mode, in domain.FormInput) domain.Outcome {
	s.lastMode = mode
	s.lastInput = in
	out := s.outcome
	out.Mode = mode
	return out
}

// Health returns the fixture health status.
func (s *stubFormService) Health(context.Context) (string, error) {
	return s.health, s.healthErr
}

// History records the limit and returns fixture entries.
func (s *stubFormService) History(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	s.lastLimit = limit
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return append([]domain.HistoryEntry(nil), s.entries...), nil
}

// HistoryEntry is unused by the MCP tools.
func (s *stubFormService) HistoryEntry(context.Context, string) (domain.HistoryEntry, error) {
	return domain.HistoryEntry{}, common.ErrNotFound
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
				"name":    "morfo-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// newTestServer starts one httptest server around a fresh MCP handler.
func newTestServer(t *testing.T, cfg Config, svc common.FormService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(cfg, svc)
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
	handler, err := NewHandler(Config{}, &stubFormService{})
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

// TestHandlerRegistersTools verifies MCP tool discovery lists every analysis tool.
func TestHandlerRegistersTools(t *testing.T) {
	server := newTestServer(t, Config{}, &stubFormService{})
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
		"morfo.analyze_single",
		"morfo.analyze_batch",
		"morfo.analyze_file",
		"morfo.health",
		"morfo.history",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %s: %#v", required, toolNames)
		}
	}
}

// TestHandlerAnalyzeToolCalls verifies each mode tool routes its arguments to the controller.
func TestHandlerAnalyzeToolCalls(t *testing.T) {
	cases := []struct {
		name     string
		tool     string
		args     map[string]any
		wantMode domain.Mode
		want     domain.FormInput
	}{
		{
			name:     "single with explicit key",
			tool:     "morfo.analyze_single",
			args:     map[string]any{"word": "kitablar", "api_key": "k1"},
			wantMode: domain.ModeSingle,
			want:     domain.FormInput{Credential: "k1", Word: "kitablar"},
		},
		{
			name:     "batch falls back to configured key",
			tool:     "morfo.analyze_batch",
			args:     map[string]any{"words": "alma\narmud"},
			wantMode: domain.ModeBatch,
			want:     domain.FormInput{Credential: "configured", WordsText: "alma\narmud"},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubFormService{outcome: domain.Outcome{
				Kind: domain.OutcomeSuccess,
				Text: "{\n  \"ok\": true\n}",
			}}
			server := newTestServer(t, Config{DefaultCredential: "configured"}, svc)

			_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, tt.tool, tt.args))
			if isErr, _ := callResp.Result["isError"].(bool); isErr {
				t.Fatalf("isError = true, want false: %#v", callResp.Result)
			}
			if got := toolResultText(t, callResp.Result); got != "{\n  \"ok\": true\n}" {
				t.Fatalf("text = %q, want pretty JSON", got)
			}
			if svc.lastMode != tt.wantMode {
				t.Fatalf("mode = %q, want %q", svc.lastMode, tt.wantMode)
			}
			if svc.lastInput != tt.want {
				t.Fatalf("input = %#v, want %#v", svc.lastInput, tt.want)
			}
		})
	}
}

// TestHandlerAnalyzeFileToolConfinedToRoot verifies analyze_file only reads .txt files under the upload root.
func TestHandlerAnalyzeFileToolConfinedToRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "words.txt"), []byte("alma\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("TOP-SECRET\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	wantPath, err := filepath.EvalSymlinks(filepath.Join(root, "words.txt"))
	if err != nil {
		t.Fatalf("EvalSymlinks() error = %v", err)
	}

	svc := &stubFormService{outcome: domain.Outcome{Kind: domain.OutcomeSuccess, Text: "{}"}}
	server := newTestServer(t, Config{DefaultCredential: "configured", UploadRoot: root}, svc)
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(8, "morfo.analyze_file", map[string]any{"path": "words.txt"}))
	if isErr, _ := callResp.Result["isError"].(bool); isErr {
		t.Fatalf("isError = true, want false: %#v", callResp.Result)
	}
	if svc.lastMode != domain.ModeFile || svc.lastInput.FilePath != wantPath || svc.lastInput.Credential != "configured" {
		t.Fatalf("unexpected submission mode=%q input=%#v", svc.lastMode, svc.lastInput)
	}

	for _, path := range []string{secret, "../" + filepath.Base(outside) + "/secret.txt", "words.md"} {
		svc := &stubFormService{outcome: domain.Outcome{Kind: domain.OutcomeSuccess, Text: "{}"}}
		server := newTestServer(t, Config{UploadRoot: root}, svc)
		_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(9, "morfo.analyze_file", map[string]any{"path": path}))
		if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "forbidden:") {
			t.Fatalf("path %q text = %q, want forbidden prefix", path, got)
		}
		if svc.lastMode != "" {
			t.Fatalf("path %q reached the controller", path)
		}
	}

	svc = &stubFormService{}
	server = newTestServer(t, Config{}, svc)
	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(10, "morfo.analyze_file", map[string]any{"path": filepath.Join(root, "words.txt")}))
	if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "forbidden:") {
		t.Fatalf("text = %q, want forbidden prefix without an upload root", got)
	}
}

// TestHandlerAnalyzeToolErrorOutcome verifies non-success outcomes become tool errors.
func TestHandlerAnalyzeToolErrorOutcome(t *testing.T) {
	svc := &stubFormService{outcome: domain.Outcome{
		Kind:       domain.OutcomeAPIError,
		Text:       "Error: Invalid API key",
		StatusCode: http.StatusUnauthorized,
	}}
	server := newTestServer(t, Config{}, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "morfo.analyze_single", map[string]any{
		"word":    "ev",
		"api_key": "bad",
	}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("isError = false, want true: %#v", callResp.Result)
	}
	if got := toolResultText(t, callResp.Result); got != "Error: Invalid API key" {
		t.Fatalf("text = %q, want detail message", got)
	}
}

// TestHandlerHealthTool verifies health check success and failure mapping.
func TestHandlerHealthTool(t *testing.T) {
	server := newTestServer(t, Config{}, &stubFormService{health: "ok"})
	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(5, "morfo.health", map[string]any{}))
	if got := toolResultText(t, callResp.Result); got != "ok" {
		t.Fatalf("text = %q, want ok", got)
	}

	server = newTestServer(t, Config{}, &stubFormService{healthErr: errors.New("connection refused")})
	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(6, "morfo.health", map[string]any{}))
	if isErr, _ := callResp.Result["isError"].(bool); !isErr {
		t.Fatalf("isError = false, want true: %#v", callResp.Result)
	}
	if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "upstream_error:") {
		t.Fatalf("text = %q, want upstream_error prefix", got)
	}
}

// TestHandlerHistoryTool verifies history rows are returned as structured content.
func TestHandlerHistoryTool(t *testing.T) {
	now := time.Date(2026, 2, 24, 12, 0, 0, 0, time.UTC)
	svc := &stubFormService{entries: []domain.HistoryEntry{
		{ID: "h1", Mode: domain.ModeSingle, Summary: "ev", WordCount: 1, Kind: domain.OutcomeSuccess, StatusCode: 200, CreatedAt: now},
	}}
	server := newTestServer(t, Config{}, svc)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(7, "morfo.history", map[string]any{"limit": 3}))
	structured, ok := callResp.Result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in response: %#v", callResp.Result)
	}
	items, ok := structured["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %#v, want one row", structured["items"])
	}
	row, _ := items[0].(map[string]any)
	if got, _ := row["id"].(string); got != "h1" {
		t.Fatalf("id = %q, want h1", got)
	}
	if svc.lastLimit != 3 {
		t.Fatalf("limit = %d, want 3", svc.lastLimit)
	}
}

// TestNewHandlerRequiresService verifies controller dependency enforcement.
func TestNewHandlerRequiresService(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want error")
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
			want: Config{ServerName: "morfo", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trimmed values and slash prefix",
			in:   Config{ServerName: " morfo-bridge ", ServerVersion: " v1.2.3 ", EndpointPath: "custom/path", DefaultCredential: " k "},
			want: Config{ServerName: "morfo-bridge", ServerVersion: "v1.2.3", EndpointPath: "/custom/path", DefaultCredential: "k"},
		},
		{
			name: "endpoint trim of repeated slashes",
			in:   Config{EndpointPath: "///mcp///"},
			want: Config{ServerName: "morfo", ServerVersion: "dev", EndpointPath: "/mcp"},
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
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver", handler: nil},
		{name: "missing inner http handler", handler: &Handler{}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "internal_error:"},
		{name: "history unavailable", err: common.ErrHistoryUnavailable, wantPrefix: "not_implemented:"},
		{name: "analyzer unavailable", err: common.ErrAnalyzerUnavailable, wantPrefix: "service_unavailable:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "path not allowed", err: common.ErrPathNotAllowed, wantPrefix: "forbidden:"},
		{name: "invalid request", err: common.ErrInvalidRequest, wantPrefix: "invalid_request:"},
		{name: "upstream", err: errors.New("boom"), wantPrefix: "upstream_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
