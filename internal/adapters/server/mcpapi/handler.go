// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the analysis form.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/morfo/internal/adapters/server/common"
	"github.com/hylla/morfo/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string

	// DefaultCredential is forwarded when a tool call omits api_key.
	DefaultCredential string

	// UploadRoot confines analyze_file paths; empty disables the tool's uploads.
	UploadRoot string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// historyRow is the tool-facing shape of one recorded submission.
type historyRow struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Summary    string `json:"summary"`
	WordCount  int    `json:"word_count"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// NewHandler builds one stateless MCP adapter exposing the analysis tools.
func NewHandler(cfg Config, svc common.FormService) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("form service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerAnalyzeTools(mcpSrv, svc, cfg)
	registerHealthTool(mcpSrv, svc)
	registerHistoryTool(mcpSrv, svc)

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
		cfg.ServerName = "morfo"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	if cfg.EndpointPath == "/" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.DefaultCredential = strings.TrimSpace(cfg.DefaultCredential)
	cfg.UploadRoot = strings.TrimSpace(cfg.UploadRoot)
	return cfg
}

// registerAnalyzeTools registers one analysis tool per input mode.
func registerAnalyzeTools(srv *mcpserver.MCPServer, svc common.FormService, cfg Config) {
	submit := func(ctx context.Context, mode domain.Mode, analyze common.AnalyzeRequest) *mcp.CallToolResult {
		in, err := common.ResolveFormInput(analyze, mode, cfg.DefaultCredential, cfg.UploadRoot)
		if err != nil {
			return toolResultFromError(err)
		}
		return outcomeResult(svc.SubmitMode(ctx, mode, in))
	}

	srv.AddTool(
		mcp.NewTool(
			"morfo.analyze_single",
			mcp.WithDescription("Analyze one word."),
			mcp.WithString("word", mcp.Required(), mcp.Description("Word to analyze")),
			mcp.WithString("api_key", mcp.Description("API key; defaults to the configured key")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			analyze := common.AnalyzeRequest{
				APIKey: req.GetString("api_key", ""),
				Word:   req.GetString("word", ""),
			}
			return submit(ctx, domain.ModeSingle, analyze), nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"morfo.analyze_batch",
			mcp.WithDescription("Analyze several words in one request."),
			mcp.WithString("words", mcp.Required(), mcp.Description("Words separated by newlines; blank lines are ignored")),
			mcp.WithString("api_key", mcp.Description("API key; defaults to the configured key")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			analyze := common.AnalyzeRequest{
				APIKey: req.GetString("api_key", ""),
				Text:   req.GetString("words", ""),
			}
			return submit(ctx, domain.ModeBatch, analyze), nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"morfo.analyze_file",
			mcp.WithDescription("Upload one local .txt file (one word per line) for analysis."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path of a .txt file under the server's upload root; relative paths resolve against it")),
			mcp.WithString("api_key", mcp.Description("API key; defaults to the configured key")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			analyze := common.AnalyzeRequest{
				APIKey: req.GetString("api_key", ""),
				Path:   req.GetString("path", ""),
			}
			return submit(ctx, domain.ModeFile, analyze), nil
		},
	)
}

// registerHealthTool registers the `morfo.health` tool.
func registerHealthTool(srv *mcpserver.MCPServer, svc common.FormService) {
	srv.AddTool(
		mcp.NewTool(
			"morfo.health",
			mcp.WithDescription("Check the analysis API health endpoint."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			status, err := svc.Health(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return mcp.NewToolResultText(status), nil
		},
	)
}

// registerHistoryTool registers the `morfo.history` listing.
func registerHistoryTool(srv *mcpserver.MCPServer, svc common.FormService) {
	srv.AddTool(
		mcp.NewTool(
			"morfo.history",
			mcp.WithDescription("List recent submissions, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return; 0 uses the configured limit")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entries, err := svc.History(ctx, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			rows := make([]historyRow, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, historyRow{
					ID:         entry.ID,
					Mode:       string(entry.Mode),
					Summary:    entry.Summary,
					WordCount:  entry.WordCount,
					Kind:       string(entry.Kind),
					StatusCode: entry.StatusCode,
					CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"items": rows})
			if err != nil {
				return nil, fmt.Errorf("encode history result: %w", err)
			}
			return result, nil
		},
	)
}

// outcomeResult maps one submission outcome into a tool result.
func outcomeResult(out domain.Outcome) *mcp.CallToolResult {
	if out.OK() {
		return mcp.NewToolResultText(out.Text)
	}
	return mcp.NewToolResultError(out.Text)
}

// toolResultFromError maps controller errors into stable tool error messages.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("internal_error: unknown error")
	case errors.Is(err, common.ErrHistoryUnavailable):
		return mcp.NewToolResultError("not_implemented: " + err.Error())
	case errors.Is(err, common.ErrAnalyzerUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrPathNotAllowed):
		return mcp.NewToolResultError("forbidden: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("upstream_error: " + err.Error())
	}
}
