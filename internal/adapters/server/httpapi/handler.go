// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/morfo/internal/adapters/server/common"
	"github.com/hylla/morfo/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// errUnsupportedMediaType marks request bodies that are not declared as JSON.
var errUnsupportedMediaType = errors.New("content type must be application/json")

// Config captures relay request defaults.
type Config struct {
	// DefaultCredential is forwarded when a request carries no key.
	DefaultCredential string

	// UploadRoot confines file-mode paths; empty disables file mode.
	UploadRoot string
}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc common.FormService
	cfg Config
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// AnalyzeResponse is the relay payload for one submission outcome.
type AnalyzeResponse struct {
	Kind       domain.OutcomeKind `json:"kind"`
	Mode       domain.Mode        `json:"mode"`
	StatusCode int                `json:"status_code,omitempty"`
	Text       string             `json:"text"`
	Result     json.RawMessage    `json:"result,omitempty"`
}

// HistoryItem is the JSON shape of one recorded submission.
type HistoryItem struct {
	ID         string             `json:"id"`
	Mode       domain.Mode        `json:"mode"`
	Summary    string             `json:"summary"`
	WordCount  int                `json:"word_count"`
	Kind       domain.OutcomeKind `json:"kind"`
	StatusCode int                `json:"status_code,omitempty"`
	Output     string             `json:"output,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewHandler constructs one HTTP API adapter over the form controller.
func NewHandler(svc common.FormService, cfg Config) *Handler {
	cfg.DefaultCredential = strings.TrimSpace(cfg.DefaultCredential)
	cfg.UploadRoot = strings.TrimSpace(cfg.UploadRoot)
	return &Handler{svc: svc, cfg: cfg}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	switch {
	case path == "health":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHealth(w, r)
	case path == "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListHistory(w, r)
	case strings.HasPrefix(path, "history/"):
		id, ok := resolveTrailingID(path, "history/")
		if !ok {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetHistory(w, r, id)
	case strings.HasPrefix(path, "analyze/"):
		raw, ok := resolveTrailingID(path, "analyze/")
		if !ok {
			writeNotFound(w)
			return
		}
		mode, err := resolveMode(raw)
		if err != nil {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAnalyze(w, r, mode)
	default:
		writeNotFound(w)
	}
}

// handleAnalyze serves POST `/analyze/{single|batch|upload}`.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request, mode domain.Mode) {
	if h.svc == nil {
		writeErrorFrom(w, common.ErrAnalyzerUnavailable)
		return
	}
	var req common.AnalyzeRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if key := strings.TrimSpace(r.Header.Get("api-key")); key != "" && strings.TrimSpace(req.APIKey) == "" {
		req.APIKey = key
	}

	in, err := common.ResolveFormInput(req, mode, h.cfg.DefaultCredential, h.cfg.UploadRoot)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := h.svc.SubmitMode(r.Context(), mode, in)
	resp := AnalyzeResponse{
		Kind:       out.Kind,
		Mode:       out.Mode,
		StatusCode: out.StatusCode,
		Text:       out.Text,
	}
	if out.OK() {
		resp.Result = out.Body
	}
	writeJSON(w, relayStatus(out), resp)
}

// handleHealth serves GET `/health` by probing the analysis backend.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeErrorFrom(w, common.ErrAnalyzerUnavailable)
		return
	}
	status, err := h.svc.Health(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "upstream_unavailable",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleListHistory serves GET `/history`.
func (h *Handler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeErrorFrom(w, common.ErrHistoryUnavailable)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	items := make([]HistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyItem(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleGetHistory serves GET `/history/{id}`.
func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request, id string) {
	if h.svc == nil {
		writeErrorFrom(w, common.ErrHistoryUnavailable)
		return
	}
	entry, err := h.svc.HistoryEntry(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyItem(entry))
}

// historyItem maps one domain entry into its JSON shape.
func historyItem(entry domain.HistoryEntry) HistoryItem {
	return HistoryItem{
		ID:         entry.ID,
		Mode:       entry.Mode,
		Summary:    entry.Summary,
		WordCount:  entry.WordCount,
		Kind:       entry.Kind,
		StatusCode: entry.StatusCode,
		Output:     entry.Output,
		CreatedAt:  entry.CreatedAt,
	}
}

// relayStatus picks the relay HTTP status for one outcome.
func relayStatus(out domain.Outcome) int {
	switch out.Kind {
	case domain.OutcomeSuccess:
		return http.StatusOK
	case domain.OutcomeValidation:
		return http.StatusBadRequest
	case domain.OutcomeAPIError:
		if out.StatusCode >= 400 && out.StatusCode <= 599 {
			return out.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// resolveMode maps one route segment to an input mode; `upload` names the file mode.
func resolveMode(segment string) (domain.Mode, error) {
	if segment == "upload" {
		return domain.ModeFile, nil
	}
	if segment == string(domain.ModeFile) {
		return "", domain.ErrInvalidMode
	}
	return domain.ParseMode(segment)
}

// resolveTrailingID parses `{prefix}{id}` and returns `{id}`.
func resolveTrailingID(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(path, prefix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, errUnsupportedMediaType):
		writeJSONError(w, http.StatusUnsupportedMediaType, APIError{
			Code:    "unsupported_media_type",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrPathNotAllowed):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrHistoryUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
			Hint:    "Enable [history] in config.toml.",
		})
	case errors.Is(err, common.ErrAnalyzerUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeNotFound writes the structured unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errUnsupportedMediaType
	}
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
