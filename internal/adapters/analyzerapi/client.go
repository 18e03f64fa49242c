// Package analyzerapi provides the HTTP client for the remote word-analysis API.
package analyzerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/domain"
)

// DefaultBaseURL points at the API's local development address.
const DefaultBaseURL = "http://127.0.0.1:8000"

// credentialHeader carries the caller's access key on every analysis request.
const credentialHeader = "api-key"

// defaultMaxResponseBytes bounds one response body unless Config overrides it.
const defaultMaxResponseBytes int64 = 32 << 20

// ErrInvalidBaseURL is returned when the configured base URL cannot be used.
var ErrInvalidBaseURL = errors.New("invalid base url")

// ErrResponseTooLarge is returned when a response body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("response too large")

// Config defines client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	HTTP      *http.Client

	// MaxResponseBytes caps one response body; zero means 32 MiB.
	MaxResponseBytes int64
}

// Client issues analysis requests against one API base URL.
type Client struct {
	baseURL   *url.URL
	userAgent string
	http      *http.Client
	maxBody   int64
}

// singleRequest is the JSON body of POST /analyze/single.
type singleRequest struct {
	Word string `json:"word"`
}

// batchRequest is the JSON body of POST /analyze/batch.
type batchRequest struct {
	Words []string `json:"words"`
}

// healthResponse is the JSON body of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// New constructs one API client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBaseURL, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidBaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = defaultMaxResponseBytes
	}
	return &Client{
		baseURL:   base,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      httpClient,
		maxBody:   maxBody,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AnalyzeSingle posts one word to /analyze/single.
func (c *Client) AnalyzeSingle(ctx context.Context, credential, word string) (app.AnalyzerResponse, error) {
	return c.postJSON(ctx, domain.ModeSingle.Endpoint(), credential, singleRequest{Word: word})
}

// AnalyzeBatch posts a word list to /analyze/batch.
func (c *Client) AnalyzeBatch(ctx context.Context, credential string, words []string) (app.AnalyzerResponse, error) {
	if words == nil {
		words = []string{}
	}
	return c.postJSON(ctx, domain.ModeBatch.Endpoint(), credential, batchRequest{Words: words})
}

// AnalyzeFile uploads one local text file to /analyze/upload as multipart field "file".
func (c *Client) AnalyzeFile(ctx context.Context, credential, path string) (app.AnalyzerResponse, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("read upload file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("create multipart file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("write multipart file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, domain.ModeFile.Endpoint(), &body)
	if err != nil {
		return app.AnalyzerResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(credentialHeader, credential)
	return c.do(req)
}

// Health calls GET /health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	var decoded healthResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}
	return decoded.Status, nil
}

// postJSON sends one JSON-encoded analysis request.
func (c *Client) postJSON(ctx context.Context, path, credential string, payload any) (app.AnalyzerResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("encode request body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded))
	if err != nil {
		return app.AnalyzerResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(credentialHeader, credential)
	return c.do(req)
}

// newRequest builds one request relative to the base URL.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// do sends one request and reads the bounded response body.
func (c *Client) do(req *http.Request) (app.AnalyzerResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return app.AnalyzerResponse{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	// One byte past the limit distinguishes an exact fit from truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return app.AnalyzerResponse{}, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return app.AnalyzerResponse{}, fmt.Errorf("%w: response exceeds %s", ErrResponseTooLarge, formatBytes(c.maxBody))
	}
	return app.AnalyzerResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// formatBytes renders n in MiB when it is a whole number of them.
func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
