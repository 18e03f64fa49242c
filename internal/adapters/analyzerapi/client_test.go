package analyzerapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// recordedRequest captures the parts of one request asserted by client tests.
type recordedRequest struct {
	method      string
	path        string
	credential  string
	contentType string
	body        []byte
	fileName    string
	fileContent string
}

// newRecordingServer returns a test server that records requests and replies with one fixture.
func newRecordingServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var got []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			credential:  r.Header.Get("api-key"),
			contentType: r.Header.Get("Content-Type"),
		}
		if strings.HasPrefix(rec.contentType, "multipart/form-data") {
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("FormFile() error = %v", err)
			} else {
				content, _ := io.ReadAll(file)
				rec.fileName = header.Filename
				rec.fileContent = string(content)
				_ = file.Close()
			}
		} else {
			rec.body, _ = io.ReadAll(r.Body)
		}
		got = append(got, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "http://", "://bad"} {
		if _, err := New(Config{BaseURL: raw}); !errors.Is(err, ErrInvalidBaseURL) {
			t.Fatalf("New(%q) error = %v, want ErrInvalidBaseURL", raw, err)
		}
	}
	client, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.BaseURL() != DefaultBaseURL {
		t.Fatalf("BaseURL() = %q, want %q", client.BaseURL(), DefaultBaseURL)
	}
}

func TestAnalyzeSingleSendsJSONAndCredential(t *testing.T) {
	server, got := newRecordingServer(t, http.StatusOK, `{"word":"ev"}`)
	client, err := New(Config{BaseURL: server.URL + "/", UserAgent: "morfo-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := client.AnalyzeSingle(context.Background(), "secret", "ev")
	if err != nil {
		t.Fatalf("AnalyzeSingle() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"word":"ev"}` {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if len(*got) != 1 {
		t.Fatalf("requests = %d, want 1", len(*got))
	}
	req := (*got)[0]
	if req.method != http.MethodPost || req.path != "/analyze/single" {
		t.Fatalf("request = %s %s", req.method, req.path)
	}
	if req.credential != "secret" || req.contentType != "application/json" {
		t.Fatalf("headers credential=%q content-type=%q", req.credential, req.contentType)
	}
	var decoded map[string]string
	if err := json.Unmarshal(req.body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["word"] != "ev" {
		t.Fatalf("body = %s", req.body)
	}
}

func TestAnalyzeBatchSendsWords(t *testing.T) {
	server, got := newRecordingServer(t, http.StatusOK, `[]`)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.AnalyzeBatch(context.Background(), "k", []string{"ev", "kitab"}); err != nil {
		t.Fatalf("AnalyzeBatch() error = %v", err)
	}
	req := (*got)[0]
	if req.path != "/analyze/batch" {
		t.Fatalf("path = %q", req.path)
	}
	var decoded struct {
		Words []string `json:"words"`
	}
	if err := json.Unmarshal(req.body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !slices.Equal(decoded.Words, []string{"ev", "kitab"}) {
		t.Fatalf("words = %#v", decoded.Words)
	}
}

func TestAnalyzeFileUploadsMultipart(t *testing.T) {
	server, got := newRecordingServer(t, http.StatusOK, `[]`)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("ev\nkitab\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := client.AnalyzeFile(context.Background(), "k", path); err != nil {
		t.Fatalf("AnalyzeFile() error = %v", err)
	}
	req := (*got)[0]
	if req.path != "/analyze/upload" || req.credential != "k" {
		t.Fatalf("request path=%q credential=%q", req.path, req.credential)
	}
	if req.fileName != "words.txt" || req.fileContent != "ev\nkitab\n" {
		t.Fatalf("file part name=%q content=%q", req.fileName, req.fileContent)
	}
}

func TestAnalyzeFileMissingPathDoesNotSend(t *testing.T) {
	server, got := newRecordingServer(t, http.StatusOK, `[]`)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = client.AnalyzeFile(context.Background(), "k", filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("AnalyzeFile() error = %v, want ErrNotExist", err)
	}
	if len(*got) != 0 {
		t.Fatalf("requests = %d, want 0", len(*got))
	}
}

func TestNonSuccessStatusIsNotAnError(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusUnauthorized, `{"detail":"bad key"}`)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp, err := client.AnalyzeSingle(context.Background(), "k", "ev")
	if err != nil {
		t.Fatalf("AnalyzeSingle() error = %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestOversizedResponseIsAnError(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusOK, `{"word":"kitablar"}`)
	client, err := New(Config{BaseURL: server.URL, MaxResponseBytes: 8})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = client.AnalyzeSingle(context.Background(), "k", "kitablar")
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("AnalyzeSingle() error = %v, want ErrResponseTooLarge", err)
	}
	if !strings.Contains(err.Error(), "response exceeds 8 bytes") {
		t.Fatalf("error = %q, want size in message", err)
	}
}

func TestResponseAtLimitIsKept(t *testing.T) {
	reply := `{"ok":1}`
	server, _ := newRecordingServer(t, http.StatusOK, reply)
	client, err := New(Config{BaseURL: server.URL, MaxResponseBytes: int64(len(reply))})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	resp, err := client.AnalyzeSingle(context.Background(), "k", "ev")
	if err != nil {
		t.Fatalf("AnalyzeSingle() error = %v", err)
	}
	if string(resp.Body) != reply {
		t.Fatalf("body = %q, want %q", resp.Body, reply)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(defaultMaxResponseBytes); got != "32 MiB" {
		t.Fatalf("formatBytes(default) = %q, want 32 MiB", got)
	}
}

func TestTransportFailureIsAnError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := New(Config{BaseURL: baseURL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := client.AnalyzeSingle(context.Background(), "k", "ev"); err == nil {
		t.Fatal("expected transport error from closed server")
	}
}

func TestHealth(t *testing.T) {
	server, got := newRecordingServer(t, http.StatusOK, `{"status":"ok"}`)
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	status, err := client.Health(context.Background())
	if err != nil || status != "ok" {
		t.Fatalf("Health() = %q, %v", status, err)
	}
	if (*got)[0].method != http.MethodGet || (*got)[0].path != "/health" {
		t.Fatalf("request = %#v", (*got)[0])
	}
}
