// Package common holds transport-neutral contracts shared by the HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"strings"

	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/domain"
)

// ErrInvalidRequest and related errors classify adapter-level failures.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = app.ErrNotFound
	ErrHistoryUnavailable  = app.ErrHistoryUnavailable
	ErrAnalyzerUnavailable = app.ErrAnalyzerUnavailable
)

// FormService is the controller surface both transports call into.
type FormService interface {
	SubmitMode(context.Context, domain.Mode, domain.FormInput) domain.Outcome
	Health(context.Context) (string, error)
	History(context.Context, int) ([]domain.HistoryEntry, error)
	HistoryEntry(context.Context, string) (domain.HistoryEntry, error)
}

// AnalyzeRequest is one transport-level analysis request.
type AnalyzeRequest struct {
	APIKey string   `json:"api_key,omitempty"`
	Word   string   `json:"word,omitempty"`
	Words  []string `json:"words,omitempty"`
	Text   string   `json:"text,omitempty"`
	Path   string   `json:"path,omitempty"`
}

// FormInput converts the request into controller input.
// A per-request key wins over the fallback credential.
func (r AnalyzeRequest) FormInput(fallbackCredential string) domain.FormInput {
	credential := strings.TrimSpace(r.APIKey)
	if credential == "" {
		credential = fallbackCredential
	}
	wordsText := r.Text
	if len(r.Words) > 0 {
		wordsText = strings.Join(r.Words, "\n")
	}
	return domain.FormInput{
		Credential: credential,
		Word:       r.Word,
		WordsText:  wordsText,
		FilePath:   r.Path,
	}
}
