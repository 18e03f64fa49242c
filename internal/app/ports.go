package app

import (
	"context"

	"github.com/hylla/morfo/internal/domain"
)

// AnalyzerResponse carries one raw API response. Non-2xx statuses are values, not errors.
type AnalyzerResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r AnalyzerResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Analyzer issues requests against the remote word-analysis API.
type Analyzer interface {
	AnalyzeSingle(ctx context.Context, credential, word string) (AnalyzerResponse, error)
	AnalyzeBatch(ctx context.Context, credential string, words []string) (AnalyzerResponse, error)
	AnalyzeFile(ctx context.Context, credential, path string) (AnalyzerResponse, error)
	Health(ctx context.Context) (string, error)
}

// HistoryRepository persists submissions that reached the network layer.
type HistoryRepository interface {
	RecordSubmission(context.Context, domain.HistoryEntry) error
	ListHistory(context.Context, int) ([]domain.HistoryEntry, error)
	GetHistoryEntry(context.Context, string) (domain.HistoryEntry, error)
	ClearHistory(context.Context) (int64, error)
}
