package app

import "errors"

// ErrNotFound and related errors describe controller failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrHistoryUnavailable  = errors.New("history is not configured")
	ErrAnalyzerUnavailable = errors.New("analyzer is not configured")
)
