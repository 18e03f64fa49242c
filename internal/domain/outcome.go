package domain

import (
	"encoding/json"
	"time"
)

// OutcomeKind classifies how a submission ended.
type OutcomeKind string

// OutcomeSuccess and related constants define outcome kinds.
const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeValidation   OutcomeKind = "validation"
	OutcomeAPIError     OutcomeKind = "api_error"
	OutcomeNetworkError OutcomeKind = "network_error"
)

// Outcome is the rendered result of one submission.
type Outcome struct {
	Kind       OutcomeKind
	Mode       Mode
	Text       string
	Body       json.RawMessage
	StatusCode int
}

// OK reports whether the outcome is a successful API response.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// HistoryEntry records one submission that reached the network layer.
type HistoryEntry struct {
	ID         string
	Mode       Mode
	Summary    string
	WordCount  int
	Kind       OutcomeKind
	StatusCode int
	Output     string
	CreatedAt  time.Time
}
