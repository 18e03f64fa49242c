package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hylla/morfo/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultMode    domain.Mode
	RecordHistory  bool
	HistoryLimit   int
	OnHistoryError func(error)
}

// IDGenerator returns unique identifiers for new history entries.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the form controller: it owns the active mode, validates input, and renders outcomes.
type Service struct {
	analyzer Analyzer
	history  HistoryRepository
	idGen    IDGenerator
	clock    Clock
	cfg      ServiceConfig

	mu       sync.RWMutex
	mode     domain.Mode
	latest   uint64
	inFlight bool
}

// Ticket is one validated form submission waiting to be sent. Run must be called once.
type Ticket struct {
	svc *Service
	seq uint64
	sub domain.Submission
}

// NewService constructs a new value for this package.
func NewService(analyzer Analyzer, history HistoryRepository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if !cfg.DefaultMode.Valid() {
		cfg.DefaultMode = domain.ModeSingle
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Service{
		analyzer: analyzer,
		history:  history,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		mode:     cfg.DefaultMode,
	}
}

// Mode returns the active input mode.
func (s *Service) Mode() domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SwitchMode changes the active input mode.
func (s *Service) SwitchMode(mode domain.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

// VisibleSections reports which mode sections are shown; exactly one is true.
func (s *Service) VisibleSections() map[domain.Mode]bool {
	active := s.Mode()
	out := make(map[domain.Mode]bool, len(domain.Modes()))
	for _, mode := range domain.Modes() {
		out[mode] = mode == active
	}
	return out
}

// Pending reports whether the newest form submission is still waiting on the network.
func (s *Service) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// Finish ends the form submission seq. It clears the pending flag and reports
// true only when seq is still the newest submission; older results are stale.
func (s *Service) Finish(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == 0 || seq != s.latest {
		return false
	}
	s.inFlight = false
	return true
}

// Submit validates and sends the form for the active mode.
func (s *Service) Submit(ctx context.Context, in domain.FormInput) domain.Outcome {
	ticket, out, ok := s.Prepare(in)
	if !ok {
		return out
	}
	out = ticket.Run(ctx)
	s.Finish(ticket.Seq())
	return out
}

// Prepare validates the form for the active mode and marks it pending. When
// ok is false the returned outcome is final and nothing will be sent. Any
// earlier prepared submission becomes stale.
func (s *Service) Prepare(in domain.FormInput) (Ticket, domain.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := s.mode
	s.latest++
	s.inFlight = false

	sub, out, ok := s.validate(mode, in)
	if !ok {
		return Ticket{}, out, false
	}
	s.inFlight = true
	return Ticket{svc: s, seq: s.latest, sub: sub}, domain.Outcome{}, true
}

// Seq identifies the ticket among form submissions.
func (t Ticket) Seq() uint64 {
	return t.seq
}

// Run sends the prepared submission. The caller passes Seq to Finish once the outcome is shown.
func (t Ticket) Run(ctx context.Context) domain.Outcome {
	if t.svc == nil {
		return networkOutcome(t.sub.Mode, ErrAnalyzerUnavailable)
	}
	return t.svc.dispatch(ctx, t.sub)
}

// SubmitMode validates and sends one submission for an explicit mode without
// touching the form's pending state. Remote transports and scripts use it.
func (s *Service) SubmitMode(ctx context.Context, mode domain.Mode, in domain.FormInput) domain.Outcome {
	sub, out, ok := s.validate(mode, in)
	if !ok {
		return out
	}
	return s.dispatch(ctx, sub)
}

// validate builds a submission or the final outcome explaining why none was built.
// Invalid input yields a validation outcome without touching the analyzer.
func (s *Service) validate(mode domain.Mode, in domain.FormInput) (domain.Submission, domain.Outcome, bool) {
	sub, err := domain.NewSubmission(mode, in)
	if err != nil {
		msg, ok := domain.ValidationMessage(err)
		if !ok {
			msg = err.Error()
		}
		return domain.Submission{}, domain.Outcome{Kind: domain.OutcomeValidation, Mode: mode, Text: msg}, false
	}
	if s.analyzer == nil {
		return domain.Submission{}, networkOutcome(mode, ErrAnalyzerUnavailable), false
	}
	return sub, domain.Outcome{}, true
}

// dispatch issues the request, renders it, and records the attempt.
func (s *Service) dispatch(ctx context.Context, sub domain.Submission) domain.Outcome {
	resp, err := s.send(ctx, sub)
	var out domain.Outcome
	if err != nil {
		out = networkOutcome(sub.Mode, err)
	} else {
		out = renderResponse(sub.Mode, resp)
	}
	s.record(ctx, sub, out)
	return out
}

// send issues exactly one request for the submission's mode.
func (s *Service) send(ctx context.Context, sub domain.Submission) (AnalyzerResponse, error) {
	switch sub.Mode {
	case domain.ModeSingle:
		return s.analyzer.AnalyzeSingle(ctx, sub.Credential, sub.Word)
	case domain.ModeBatch:
		return s.analyzer.AnalyzeBatch(ctx, sub.Credential, sub.Words)
	case domain.ModeFile:
		return s.analyzer.AnalyzeFile(ctx, sub.Credential, sub.FilePath)
	default:
		return AnalyzerResponse{}, domain.ErrInvalidMode
	}
}

// renderResponse maps one API response into output text.
func renderResponse(mode domain.Mode, resp AnalyzerResponse) domain.Outcome {
	if resp.OK() {
		text, err := prettyJSON(resp.Body)
		if err != nil {
			out := networkOutcome(mode, err)
			out.StatusCode = resp.StatusCode
			return out
		}
		return domain.Outcome{
			Kind:       domain.OutcomeSuccess,
			Mode:       mode,
			Text:       text,
			Body:       append([]byte(nil), resp.Body...),
			StatusCode: resp.StatusCode,
		}
	}
	detail, err := errorDetail(resp.Body)
	if err != nil {
		out := networkOutcome(mode, err)
		out.StatusCode = resp.StatusCode
		return out
	}
	return domain.Outcome{
		Kind:       domain.OutcomeAPIError,
		Mode:       mode,
		Text:       "Error: " + detail,
		StatusCode: resp.StatusCode,
	}
}

// networkOutcome renders one transport-level failure.
func networkOutcome(mode domain.Mode, err error) domain.Outcome {
	return domain.Outcome{
		Kind: domain.OutcomeNetworkError,
		Mode: mode,
		Text: "Network error: " + err.Error(),
	}
}

// record stores one attempted submission; failures go to the configured error hook only.
func (s *Service) record(ctx context.Context, sub domain.Submission, out domain.Outcome) {
	if s.history == nil || !s.cfg.RecordHistory {
		return
	}
	wordCount := 0
	switch sub.Mode {
	case domain.ModeSingle:
		wordCount = 1
	case domain.ModeBatch:
		wordCount = len(sub.Words)
	}
	entry := domain.HistoryEntry{
		ID:         s.idGen(),
		Mode:       sub.Mode,
		Summary:    sub.Summary(),
		WordCount:  wordCount,
		Kind:       out.Kind,
		StatusCode: out.StatusCode,
		Output:     out.Text,
		CreatedAt:  s.clock().UTC(),
	}
	// A canceled submission context must not drop the record of the attempt.
	if err := s.history.RecordSubmission(context.WithoutCancel(ctx), entry); err != nil && s.cfg.OnHistoryError != nil {
		s.cfg.OnHistoryError(fmt.Errorf("record submission: %w", err))
	}
}

// History lists recent submissions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.history.ListHistory(ctx, limit)
}

// HistoryEntry returns one recorded submission by id.
func (s *Service) HistoryEntry(ctx context.Context, id string) (domain.HistoryEntry, error) {
	if s.history == nil {
		return domain.HistoryEntry{}, ErrHistoryUnavailable
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.HistoryEntry{}, fmt.Errorf("%w: empty history id", ErrNotFound)
	}
	return s.history.GetHistoryEntry(ctx, id)
}

// ClearHistory deletes every recorded submission and returns the removed count.
func (s *Service) ClearHistory(ctx context.Context) (int64, error) {
	if s.history == nil {
		return 0, ErrHistoryUnavailable
	}
	return s.history.ClearHistory(ctx)
}

// Health calls the backend health endpoint.
func (s *Service) Health(ctx context.Context) (string, error) {
	if s.analyzer == nil {
		return "", ErrAnalyzerUnavailable
	}
	status, err := s.analyzer.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return status, nil
}
