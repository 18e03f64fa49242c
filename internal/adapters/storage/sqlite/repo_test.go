package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/morfo/internal/app"
	"github.com/hylla/morfo/internal/domain"
)

func TestRepository_HistoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(filepath.Join(t.TempDir(), "nested", "morfo.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	entries := []domain.HistoryEntry{
		{ID: "h1", Mode: domain.ModeSingle, Summary: "ev", WordCount: 1, Kind: domain.OutcomeSuccess, StatusCode: 200, Output: "{}", CreatedAt: now},
		{ID: "h2", Mode: domain.ModeBatch, Summary: "ev, kitab", WordCount: 2, Kind: domain.OutcomeAPIError, StatusCode: 401, Output: "Error: bad key", CreatedAt: now.Add(time.Minute)},
		{ID: "h3", Mode: domain.ModeFile, Summary: "words.txt", Kind: domain.OutcomeNetworkError, Output: "Network error: refused", CreatedAt: now.Add(2 * time.Minute)},
	}
	for _, entry := range entries {
		if err := repo.RecordSubmission(ctx, entry); err != nil {
			t.Fatalf("RecordSubmission(%s) error = %v", entry.ID, err)
		}
	}

	listed, err := repo.ListHistory(ctx, 2)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "h3" || listed[1].ID != "h2" {
		t.Fatalf("unexpected history order %#v", listed)
	}

	got, err := repo.GetHistoryEntry(ctx, "h2")
	if err != nil {
		t.Fatalf("GetHistoryEntry() error = %v", err)
	}
	if got.Mode != domain.ModeBatch || got.Kind != domain.OutcomeAPIError || got.StatusCode != 401 || got.WordCount != 2 {
		t.Fatalf("unexpected entry %#v", got)
	}
	if !got.CreatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}

	if _, err := repo.GetHistoryEntry(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetHistoryEntry(missing) error = %v, want ErrNotFound", err)
	}

	removed, err := repo.ClearHistory(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("ClearHistory() = %d, %v", removed, err)
	}
	listed, err = repo.ListHistory(ctx, 10)
	if err != nil || len(listed) != 0 {
		t.Fatalf("ListHistory() after clear = %#v, %v", listed, err)
	}
}

func TestRepository_RejectsBlankID(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	if err := repo.RecordSubmission(context.Background(), domain.HistoryEntry{Mode: domain.ModeSingle}); err == nil {
		t.Fatal("expected blank id error")
	}
}

func TestRepository_WorksAsServiceHistory(t *testing.T) {
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	var _ app.HistoryRepository = repo

	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
