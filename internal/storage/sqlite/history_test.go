package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"murmur/pkg/logger"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(n int, createdAt time.Time) *HistoryRecord {
	return &HistoryRecord{
		ID:              fmt.Sprintf("rec-%03d", n),
		CreatedAt:       createdAt,
		RawTranscript:   fmt.Sprintf("raw %d", n),
		FinalTranscript: fmt.Sprintf("final %d", n),
		ContextSummary:  "writing notes",
		AudioFile:       fmt.Sprintf("audio-%03d.wav", n),
	}
}

func TestAppendAndLoadAllRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	record := &HistoryRecord{
		ID:                   "rec-1",
		CreatedAt:            created,
		RawTranscript:        "hello wrld",
		FinalTranscript:      "Hello world.",
		RewritePrompt:        "instruction text",
		ContextSummary:       "writing an email",
		ContextPrompt:        "be brief",
		ScreenshotRef:        "shot-1.png",
		ScreenshotStatus:     "captured",
		PostProcessingStatus: "rewritten",
		CustomVocabulary:     "Aanya, Deep Thought",
		AudioFile:            "audio-1.wav",
	}

	evicted, err := store.Append(ctx, record, 10)
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(evicted) != 0 {
		t.Errorf("got %d evicted refs on first insert, want 0", len(evicted))
	}

	records := store.LoadAll(ctx)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.ID != record.ID ||
		got.RawTranscript != record.RawTranscript ||
		got.FinalTranscript != record.FinalTranscript ||
		got.RewritePrompt != record.RewritePrompt ||
		got.ContextSummary != record.ContextSummary ||
		got.ContextPrompt != record.ContextPrompt ||
		got.ScreenshotRef != record.ScreenshotRef ||
		got.ScreenshotStatus != record.ScreenshotStatus ||
		got.PostProcessingStatus != record.PostProcessingStatus ||
		got.CustomVocabulary != record.CustomVocabulary ||
		got.AudioFile != record.AudioFile {
		t.Errorf("loaded record differs from stored record:\ngot  %+v\nwant %+v", got, record)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("got timestamp %v, want %v", got.CreatedAt, created)
	}
}

func TestAppendDefaultsScreenshotStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord(1, time.Now().UTC())
	record.ScreenshotStatus = ""
	if _, err := store.Append(ctx, record, 0); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	records := store.LoadAll(ctx)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ScreenshotStatus != ScreenshotStatusNone {
		t.Errorf("got screenshot status %q, want %q", records[0].ScreenshotStatus, ScreenshotStatusNone)
	}
}

func TestLoadAllNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, testRecord(i, base.Add(time.Duration(i)*time.Minute)), 0); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	records := store.LoadAll(ctx)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, wantID := range []string{"rec-002", "rec-001", "rec-000"} {
		if records[i].ID != wantID {
			t.Errorf("position %d: got %q, want %q", i, records[i].ID, wantID)
		}
	}
}

func TestLoadAllEqualTimestampsUseInsertionOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, testRecord(i, at), 0); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	records := store.LoadAll(ctx)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Last inserted wins the tie.
	if records[0].ID != "rec-002" || records[2].ID != "rec-000" {
		t.Errorf("got order %q..%q, want insertion order breaking timestamp ties", records[0].ID, records[2].ID)
	}
}

func TestAppendEvictsBeyondMaxCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		if _, err := store.Append(ctx, testRecord(i, base.Add(time.Duration(i)*time.Minute)), 10); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	evicted, err := store.Append(ctx, testRecord(10, base.Add(10*time.Minute)), 10)
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "audio-000.wav" {
		t.Errorf("got evicted refs %v, want the oldest record's audio ref", evicted)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if n != 10 {
		t.Errorf("got %d records after eviction, want 10", n)
	}

	records := store.LoadAll(ctx)
	if records[len(records)-1].ID != "rec-001" {
		t.Errorf("oldest surviving record is %q, want rec-001", records[len(records)-1].ID)
	}
}

func TestAppendUnboundedWhenMaxCountZero(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		evicted, err := store.Append(ctx, testRecord(i, base.Add(time.Duration(i)*time.Second)), 0)
		if err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
		if len(evicted) != 0 {
			t.Errorf("Append %d evicted %v with maxCount 0, want none", i, evicted)
		}
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, testRecord(1, time.Now().UTC()), 0); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	audio, found, err := store.Delete(ctx, "rec-001")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !found {
		t.Fatal("Delete reported record not found")
	}
	if audio != "audio-001.wav" {
		t.Errorf("got audio ref %q, want audio-001.wav", audio)
	}

	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("got %d records after delete, want 0", n)
	}
}

func TestDeleteMissingIsCleanNoOp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	audio, found, err := store.Delete(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("Delete of missing id returned error: %v", err)
	}
	if found || audio != "" {
		t.Errorf("got (%q, %v), want clean not-found", audio, found)
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		record := testRecord(i, base.Add(time.Duration(i)*time.Second))
		if i == 1 {
			record.AudioFile = "" // one record without audio
		}
		if _, err := store.Append(ctx, record, 0); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	refs, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll returned error: %v", err)
	}
	if len(refs) != 2 {
		t.Errorf("got %d audio refs, want 2 (record without audio contributes none)", len(refs))
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("got %d records after clear, want 0", n)
	}

	// Clearing an empty store is a no-op.
	refs, err = store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("second ClearAll returned error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("got %d refs from empty store, want 0", len(refs))
	}
}

func TestTrim(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.Append(ctx, testRecord(i, base.Add(time.Duration(i)*time.Minute)), 0); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	refs, err := store.Trim(ctx, 2)
	if err != nil {
		t.Fatalf("Trim returned error: %v", err)
	}
	if len(refs) != 3 {
		t.Errorf("got %d evicted refs, want 3", len(refs))
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("got %d records after trim, want 2", n)
	}

	records := store.LoadAll(ctx)
	if records[0].ID != "rec-004" || records[1].ID != "rec-003" {
		t.Errorf("got survivors %q, %q, want the two newest", records[0].ID, records[1].ID)
	}
}

func TestTrimNonPositiveClearsEverything(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if _, err := store.Append(ctx, testRecord(i, base.Add(time.Duration(i)*time.Second)), 0); err != nil {
			t.Fatalf("Append %d returned error: %v", i, err)
		}
	}

	refs, err := store.Trim(ctx, 0)
	if err != nil {
		t.Fatalf("Trim(0) returned error: %v", err)
	}
	if len(refs) != 3 {
		t.Errorf("got %d refs, want all 3", len(refs))
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("got %d records, want 0", n)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := NewHistoryStore(dbPath, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	if _, err := store.Append(ctx, testRecord(1, time.Now().UTC()), 0); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := NewHistoryStore(dbPath, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to reopen history store: %v", err)
	}
	defer reopened.Close()

	records := reopened.LoadAll(ctx)
	if len(records) != 1 || records[0].ID != "rec-001" {
		t.Errorf("got %d records after reopen, want the stored record back", len(records))
	}
}

func TestCorruptDatabaseIsWipedAndRecovered(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(dbPath, []byte("this is not a sqlite database"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt database: %v", err)
	}

	store, err := NewHistoryStore(dbPath, logger.NewNop())
	if err != nil {
		t.Fatalf("NewHistoryStore on corrupt file returned error: %v", err)
	}
	defer store.Close()

	if store.Volatile() {
		t.Error("store reported volatile after on-disk recovery")
	}

	ctx := context.Background()
	if _, err := store.Append(ctx, testRecord(1, time.Now().UTC()), 0); err != nil {
		t.Fatalf("Append on recovered store returned error: %v", err)
	}
	if records := store.LoadAll(ctx); len(records) != 1 {
		t.Errorf("got %d records on recovered store, want 1", len(records))
	}
}

func TestUnrecoverablePathFallsBackToMemory(t *testing.T) {
	t.Parallel()

	// A non-empty directory at the database path cannot be opened or wiped.
	dbPath := filepath.Join(t.TempDir(), "history.db")
	if err := os.MkdirAll(filepath.Join(dbPath, "occupied"), 0o755); err != nil {
		t.Fatalf("failed to set up blocking directory: %v", err)
	}

	store, err := NewHistoryStore(dbPath, logger.NewNop())
	if err != nil {
		t.Fatalf("NewHistoryStore returned error instead of in-memory fallback: %v", err)
	}
	defer store.Close()

	if !store.Volatile() {
		t.Fatal("store should report volatile after falling back to memory")
	}

	ctx := context.Background()
	if _, err := store.Append(ctx, testRecord(1, time.Now().UTC()), 0); err != nil {
		t.Fatalf("Append on volatile store returned error: %v", err)
	}
	if records := store.LoadAll(ctx); len(records) != 1 {
		t.Errorf("got %d records on volatile store, want 1", len(records))
	}
}
