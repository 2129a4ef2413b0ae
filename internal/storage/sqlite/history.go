package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"murmur/pkg/logger"
)

// ScreenshotStatusNone is the placeholder stored when a dictation carried
// no context screenshot.
const ScreenshotStatusNone = "(no screenshot)"

// HistoryRecord is the durable unit of dictation history. Records are
// append-only: created atomically on a successful dictation cycle and never
// mutated afterwards.
type HistoryRecord struct {
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"timestamp"`
	RawTranscript        string    `json:"raw_transcript"`
	FinalTranscript      string    `json:"final_transcript"`
	RewritePrompt        string    `json:"rewrite_prompt,omitempty"`
	ContextSummary       string    `json:"context_summary"`
	ContextPrompt        string    `json:"context_prompt,omitempty"`
	ScreenshotRef        string    `json:"screenshot_ref,omitempty"`
	ScreenshotStatus     string    `json:"screenshot_status"`
	PostProcessingStatus string    `json:"post_processing_status"`
	DebugStatus          string    `json:"debug_status"`
	CustomVocabulary     string    `json:"custom_vocabulary"` // verbatim user input, not the parsed term list
	AudioFile            string    `json:"audio_file,omitempty"`
}

const historyColumns = `id, created_at, raw_transcript, final_transcript, rewrite_prompt,
	context_summary, context_prompt, screenshot_ref, screenshot_status,
	post_processing_status, debug_status, custom_vocabulary, audio_file`

// LoadAll returns all history records newest-first (timestamp descending,
// insertion order breaking ties). Read problems are absorbed to an empty
// result so a damaged history never blocks the dictation flow.
func (s *HistoryStore) LoadAll(ctx context.Context) []*HistoryRecord {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM history ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		s.logger.Warn("Failed to query history, returning empty", logger.Error(err))
		return []*HistoryRecord{}
	}
	defer rows.Close()

	records := []*HistoryRecord{}
	for rows.Next() {
		record, err := scanHistoryRecord(rows)
		if err != nil {
			s.logger.Warn("Failed to scan history record, returning empty", logger.Error(err))
			return []*HistoryRecord{}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("Failed to read history rows, returning empty", logger.Error(err))
		return []*HistoryRecord{}
	}

	return records
}

// Append inserts the record and, in the same transaction, evicts the
// oldest-by-timestamp records beyond maxCount. It returns the audio file
// refs of evicted records so the caller can release the artifacts; the
// store only ever deletes metadata rows. maxCount <= 0 means unbounded.
//
// Write failures roll back and propagate: the caller should treat them as
// "history not recorded" without losing the dictation result itself.
func (s *HistoryStore) Append(ctx context.Context, record *HistoryRecord, maxCount int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	screenshotStatus := record.ScreenshotStatus
	if screenshotStatus == "" {
		screenshotStatus = ScreenshotStatusNone
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.RawTranscript,
		record.FinalTranscript,
		nullable(record.RewritePrompt),
		record.ContextSummary,
		nullable(record.ContextPrompt),
		nullable(record.ScreenshotRef),
		screenshotStatus,
		record.PostProcessingStatus,
		record.DebugStatus,
		record.CustomVocabulary,
		nullable(record.AudioFile),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history record: %w", err)
	}

	var evicted []string
	if maxCount > 0 {
		evicted, err = evictBeyond(ctx, tx, maxCount)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history insert: %w", err)
	}

	return evicted, nil
}

// Delete removes one record by id and returns its audio file ref (empty
// when the record had none). A missing id is a clean no-op: found is false
// and err is nil.
func (s *HistoryStore) Delete(ctx context.Context, id string) (audioFile string, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var audio sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT audio_file FROM history WHERE id = ?`, id).Scan(&audio)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up history record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return "", false, fmt.Errorf("failed to delete history record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit history delete: %w", err)
	}

	return audio.String, true, nil
}

// ClearAll removes every record and returns all audio file refs held by the
// removed records.
func (s *HistoryStore) ClearAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	audioFiles, err := collectAudioFiles(ctx, tx, `SELECT audio_file FROM history WHERE audio_file IS NOT NULL`)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return nil, fmt.Errorf("failed to clear history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history clear: %w", err)
	}

	return audioFiles, nil
}

// Trim evicts the oldest records beyond maxCount, returning their audio
// file refs. maxCount <= 0 is equivalent to ClearAll.
func (s *HistoryStore) Trim(ctx context.Context, maxCount int) ([]string, error) {
	if maxCount <= 0 {
		return s.ClearAll(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	evicted, err := evictBeyond(ctx, tx, maxCount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history trim: %w", err)
	}

	return evicted, nil
}

// Count returns the number of stored records. Used by handlers and tests.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history records: %w", err)
	}
	return n, nil
}

// evictBeyond deletes every record past the maxCount newest and returns the
// audio refs of the deleted rows. Runs inside the caller's transaction so
// insert and eviction commit together.
func evictBeyond(ctx context.Context, tx *sql.Tx, maxCount int) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, audio_file FROM history
		ORDER BY created_at DESC, rowid DESC
		LIMIT -1 OFFSET ?`,
		maxCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query eviction candidates: %w", err)
	}
	defer rows.Close()

	var ids []any
	var audioFiles []string
	for rows.Next() {
		var id string
		var audio sql.NullString
		if err := rows.Scan(&id, &audio); err != nil {
			return nil, fmt.Errorf("failed to scan eviction candidate: %w", err)
		}
		ids = append(ids, id)
		if audio.Valid && audio.String != "" {
			audioFiles = append(audioFiles, audio.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eviction candidates: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := "?"
	for i := 1; i < len(ids); i++ {
		placeholders += ", ?"
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE id IN (`+placeholders+`)`, ids...); err != nil {
		return nil, fmt.Errorf("failed to evict history records: %w", err)
	}

	return audioFiles, nil
}

func collectAudioFiles(ctx context.Context, tx *sql.Tx, query string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audio refs: %w", err)
	}
	defer rows.Close()

	var audioFiles []string
	for rows.Next() {
		var audio sql.NullString
		if err := rows.Scan(&audio); err != nil {
			return nil, fmt.Errorf("failed to scan audio ref: %w", err)
		}
		if audio.Valid && audio.String != "" {
			audioFiles = append(audioFiles, audio.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audio refs: %w", err)
	}

	return audioFiles, nil
}

func scanHistoryRecord(rows *sql.Rows) (*HistoryRecord, error) {
	var record HistoryRecord
	var createdAt string
	var rewritePrompt, contextPrompt, screenshotRef, audioFile sql.NullString

	if err := rows.Scan(
		&record.ID,
		&createdAt,
		&record.RawTranscript,
		&record.FinalTranscript,
		&rewritePrompt,
		&record.ContextSummary,
		&contextPrompt,
		&screenshotRef,
		&record.ScreenshotStatus,
		&record.PostProcessingStatus,
		&record.DebugStatus,
		&record.CustomVocabulary,
		&audioFile,
	); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	record.CreatedAt = parsed

	record.RewritePrompt = rewritePrompt.String
	record.ContextPrompt = contextPrompt.String
	record.ScreenshotRef = screenshotRef.String
	record.AudioFile = audioFile.String

	return &record, nil
}

// nullable maps an empty string to NULL so optional columns stay NULL
// rather than empty text.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
