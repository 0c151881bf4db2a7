// Package store persists transcripts and summaries in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	apperrors "github.com/murmurhq/murmur/internal/errors"
)

// Transcript is one persisted transcription chunk.
type Transcript struct {
	ID               string
	Timestamp        time.Time
	Text             string
	HasSpeakerBreaks bool
}

// Summary is one persisted summarization of a transcript window.
type Summary struct {
	ID          string
	CreatedAt   time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Text        string
	SourceCount int
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	text TEXT NOT NULL,
	has_speaker_breaks INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_transcripts_ts ON transcripts(ts);

CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	window_start INTEGER NOT NULL,
	window_end INTEGER NOT NULL,
	text TEXT NOT NULL,
	source_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries(created_at);
`

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "open database")
	}

	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "apply schema")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTranscript inserts a transcript and returns its generated ID.
func (s *Store) SaveTranscript(ctx context.Context, text string, ts time.Time, hasSpeakerBreaks bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transcripts (id, ts, text, has_speaker_breaks) VALUES (?, ?, ?, ?)",
		id, ts.UnixNano(), text, boolToInt(hasSpeakerBreaks),
	)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.PersistenceFailed, "insert transcript")
	}
	return id, nil
}

// LoadTranscriptsInRange returns transcripts with start <= ts < end,
// oldest first.
func (s *Store) LoadTranscriptsInRange(ctx context.Context, start, end time.Time) ([]Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, text, has_speaker_breaks FROM transcripts WHERE ts >= ? AND ts < ? ORDER BY ts ASC",
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "query transcripts")
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var (
			t     Transcript
			ts    int64
			broke int
		)
		if err := rows.Scan(&t.ID, &ts, &t.Text, &broke); err != nil {
			return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "scan transcript")
		}
		t.Timestamp = time.Unix(0, ts)
		t.HasSpeakerBreaks = broke != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "iterate transcripts")
	}
	return out, nil
}

// LoadTranscriptsSince returns transcripts with ts >= since, oldest first.
func (s *Store) LoadTranscriptsSince(ctx context.Context, since time.Time) ([]Transcript, error) {
	return s.LoadTranscriptsInRange(ctx, since, time.Unix(0, 1<<62))
}

// DeleteTranscripts deletes the transcripts with the given IDs and returns
// the number deleted. A transcript persisted after the caller loaded its
// working set is untouched.
func (s *Store) DeleteTranscripts(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM transcripts WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.PersistenceFailed, "delete transcripts")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.PersistenceFailed, "count deleted transcripts")
	}
	return n, nil
}

// SaveSummary inserts a summary covering [start, end) built from sourceCount
// transcripts, and returns its generated ID.
func (s *Store) SaveSummary(ctx context.Context, text string, start, end time.Time, sourceCount int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO summaries (id, created_at, window_start, window_end, text, source_count) VALUES (?, ?, ?, ?, ?, ?)",
		id, time.Now().UnixNano(), start.UnixNano(), end.UnixNano(), text, sourceCount,
	)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.PersistenceFailed, "insert summary")
	}
	return id, nil
}

// RecentSummaries returns up to n summaries, newest first.
func (s *Store) RecentSummaries(ctx context.Context, n int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, window_start, window_end, text, source_count FROM summaries ORDER BY created_at DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "query summaries")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sm                    Summary
			created, wStart, wEnd int64
		)
		if err := rows.Scan(&sm.ID, &created, &wStart, &wEnd, &sm.Text, &sm.SourceCount); err != nil {
			return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "scan summary")
		}
		sm.CreatedAt = time.Unix(0, created)
		sm.WindowStart = time.Unix(0, wStart)
		sm.WindowEnd = time.Unix(0, wEnd)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.PersistenceFailed, "iterate summaries")
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
