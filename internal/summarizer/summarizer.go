// Package summarizer condenses a window of transcripts into a summary and
// retires the source transcripts once the summary is safely persisted.
package summarizer

import (
	"context"
	"strings"
	"time"

	"github.com/murmurhq/murmur/internal/engine"
	apperrors "github.com/murmurhq/murmur/internal/errors"
	"github.com/murmurhq/murmur/internal/resilience"
	"github.com/murmurhq/murmur/internal/store"
	"github.com/murmurhq/murmur/internal/trace"
)

// TranscriptStore is the persistence surface the summarizer needs.
type TranscriptStore interface {
	LoadTranscriptsInRange(ctx context.Context, start, end time.Time) ([]store.Transcript, error)
	DeleteTranscripts(ctx context.Context, ids []string) (int64, error)
	SaveSummary(ctx context.Context, text string, start, end time.Time, sourceCount int) (string, error)
}

// Summarizer produces one summary per scheduler tick.
type Summarizer struct {
	generator engine.Generator
	store     TranscriptStore
	interval  time.Duration
	retryCfg  resilience.RetryConfig
}

// New creates a summarizer covering windows of the given interval.
func New(g engine.Generator, st TranscriptStore, interval time.Duration) *Summarizer {
	return &Summarizer{
		generator: g,
		store:     st,
		interval:  interval,
		retryCfg:  resilience.GenerateRetryConfig(),
	}
}

// Run summarizes everything persisted before boundary. It satisfies
// scheduler.Job. Normally that is just the previous interval, but transcripts
// stranded by a missed window or a failed earlier run are swept up too.
//
// Only the exact rows loaded here are deleted, and only after a non-empty
// summary covering them has been persisted. A transcript that lands while
// the summary is being generated stays for the next run; any failure leaves
// everything in place.
func (s *Summarizer) Run(ctx context.Context, boundary time.Time) error {
	ctx, span := trace.StartSpan(ctx, "summarize_window")
	defer span.End()
	log := trace.Logger(ctx)

	entries, err := s.store.LoadTranscriptsInRange(ctx, time.Unix(0, 0), boundary)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		log.Debug("no transcripts to summarize", "end", boundary)
		return nil
	}

	// Entries are ordered oldest first; widen the recorded window when
	// stragglers predate the current interval.
	start := boundary.Add(-s.interval)
	if entries[0].Timestamp.Before(start) {
		start = entries[0].Timestamp
	}

	prompt := buildPrompt(entries)

	var summary string
	err = resilience.Retry(ctx, s.retryCfg, func() error {
		out, genErr := s.generator.Generate(ctx, prompt)
		if genErr != nil {
			return genErr
		}
		summary = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.EngineFailed, "generate summary")
	}
	if summary == "" {
		return apperrors.New(apperrors.EngineFailed, "generator returned empty summary")
	}

	id, err := s.store.SaveSummary(ctx, summary, start, boundary, len(entries))
	if err != nil {
		return err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	deleted, err := s.store.DeleteTranscripts(ctx, ids)
	if err != nil {
		// Summary is saved; the leftover rows are swept by the next run.
		log.Warn("summary saved but source cleanup failed", "summary_id", id, "error", err)
		return err
	}

	log.Info("window summarized", "summary_id", id, "sources", len(entries), "deleted", deleted, "start", start, "end", boundary)
	return nil
}

func buildPrompt(entries []store.Transcript) string {
	var b strings.Builder
	b.WriteString("Please summarize the following transcribed conversation. ")
	b.WriteString("Focus on the key points, decisions, and action items. Be concise.\n\n")
	for _, e := range entries {
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}
