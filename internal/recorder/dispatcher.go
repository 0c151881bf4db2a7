package recorder

import (
	"context"
	"strings"
	"time"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/engine"
	"github.com/murmurhq/murmur/internal/resilience"
	"github.com/murmurhq/murmur/internal/segment"
	"github.com/murmurhq/murmur/internal/trace"
)

// TranscriptSink persists a composed transcript and returns its ID.
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, text string, ts time.Time, hasSpeakerBreaks bool) (string, error)
}

// Event is published when a transcript is persisted.
type Event struct {
	Type             string    `json:"type"`
	ID               string    `json:"id,omitempty"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	HasSpeakerBreaks bool      `json:"has_speaker_breaks"`
}

// Dispatcher turns accumulated audio chunks into persisted transcripts.
//
// Errors never propagate back into the capture path: a failed transcription
// or save drops the chunk with a log line, and the circuit breaker keeps a
// dead engine from being hammered on every chunk.
type Dispatcher struct {
	transcriber engine.Transcriber
	sink        TranscriptSink
	breaker     *resilience.Breaker
	sampleRate  int
	channels    int
	artifacts   map[string]bool
	events      chan Event
}

// NewDispatcher creates a dispatcher. artifacts lists engine hallucination
// phrases to drop, matched case-insensitively against the whole transcript.
func NewDispatcher(t engine.Transcriber, sink TranscriptSink, sampleRate, channels int, artifacts []string) *Dispatcher {
	set := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		set[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return &Dispatcher{
		transcriber: t,
		sink:        sink,
		breaker:     resilience.NewBreaker(resilience.BreakerConfig{}),
		sampleRate:  sampleRate,
		channels:    channels,
		artifacts:   set,
		events:      make(chan Event, 16),
	}
}

// Events returns the channel of persisted-transcript events.
func (d *Dispatcher) Events() <-chan Event { return d.events }

// Dispatch transcribes one chunk of samples and persists the result.
// Silence, artifacts, and failures are dropped; capture is never blocked
// on the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, samples []float32, capturedAt time.Time) {
	ctx, span := trace.StartSpan(ctx, "dispatch_chunk")
	defer span.End()
	log := trace.Logger(ctx)

	wav := audio.EncodeWAV(samples, d.sampleRate, d.channels)

	tr, err := resilience.ExecuteWithResult(d.breaker, func() (*engine.Transcription, error) {
		return d.transcriber.Transcribe(ctx, wav)
	})
	if err != nil {
		log.Warn("transcription failed, dropping chunk", "samples", len(samples), "error", err)
		return
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" || d.artifacts[strings.ToLower(text)] {
		log.Debug("dropping silence artifact", "text", text)
		return
	}

	hasBreaks := false
	if len(tr.Segments) > 0 {
		segs := make([]segment.Segment, len(tr.Segments))
		for i, s := range tr.Segments {
			segs[i] = segment.Segment{Text: s.Text, Start: s.Start, End: s.End}
		}
		if composed, broke := segment.Compose(segs); composed != "" {
			text = composed
			hasBreaks = broke
		}
	}

	id, err := d.sink.SaveTranscript(ctx, text, capturedAt, hasBreaks)
	if err != nil {
		log.Warn("failed to persist transcript", "error", err)
		return
	}

	log.Info("transcript persisted", "id", id, "chars", len(text), "speaker_breaks", hasBreaks)
	d.emit(Event{Type: "transcript", ID: id, Text: text, Timestamp: capturedAt, HasSpeakerBreaks: hasBreaks})
}

// emit publishes without blocking; slow subscribers miss events.
func (d *Dispatcher) emit(e Event) {
	select {
	case d.events <- e:
	default:
	}
}
