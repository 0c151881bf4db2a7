package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/murmurhq/murmur/internal/engine"
	apperrors "github.com/murmurhq/murmur/internal/errors"
)

var testArtifacts = []string{"thank you.", "thanks.", "you"}

type fakeTranscriber struct {
	mu     sync.Mutex
	calls  int
	result *engine.Transcription
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (*engine.Transcription, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type savedTranscript struct {
	text      string
	ts        time.Time
	hasBreaks bool
}

type fakeTranscriptSink struct {
	mu    sync.Mutex
	saved []savedTranscript
	err   error
}

func (f *fakeTranscriptSink) SaveTranscript(ctx context.Context, text string, ts time.Time, hasSpeakerBreaks bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, savedTranscript{text: text, ts: ts, hasBreaks: hasSpeakerBreaks})
	return fmt.Sprintf("id-%d", len(f.saved)), nil
}

func (f *fakeTranscriptSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeTranscriptSink) last() savedTranscript {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved[len(f.saved)-1]
}

func TestDispatchPersistsComposedTranscript(t *testing.T) {
	tr := &fakeTranscriber{result: &engine.Transcription{
		Text: "How are you? doing fine",
		Segments: []engine.TranscriptSegment{
			{Text: "How are you?", Start: 0, End: 1.5},
			{Text: "doing fine", Start: 1.6, End: 3},
		},
	}}
	sink := &fakeTranscriptSink{}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	capturedAt := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	d.Dispatch(context.Background(), make([]float32, 16000), capturedAt)

	if sink.count() != 1 {
		t.Fatalf("saved = %d, want 1", sink.count())
	}
	got := sink.last()
	if got.text != "How are you?\ndoing fine" {
		t.Errorf("text = %q", got.text)
	}
	if !got.hasBreaks {
		t.Error("expected speaker break flag")
	}
	if !got.ts.Equal(capturedAt) {
		t.Errorf("timestamp = %v, want %v", got.ts, capturedAt)
	}

	select {
	case e := <-d.Events():
		if e.Type != "transcript" || e.ID != "id-1" || e.Text != got.text {
			t.Errorf("event = %+v", e)
		}
	default:
		t.Error("no event published")
	}
}

func TestDispatchWithoutSegmentTiming(t *testing.T) {
	tr := &fakeTranscriber{result: &engine.Transcription{Text: "  just the text  "}}
	sink := &fakeTranscriptSink{}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	d.Dispatch(context.Background(), make([]float32, 16000), time.Now())

	if sink.count() != 1 {
		t.Fatalf("saved = %d, want 1", sink.count())
	}
	got := sink.last()
	if got.text != "just the text" {
		t.Errorf("text = %q, want trimmed plain text", got.text)
	}
	if got.hasBreaks {
		t.Error("no speaker breaks without segment timing")
	}
}

func TestDispatchDropsArtifacts(t *testing.T) {
	tests := []string{"", "   ", "Thank you.", " thank you. ", "THANKS.", "You"}

	for _, text := range tests {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			tr := &fakeTranscriber{result: &engine.Transcription{Text: text}}
			sink := &fakeTranscriptSink{}
			d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

			d.Dispatch(context.Background(), make([]float32, 16000), time.Now())

			if sink.count() != 0 {
				t.Errorf("artifact %q was persisted", text)
			}
			select {
			case e := <-d.Events():
				t.Errorf("unexpected event %+v", e)
			default:
			}
		})
	}
}

func TestDispatchArtifactInsideSentenceKept(t *testing.T) {
	tr := &fakeTranscriber{result: &engine.Transcription{Text: "thank you for the update on the build"}}
	sink := &fakeTranscriptSink{}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	d.Dispatch(context.Background(), make([]float32, 16000), time.Now())

	if sink.count() != 1 {
		t.Error("whole-text match only; longer sentences must survive")
	}
}

func TestDispatchEngineErrorDropsChunk(t *testing.T) {
	tr := &fakeTranscriber{err: apperrors.New(apperrors.EngineUnavailable, "connection refused")}
	sink := &fakeTranscriptSink{}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	d.Dispatch(context.Background(), make([]float32, 16000), time.Now())

	if sink.count() != 0 {
		t.Error("failed transcription must not persist")
	}
}

func TestDispatchSinkErrorNoEvent(t *testing.T) {
	tr := &fakeTranscriber{result: &engine.Transcription{Text: "a real sentence"}}
	sink := &fakeTranscriptSink{err: apperrors.New(apperrors.PersistenceFailed, "disk full")}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	d.Dispatch(context.Background(), make([]float32, 16000), time.Now())

	select {
	case e := <-d.Events():
		t.Errorf("unexpected event after failed save: %+v", e)
	default:
	}
}

func TestDispatchBreakerStopsHammeringDeadEngine(t *testing.T) {
	tr := &fakeTranscriber{err: apperrors.New(apperrors.EngineUnavailable, "connection refused")}
	sink := &fakeTranscriptSink{}
	d := NewDispatcher(tr, sink, 16000, 1, testArtifacts)

	for i := 0; i < 10; i++ {
		d.Dispatch(context.Background(), make([]float32, 16000), time.Now())
	}

	// The breaker opens after its failure threshold; later chunks fail fast
	// without reaching the engine.
	if got := tr.callCount(); got >= 10 {
		t.Errorf("engine called %d times, breaker never opened", got)
	}
}
