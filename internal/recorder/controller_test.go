package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/murmurhq/murmur/internal/audio"
	apperrors "github.com/murmurhq/murmur/internal/errors"
)

// fakeSource feeds frames through an unbuffered channel so a completed send
// guarantees the consumer has the frame.
type fakeSource struct {
	frames   chan audio.Frame
	startErr error
	starts   atomic.Int32
	stops    atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan audio.Frame)}
}

func (f *fakeSource) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts.Add(1)
	return nil
}

func (f *fakeSource) Frames() <-chan audio.Frame { return f.frames }

func (f *fakeSource) Stop() { f.stops.Add(1) }

func (f *fakeSource) send(n int) {
	f.frames <- audio.Frame{
		Data:      make([]float32, n),
		Timestamp: time.Now().UnixNano(),
	}
}

type fakeChunkSink struct {
	mu     sync.Mutex
	chunks [][]float32
}

func (s *fakeChunkSink) Dispatch(ctx context.Context, samples []float32, capturedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, append([]float32(nil), samples...))
}

func (s *fakeChunkSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *fakeChunkSink) chunkLen(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks[i])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLifecycleTransitions(t *testing.T) {
	src := newFakeSource()
	c := NewController(src, &fakeChunkSink{}, 10, 1, 1)
	ctx := context.Background()

	if got := c.Status(); got != StateStopped {
		t.Fatalf("initial state = %v", got)
	}
	if err := c.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Pause while stopped = %v, want ErrNotRecording", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("Resume while stopped = %v, want ErrNotPaused", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("Stop while stopped = %v, want ErrNotActive", err)
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := c.Status(); got != StateRecording {
		t.Errorf("state after start = %v", got)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start = %v, want ErrAlreadyActive", err)
	}

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := c.Status(); got != StatePaused {
		t.Errorf("state after pause = %v", got)
	}
	if err := c.Pause(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("second Pause = %v, want ErrNotRecording", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := c.Status(); got != StateRecording {
		t.Errorf("state after resume = %v", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := c.Status(); got != StateStopped {
		t.Errorf("state after stop = %v", got)
	}
	if src.stops.Load() != 1 {
		t.Errorf("source stops = %d, want 1", src.stops.Load())
	}

	// Stop from Paused is also valid.
	if err := c.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop from paused: %v", err)
	}
}

func TestStartDeviceFailure(t *testing.T) {
	src := newFakeSource()
	src.startErr = apperrors.New(apperrors.DeviceOpenFailed, "no usable input device found")
	c := NewController(src, &fakeChunkSink{}, 10, 1, 1)

	err := c.Start(context.Background())
	if err == nil {
		t.Fatal("expected device-open error")
	}
	if !apperrors.IsCode(err, apperrors.DeviceOpenFailed) {
		t.Errorf("code = %v, want DeviceOpenFailed", apperrors.CodeOf(err))
	}
	if got := c.Status(); got != StateStopped {
		t.Errorf("state after failed start = %v, want stopped", got)
	}

	// Once the device is back, Start succeeds.
	src.startErr = nil
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start after recovery: %v", err)
	}
	c.Stop()
}

func TestChunkDispatchOnThreshold(t *testing.T) {
	src := newFakeSource()
	sink := &fakeChunkSink{}
	// 10 samples/sec, 1s chunks: dispatch once 10 samples accumulate.
	c := NewController(src, sink, 10, 1, 1)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	src.send(6)
	src.send(6)

	waitFor(t, func() bool { return sink.count() == 1 })
	if got := sink.chunkLen(0); got != 12 {
		t.Errorf("chunk samples = %d, want 12", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Accumulator was reset on dispatch; nothing left to flush.
	if sink.count() != 1 {
		t.Errorf("chunks after stop = %d, want 1", sink.count())
	}
}

func TestPauseDiscardsFrames(t *testing.T) {
	src := newFakeSource()
	sink := &fakeChunkSink{}
	c := NewController(src, sink, 10, 1, 1)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// Well past the chunk threshold, all discarded.
	src.send(20)
	src.send(20)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("chunks = %d, want 0 while paused", sink.count())
	}
}

func TestStopFlushesTail(t *testing.T) {
	src := newFakeSource()
	sink := &fakeChunkSink{}
	// 5s chunks: 12 samples stay below the dispatch threshold.
	c := NewController(src, sink, 10, 1, 5)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.send(12)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("chunks = %d, want 1 flushed tail", sink.count())
	}
	if got := sink.chunkLen(0); got != 12 {
		t.Errorf("flushed samples = %d, want 12", got)
	}
}

func TestStopDiscardsShortTail(t *testing.T) {
	src := newFakeSource()
	sink := &fakeChunkSink{}
	c := NewController(src, sink, 10, 1, 5)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Under a second of audio: dropped on stop.
	src.send(5)

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sink.count() != 0 {
		t.Errorf("chunks = %d, want 0 for sub-second tail", sink.count())
	}
}
