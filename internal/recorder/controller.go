// Package recorder implements the recording lifecycle and the consumer side
// of the capture pipeline: accumulate frames into fixed-duration chunks and
// hand them to the dispatcher.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurhq/murmur/internal/audio"
)

// stopJoinTimeout bounds how long Stop waits for the consumer loop.
const stopJoinTimeout = 30 * time.Second

// dispatchTimeout bounds a single chunk transcription, including the final
// flush that runs after the capture context is already canceled.
const dispatchTimeout = 2 * time.Minute

// ChunkSink receives accumulated sample chunks for transcription.
type ChunkSink interface {
	Dispatch(ctx context.Context, samples []float32, capturedAt time.Time)
}

// Controller owns the recording state machine.
//
// Transitions are serialized by mu; state is atomic so Status never blocks
// behind a slow Stop.
type Controller struct {
	source audio.Source
	sink   ChunkSink

	sampleRate      int
	channels        int
	chunkSamples    int
	minFlushSamples int

	mu     sync.Mutex
	state  atomic.Int32
	paused atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller that dispatches a chunk every
// chunkDurationSec seconds of accumulated audio.
func NewController(source audio.Source, sink ChunkSink, sampleRate, channels, chunkDurationSec int) *Controller {
	return &Controller{
		source:          source,
		sink:            sink,
		sampleRate:      sampleRate,
		channels:        channels,
		chunkSamples:    sampleRate * channels * chunkDurationSec,
		minFlushSamples: sampleRate * channels, // final flush needs at least 1s of audio
	}
}

// Status returns the current lifecycle state.
func (c *Controller) Status() State {
	return State(c.state.Load())
}

// Start begins capture and the consumer loop. Only valid from Stopped.
// A device-open failure surfaces to the caller and leaves the state Stopped.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateStopped {
		return ErrAlreadyActive
	}

	if err := c.source.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.paused.Store(false)
	c.state.Store(int32(StateRecording))

	go c.run(runCtx)

	slog.Info("recording started")
	return nil
}

// Pause keeps the device open but discards incoming frames.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateRecording {
		return ErrNotRecording
	}
	c.paused.Store(true)
	c.state.Store(int32(StatePaused))
	slog.Info("recording paused")
	return nil
}

// Resume continues accumulation after a pause.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StatePaused {
		return ErrNotPaused
	}
	c.paused.Store(false)
	c.state.Store(int32(StateRecording))
	slog.Info("recording resumed")
	return nil
}

// Stop ends capture, waits for the consumer loop to flush, and releases the
// device. Valid from Recording or Paused.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) == StateStopped {
		return ErrNotActive
	}

	c.cancel()
	select {
	case <-c.done:
	case <-time.After(stopJoinTimeout):
		slog.Warn("consumer loop did not exit in time")
	}

	c.source.Stop()
	c.paused.Store(false)
	c.state.Store(int32(StateStopped))
	slog.Info("recording stopped")
	return nil
}

// run is the consumer loop: it drains the capture channel, accumulates
// samples, and dispatches a chunk whenever enough audio has built up.
// Dispatch is synchronous; the bounded capture channel absorbs frames
// arriving while a chunk is in flight.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	var acc []float32
	var chunkStart time.Time
	frames := c.source.Frames()

	for {
		select {
		case <-ctx.Done():
			c.flush(ctx, acc, chunkStart)
			return
		case f, ok := <-frames:
			if !ok {
				c.flush(ctx, acc, chunkStart)
				return
			}
			if c.paused.Load() {
				continue // discard while paused, stream stays warm
			}
			if len(acc) == 0 {
				chunkStart = time.Unix(0, f.Timestamp)
			}
			acc = append(acc, f.Data...)
			if len(acc) >= c.chunkSamples {
				c.dispatch(ctx, acc, chunkStart)
				acc = nil
			}
		}
	}
}

// flush dispatches whatever remains at shutdown, but only if it amounts to
// at least a second of audio. Shorter tails are noise.
func (c *Controller) flush(ctx context.Context, acc []float32, chunkStart time.Time) {
	if len(acc) < c.minFlushSamples {
		if len(acc) > 0 {
			slog.Debug("discarding short tail on stop", "samples", len(acc))
		}
		return
	}
	c.dispatch(ctx, acc, chunkStart)
}

// dispatch hands a chunk to the sink with its own deadline, detached from
// the run context so the final flush survives cancellation.
func (c *Controller) dispatch(ctx context.Context, samples []float32, capturedAt time.Time) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	c.sink.Dispatch(dctx, samples, capturedAt)
}
