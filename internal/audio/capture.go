// Package audio handles audio device capture with backpressure
package audio

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/murmurhq/murmur/internal/errors"
)

// Frame is a timestamped block of raw samples from the input device.
// Frames are immutable after creation; the channel is the hand-off boundary
// between the device read loop and the consumer.
type Frame struct {
	Data      []float32
	Timestamp int64
}

// Source is the capture contract consumed by the recording controller.
// Stop must leave the source startable again; teardown that precludes a
// restart belongs to the owner of the concrete type.
type Source interface {
	Start(ctx context.Context) error
	Frames() <-chan Frame
	Stop()
}

// Capturer captures audio from the best available input device.
//
// The read loop runs on its own goroutine and must never block: frames are
// handed off with a non-blocking send into a bounded channel. A persistently
// slow consumer drops frames rather than growing memory without limit.
type Capturer struct {
	outCh        chan Frame
	sampleRate   int
	channels     int
	framesPerBuf int
	excludedDevs []string

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapturer creates a capturer. queueSize bounds the hand-off channel.
func NewCapturer(sampleRate, channels, queueSize int, excludedDevices []string) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DeviceOpenFailed, "portaudio init")
	}

	return &Capturer{
		outCh:        make(chan Frame, queueSize),
		sampleRate:   sampleRate,
		channels:     channels,
		framesPerBuf: 1024, // ~64ms at 16000Hz
		excludedDevs: excludedDevices,
	}, nil
}

// Frames returns the channel for receiving captured frames.
func (c *Capturer) Frames() <-chan Frame { return c.outCh }

// Start opens the input device and begins the read loop.
// Device-open failures are fatal and surface to the caller.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	dev, err := c.pickInputDevice()
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: c.channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: c.framesPerBuf,
	}

	buf := make([]float32, c.framesPerBuf*c.channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.DeviceOpenFailed, "open stream on %q", dev.Name)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return apperrors.Wrapf(err, apperrors.DeviceOpenFailed, "start stream on %q", dev.Name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.stream = stream
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	slog.Info("started audio capture", "device", dev.Name, "sample_rate", c.sampleRate, "channels", c.channels)

	go c.readLoop(runCtx, stream, buf, dev.Name)

	return nil
}

func (c *Capturer) readLoop(ctx context.Context, stream *portaudio.Stream, buf []float32, device string) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflows and transient status problems are warnings; capture continues.
			if err == portaudio.InputOverflowed {
				slog.Warn("audio input overflowed", "device", device)
				continue
			}
			slog.Warn("audio read error, stopping capture", "device", device, "error", err)
			return
		}

		frame := Frame{
			Data:      append([]float32(nil), buf...),
			Timestamp: time.Now().UnixNano(),
		}

		select {
		case c.outCh <- frame:
		default:
			slog.Debug("audio queue full, dropping frame", "device", device)
		}
	}
}

// pickInputDevice selects the best user microphone, preferring built-in mics.
func (c *Capturer) pickInputDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DeviceOpenFailed, "enumerate devices")
	}

	var best *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels < c.channels || c.isExcluded(dev.Name) {
			continue
		}
		if !isMicrophone(dev.Name) {
			continue
		}
		if best == nil || preferDevice(dev.Name, best.Name) {
			best = dev
		}
	}

	if best == nil {
		return nil, apperrors.New(apperrors.DeviceOpenFailed, "no usable input device found")
	}
	return best, nil
}

func isMicrophone(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range []string{"microphone", "input", "mic", "built-in"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (c *Capturer) isExcluded(name string) bool {
	lower := strings.ToLower(name)
	for _, ex := range c.excludedDevs {
		if strings.Contains(lower, strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

// preferDevice prefers built-in mics over external/virtual ones.
func preferDevice(name, current string) bool {
	for _, p := range []string{"macbook", "built-in"} {
		nameHas := strings.Contains(strings.ToLower(name), p)
		currHas := strings.Contains(strings.ToLower(current), p)
		if nameHas && !currHas {
			return true
		}
	}
	return false
}

// Stop stops capture and releases the device. The capturer can be started
// again; the audio subsystem stays initialized until Close.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	c.cancel()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		slog.Warn("audio read loop did not exit in time")
	}

	_ = c.stream.Stop()
	_ = c.stream.Close()
	c.stream = nil
	c.running = false
}

// Close stops capture and tears down the audio subsystem. The capturer
// cannot be started after Close.
func (c *Capturer) Close() {
	c.Stop()
	_ = portaudio.Terminate()
}
