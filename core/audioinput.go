package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
)

// DefaultFrameSize is the number of samples per capture frame.
const DefaultFrameSize = 4096

// AudioInput is a microphone. AcquireCapture claims the device,
// StartCapture begins delivering samples and StopCapture stops delivery and
// releases the device. StopCapture must release the device even when
// StartCapture was never called.
//
// onSamples may be called with slices of any length; the slice is only valid
// for the duration of the call.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	AcquireCapture(ctx context.Context) error
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

// captureStage hands out capture handles for one input device.
type captureStage struct {
	input     AudioInput
	frameSize int
	// frameBuffer is how many frames may wait for the pump before the device
	// callback blocks.
	frameBuffer int
}

func newCaptureStage(input AudioInput, frameSize int) *captureStage {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &captureStage{input: input, frameSize: frameSize, frameBuffer: 32}
}

func (c *captureStage) EncodingInfo() audio.EncodingInfo {
	if c == nil || c.input == nil {
		return audio.GetDefaultEncodingInfo()
	}
	return c.input.EncodingInfo()
}

// acquire claims the device. The returned handle owns it until stop.
func (c *captureStage) acquire(ctx context.Context) (*captureHandle, error) {
	if c == nil || c.input == nil {
		return nil, &DeviceUnavailableError{Err: ErrNoAudioInput}
	}
	if err := c.input.AcquireCapture(ctx); err != nil {
		return nil, &DeviceUnavailableError{Err: err}
	}

	h := &captureHandle{
		input:     c.input,
		frameSize: c.frameSize,
		frames:    make(chan []float32, c.frameBuffer),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}
	h.live.Store(true)
	return h, nil
}

// captureHandle is one acquisition of the input device. Frames flow
// device callback → frames channel → pump goroutine → onFrame, so onFrame
// sees them one at a time and in capture order.
type captureHandle struct {
	input     AudioInput
	frameSize int

	// live gates every callback; it is cleared first thing in stop.
	live atomic.Bool

	// mu orders start against stop so a stopped device is never restarted.
	mu      sync.Mutex
	started bool
	stopped bool
	stopErr error

	// pending is only touched from the device callback.
	pending []float32

	frames   chan []float32
	done     chan struct{}
	pumpDone chan struct{}
}

// start runs the pump and begins capture. onFrame gets fixed-size frames it
// may keep. onFrame must not call stop.
func (h *captureHandle) start(ctx context.Context, onFrame func(frame []float32)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return errors.New("capture handle already stopped")
	}
	if h.started {
		return errors.New("capture handle already started")
	}
	h.started = true

	go h.pump(onFrame)

	if err := h.input.StartCapture(ctx, h.onSamples); err != nil {
		return &DeviceUnavailableError{Err: err}
	}
	return nil
}

func (h *captureHandle) pump(onFrame func(frame []float32)) {
	defer close(h.pumpDone)
	for {
		select {
		case <-h.done:
			return
		case frame := <-h.frames:
			if !h.live.Load() {
				return
			}
			onFrame(frame)
		}
	}
}

// onSamples is the device callback.
func (h *captureHandle) onSamples(samples []float32) {
	if !h.live.Load() {
		return
	}

	h.pending = append(h.pending, samples...)
	for len(h.pending) >= h.frameSize {
		frame := make([]float32, h.frameSize)
		copy(frame, h.pending)
		h.pending = h.pending[:copy(h.pending, h.pending[h.frameSize:])]

		select {
		case h.frames <- frame:
		case <-h.done:
			return
		}
	}
}

// stop disconnects the pump and releases the device. It is idempotent and
// safe to call before start or before the first frame.
func (h *captureHandle) stop() error {
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return h.stopErr
	}
	h.stopped = true

	h.live.Store(false)
	// Unblock a device callback waiting on a full frames channel before
	// asking the device to stop, since stopping may wait for that callback.
	close(h.done)
	h.stopErr = h.input.StopCapture()
	if h.started {
		<-h.pumpDone
	}
	return h.stopErr
}

// mute stops frames reaching onFrame without releasing the device.
func (h *captureHandle) mute() {
	if h != nil {
		h.live.Store(false)
	}
}

func (h *captureHandle) isLive() bool { return h != nil && h.live.Load() }
