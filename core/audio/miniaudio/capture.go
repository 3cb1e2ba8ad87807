package miniaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

var errNotAcquired = errors.New("capture device not acquired")

// Capture opens the default input device on AcquireCapture and closes it on
// StopCapture, so the microphone is only held for the length of a session.
type Capture struct {
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	mu     sync.Mutex
	device *malgo.Device

	onSamples atomic.Pointer[func([]float32)]
	// scratch is only touched from the device callback.
	scratch []float32
}

func newCapture(audioContext *malgo.AllocatedContext, encodingInfo audio.EncodingInfo) *Capture {
	return &Capture{audioContext: audioContext, encodingInfo: encodingInfo}
}

func (c *Capture) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *Capture) AcquireCapture(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	channels := c.encodingInfo.ChannelCount()
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(c.encodingInfo.SampleRate)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatF32) * channels
	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.deliver(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	return nil
}

func (c *Capture) deliver(data []byte) {
	onSamples := c.onSamples.Load()
	if onSamples == nil {
		return
	}

	count := len(data) / 4
	if cap(c.scratch) < count {
		c.scratch = make([]float32, count)
	}
	samples := c.scratch[:count]
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	(*onSamples)(samples)
}

func (c *Capture) StartCapture(_ context.Context, onSamples func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errNotAcquired
	} else if c.device.IsStarted() {
		return nil
	}

	c.onSamples.Store(&onSamples)
	if err := c.device.Start(); err != nil {
		c.onSamples.Store(nil)
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// StopCapture stops delivery and releases the device.
func (c *Capture) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onSamples.Store(nil)
	if c.device == nil {
		return nil
	}

	var err error
	if c.device.IsStarted() {
		if stopErr := c.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}
	c.device.Uninit()
	c.device = nil
	return err
}
