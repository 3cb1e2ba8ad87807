package miniaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Playback renders an [audio.Mixer] into the default output device. The
// mixer clock advances with every period the device pulls, so Now is the
// device's own clock.
type Playback struct {
	mixer  *audio.Mixer
	device *malgo.Device

	mu sync.Mutex
}

func newPlayback(audioContext *malgo.AllocatedContext, encodingInfo audio.EncodingInfo) (*Playback, error) {
	p := &Playback{mixer: audio.NewMixer(encodingInfo)}

	sampleRate := uint32(encodingInfo.SampleRate)
	channels := encodingInfo.ChannelCount()
	bytesPerFrame := malgo.SampleSizeInBytes(malgo.FormatS16) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	config.Periods = 4

	var err error
	if p.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			need := int(frameCount) * bytesPerFrame
			if len(pOutput) < need {
				need = len(pOutput) - len(pOutput)%bytesPerFrame
			}
			p.mixer.RenderPCM16(pOutput[:need])
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return p, nil
}

func (p *Playback) EncodingInfo() audio.EncodingInfo { return p.mixer.EncodingInfo() }

func (p *Playback) Now() time.Duration { return p.mixer.Now() }

func (p *Playback) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Stoppable, error) {
	voice, err := p.mixer.Schedule(buf, at, onEnded)
	if err != nil {
		return nil, err
	}
	return voice, nil
}

func (p *Playback) StartPlayback(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return fmt.Errorf("device not initialized")
	} else if p.device.IsStarted() {
		return nil
	}

	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// StopPlayback silences every scheduled buffer and stops the device.
func (p *Playback) StopPlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mixer.Reset()
	if p.device == nil || !p.device.IsStarted() {
		return nil
	}

	if err := p.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (p *Playback) uninit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mixer.Close()
	if p.device == nil {
		return nil
	}

	p.device.Uninit()
	p.device = nil
	return nil
}
