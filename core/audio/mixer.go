package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrMixerClosed = errors.New("mixer closed")

// Mixer is a sample-accurate timeline for an output device. Buffers are
// scheduled at device-clock times and mixed into whatever the device asks
// Render for. The clock only advances as frames are rendered, so it is the
// device's own notion of "now".
type Mixer struct {
	mu sync.Mutex

	encodingInfo EncodingInfo
	position     int64
	voices       []*Voice
	closed       bool

	scratch []float32
}

// Stoppable is a scheduled playback that can be cut off before it ends.
// StartsAt is where the output actually placed it, which is later than
// requested when the clock had already moved past that point.
type Stoppable interface {
	Stop()
	StartsAt() time.Duration
}

// Voice is one scheduled buffer on a [Mixer].
type Voice struct {
	mixer      *Mixer
	buffer     Buffer
	startFrame int64
	onEnded    func()
	done       bool
}

func NewMixer(encodingInfo EncodingInfo) *Mixer {
	if encodingInfo.IsZero() {
		encodingInfo = GetDefaultOutputEncodingInfo()
	}
	return &Mixer{encodingInfo: encodingInfo}
}

func (m *Mixer) EncodingInfo() EncodingInfo { return m.encodingInfo }

// Now is the device clock: the duration of audio rendered so far.
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return FramesDuration(int(m.position), m.encodingInfo.SampleRate)
}

// Schedule queues buf to start at device time at. If at is already in the
// past the buffer starts with the next rendered frame. onEnded runs once the
// last frame of buf has been rendered; it does not run for stopped voices.
func (m *Mixer) Schedule(buf Buffer, at time.Duration, onEnded func()) (*Voice, error) {
	if buf.SampleRate != m.encodingInfo.SampleRate {
		return nil, fmt.Errorf("buffer sample rate %d does not match output rate %d", buf.SampleRate, m.encodingInfo.SampleRate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrMixerClosed
	}

	voice := &Voice{
		mixer:      m,
		buffer:     buf,
		startFrame: max(DurationFrames(at, m.encodingInfo.SampleRate), m.position),
		onEnded:    onEnded,
	}
	if buf.Frames() == 0 {
		// Nothing to render, but the caller still expects a completion.
		voice.done = true
		if onEnded != nil {
			go onEnded()
		}
		return voice, nil
	}

	m.voices = append(m.voices, voice)
	return voice, nil
}

// Stop removes the voice from the timeline. Frames not yet rendered are
// never rendered. Stopping twice, or after the voice ended, is a no-op.
func (v *Voice) Stop() {
	if v == nil || v.mixer == nil {
		return
	}
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(v)
}

// StartsAt reports the scheduled start on the device clock.
func (v *Voice) StartsAt() time.Duration {
	return FramesDuration(int(v.startFrame), v.buffer.SampleRate)
}

func (m *Mixer) removeLocked(v *Voice) {
	if v.done {
		return
	}
	v.done = true
	for i, voice := range m.voices {
		if voice == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return
		}
	}
}

// Active is the number of voices still waiting to finish.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Render mixes the next len(out)/channels frames into out (interleaved) and
// advances the clock.
func (m *Mixer) Render(out []float32) {
	for _, onEnded := range m.render(out) {
		onEnded()
	}
}

// RenderPCM16 is [Mixer.Render] for devices that take little-endian PCM16.
func (m *Mixer) RenderPCM16(out []byte) {
	m.mu.Lock()
	if cap(m.scratch) < len(out)/2 {
		m.scratch = make([]float32, len(out)/2)
	}
	scratch := m.scratch[:len(out)/2]
	m.mu.Unlock()

	m.Render(scratch)
	for i, sample := range scratch {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(quantize(sample)))
	}
}

func (m *Mixer) render(out []float32) []func() {
	channels := m.encodingInfo.ChannelCount()
	frames := int64(len(out) / channels)
	clear(out)

	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := m.position, m.position+frames
	var ended []func()
	remaining := m.voices[:0]
	for _, voice := range m.voices {
		voiceEnd := voice.startFrame + int64(voice.buffer.Frames())
		if voice.startFrame < to && voiceEnd > from {
			first := max(voice.startFrame, from)
			last := min(voiceEnd, to)
			for frame := first; frame < last; frame++ {
				i := int(frame - voice.startFrame)
				o := int(frame-from) * channels
				for ch := range channels {
					out[o+ch] += voice.buffer.Sample(ch, i)
				}
			}
		}

		if voiceEnd <= to {
			voice.done = true
			if voice.onEnded != nil {
				ended = append(ended, voice.onEnded)
			}
			continue
		}
		remaining = append(remaining, voice)
	}
	clear(m.voices[len(remaining):])
	m.voices = remaining
	m.position = to

	return ended
}

// Reset stops every voice but keeps the clock running.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, voice := range m.voices {
		voice.done = true
	}
	m.voices = nil
}

func (m *Mixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, voice := range m.voices {
		voice.done = true
	}
	m.voices = nil
}
