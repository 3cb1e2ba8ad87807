package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
)

// AudioOutput is a speaker with its own clock. Now reports the device clock
// and Schedule places a buffer on it at an absolute device time. onEnded is
// called once the buffer has been fully rendered; it is not called for
// buffers that were stopped, and it must never be called from inside
// Schedule.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	Now() time.Duration
	Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Stoppable, error)
	StartPlayback(ctx context.Context) error
	StopPlayback() error
}

// playbackUnit is one decoded buffer on the output clock.
type playbackUnit struct {
	id       uuid.UUID
	startAt  time.Duration
	duration time.Duration
	voice    audio.Stoppable
}

// playbackStage schedules decoded buffers back to back and tracks which of
// them are still audible.
type playbackStage struct {
	output AudioOutput

	mu sync.Mutex
	// nextStartFrame is the watermark on the output clock, kept in frames so
	// back-to-back units never drift apart through duration rounding.
	nextStartFrame int64
	active         map[uuid.UUID]*playbackUnit

	// onActiveChanged is called outside the lock after the active set went
	// from empty to non-empty or back. Calls can race, so receivers should
	// re-read isPlaying rather than trust the order of calls.
	onActiveChanged func()
}

func newPlaybackStage(output AudioOutput) *playbackStage {
	return &playbackStage{
		output:          output,
		active:          map[uuid.UUID]*playbackUnit{},
		onActiveChanged: func() {},
	}
}

func (p *playbackStage) EncodingInfo() audio.EncodingInfo {
	if p == nil || p.output == nil {
		return audio.GetDefaultOutputEncodingInfo()
	}
	return p.output.EncodingInfo()
}

// enqueue schedules buf at max(watermark, now) and advances the watermark
// past it. The watermark is read under the lock on every call, so a unit
// enqueued right after an interrupt starts from now. If the output places
// the unit later than asked, the watermark follows the actual start.
func (p *playbackStage) enqueue(buf audio.Buffer, now time.Duration) (playbackUnit, error) {
	if p == nil || p.output == nil {
		return playbackUnit{}, ErrNoAudioOutput
	}
	rate := buf.SampleRate

	p.mu.Lock()
	startFrame := max(p.nextStartFrame, audio.DurationFrames(now, rate))
	unit := &playbackUnit{id: uuid.New(), duration: buf.Duration()}

	voice, err := p.output.Schedule(buf, audio.FramesDuration(int(startFrame), rate), func() { p.finished(unit.id) })
	if err != nil {
		p.mu.Unlock()
		return playbackUnit{}, fmt.Errorf("failed to schedule playback: %w", err)
	}
	startFrame = max(startFrame, audio.DurationFrames(voice.StartsAt(), rate))
	unit.voice = voice
	unit.startAt = audio.FramesDuration(int(startFrame), rate)

	wasIdle := len(p.active) == 0
	p.active[unit.id] = unit
	p.nextStartFrame = startFrame + int64(buf.Frames())
	p.mu.Unlock()

	if wasIdle {
		p.onActiveChanged()
	}
	return *unit, nil
}

func (p *playbackStage) finished(id uuid.UUID) {
	p.mu.Lock()
	if _, ok := p.active[id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, id)
	nowIdle := len(p.active) == 0
	p.mu.Unlock()

	if nowIdle {
		p.onActiveChanged()
	}
}

// interrupt stops every active unit, empties the set and resets the clock
// watermark, all before returning. It reports how many units were stopped.
func (p *playbackStage) interrupt() int {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	stopped := len(p.active)
	for id, unit := range p.active {
		if unit.voice != nil {
			unit.voice.Stop()
		}
		delete(p.active, id)
	}
	p.nextStartFrame = 0
	p.mu.Unlock()

	if stopped > 0 {
		p.onActiveChanged()
	}
	return stopped
}

// reset is interrupt for teardown.
func (p *playbackStage) reset() { p.interrupt() }

func (p *playbackStage) isPlaying() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active) > 0
}

func (p *playbackStage) activeCount() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *playbackStage) watermark() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return audio.FramesDuration(int(p.nextStartFrame), p.EncodingInfo().SampleRate)
}
