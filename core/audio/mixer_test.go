package audio

import (
	"sync/atomic"
	"testing"
	"time"
)

func testMixer() *Mixer {
	return NewMixer(EncodingInfo{SampleRate: 10, Channels: 1, Format: EncodingLinear16})
}

func constantBuffer(value float32, frames int) Buffer {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = value
	}
	return Buffer{SampleRate: 10, Channels: [][]float32{samples}}
}

func TestMixerRendersBackToBackVoicesWithoutGap(t *testing.T) {
	m := testMixer()

	first, err := m.Schedule(constantBuffer(0.25, 3), 0, nil)
	if err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}
	if _, err := m.Schedule(constantBuffer(0.5, 2), first.StartsAt()+constantBuffer(0, 3).Duration(), nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]float32, 6)
	m.Render(out)

	expected := []float32{0.25, 0.25, 0.25, 0.5, 0.5, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("expected frame %d to be %v, got %v (%v)", i, expected[i], out[i], out)
		}
	}
}

func TestMixerClockAdvancesWithRenderedFrames(t *testing.T) {
	m := testMixer()

	m.Render(make([]float32, 5))

	if got := m.Now(); got != 500*time.Millisecond {
		t.Fatalf("expected clock at 500ms, got %s", got)
	}
}

func TestMixerSchedulesPastTimesAtCurrentPosition(t *testing.T) {
	m := testMixer()
	m.Render(make([]float32, 4))

	voice, err := m.Schedule(constantBuffer(1, 1), 0, nil)
	if err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	if got := voice.StartsAt(); got != 400*time.Millisecond {
		t.Fatalf("expected late voice to start at 400ms, got %s", got)
	}
}

func TestMixerCallsOnEndedAfterLastFrame(t *testing.T) {
	m := testMixer()
	var ended atomic.Int32
	if _, err := m.Schedule(constantBuffer(1, 4), 0, func() { ended.Add(1) }); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	m.Render(make([]float32, 3))
	if ended.Load() != 0 {
		t.Fatalf("expected voice to still be playing")
	}

	m.Render(make([]float32, 3))
	if ended.Load() != 1 {
		t.Fatalf("expected exactly one ended callback, got %d", ended.Load())
	}
	if m.Active() != 0 {
		t.Fatalf("expected no active voices, got %d", m.Active())
	}
}

func TestMixerStoppedVoiceIsSilentAndDoesNotEnd(t *testing.T) {
	m := testMixer()
	var ended atomic.Int32
	voice, err := m.Schedule(constantBuffer(1, 4), 0, func() { ended.Add(1) })
	if err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	m.Render(make([]float32, 1))
	voice.Stop()
	voice.Stop()

	out := make([]float32, 4)
	m.Render(out)
	for i, sample := range out {
		if sample != 0 {
			t.Fatalf("expected silence after stop, frame %d was %v", i, sample)
		}
	}
	if ended.Load() != 0 {
		t.Fatalf("expected no ended callback for a stopped voice")
	}
}

func TestMixerRejectsMismatchedSampleRate(t *testing.T) {
	m := testMixer()

	if _, err := m.Schedule(Buffer{SampleRate: 11, Channels: [][]float32{{1}}}, 0, nil); err == nil {
		t.Fatalf("expected sample rate mismatch to fail")
	}
}

func TestMixerRenderPCM16Quantizes(t *testing.T) {
	m := testMixer()
	if _, err := m.Schedule(constantBuffer(1, 1), 0, nil); err != nil {
		t.Fatalf("expected schedule to succeed, got %v", err)
	}

	out := make([]byte, 2)
	m.RenderPCM16(out)

	if out[0] != 0xFF || out[1] != 0x7F {
		t.Fatalf("expected full scale sample 0x7FFF, got % x", out)
	}
}
