package audio

import "time"

// Buffer is decoded, de-interleaved audio ready to be scheduled on an output.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

func (b Buffer) ChannelCount() int { return len(b.Channels) }

// Frames is the number of samples per channel.
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b Buffer) Duration() time.Duration {
	return FramesDuration(b.Frames(), b.SampleRate)
}

// Sample returns the sample of channel ch at frame i, folding channels the
// buffer does not have onto its last one.
func (b Buffer) Sample(ch, i int) float32 {
	if len(b.Channels) == 0 {
		return 0
	}
	if ch >= len(b.Channels) {
		ch = len(b.Channels) - 1
	}
	return b.Channels[ch][i]
}

func FramesDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// DurationFrames converts a device-clock time to the nearest frame index.
func DurationFrames(d time.Duration, sampleRate int) int64 {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}
