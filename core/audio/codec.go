package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// FormatError reports an encoded payload that cannot be turned back into
// audio. Sessions drop such payloads and keep going.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed audio payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed audio payload: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// EncodeBytes renders bytes in the transport's text-safe representation.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBytes is the inverse of [EncodeBytes].
func DecodeBytes(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &FormatError{Reason: "invalid base64", Err: err}
	}
	return data, nil
}

// SamplesToPCM16 quantizes float samples to little-endian signed 16-bit PCM.
// Samples are clamped to [-1, 1]; negative values scale by 32768 and the rest
// by 32767, so -1 maps to -32768 and 1 maps to 32767.
func SamplesToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(quantize(sample)))
	}
	return out
}

func quantize(sample float32) int16 {
	s := float64(sample)
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(math.Round(s * 32768))
	}
	return int16(math.Round(s * 32767))
}

// PCM16ToAudioBuffer decodes interleaved little-endian PCM16 into one float
// slice per channel.
func PCM16ToAudioBuffer(data []byte, sampleRate, channelCount int) (Buffer, error) {
	if channelCount <= 0 {
		return Buffer{}, &FormatError{Reason: fmt.Sprintf("invalid channel count %d", channelCount)}
	}
	if sampleRate <= 0 {
		return Buffer{}, &FormatError{Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	if len(data)%2 != 0 {
		return Buffer{}, &FormatError{Reason: fmt.Sprintf("odd byte length %d for 16-bit samples", len(data))}
	}

	samples := len(data) / 2
	if samples%channelCount != 0 {
		return Buffer{}, &FormatError{Reason: fmt.Sprintf("%d samples do not divide into %d channels", samples, channelCount)}
	}

	frames := samples / channelCount
	channels := make([][]float32, channelCount)
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channelCount {
			offset := (i*channelCount + ch) * 2
			channels[ch][i] = float32(int16(binary.LittleEndian.Uint16(data[offset:]))) / 32768
		}
	}

	return Buffer{SampleRate: sampleRate, Channels: channels}, nil
}
