package audio

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultSampleRate       = 16000
	DefaultOutputSampleRate = 24000
	DefaultChannels         = 1
	DefaultFormat           = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Channels: DefaultChannels, Format: EncodingLinear16}
}

func GetDefaultOutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultOutputSampleRate, Channels: DefaultChannels, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// ChannelCount treats an unset channel count as mono.
func (e EncodingInfo) ChannelCount() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// MIMEType renders the descriptor attached to encoded chunks, for example
// "audio/pcm;rate=16000".
func (e EncodingInfo) MIMEType() string {
	mimeType := "audio/pcm;rate=" + strconv.Itoa(e.SampleRate)
	if e.ChannelCount() > 1 {
		mimeType += ";channels=" + strconv.Itoa(e.ChannelCount())
	}
	return mimeType
}

// ParseMIMEType is the inverse of [EncodingInfo.MIMEType]. Parameters other
// than rate and channels are ignored; a missing rate is a format error.
func ParseMIMEType(mimeType string) (EncodingInfo, error) {
	parts := strings.Split(mimeType, ";")
	if mediaType := strings.TrimSpace(strings.ToLower(parts[0])); mediaType != "audio/pcm" && mediaType != "audio/l16" {
		return EncodingInfo{}, &FormatError{Reason: fmt.Sprintf("unsupported media type %q", parts[0])}
	}

	info := EncodingInfo{Channels: 1, Format: EncodingLinear16}
	for _, param := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return EncodingInfo{}, &FormatError{Reason: fmt.Sprintf("invalid %s parameter %q", key, value)}
		}
		switch strings.ToLower(key) {
		case "rate":
			info.SampleRate = n
		case "channels":
			info.Channels = n
		}
	}

	if info.SampleRate == 0 {
		return EncodingInfo{}, &FormatError{Reason: fmt.Sprintf("missing sample rate in %q", mimeType)}
	}
	return info, nil
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

const EncodingLinear16 encodingFormat = "linear16"
