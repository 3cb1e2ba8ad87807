package audio

// EncodedChunk is audio in transport form: base64 PCM16 plus the MIME
// descriptor naming its sample rate.
type EncodedChunk struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

func (c EncodedChunk) IsZero() bool { return c.Data == "" }

// EncodeSamples quantizes and encodes one captured frame.
func EncodeSamples(samples []float32, info EncodingInfo) EncodedChunk {
	return EncodedChunk{
		Data:     EncodeBytes(SamplesToPCM16(samples)),
		MIMEType: info.MIMEType(),
	}
}

// Decode turns the chunk back into a playable buffer. The sample rate comes
// from the MIME descriptor; fallback is used when the descriptor is empty.
func (c EncodedChunk) Decode(fallback EncodingInfo) (Buffer, error) {
	info := fallback
	if c.MIMEType != "" {
		parsed, err := ParseMIMEType(c.MIMEType)
		if err != nil {
			return Buffer{}, err
		}
		info = parsed
	}

	data, err := DecodeBytes(c.Data)
	if err != nil {
		return Buffer{}, err
	}
	return PCM16ToAudioBuffer(data, info.SampleRate, info.ChannelCount())
}
