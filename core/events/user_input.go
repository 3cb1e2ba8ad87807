package events

import "github.com/koscakluka/ema-live/core/audio"

const (
	// KindUserAudioFrame identifies an encoded capture frame handed to the transport.
	KindUserAudioFrame Kind = "user_input.audio_frame"
	// KindContextUpdateSent identifies a screen-context update sent while active.
	KindContextUpdateSent Kind = "user_input.context_update_sent"
	// KindGreetingSent identifies the opening prompt sent after connecting.
	KindGreetingSent Kind = "user_input.greeting_sent"
)

// UserAudioFrame carries an encoded user input frame. Sequence starts at 1
// for every session and increases by one per frame.
type UserAudioFrame struct {
	Base
	Sequence uint64
	Chunk    audio.EncodedChunk
}

func NewUserAudioFrame(sessionID string, sequence uint64, chunk audio.EncodedChunk) UserAudioFrame {
	return UserAudioFrame{Base: NewBase(KindUserAudioFrame, sessionID), Sequence: sequence, Chunk: chunk}
}

type ContextUpdateSent struct {
	Base
	Text string
}

func NewContextUpdateSent(sessionID, text string) ContextUpdateSent {
	return ContextUpdateSent{Base: NewBase(KindContextUpdateSent, sessionID), Text: text}
}

type GreetingSent struct {
	Base
	Text string
}

func NewGreetingSent(sessionID, text string) GreetingSent {
	return GreetingSent{Base: NewBase(KindGreetingSent, sessionID), Text: text}
}
