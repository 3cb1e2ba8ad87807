// Package transport defines the duplex session a voice conversation runs
// over. Vendor adapters live in subpackages.
package transport

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-live/core/audio"
)

var ErrClosed = errors.New("transport session closed")

type Modality string

const (
	ModalityAudio Modality = "AUDIO"
	ModalityText  Modality = "TEXT"
)

// Config is everything a remote model needs to know at connect time.
type Config struct {
	Model             string             `json:"model" yaml:"model"`
	OutputModality    Modality           `json:"outputModality" yaml:"output_modality"`
	Voice             string             `json:"voice,omitempty" yaml:"voice"`
	SystemInstruction string             `json:"systemInstruction,omitempty" yaml:"-"`
	InputEncoding     audio.EncodingInfo `json:"-" yaml:"-"`
	OutputEncoding    audio.EncodingInfo `json:"-" yaml:"-"`
}

// Message is one inbound event. A single message may carry audio and be
// flagged as interrupted at the same time; audio is handled first.
type Message struct {
	Audio        *audio.EncodedChunk
	Interrupted  bool
	TurnComplete bool
	Text         string
}

// Callbacks receive inbound traffic. They are called from the adapter's read
// goroutine, one at a time, and must not call Session.Close synchronously.
type Callbacks struct {
	OnMessage func(Message)
	// OnClose is called when the remote side ends the session. It is not
	// called after a local Close.
	OnClose func()
	// OnError is called for read failures. The session is unusable after it.
	OnError func(error)
}

// WithDefaults returns a copy of c where every nil callback is a no-op.
func (c Callbacks) WithDefaults() Callbacks {
	if c.OnMessage == nil {
		c.OnMessage = func(Message) {}
	}
	if c.OnClose == nil {
		c.OnClose = func() {}
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}

// Session is one open connection. Close must not wait for a send in
// progress: it unblocks it, and sends after Close return ErrClosed.
type Session interface {
	SendAudio(chunk audio.EncodedChunk) error
	SendText(text string) error
	Close() error
}

// Opener connects to a remote model. Open returns once the remote has
// confirmed the session setup.
type Opener interface {
	Open(ctx context.Context, config Config, callbacks Callbacks) (Session, error)
}

type OpenerFunc func(ctx context.Context, config Config, callbacks Callbacks) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, config Config, callbacks Callbacks) (Session, error) {
	return f(ctx, config, callbacks)
}
