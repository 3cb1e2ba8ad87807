package miniaudio

import (
	"errors"
	"fmt"
	"log"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

// Client owns a miniaudio context and the capture and playback devices
// opened on it.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	capture      *Capture
	playback     *Playback
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	input   audio.EncodingInfo
	output  audio.EncodingInfo
	verbose bool
}

func WithInputEncoding(info audio.EncodingInfo) ClientOption {
	return func(o *clientOptions) { o.input = info }
}

func WithOutputEncoding(info audio.EncodingInfo) ClientOption {
	return func(o *clientOptions) { o.output = info }
}

// WithBackendLogging forwards miniaudio's own log messages to the standard
// logger.
func WithBackendLogging() ClientOption {
	return func(o *clientOptions) { o.verbose = true }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := clientOptions{
		input:  audio.GetDefaultEncodingInfo(),
		output: audio.GetDefaultOutputEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		if options.verbose {
			log.Println("malgo:", message)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := &Client{
		audioContext: audioCtx,
		capture:      newCapture(audioCtx, options.input),
	}

	if client.playback, err = newPlayback(audioCtx, options.output); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	return client, nil
}

// Capture is the microphone side of the client.
func (c *Client) Capture() *Capture { return c.capture }

// Playback is the speaker side of the client.
func (c *Client) Playback() *Playback { return c.playback }

func (c *Client) Close() error {
	var errs []error
	if c.capture != nil {
		errs = append(errs, c.capture.StopCapture())
	}
	if c.playback != nil {
		errs = append(errs, c.playback.uninit())
	}
	if err := c.audioContext.Uninit(); err != nil {
		errs = append(errs, fmt.Errorf("failed to uninitialize audio context: %w", err))
	}
	c.audioContext.Free()
	return errors.Join(errs...)
}
