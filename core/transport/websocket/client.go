// Package websocket is a vendor-neutral duplex transport speaking JSON text
// frames over a websocket. It is meant for self-hosted relays in front of a
// realtime model.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteWait        = 5 * time.Second
	defaultMaxMessageSize   = 4 * 1024 * 1024
)

const (
	messageTypeSetup         = "setup"
	messageTypeSetupComplete = "setup_complete"
	messageTypeAudio         = "audio"
	messageTypeText          = "text"
	messageTypeInterrupted   = "interrupted"
	messageTypeTurnComplete  = "turn_complete"
	messageTypeError         = "error"
)

type Client struct {
	url       string
	header    http.Header
	dialer    *gws.Dialer
	writeWait time.Duration
}

type ClientOption func(*Client)

func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithBearerToken authenticates the handshake with an Authorization header.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithDialer(dialer *gws.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

func WithWriteWait(writeWait time.Duration) ClientOption {
	return func(c *Client) {
		if writeWait > 0 {
			c.writeWait = writeWait
		}
	}
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:       url,
		header:    http.Header{},
		dialer:    &gws.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		writeWait: defaultWriteWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type setupConfig struct {
	Model             string `json:"model"`
	OutputModality    string `json:"outputModality,omitempty"`
	Voice             string `json:"voice,omitempty"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
	InputMIMEType     string `json:"inputMimeType,omitempty"`
	OutputMIMEType    string `json:"outputMimeType,omitempty"`
}

type clientMessage struct {
	Type   string              `json:"type"`
	Config *setupConfig        `json:"config,omitempty"`
	Audio  *audio.EncodedChunk `json:"audio,omitempty"`
	Text   string              `json:"text,omitempty"`
}

type serverMessage struct {
	Type  string              `json:"type"`
	Audio *audio.EncodedChunk `json:"audio,omitempty"`
	Text  string              `json:"text,omitempty"`
	Error string              `json:"error,omitempty"`
}

func newSetupMessage(config transport.Config) clientMessage {
	setup := &setupConfig{
		Model:             config.Model,
		OutputModality:    string(config.OutputModality),
		Voice:             config.Voice,
		SystemInstruction: config.SystemInstruction,
	}
	if !config.InputEncoding.IsZero() {
		setup.InputMIMEType = config.InputEncoding.MIMEType()
	}
	if !config.OutputEncoding.IsZero() {
		setup.OutputMIMEType = config.OutputEncoding.MIMEType()
	}
	return clientMessage{Type: messageTypeSetup, Config: setup}
}

// Open dials the relay, sends the setup message and blocks until the relay
// confirms it or ctx is done.
func (c *Client) Open(ctx context.Context, config transport.Config, callbacks transport.Callbacks) (transport.Session, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}
	conn.SetReadLimit(defaultMaxMessageSize)

	s := &session{
		conn:      conn,
		callbacks: callbacks.WithDefaults(),
		writeWait: c.writeWait,
	}

	if err := s.write(newSetupMessage(config)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send setup: %w", err)
	}

	if err := s.awaitSetupComplete(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

type session struct {
	conn      *gws.Conn
	writeMu   sync.Mutex
	writeWait time.Duration

	callbacks transport.Callbacks
	closed    atomic.Bool
}

func (s *session) awaitSetupComplete(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return fmt.Errorf("handshake cancelled: %w", ctx.Err())
			}
			return fmt.Errorf("failed to read setup confirmation: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring malformed websocket message during setup: %v", err)
			continue
		}

		switch msg.Type {
		case messageTypeSetupComplete:
			if !stop() {
				return fmt.Errorf("handshake cancelled: %w", ctx.Err())
			}
			return s.conn.SetReadDeadline(time.Time{})
		case messageTypeError:
			stop()
			return fmt.Errorf("setup rejected: %s", msg.Error)
		}
	}
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.closed.Store(true)
			_ = s.conn.Close()

			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				s.callbacks.OnClose()
				return
			}
			log.Printf("Websocket read error: %v", err)
			s.callbacks.OnError(fmt.Errorf("failed to read from websocket: %w", err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring malformed websocket message: %v", err)
			continue
		}

		if s.closed.Load() {
			return
		}

		switch msg.Type {
		case messageTypeAudio:
			if msg.Audio != nil {
				s.callbacks.OnMessage(transport.Message{Audio: msg.Audio})
			}
		case messageTypeInterrupted:
			s.callbacks.OnMessage(transport.Message{Interrupted: true})
		case messageTypeTurnComplete:
			s.callbacks.OnMessage(transport.Message{TurnComplete: true})
		case messageTypeText:
			s.callbacks.OnMessage(transport.Message{Text: msg.Text})
		case messageTypeError:
			s.closed.Store(true)
			_ = s.conn.Close()
			s.callbacks.OnError(fmt.Errorf("remote error: %s", msg.Error))
			return
		case messageTypeSetupComplete:
		default:
			log.Printf("Ignoring unknown websocket message type %q", msg.Type)
		}
	}
}

func (s *session) SendAudio(chunk audio.EncodedChunk) error {
	return s.write(clientMessage{Type: messageTypeAudio, Audio: &chunk})
}

func (s *session) SendText(text string) error {
	return s.write(clientMessage{Type: messageTypeText, Text: text})
}

func (s *session) write(msg clientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return transport.ErrClosed
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		if s.closed.Load() {
			return transport.ErrClosed
		}
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

// Close sends a normal close frame and releases the connection. Callbacks
// are not invoked for a locally closed session. It does not wait for a
// blocked write: WriteControl and Close are safe alongside another writer.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	closeErr := s.conn.WriteControl(
		gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
		time.Now().Add(s.writeWait),
	)
	if errors.Is(closeErr, gws.ErrCloseSent) {
		closeErr = nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(closeErr, err))
	}
	return nil
}
