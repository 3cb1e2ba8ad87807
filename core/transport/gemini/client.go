// Package gemini runs voice sessions over the Gemini Live API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	gws "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const apiKeyEnv = "GEMINI_API_KEY"

var ErrMissingAPIKey = errors.New("gemini api key not found")

type Client struct {
	client *genai.Client
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// WithAPIKey overrides the GEMINI_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(o *clientOptions) { o.apiKey = apiKey }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithBaseURL points the client at a different endpoint, mostly for proxies.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func NewClient(ctx context.Context, opts ...ClientOption) (*Client, error) {
	options := clientOptions{apiKey: os.Getenv(apiKeyEnv)}
	for _, opt := range opts {
		opt(&options)
	}
	if options.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if options.httpClient == nil {
		options.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	config := &genai.ClientConfig{
		APIKey:     options.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.httpClient,
	}
	if options.baseURL != "" {
		config.HTTPOptions.BaseURL = options.baseURL
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

// Open connects a live session and waits for the setup confirmation.
func (c *Client) Open(ctx context.Context, config transport.Config, callbacks transport.Callbacks) (transport.Session, error) {
	ctx, span := tracer.Start(ctx, "open live session", trace.WithAttributes(
		attribute.String("gemini.model", config.Model),
		attribute.String("gemini.voice", config.Voice),
	))
	defer span.End()

	live, err := c.client.Live.Connect(ctx, config.Model, liveConnectConfig(config))
	if err != nil {
		recordedErr := fmt.Errorf("failed to connect live session: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return nil, recordedErr
	}

	s := &session{
		live:           live,
		callbacks:      callbacks.WithDefaults(),
		inputEncoding:  config.InputEncoding,
		outputEncoding: config.OutputEncoding,
	}
	if s.inputEncoding.IsZero() {
		s.inputEncoding = audio.GetDefaultEncodingInfo()
	}
	if s.outputEncoding.IsZero() {
		s.outputEncoding = audio.GetDefaultOutputEncodingInfo()
	}

	if err := s.awaitSetupComplete(ctx); err != nil {
		_ = live.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

type session struct {
	live *genai.Session
	// sendMu serializes writes; the underlying websocket allows one writer.
	sendMu sync.Mutex

	callbacks      transport.Callbacks
	inputEncoding  audio.EncodingInfo
	outputEncoding audio.EncodingInfo

	closed atomic.Bool
}

func (s *session) awaitSetupComplete(ctx context.Context) error {
	type result struct {
		msg *genai.LiveServerMessage
		err error
	}
	results := make(chan result, 1)
	go func() {
		for {
			msg, err := s.live.Receive()
			if err != nil || msg.SetupComplete != nil {
				results <- result{msg: msg, err: err}
				return
			}
		}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return fmt.Errorf("failed to read setup confirmation: %w", r.err)
		}
		return nil
	case <-ctx.Done():
		_ = s.live.Close()
		return fmt.Errorf("handshake cancelled: %w", ctx.Err())
	}
}

func (s *session) readLoop() {
	for {
		msg, err := s.live.Receive()
		if err != nil {
			if !s.closed.CompareAndSwap(false, true) {
				return
			}
			_ = s.live.Close()

			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				s.callbacks.OnClose()
				return
			}
			s.callbacks.OnError(fmt.Errorf("live session read failed: %w", err))
			return
		}

		if msg.GoAway != nil {
			logger.Warn("live session will be terminated by the server", "time_left", msg.GoAway.TimeLeft.String())
		}

		for _, message := range messagesFromServer(msg, s.outputEncoding) {
			if s.closed.Load() {
				return
			}
			s.callbacks.OnMessage(message)
		}
	}
}

func (s *session) SendAudio(chunk audio.EncodedChunk) error {
	input, err := realtimeAudio(chunk, s.inputEncoding)
	if err != nil {
		return fmt.Errorf("failed to decode outgoing audio: %w", err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return transport.ErrClosed
	}
	if err := s.live.SendRealtimeInput(input); err != nil {
		if s.closed.Load() {
			return transport.ErrClosed
		}
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (s *session) SendText(text string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return transport.ErrClosed
	}
	if err := s.live.SendClientContent(clientText(text)); err != nil {
		if s.closed.Load() {
			return transport.ErrClosed
		}
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// Close does not wait for a send in progress; closing the connection makes
// that send fail instead.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.live.Close(); err != nil {
		return fmt.Errorf("failed to close live session: %w", err)
	}
	return nil
}
