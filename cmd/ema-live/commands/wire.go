package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/screens"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/core/transport/gemini"
	"github.com/koscakluka/ema-live/core/transport/websocket"
	"github.com/koscakluka/ema-live/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// session is everything a run owns. Close releases it in reverse order.
type session struct {
	orchestrator *orchestration.Orchestrator
	bridge       *screens.Bridge
	closeAudio   func() error
}

func (s *session) Close() error {
	s.orchestrator.Close()
	return s.closeAudio()
}

func newSession(ctx context.Context, cfg config.Config, extra ...orchestration.OrchestratorOption) (*session, error) {
	bridge, err := loadScreens(cfg)
	if err != nil {
		return nil, err
	}

	opener, err := newOpener(ctx, cfg)
	if err != nil {
		return nil, err
	}

	input, output, closeAudio, err := openAudio(cfg.Backend)
	if err != nil {
		return nil, err
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithAudioInput(input),
		orchestration.WithAudioOutput(output),
		orchestration.WithTransport(opener),
		orchestration.WithTransportConfig(cfg.TransportConfig()),
		orchestration.WithContextBridge(bridge),
		orchestration.WithFrameSize(cfg.Session.FrameSize),
	}
	if !cfg.GreetingEnabled() {
		opts = append(opts, orchestration.WithoutGreeting())
	}
	opts = append(opts, extra...)

	return &session{
		orchestrator: orchestration.NewOrchestrator(opts...),
		bridge:       bridge,
		closeAudio:   closeAudio,
	}, nil
}

func loadScreens(cfg config.Config) (*screens.Bridge, error) {
	bridge := screens.Default()
	if cfg.ScreensFile != "" {
		var err error
		if bridge, err = screens.LoadFile(cfg.ScreensFile); err != nil {
			return nil, err
		}
	}

	if cfg.InitialScreen != "" {
		screen, err := screens.ParseScreen(cfg.InitialScreen)
		if err != nil {
			return nil, err
		}
		if _, err := bridge.SetCurrent(screen); err != nil {
			return nil, err
		}
	}
	return bridge, nil
}

func newOpener(ctx context.Context, cfg config.Config) (transport.Opener, error) {
	switch cfg.Transport {
	case config.TransportGemini:
		return gemini.NewClient(ctx,
			gemini.WithAPIKey(cfg.Gemini.APIKey),
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
			gemini.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		)
	case config.TransportWebsocket:
		return websocket.NewClient(cfg.Websocket.URL, websocket.WithBearerToken(cfg.Websocket.Token)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func openAudio(backend config.Backend) (orchestration.AudioInput, orchestration.AudioOutput, func() error, error) {
	switch backend {
	case config.BackendMiniaudio:
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, nil, nil, err
		}
		return client.Capture(), client.Playback(), client.Close, nil
	case config.BackendPortaudio:
		client, err := portaudio.NewClient(0)
		if err != nil {
			return nil, nil, nil, err
		}
		return client.Capture(), client.Playback(), client.Close, nil
	default:
		return nil, nil, nil, errors.New("unknown audio backend " + string(backend))
	}
}
