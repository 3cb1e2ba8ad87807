// Package config loads the ema-live CLI configuration from YAML with
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvTransport    = "EMA_LIVE_TRANSPORT"
	EnvWebsocketURL = "EMA_LIVE_WS_URL"
	EnvBackend      = "EMA_LIVE_BACKEND"
)

var ErrInvalid = errors.New("invalid configuration")

type TransportKind string

const (
	TransportGemini    TransportKind = "gemini"
	TransportWebsocket TransportKind = "websocket"
)

type Backend string

const (
	BackendMiniaudio Backend = "miniaudio"
	BackendPortaudio Backend = "portaudio"
)

type Config struct {
	Transport TransportKind   `yaml:"transport" json:"transport" jsonschema:"enum=gemini,enum=websocket,default=gemini"`
	Backend   Backend         `yaml:"backend" json:"backend" jsonschema:"enum=miniaudio,enum=portaudio,default=miniaudio"`
	Gemini    GeminiConfig    `yaml:"gemini" json:"gemini"`
	Websocket WebsocketConfig `yaml:"websocket" json:"websocket"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	// ScreensFile overlays a screen catalogue on the built-in one.
	ScreensFile   string `yaml:"screens_file" json:"screensFile,omitempty" jsonschema:"description=YAML screen catalogue merged over the built-in screens"`
	InitialScreen string `yaml:"initial_screen" json:"initialScreen,omitempty" jsonschema:"description=Screen selected at startup"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key" json:"apiKey,omitempty" jsonschema:"description=Defaults to GEMINI_API_KEY"`
	BaseURL string `yaml:"base_url" json:"baseUrl,omitempty" jsonschema:"format=uri"`
}

type WebsocketConfig struct {
	URL   string `yaml:"url" json:"url,omitempty" jsonschema:"format=uri"`
	Token string `yaml:"token" json:"token,omitempty"`
}

type SessionConfig struct {
	Model          string             `yaml:"model" json:"model"`
	Voice          string             `yaml:"voice" json:"voice"`
	OutputModality transport.Modality `yaml:"output_modality" json:"outputModality" jsonschema:"enum=AUDIO,enum=TEXT"`
	Greeting       *bool              `yaml:"greeting" json:"greeting,omitempty" jsonschema:"default=true"`
	FrameSize      int                `yaml:"frame_size" json:"frameSize" jsonschema:"minimum=256"`
}

func Default() Config {
	return Config{
		Transport: TransportGemini,
		Backend:   BackendMiniaudio,
		Session: SessionConfig{
			Model:          orchestration.DefaultModel,
			Voice:          orchestration.DefaultVoice,
			OutputModality: transport.ModalityAudio,
			Greeting:       utils.Ptr(true),
			FrameSize:      orchestration.DefaultFrameSize,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	config, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadFile is Load without validation, for callers that override fields
// before validating or only need part of the config.
func LoadFile(path string) (Config, error) {
	config := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to open config: %w", err)
		}
		defer file.Close()
		if err := config.decode(file); err != nil {
			return Config{}, err
		}
	}

	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

func (c *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Only set variables count.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup(EnvGeminiAPIKey); ok && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = value
	}
	if value, ok := lookup(EnvTransport); ok && value != "" {
		c.Transport = TransportKind(strings.ToLower(value))
	}
	if value, ok := lookup(EnvWebsocketURL); ok && value != "" {
		c.Websocket.URL = value
	}
	if value, ok := lookup(EnvBackend); ok && value != "" {
		c.Backend = Backend(strings.ToLower(value))
	}
}

func (c Config) Validate() error {
	var problems []string
	switch c.Transport {
	case TransportGemini:
		if c.Gemini.APIKey == "" {
			problems = append(problems, "gemini transport needs an API key ("+EnvGeminiAPIKey+")")
		}
	case TransportWebsocket:
		if c.Websocket.URL == "" {
			problems = append(problems, "websocket transport needs a url ("+EnvWebsocketURL+")")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", c.Transport))
	}

	switch c.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		problems = append(problems, fmt.Sprintf("unknown audio backend %q", c.Backend))
	}

	switch c.Session.OutputModality {
	case transport.ModalityAudio, transport.ModalityText:
	default:
		problems = append(problems, fmt.Sprintf("unknown output modality %q", c.Session.OutputModality))
	}

	if c.Session.FrameSize < 256 {
		problems = append(problems, fmt.Sprintf("frame size %d is below 256 samples", c.Session.FrameSize))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// TransportConfig is the per-session template handed to the orchestrator.
func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		Model:          c.Session.Model,
		OutputModality: c.Session.OutputModality,
		Voice:          c.Session.Voice,
	}
}

func (c Config) GreetingEnabled() bool {
	return utils.Deref(c.Session.Greeting, true)
}

// Schema renders the JSON Schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-live configuration"
	return json.MarshalIndent(schema, "", "  ")
}
