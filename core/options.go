package orchestration

import (
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Charon"
)

type OrchestratorOption func(*Orchestrator)

// ContextBridge turns application context into the text the remote model
// sees. The screens package provides one backed by a screen catalogue.
type ContextBridge interface {
	CurrentContext() string
	SystemInstruction(context string) string
	Greeting() string
	ContextUpdate(context string) string
}

func WithAudioInput(input AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.input = input }
}

func WithAudioOutput(output AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.output = output }
}

func WithTransport(opener transport.Opener) OrchestratorOption {
	return func(o *Orchestrator) { o.opener = opener }
}

// WithTransportConfig sets the model, voice and modality used for every
// session. SystemInstruction and the encodings are filled in per session.
func WithTransportConfig(config transport.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.transportConfig = config }
}

func WithContextBridge(bridge ContextBridge) OrchestratorOption {
	return func(o *Orchestrator) {
		if bridge == nil {
			bridge = passthroughBridge{}
		}
		o.bridge = bridge
	}
}

// WithFrameSize sets the number of samples per capture frame.
func WithFrameSize(samples int) OrchestratorOption {
	return func(o *Orchestrator) { o.frameSize = samples }
}

// WithoutGreeting skips the opening text turn sent once a session is active.
func WithoutGreeting() OrchestratorOption {
	return func(o *Orchestrator) { o.greeting = false }
}

type callbacks struct {
	onEvent           func(events.Event)
	onStateChanged    func(State)
	onStatusChanged   func(Status)
	onSpeakingChanged func(speaking bool)
	onText            func(text string)
	onInputAudio      func(chunk audio.EncodedChunk)
	onError           func(err error)
}

// WithEventHandler receives every event, before any of the typed callbacks.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onEvent = handler }
}

func WithStateCallback(callback func(State)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onStateChanged = callback }
}

// WithStatusCallback registers a callback for the UI-facing status. It fires
// only when the status actually changes.
func WithStatusCallback(callback func(Status)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onStatusChanged = callback }
}

// WithSpeakingCallback fires when remote audio starts or stops being audible.
func WithSpeakingCallback(callback func(speaking bool)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onSpeakingChanged = callback }
}

func WithTextCallback(callback func(text string)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onText = callback }
}

// WithInputAudioCallback registers a callback for every encoded capture frame
// after it was handed to the transport.
func WithInputAudioCallback(callback func(chunk audio.EncodedChunk)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onInputAudio = callback }
}

// WithErrorCallback receives start failures as [*DeviceUnavailableError] or
// [*ConnectError] and mid-session failures as [*TransportError].
func WithErrorCallback(callback func(err error)) OrchestratorOption {
	return func(o *Orchestrator) { o.callbacks.onError = callback }
}

// passthroughBridge uses the raw context text everywhere and sends no
// greeting.
type passthroughBridge struct{}

func (passthroughBridge) CurrentContext() string                  { return "" }
func (passthroughBridge) SystemInstruction(context string) string { return context }
func (passthroughBridge) Greeting() string                        { return "" }
func (passthroughBridge) ContextUpdate(context string) string     { return context }
