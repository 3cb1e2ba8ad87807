package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator runs one voice session at a time: microphone frames go out
// over the transport and remote audio is scheduled gaplessly on the output.
type Orchestrator struct {
	mu             sync.Mutex
	state          State
	session        atomic.Pointer[activeSession]
	pendingContext *string
	closed         bool

	stateValue atomic.Int32
	speaking   atomic.Bool
	statusMu   sync.Mutex
	lastStatus Status

	input    AudioInput
	output   AudioOutput
	capture  *captureStage
	playback *playbackStage

	opener          transport.Opener
	transportConfig transport.Config
	bridge          ContextBridge
	frameSize       int
	greeting        bool

	callbacks   callbacks
	events      *eventQueue
	closeOnce   sync.Once
	baseContext context.Context
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		bridge:      passthroughBridge{},
		frameSize:   DefaultFrameSize,
		greeting:    true,
		baseContext: context.Background(),
		transportConfig: transport.Config{
			Model:          DefaultModel,
			OutputModality: transport.ModalityAudio,
			Voice:          DefaultVoice,
		},
	}

	for _, opt := range opts {
		opt(o)
	}

	o.capture = newCaptureStage(o.input, o.frameSize)
	o.playback = newPlaybackStage(o.output)
	o.playback.onActiveChanged = o.refreshSpeaking
	o.events = newEventQueue(newCallbackEventEmitter(o.callbacks))

	return o
}

// Start acquires the microphone, connects the transport and begins
// streaming. ctx bounds acquisition and the transport handshake; the session
// itself lasts until Stop or a transport failure.
//
// On failure the orchestrator is back to Idle and the returned error is a
// [*DeviceUnavailableError] or a [*ConnectError].
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrSessionInProgress
	}

	s := newActiveSession(ctx)
	o.session.Store(s)
	o.setStateLocked(StateConnecting, s.id)
	contextText := o.bridge.CurrentContext()
	if o.pendingContext != nil {
		contextText = *o.pendingContext
	}
	o.mu.Unlock()
	defer s.startFinished()

	ctx, span := tracer.Start(s.ctx, "start session", trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()
	// Devices started here outlive the handshake, so they must not inherit
	// its cancellation.
	sessionCtx := context.WithoutCancel(ctx)

	if o.opener == nil {
		return o.abortStart(ctx, s, &ConnectError{Err: ErrNoTransport})
	}
	if o.output == nil {
		return o.abortStart(ctx, s, ErrNoAudioOutput)
	}

	handle, err := o.capture.acquire(ctx)
	if err != nil {
		return o.abortStart(ctx, s, err)
	}
	if !o.attach(s, func() { s.capture = handle }) {
		if err := handle.stop(); err != nil {
			logger.Warn("failed to release capture device", "session.id", s.id, "error", err)
		}
		return ErrSessionStopped
	}

	o.playback.reset()
	if err := o.output.StartPlayback(sessionCtx); err != nil {
		return o.abortStart(ctx, s, fmt.Errorf("failed to start playback: %w", err))
	}
	if !o.attach(s, func() { s.playbackStarted = true }) {
		if err := o.output.StopPlayback(); err != nil {
			logger.Warn("failed to stop playback", "session.id", s.id, "error", err)
		}
		return ErrSessionStopped
	}

	config, err := o.sessionConfig(contextText)
	if err != nil {
		return o.abortStart(ctx, s, &ConnectError{Err: err})
	}
	session, err := o.opener.Open(ctx, config, o.transportCallbacks(s))
	if err != nil {
		return o.abortStart(ctx, s, &ConnectError{Err: err})
	}

	o.mu.Lock()
	if o.session.Load() != s || o.state != StateConnecting {
		o.mu.Unlock()
		if err := session.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
			logger.Warn("failed to close transport", "session.id", s.id, "error", err)
		}
		return ErrSessionStopped
	}
	s.transport = session
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
	o.setStateLocked(StateActive, s.id)
	o.mu.Unlock()

	go s.runTexts()
	o.events.push(events.NewSessionStarted(s.id))

	err = handle.start(sessionCtx, func(frame []float32) { o.sendFrame(s, frame) })
	s.startFinished()
	if err != nil {
		if !o.isCurrent(s, StateActive) {
			return ErrSessionStopped
		}
		recordError(ctx, err)
		o.events.push(events.NewSessionFailed(s.id, err))
		if stopErr := o.endSession(ctx, s, false, nil); stopErr != nil {
			logger.Warn("failed to release session", "session.id", s.id, "error", stopErr)
		}
		return err
	}

	logger.Info("session started", "session.id", s.id, "model", config.Model)

	if o.greeting {
		if greeting := o.bridge.Greeting(); greeting != "" {
			s.queueText(greeting, func() { o.events.push(events.NewGreetingSent(s.id, greeting)) })
		}
	}

	return nil
}

// Stop releases the microphone, silences playback and closes the transport.
// Stopping an idle or already closing orchestrator does nothing.
func (o *Orchestrator) Stop() error {
	s := o.session.Load()
	if s == nil {
		return nil
	}

	ctx, span := tracer.Start(o.baseContext, "stop session", trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()
	return o.endSession(ctx, s, false, nil)
}

// Toggle starts a session from Idle and stops it otherwise.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	switch o.SessionState() {
	case StateIdle:
		return o.Start(ctx)
	case StateConnecting, StateActive:
		return o.Stop()
	default:
		return nil
	}
}

// NotifyContextChanged records the new application context. While a session
// is active the context is also sent as a text turn; it never blocks on the
// transport. The latest context is used for the next session's instructions.
func (o *Orchestrator) NotifyContextChanged(text string) {
	o.mu.Lock()
	o.pendingContext = &text
	s := o.session.Load()
	active := s != nil && o.state == StateActive
	o.mu.Unlock()

	if !active {
		return
	}

	update := o.bridge.ContextUpdate(text)
	if update == "" {
		return
	}
	s.queueText(update, func() { o.events.push(events.NewContextUpdateSent(s.id, update)) })
}

func (o *Orchestrator) SessionState() State {
	return State(o.stateValue.Load())
}

func (o *Orchestrator) Status() Status {
	return statusFor(o.SessionState(), o.speaking.Load())
}

// IsSpeaking reports whether remote audio is currently audible.
func (o *Orchestrator) IsSpeaking() bool {
	return o.speaking.Load()
}

// SessionID is empty while Idle.
func (o *Orchestrator) SessionID() string {
	if s := o.session.Load(); s != nil {
		return s.id
	}
	return ""
}

// Close stops any session and delivers pending events. It must not be called
// from an event callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		if err := o.Stop(); err != nil {
			recordError(o.baseContext, fmt.Errorf("failed to stop session: %w", err))
		}
		o.events.close()
	})
}

// attach runs fn under the lock if s is still the connecting session.
func (o *Orchestrator) attach(s *activeSession, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Load() != s || o.state != StateConnecting {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) isCurrent(s *activeSession, state State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Load() == s && o.state == state
}

// abortStart releases whatever a failed Start acquired and goes straight back
// to Idle.
func (o *Orchestrator) abortStart(ctx context.Context, s *activeSession, cause error) error {
	o.mu.Lock()
	if o.session.Load() != s || o.state != StateConnecting {
		o.mu.Unlock()
		return ErrSessionStopped
	}
	o.session.Store(nil)
	handle, playbackStarted := s.capture, s.playbackStarted
	o.mu.Unlock()

	s.cancel()
	if err := handle.stop(); err != nil {
		logger.Warn("failed to release capture device", "session.id", s.id, "error", err)
	}
	if playbackStarted {
		o.playback.reset()
		if err := o.output.StopPlayback(); err != nil {
			logger.Warn("failed to stop playback", "session.id", s.id, "error", err)
		}
	}

	o.mu.Lock()
	o.setStateLocked(StateIdle, s.id)
	o.mu.Unlock()

	recordError(ctx, cause)
	logger.Error("failed to start session", "session.id", s.id, "error", cause)
	o.events.push(events.NewSessionFailed(s.id, cause))
	return cause
}

// endSession tears s down through Closing to Idle. Only the first caller for
// a given session does any work.
func (o *Orchestrator) endSession(ctx context.Context, s *activeSession, remote bool, cause error) error {
	o.mu.Lock()
	if o.session.Load() != s || (o.state != StateConnecting && o.state != StateActive) {
		o.mu.Unlock()
		return nil
	}
	o.setStateLocked(StateClosing, s.id)
	handle, session, playbackStarted := s.capture, s.transport, s.playbackStarted
	o.mu.Unlock()

	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.cancel()
	s.stopTexts()

	// Closing the transport before waiting on the capture pump unblocks a
	// frame stuck in SendAudio.
	handle.mute()
	var errs []error
	if session != nil {
		if err := session.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
	}
	if err := handle.stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop capture: %w", err))
	}
	o.playback.reset()
	if playbackStarted {
		if err := o.output.StopPlayback(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playback: %w", err))
		}
	}

	// A Start still acquiring devices releases them itself; the next session
	// must not begin before it has.
	<-s.starting

	o.mu.Lock()
	o.session.Store(nil)
	o.setStateLocked(StateIdle, s.id)
	o.mu.Unlock()

	if cause != nil {
		recordError(ctx, cause)
		logger.Error("session failed", "session.id", s.id, "error", cause)
		o.events.push(events.NewSessionFailed(s.id, cause))
	}
	o.events.push(events.NewSessionEnded(s.id, remote))
	logger.Info("session ended", "session.id", s.id, "remote", remote, "frames_sent", s.framesSent.Load())

	err := errors.Join(errs...)
	if err != nil {
		recordError(ctx, err)
	}
	return err
}

// failSession ends s from a transport goroutine. Only the first failure is
// acted on.
func (o *Orchestrator) failSession(s *activeSession, cause error) {
	if !s.failing.CompareAndSwap(false, true) {
		return
	}
	goSafe("end session", func() {
		if err := o.endSession(s.ctx, s, true, cause); err != nil {
			logger.Warn("failed to release session", "session.id", s.id, "error", err)
		}
	})
}

func (o *Orchestrator) transportCallbacks(s *activeSession) transport.Callbacks {
	return transport.Callbacks{
		OnMessage: func(msg transport.Message) { o.handleMessage(s, msg) },
		OnClose:   func() { o.failSession(s, &TransportError{}) },
		OnError:   func(err error) { o.failSession(s, &TransportError{Err: err}) },
	}
}

func (o *Orchestrator) sessionConfig(contextText string) (transport.Config, error) {
	var config transport.Config
	if err := copier.CopyWithOption(&config, &o.transportConfig, copier.Option{DeepCopy: true}); err != nil {
		return transport.Config{}, fmt.Errorf("failed to copy transport config: %w", err)
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.OutputModality == "" {
		config.OutputModality = transport.ModalityAudio
	}
	config.SystemInstruction = o.bridge.SystemInstruction(contextText)
	config.InputEncoding = o.capture.EncodingInfo()
	config.OutputEncoding = o.playback.EncodingInfo()
	return config, nil
}

// sendFrame runs on the capture pump, one frame at a time in capture order.
func (o *Orchestrator) sendFrame(s *activeSession, frame []float32) {
	chunk := audio.EncodeSamples(frame, o.capture.EncodingInfo())
	if err := s.transport.SendAudio(chunk); err != nil {
		if !errors.Is(err, transport.ErrClosed) {
			o.failSession(s, &TransportError{Err: err})
		}
		return
	}

	sequence := s.framesSent.Add(1)
	framesSentCounter.Add(s.ctx, 1)
	o.events.push(events.NewUserAudioFrame(s.id, sequence, chunk))
}

// handleMessage runs on the transport's read goroutine. Within one message
// audio is scheduled before an interruption is applied.
func (o *Orchestrator) handleMessage(s *activeSession, msg transport.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}

	if msg.Audio != nil {
		o.schedule(s, *msg.Audio)
	}

	if msg.Interrupted {
		stopped := o.playback.interrupt()
		interruptionsCounter.Add(s.ctx, 1)
		o.events.push(events.NewAssistantPlaybackInterrupted(s.id, stopped))
	}

	if msg.Text != "" {
		o.events.push(events.NewAssistantResponseText(s.id, msg.Text))
	}

	if msg.TurnComplete {
		o.events.push(events.NewAssistantTurnCompleted(s.id))
	}
}

func (o *Orchestrator) schedule(s *activeSession, chunk audio.EncodedChunk) {
	buf, err := chunk.Decode(o.playback.EncodingInfo())
	if err != nil {
		formatErrorsCounter.Add(s.ctx, 1)
		logger.Warn("dropping malformed audio fragment", "session.id", s.id, "error", err)
		o.events.push(events.NewAssistantAudioDropped(s.id, err))
		return
	}
	if buf.Frames() == 0 {
		return
	}

	unit, err := o.playback.enqueue(buf, o.output.Now())
	if err != nil {
		logger.Warn("dropping audio fragment", "session.id", s.id, "error", err)
		o.events.push(events.NewAssistantAudioDropped(s.id, err))
		return
	}
	unitsScheduledCounter.Add(s.ctx, 1)
	o.events.push(events.NewAssistantPlaybackScheduled(s.id, unit.id.String(), unit.startAt, unit.duration))
}

// setStateLocked must be called with o.mu held.
func (o *Orchestrator) setStateLocked(next State, sessionID string) {
	previous := o.state
	if previous == next {
		return
	}
	o.state = next
	o.stateValue.Store(int32(next))
	o.events.push(events.NewSessionStateChanged(sessionID, previous.String(), next.String()))

	o.statusMu.Lock()
	o.publishStatusLocked(sessionID)
	o.statusMu.Unlock()
}

// refreshSpeaking re-reads the playback set. It is called by the playback
// stage without any of its locks held.
func (o *Orchestrator) refreshSpeaking() {
	speaking := o.playback.isPlaying()
	sessionID := o.SessionID()

	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	if o.speaking.Swap(speaking) != speaking {
		if speaking {
			o.events.push(events.NewAssistantPlaybackStarted(sessionID))
		} else {
			o.events.push(events.NewAssistantPlaybackEnded(sessionID))
		}
	}
	o.publishStatusLocked(sessionID)
}

func (o *Orchestrator) publishStatusLocked(sessionID string) {
	status := statusFor(o.SessionState(), o.speaking.Load())
	if status == o.lastStatus {
		return
	}
	previous := o.lastStatus
	o.lastStatus = status
	o.events.push(events.NewSessionStatusChanged(sessionID, previous.String(), status.String()))
}
