package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type fakeAudioInput struct {
	acquireErr error
	startErr   error
	// acquireGate, when set, holds the first AcquireCapture until closed.
	acquireGate chan struct{}

	acquireCalls atomic.Int32
	startCalls   atomic.Int32
	stopCalls    atomic.Int32

	mu        sync.Mutex
	onSamples func([]float32)
}

func (f *fakeAudioInput) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (f *fakeAudioInput) AcquireCapture(context.Context) error {
	if f.acquireCalls.Add(1) == 1 && f.acquireGate != nil {
		<-f.acquireGate
	}
	return f.acquireErr
}

func (f *fakeAudioInput) StartCapture(_ context.Context, onSamples func([]float32)) error {
	f.startCalls.Add(1)
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.onSamples = onSamples
	f.mu.Unlock()
	return nil
}

func (f *fakeAudioInput) StopCapture() error {
	f.stopCalls.Add(1)
	f.mu.Lock()
	f.onSamples = nil
	f.mu.Unlock()
	return nil
}

// feed plays the role of the device callback.
func (f *fakeAudioInput) feed(samples []float32) {
	f.mu.Lock()
	onSamples := f.onSamples
	f.mu.Unlock()
	if onSamples != nil {
		onSamples(samples)
	}
}

type fakeVoice struct {
	at      time.Duration
	stopped atomic.Bool
}

func (v *fakeVoice) Stop() { v.stopped.Store(true) }

func (v *fakeVoice) StartsAt() time.Duration { return v.at }

type scheduledBuffer struct {
	at       time.Duration
	duration time.Duration
	voice    *fakeVoice
	onEnded  func()
}

type fakeAudioOutput struct {
	// startGate, when set, holds the first StartPlayback until closed.
	startGate chan struct{}

	startCalls atomic.Int32
	stopCalls  atomic.Int32

	mu        sync.Mutex
	now       time.Duration
	scheduled []scheduledBuffer
}

func (f *fakeAudioOutput) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultOutputEncodingInfo()
}

func (f *fakeAudioOutput) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeAudioOutput) setNow(now time.Duration) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *fakeAudioOutput) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Stoppable, error) {
	voice := &fakeVoice{at: at}
	f.mu.Lock()
	f.scheduled = append(f.scheduled, scheduledBuffer{at: at, duration: buf.Duration(), voice: voice, onEnded: onEnded})
	f.mu.Unlock()
	return voice, nil
}

func (f *fakeAudioOutput) StartPlayback(context.Context) error {
	if f.startCalls.Add(1) == 1 && f.startGate != nil {
		<-f.startGate
	}
	return nil
}

func (f *fakeAudioOutput) StopPlayback() error {
	f.stopCalls.Add(1)
	return nil
}

func (f *fakeAudioOutput) snapshot() []scheduledBuffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledBuffer(nil), f.scheduled...)
}

// endAll plays every scheduled buffer to its end.
func (f *fakeAudioOutput) endAll() {
	for _, scheduled := range f.snapshot() {
		if !scheduled.voice.stopped.Load() && scheduled.onEnded != nil {
			scheduled.onEnded()
		}
	}
}

type fakeTransport struct {
	openErr error
	// blockOpen makes Open wait for ctx to be cancelled.
	blockOpen bool
	// stallSends makes every SendAudio block until the session is closed,
	// like a write to a stalled socket.
	stallSends bool

	openCalls atomic.Int32

	mu        sync.Mutex
	config    transport.Config
	callbacks transport.Callbacks
	session   *fakeSession
}

func (f *fakeTransport) Open(ctx context.Context, config transport.Config, callbacks transport.Callbacks) (transport.Session, error) {
	f.openCalls.Add(1)
	if f.blockOpen {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.openErr != nil {
		return nil, f.openErr
	}

	session := &fakeSession{unblock: make(chan struct{}), stallSends: f.stallSends}
	f.mu.Lock()
	f.config = config
	f.callbacks = callbacks.WithDefaults()
	f.session = session
	f.mu.Unlock()
	return session, nil
}

func (f *fakeTransport) lastConfig() transport.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

func (f *fakeTransport) lastSession() *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeTransport) deliver(msg transport.Message) {
	f.mu.Lock()
	callbacks := f.callbacks
	f.mu.Unlock()
	callbacks.OnMessage(msg)
}

func (f *fakeTransport) remoteClose() {
	f.mu.Lock()
	callbacks := f.callbacks
	f.mu.Unlock()
	callbacks.OnClose()
}

type fakeSession struct {
	closeCalls atomic.Int32
	closed     atomic.Bool
	sendCalls  atomic.Int32

	stallSends bool
	unblock    chan struct{}
	closeOnce  sync.Once

	mu    sync.Mutex
	audio []audio.EncodedChunk
	texts []string
}

func (s *fakeSession) SendAudio(chunk audio.EncodedChunk) error {
	s.sendCalls.Add(1)
	if s.stallSends {
		<-s.unblock
	}
	if s.closed.Load() {
		return transport.ErrClosed
	}
	s.mu.Lock()
	s.audio = append(s.audio, chunk)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) SendText(text string) error {
	if s.closed.Load() {
		return transport.ErrClosed
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Close() error {
	s.closeCalls.Add(1)
	s.closed.Store(true)
	s.closeOnce.Do(func() { close(s.unblock) })
	return nil
}

func (s *fakeSession) sentAudio() []audio.EncodedChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.EncodedChunk(nil), s.audio...)
}

func (s *fakeSession) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// recorder collects callback values in delivery order.
type recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

func (r *recorder[T]) add(value T) {
	r.mu.Lock()
	r.values = append(r.values, value)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// outputChunk encodes d of silence at the output rate.
func outputChunk(d time.Duration) audio.EncodedChunk {
	info := audio.GetDefaultOutputEncodingInfo()
	return audio.EncodeSamples(make([]float32, audio.DurationFrames(d, info.SampleRate)), info)
}

func audioMessage(d time.Duration) transport.Message {
	chunk := outputChunk(d)
	return transport.Message{Audio: &chunk}
}
