package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-live/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts callbacks) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseState(typedEvent.State))
			}
		case events.SessionStatusChanged:
			if opts.onStatusChanged != nil {
				opts.onStatusChanged(parseStatus(typedEvent.Status))
			}
		case events.AssistantPlaybackStarted:
			if opts.onSpeakingChanged != nil {
				opts.onSpeakingChanged(true)
			}
		case events.AssistantPlaybackEnded:
			if opts.onSpeakingChanged != nil {
				opts.onSpeakingChanged(false)
			}
		case events.AssistantResponseText:
			if opts.onText != nil {
				opts.onText(typedEvent.Text)
			}
		case events.UserAudioFrame:
			if opts.onInputAudio != nil {
				opts.onInputAudio(typedEvent.Chunk)
			}
		case events.SessionFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		}
	}
}

// eventQueue delivers events in order on its own goroutine so that emitting
// never blocks the audio paths and receivers may call back into the
// orchestrator.
type eventQueue struct {
	emit eventEmitter

	mu      sync.Mutex
	pending []events.Event
	closed  bool

	signal chan struct{}
	done   chan struct{}
}

func newEventQueue(emit eventEmitter) *eventQueue {
	if emit == nil {
		emit = noopEventEmitter
	}
	q := &eventQueue{
		emit:   emit,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(event events.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, event)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	defer close(q.done)
	for range q.signal {
		for {
			q.mu.Lock()
			if len(q.pending) == 0 {
				closed := q.closed
				q.mu.Unlock()
				if closed {
					return
				}
				break
			}
			event := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()

			if err := panicSafe("event receiver", func() { q.emit(event) }); err != nil {
				logger.Error(err.Error(), "event", string(event.Kind()))
			}
		}
	}
}

// close delivers what is already queued and then stops the goroutine. It must
// not be called from a receiver.
func (q *eventQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	<-q.done
}
