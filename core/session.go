package orchestration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/transport"
)

// textQueueSize bounds how many text turns may wait for the transport.
const textQueueSize = 16

// activeSession is everything one Start call acquired. capture and transport
// are written under Orchestrator.mu while the session is Connecting and are
// read-only afterwards.
type activeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	capture         *captureHandle
	transport       transport.Session
	playbackStarted bool

	// mu orders inbound message handling against teardown. Once active is
	// false no more audio is scheduled for this session.
	mu     sync.Mutex
	active bool

	failing    atomic.Bool
	framesSent atomic.Uint64

	// starting is closed once Start has attached or released everything it
	// acquired. Teardown waits on it before the controller goes Idle.
	starting     chan struct{}
	startingOnce sync.Once

	texts     chan textTurn
	textsDone chan struct{}
	closeText sync.Once
}

type textTurn struct {
	text   string
	onSent func()
}

func newActiveSession(ctx context.Context) *activeSession {
	ctx, cancel := context.WithCancel(ctx)
	return &activeSession{
		id:        uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
		texts:     make(chan textTurn, textQueueSize),
		textsDone: make(chan struct{}),
		starting:  make(chan struct{}),
	}
}

func (s *activeSession) startFinished() {
	s.startingOnce.Do(func() { close(s.starting) })
}

// runTexts sends queued text turns one at a time, in the order they were
// queued, until stopTexts.
func (s *activeSession) runTexts() {
	for {
		select {
		case <-s.textsDone:
			return
		case turn := <-s.texts:
			if err := s.transport.SendText(turn.text); err != nil {
				if !errors.Is(err, transport.ErrClosed) {
					logger.Warn("failed to send text turn", "session.id", s.id, "error", err)
				}
				continue
			}
			if turn.onSent != nil {
				turn.onSent()
			}
		}
	}
}

// queueText never blocks. It reports false when the queue is full or the
// session is gone.
func (s *activeSession) queueText(text string, onSent func()) bool {
	select {
	case <-s.textsDone:
		return false
	default:
	}

	select {
	case s.texts <- textTurn{text: text, onSent: onSent}:
		return true
	default:
		logger.Warn("dropping text turn, queue full", "session.id", s.id)
		return false
	}
}

func (s *activeSession) stopTexts() {
	s.closeText.Do(func() { close(s.textsDone) })
}
