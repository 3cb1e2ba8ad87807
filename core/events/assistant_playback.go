package events

import "time"

const (
	// KindAssistantPlaybackStarted identifies the first unit of a reply going active.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackScheduled identifies one decoded unit placed on the output clock.
	KindAssistantPlaybackScheduled Kind = "assistant_playback.scheduled"
	// KindAssistantPlaybackEnded identifies the active set becoming empty.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
	// KindAssistantPlaybackInterrupted identifies a barge-in flush.
	KindAssistantPlaybackInterrupted Kind = "assistant_playback.interrupted"
	// KindAssistantAudioDropped identifies an inbound fragment that failed to decode.
	KindAssistantAudioDropped Kind = "assistant_playback.audio_dropped"
)

type AssistantPlaybackStarted struct{ Base }

func NewAssistantPlaybackStarted(sessionID string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted, sessionID)}
}

// AssistantPlaybackScheduled describes where a unit landed on the output
// device clock.
type AssistantPlaybackScheduled struct {
	Base
	UnitID   string
	StartAt  time.Duration
	Duration time.Duration
}

func NewAssistantPlaybackScheduled(sessionID, unitID string, startAt, duration time.Duration) AssistantPlaybackScheduled {
	return AssistantPlaybackScheduled{
		Base:     NewBase(KindAssistantPlaybackScheduled, sessionID),
		UnitID:   unitID,
		StartAt:  startAt,
		Duration: duration,
	}
}

type AssistantPlaybackEnded struct{ Base }

func NewAssistantPlaybackEnded(sessionID string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded, sessionID)}
}

// AssistantPlaybackInterrupted reports how many units were cut off.
type AssistantPlaybackInterrupted struct {
	Base
	StoppedUnits int
}

func NewAssistantPlaybackInterrupted(sessionID string, stoppedUnits int) AssistantPlaybackInterrupted {
	return AssistantPlaybackInterrupted{Base: NewBase(KindAssistantPlaybackInterrupted, sessionID), StoppedUnits: stoppedUnits}
}

type AssistantAudioDropped struct {
	Base
	Err error
}

func NewAssistantAudioDropped(sessionID string, err error) AssistantAudioDropped {
	return AssistantAudioDropped{Base: NewBase(KindAssistantAudioDropped, sessionID), Err: err}
}
