package events

const (
	// KindAssistantResponseText identifies text the remote produced alongside audio.
	KindAssistantResponseText Kind = "assistant_response.text"
	// KindAssistantTurnCompleted identifies the remote finishing its turn.
	KindAssistantTurnCompleted Kind = "assistant_response.turn_completed"
)

type AssistantResponseText struct {
	Base
	Text string
}

func NewAssistantResponseText(sessionID, text string) AssistantResponseText {
	return AssistantResponseText{Base: NewBase(KindAssistantResponseText, sessionID), Text: text}
}

type AssistantTurnCompleted struct{ Base }

func NewAssistantTurnCompleted(sessionID string) AssistantTurnCompleted {
	return AssistantTurnCompleted{Base: NewBase(KindAssistantTurnCompleted, sessionID)}
}
