// Package events defines the typed voice-session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_playback.*
//   - assistant_response.*
//
// Every event carries the ID of the session it belongs to. Events are
// delivered in emission order from a single goroutine, so a slow receiver
// delays later events but never the audio paths.
//
// session events
//
//   - SessionStateChanged (session.state_changed): lifecycle transition
//     between Idle, Connecting, Active and Closing.
//   - SessionStatusChanged (session.status_changed): the UI-facing status
//     moved between Idle, Connecting, Listening and Speaking.
//   - SessionStarted (session.started): transport confirmed, capture running.
//   - SessionEnded (session.ended): all session resources were released.
//   - SessionFailed (session.failed): device, connect or transport failure.
//
// user_input events
//
//   - UserAudioFrame (user_input.audio_frame): one encoded frame was handed to
//     the transport.
//   - ContextUpdateSent (user_input.context_update_sent): a screen change was
//     forwarded to the remote model.
//   - GreetingSent (user_input.greeting_sent): the opening prompt was sent.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): the active set
//     went from empty to non-empty.
//   - AssistantPlaybackScheduled (assistant_playback.scheduled): a decoded
//     unit was placed on the output clock.
//   - AssistantPlaybackEnded (assistant_playback.ended): the active set
//     emptied.
//   - AssistantPlaybackInterrupted (assistant_playback.interrupted): the
//     remote signalled barge-in and all units were stopped.
//   - AssistantAudioDropped (assistant_playback.audio_dropped): an inbound
//     fragment was malformed and skipped.
//
// assistant_response events
//
//   - AssistantResponseText (assistant_response.text): text accompanying the
//     audio reply, if the remote sends any.
//   - AssistantTurnCompleted (assistant_response.turn_completed): the remote
//     finished generating its turn.
package events
