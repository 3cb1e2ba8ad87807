package gemini

import (
	"strings"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"google.golang.org/genai"
)

func liveConnectConfig(config transport.Config) *genai.LiveConnectConfig {
	modality := genai.ModalityAudio
	if config.OutputModality == transport.ModalityText {
		modality = genai.ModalityText
	}

	liveConfig := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{modality},
	}
	if config.Voice != "" {
		liveConfig.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}
	if config.SystemInstruction != "" {
		liveConfig.SystemInstruction = genai.NewContentFromText(config.SystemInstruction, genai.RoleUser)
	}
	return liveConfig
}

// messagesFromServer flattens one server message into transport messages.
// Audio parts come first, in part order, followed by the interrupted and
// turn-complete flags.
func messagesFromServer(msg *genai.LiveServerMessage, fallback audio.EncodingInfo) []transport.Message {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	content := msg.ServerContent

	var messages []transport.Message
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && isAudio(part.InlineData.MIMEType) {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" && !fallback.IsZero() {
					mimeType = fallback.MIMEType()
				}
				messages = append(messages, transport.Message{Audio: &audio.EncodedChunk{
					Data:     audio.EncodeBytes(part.InlineData.Data),
					MIMEType: mimeType,
				}})
			} else if part.Text != "" && !part.Thought {
				messages = append(messages, transport.Message{Text: part.Text})
			}
		}
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		messages = append(messages, transport.Message{Text: content.OutputTranscription.Text})
	}
	if content.Interrupted {
		messages = append(messages, transport.Message{Interrupted: true})
	}
	if content.TurnComplete {
		messages = append(messages, transport.Message{TurnComplete: true})
	}
	return messages
}

func isAudio(mimeType string) bool {
	return mimeType == "" || strings.HasPrefix(mimeType, "audio/")
}

func realtimeAudio(chunk audio.EncodedChunk, fallback audio.EncodingInfo) (genai.LiveRealtimeInput, error) {
	data, err := audio.DecodeBytes(chunk.Data)
	if err != nil {
		return genai.LiveRealtimeInput{}, err
	}

	mimeType := chunk.MIMEType
	if mimeType == "" {
		mimeType = fallback.MIMEType()
	}
	return genai.LiveRealtimeInput{Audio: &genai.Blob{Data: data, MIMEType: mimeType}}, nil
}

func clientText(text string) genai.LiveClientContentInput {
	return genai.LiveClientContentInput{
		Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		TurnComplete: genai.Ptr(true),
	}
}
