package gemini

import (
	"bytes"
	"testing"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"google.golang.org/genai"
)

func TestLiveConnectConfigCarriesVoiceAndInstruction(t *testing.T) {
	config := liveConnectConfig(transport.Config{
		Model:             "gemini-2.5-flash-native-audio-preview-09-2025",
		OutputModality:    transport.ModalityAudio,
		Voice:             "Charon",
		SystemInstruction: "You are an aide.",
	})

	if len(config.ResponseModalities) != 1 || config.ResponseModalities[0] != genai.ModalityAudio {
		t.Fatalf("expected audio response modality, got %v", config.ResponseModalities)
	}
	if config.SpeechConfig == nil || config.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Charon" {
		t.Fatalf("expected voice Charon, got %+v", config.SpeechConfig)
	}
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "You are an aide." {
		t.Fatalf("expected system instruction to be set, got %+v", config.SystemInstruction)
	}
}

func TestLiveConnectConfigOmitsEmptyVoice(t *testing.T) {
	config := liveConnectConfig(transport.Config{OutputModality: transport.ModalityText})

	if config.SpeechConfig != nil {
		t.Fatalf("expected no speech config without a voice")
	}
	if config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction")
	}
	if config.ResponseModalities[0] != genai.ModalityText {
		t.Fatalf("expected text modality, got %v", config.ResponseModalities)
	}
}

func TestMessagesFromServerOrdersAudioBeforeFlags(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xFF, 0x7F}
	msg := &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: pcm, MIMEType: "audio/pcm;rate=24000"}},
			nil,
			{Text: "thinking", Thought: true},
		}},
		Interrupted:  true,
		TurnComplete: true,
	}}

	messages := messagesFromServer(msg, audio.GetDefaultOutputEncodingInfo())

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Audio == nil {
		t.Fatalf("expected audio first, got %+v", messages[0])
	}
	decoded, err := audio.DecodeBytes(messages[0].Audio.Data)
	if err != nil || !bytes.Equal(decoded, pcm) {
		t.Fatalf("expected audio payload to survive, got %v (%v)", decoded, err)
	}
	if !messages[1].Interrupted || !messages[2].TurnComplete {
		t.Fatalf("expected interrupted then turn complete, got %+v", messages[1:])
	}
}

func TestMessagesFromServerFillsMissingMIMEType(t *testing.T) {
	msg := &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: []byte{0, 0}}}}},
	}}

	messages := messagesFromServer(msg, audio.GetDefaultOutputEncodingInfo())

	if len(messages) != 1 || messages[0].Audio.MIMEType != "audio/pcm;rate=24000" {
		t.Fatalf("expected fallback mime type, got %+v", messages)
	}
}

func TestMessagesFromServerIgnoresSetupAndEmptyContent(t *testing.T) {
	if messages := messagesFromServer(&genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}, audio.EncodingInfo{}); len(messages) != 0 {
		t.Fatalf("expected no messages for setup complete, got %+v", messages)
	}
	if messages := messagesFromServer(nil, audio.EncodingInfo{}); len(messages) != 0 {
		t.Fatalf("expected no messages for nil, got %+v", messages)
	}
}

func TestRealtimeAudioDecodesChunk(t *testing.T) {
	chunk := audio.EncodeSamples([]float32{0, 1}, audio.GetDefaultEncodingInfo())

	input, err := realtimeAudio(chunk, audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected conversion to succeed, got %v", err)
	}
	if input.Audio == nil || input.Audio.MIMEType != "audio/pcm;rate=16000" || len(input.Audio.Data) != 4 {
		t.Fatalf("unexpected realtime input %+v", input.Audio)
	}

	if _, err := realtimeAudio(audio.EncodedChunk{Data: "%%%"}, audio.GetDefaultEncodingInfo()); err == nil {
		t.Fatalf("expected malformed chunk to fail")
	}
}

func TestClientTextIsACompleteUserTurn(t *testing.T) {
	content := clientText("UPDATE")

	if content.TurnComplete == nil || !*content.TurnComplete {
		t.Fatalf("expected turn complete to be set")
	}
	if len(content.Turns) != 1 || content.Turns[0].Role != genai.RoleUser || content.Turns[0].Parts[0].Text != "UPDATE" {
		t.Fatalf("unexpected turns %+v", content.Turns)
	}
}
