package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
)

var testUpgrader = gws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

type relayScript func(t *testing.T, conn *gws.Conn)

func newRelay(t *testing.T, script relayScript) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(t, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func relayURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readClientMessage(t *testing.T, conn *gws.Conn) clientMessage {
	t.Helper()
	var msg clientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("failed to read client message: %v", err)
	}
	return msg
}

type recordedCallbacks struct {
	mu       sync.Mutex
	messages []transport.Message
	errs     []error
	closed   chan struct{}
	failed   chan struct{}
}

func newRecordedCallbacks() *recordedCallbacks {
	return &recordedCallbacks{closed: make(chan struct{}, 1), failed: make(chan struct{}, 1)}
}

func (r *recordedCallbacks) callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnMessage: func(msg transport.Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		OnClose: func() { r.closed <- struct{}{} },
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.failed <- struct{}{}
		},
	}
}

func (r *recordedCallbacks) snapshot() []transport.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Message(nil), r.messages...)
}

func TestOpenSendsSetupAndWaitsForConfirmation(t *testing.T) {
	setupSeen := make(chan setupConfig, 1)
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		msg := readClientMessage(t, conn)
		if msg.Type != messageTypeSetup || msg.Config == nil {
			t.Errorf("expected setup message first, got %+v", msg)
			return
		}
		setupSeen <- *msg.Config
		_ = conn.WriteJSON(serverMessage{Type: messageTypeSetupComplete})
		_, _, _ = conn.ReadMessage()
	})

	client := NewClient(relayURL(server))
	session, err := client.Open(context.Background(), transport.Config{
		Model:             "test-model",
		OutputModality:    transport.ModalityAudio,
		Voice:             "Charon",
		SystemInstruction: "be brief",
		InputEncoding:     audio.GetDefaultEncodingInfo(),
		OutputEncoding:    audio.GetDefaultOutputEncodingInfo(),
	}, transport.Callbacks{})
	if err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}
	defer session.Close()

	setup := <-setupSeen
	if setup.Model != "test-model" || setup.Voice != "Charon" || setup.SystemInstruction != "be brief" {
		t.Fatalf("unexpected setup %+v", setup)
	}
	if setup.InputMIMEType != "audio/pcm;rate=16000" || setup.OutputMIMEType != "audio/pcm;rate=24000" {
		t.Fatalf("unexpected mime types %q / %q", setup.InputMIMEType, setup.OutputMIMEType)
	}
}

func TestOpenFailsWhenSetupIsRejected(t *testing.T) {
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		readClientMessage(t, conn)
		_ = conn.WriteJSON(serverMessage{Type: messageTypeError, Error: "unknown model"})
	})

	_, err := NewClient(relayURL(server)).Open(context.Background(), transport.Config{Model: "nope"}, transport.Callbacks{})
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("expected setup rejection, got %v", err)
	}
}

func TestOpenHonorsContextDuringHandshake(t *testing.T) {
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		readClientMessage(t, conn)
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewClient(relayURL(server)).Open(ctx, transport.Config{}, transport.Callbacks{}); err == nil {
		t.Fatalf("expected open to fail when the relay never confirms")
	}
}

func TestSessionRoutesInboundMessages(t *testing.T) {
	chunk := audio.EncodedChunk{Data: audio.EncodeBytes([]byte{1, 0, 2, 0}), MIMEType: "audio/pcm;rate=24000"}
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		readClientMessage(t, conn)
		_ = conn.WriteJSON(serverMessage{Type: messageTypeSetupComplete})
		_ = conn.WriteJSON(serverMessage{Type: messageTypeAudio, Audio: &chunk})
		_ = conn.WriteJSON(serverMessage{Type: messageTypeInterrupted})
		_ = conn.WriteJSON(serverMessage{Type: messageTypeTurnComplete})
		_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	})

	recorded := newRecordedCallbacks()
	session, err := NewClient(relayURL(server)).Open(context.Background(), transport.Config{}, recorded.callbacks())
	if err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}
	defer session.Close()

	select {
	case <-recorded.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for remote close")
	}

	messages := recorded.snapshot()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Audio == nil || *messages[0].Audio != chunk {
		t.Fatalf("expected audio chunk first, got %+v", messages[0])
	}
	if !messages[1].Interrupted {
		t.Fatalf("expected interrupted second, got %+v", messages[1])
	}
	if !messages[2].TurnComplete {
		t.Fatalf("expected turn complete third, got %+v", messages[2])
	}
}

func TestSessionReportsRemoteErrors(t *testing.T) {
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		readClientMessage(t, conn)
		_ = conn.WriteJSON(serverMessage{Type: messageTypeSetupComplete})
		_ = conn.WriteJSON(serverMessage{Type: messageTypeError, Error: "quota exceeded"})
		_, _, _ = conn.ReadMessage()
	})

	recorded := newRecordedCallbacks()
	session, err := NewClient(relayURL(server)).Open(context.Background(), transport.Config{}, recorded.callbacks())
	if err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}
	defer session.Close()

	select {
	case <-recorded.failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for remote error")
	}

	if err := session.SendText("hello"); err == nil {
		t.Fatalf("expected sends to fail after a remote error")
	}
}

func TestSessionSendsAudioAndTextInOrder(t *testing.T) {
	received := make(chan clientMessage, 4)
	server := newRelay(t, func(t *testing.T, conn *gws.Conn) {
		readClientMessage(t, conn)
		_ = conn.WriteJSON(serverMessage{Type: messageTypeSetupComplete})
		for range 3 {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	})

	session, err := NewClient(relayURL(server)).Open(context.Background(), transport.Config{}, transport.Callbacks{})
	if err != nil {
		t.Fatalf("expected open to succeed, got %v", err)
	}

	first := audio.EncodedChunk{Data: "AAA=", MIMEType: "audio/pcm;rate=16000"}
	second := audio.EncodedChunk{Data: "AQE=", MIMEType: "audio/pcm;rate=16000"}
	if err := session.SendAudio(first); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if err := session.SendAudio(second); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if err := session.SendText("context"); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	for i, expected := range []clientMessage{
		{Type: messageTypeAudio, Audio: &first},
		{Type: messageTypeAudio, Audio: &second},
		{Type: messageTypeText, Text: "context"},
	} {
		select {
		case got := <-received:
			gotJSON, _ := json.Marshal(got)
			expectedJSON, _ := json.Marshal(expected)
			if string(gotJSON) != string(expectedJSON) {
				t.Fatalf("expected message %d to be %s, got %s", i, expectedJSON, gotJSON)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}

	if err := session.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if err := session.SendText("late"); err != transport.ErrClosed {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}
