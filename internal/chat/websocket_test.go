// ABOUTME: Tests for the WebSocket transport against a gorilla Upgrader test server
// ABOUTME: Verifies URL construction, token redaction, and a full streamed turn

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/client"
)

func TestWebSocketDialer_URL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/api/assistant/a1/conversations/c1/tok/ws"},
		{"https://kb.example.com", "wss://kb.example.com/api/assistant/a1/conversations/c1/tok/ws"},
		{"https://kb.example.com/backend/", "wss://kb.example.com/backend/api/assistant/a1/conversations/c1/tok/ws"},
		{"ws://10.0.0.1:9000", "ws://10.0.0.1:9000/api/assistant/a1/conversations/c1/tok/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			d, err := NewWebSocketDialer(tt.base, nil)
			require.NoError(t, err)
			got := d.URL(Target{AssistantID: "a1", ConversationID: "c1", Token: "tok"})
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestWebSocketDialer_EscapesSegments(t *testing.T) {
	d, err := NewWebSocketDialer("http://localhost", nil)
	require.NoError(t, err)

	got := d.URL(Target{AssistantID: "a/1", ConversationID: "c 1", Token: "t?k"}).String()
	assert.Equal(t, "ws://localhost/api/assistant/a%2F1/conversations/c%201/t%3Fk/ws", got)
}

func TestWebSocketDialer_Redacted(t *testing.T) {
	d, err := NewWebSocketDialer("https://kb.example.com", nil)
	require.NoError(t, err)

	got := d.Redacted(Target{AssistantID: "a1", ConversationID: "c1", Token: "eyJhbGciOi.secret.sig"})
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "/REDACTED/ws")
}

func TestNewWebSocketDialer_RejectsBadScheme(t *testing.T) {
	_, err := NewWebSocketDialer("ftp://example.com", nil)
	assert.Error(t, err)

	_, err = NewWebSocketDialer("http://", nil)
	assert.Error(t, err)
}

// chatServer is a gorilla test server that answers each user message with
// the scripted frames.
type chatServer struct {
	t      *testing.T
	script []map[string]any

	mu       sync.Mutex
	paths    []string
	received []string
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.mu.Unlock()

	for {
		var in struct {
			Content string `json:"content"`
		}
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, in.Content)
		s.mu.Unlock()

		for _, f := range s.script {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}
}

func TestWebSocket_StreamedTurn(t *testing.T) {
	srv := &chatServer{t: t, script: []map[string]any{
		{"type": "status", "content": "thinking"},
		{"type": "message", "media_type": "text", "content": "Hel"},
		{"type": "message", "media_type": "text", "content": "lo"},
		{"type": "end", "metadata": map[string]any{"sources": []any{"doc.pdf"}}},
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	dialer, err := NewWebSocketDialer(ts.URL, nil)
	require.NoError(t, err)

	s := NewStream(dialer, nil, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx, Target{AssistantID: "a1", ConversationID: "c1", Token: "tok"}))
	require.NoError(t, s.Send(ctx, "hi there"))

	snap := waitFinalized(t, s, 2)
	assert.Equal(t, "hi there", snap.Messages[0].Content)
	assert.Equal(t, "Hello", snap.Messages[1].Content)
	assert.Equal(t, []any{"doc.pdf"}, snap.Messages[1].Metadata["sources"])
	assert.False(t, snap.Typing)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"/api/assistant/a1/conversations/c1/tok/ws"}, srv.paths)
	assert.Equal(t, []string{"hi there"}, srv.received)
}

func TestWebSocket_ServerCloseEndsStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	defer ts.Close()

	dialer, err := NewWebSocketDialer(ts.URL, nil)
	require.NoError(t, err)
	s := NewStream(dialer, nil, nil)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background(), Target{AssistantID: "a1", ConversationID: "c1", Token: "tok"}))
	require.Eventually(t, func() bool { return s.Snapshot().State == Closed }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Send(context.Background(), "anyone?"), ErrTransportNotReady)
}

func TestWebSocket_UnauthorizedHandshake(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	dialer, err := NewWebSocketDialer(ts.URL, nil)
	require.NoError(t, err)

	_, err = dialer.Dial(context.Background(), Target{AssistantID: "a1", ConversationID: "c1", Token: "very-secret"})
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.NotContains(t, err.Error(), "very-secret")
}

func TestWebSocket_NoToken(t *testing.T) {
	dialer, err := NewWebSocketDialer("http://localhost", nil)
	require.NoError(t, err)

	_, err = dialer.Dial(context.Background(), Target{AssistantID: "a1", ConversationID: "c1"})
	assert.ErrorIs(t, err, client.ErrNoToken)
}

func TestWebSocket_RejectsDotSegments(t *testing.T) {
	dialer, err := NewWebSocketDialer("http://localhost", nil)
	require.NoError(t, err)

	for _, target := range []Target{
		{AssistantID: "..", ConversationID: "c1", Token: "tok"},
		{AssistantID: "a1", ConversationID: ".", Token: "tok"},
		{AssistantID: "a1", ConversationID: "", Token: "tok"},
	} {
		_, err := dialer.Dial(context.Background(), target)
		assert.ErrorIs(t, err, client.ErrInvalidID, "target %+v", target)
	}
}

func TestWebSocket_SendAfterClose(t *testing.T) {
	srv := &chatServer{t: t}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	dialer, err := NewWebSocketDialer(strings.Replace(ts.URL, "http://", "ws://", 1), nil)
	require.NoError(t, err)

	conn, err := dialer.Dial(context.Background(), Target{AssistantID: "a1", ConversationID: "c1", Token: "tok"})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, conn.Send(context.Background(), "late"), ErrConnClosed)
	_, err = conn.ReadFrame()
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Frame
	}{
		{"text message", `{"type":"message","media_type":"text","content":"Hi"}`, MessageFrame{Content: "Hi", MediaType: MediaText}},
		{"missing media type is text", `{"type":"message","content":"Hi"}`, MessageFrame{Content: "Hi", MediaType: MediaText}},
		{"video", `{"type":"message","media_type":"VIDEO","content":"u.mp4"}`, MessageFrame{Content: "u.mp4", MediaType: MediaVideo}},
		{"status", `{"type":"status","content":"searching"}`, StatusFrame{Content: "searching"}},
		{"error object content", `{"type":"error","content":{"code":5}}`, ErrorFrame{Content: `{"code":5}`}},
		{"end", `{"type":"end"}`, EndFrame{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrame([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrame_Unknown(t *testing.T) {
	raw := `{"type":"heartbeat","content":1}`
	got, err := ParseFrame([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, FrameKind("heartbeat"), got.Kind())
	assert.JSONEq(t, raw, string(got.(UnknownFrame).Raw))
}

func TestParseFrame_Malformed(t *testing.T) {
	_, err := ParseFrame([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = ParseFrame([]byte(`["message"]`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestOutgoingFrameShape(t *testing.T) {
	b, err := json.Marshal(outgoing{Content: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"hello"}`, string(b))
}
