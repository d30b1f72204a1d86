// ABOUTME: Tests for the streaming reply printer and the chat prompt's send/wait cycle
// ABOUTME: Drives a real chat stream over a scripted in-memory connection

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kbchat/internal/chat"
)

func text(s string) *chat.Message {
	return &chat.Message{Role: chat.RoleAssistant, Content: s, MediaType: chat.MediaText}
}

// syncBuffer is a bytes.Buffer safe for the printer goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func newTestPrinter() (*turnPrinter, *syncBuffer) {
	color.NoColor = true
	buf := &syncBuffer{}
	return newTurnPrinter(buf), buf
}

func TestTurnPrinter_PrintsOnlyNewText(t *testing.T) {
	p, buf := newTestPrinter()

	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("Hel")})
	// A dropped event in between must not repeat or lose text.
	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("Hello, wor")})
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 1, Message: text("Hello, world")})

	assert.Equal(t, "assistant> Hello, world\n", buf.String())
}

func TestTurnPrinter_MediaReplacesText(t *testing.T) {
	p, buf := newTestPrinter()

	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("Drawing")})
	img := &chat.Message{Role: chat.RoleAssistant, Content: "https://cdn/x.png", MediaType: chat.MediaImage}
	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: img})
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 1, Message: img})

	assert.Equal(t, "assistant> Drawing\n[image] https://cdn/x.png\n", buf.String())
}

func TestTurnPrinter_StatusBreaksLine(t *testing.T) {
	p, buf := newTestPrinter()

	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("Let me check")})
	p.Handle(chat.Event{Kind: chat.EventStatus, Turn: 1, Delta: "searching"})
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 1, Message: text("Let me check. Found it.")})

	assert.Equal(t, "assistant> Let me check\n  … searching\nLet me check. Found it.\n", buf.String())
}

func TestTurnPrinter_ErrorThenEmptyEnd(t *testing.T) {
	p, buf := newTestPrinter()
	serverErr := &chat.ServerError{Content: "model overloaded"}

	p.Handle(chat.Event{Kind: chat.EventError, Turn: 1, Err: serverErr})
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 1, Message: text("")})
	p.Finish(chat.Reply{Turn: 1, Message: text(""), Err: serverErr})

	assert.Equal(t, "✗ assistant error: model overloaded\n", buf.String(), "no empty reply line, error shown once")
}

func TestTurnPrinter_FinishFillsInDroppedEvents(t *testing.T) {
	p, buf := newTestPrinter()

	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("The answer")})
	p.Finish(chat.Reply{Turn: 1, Message: text("The answer is 42.")})
	// Events still queued for the finished turn change nothing.
	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("The answer is")})
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 1, Message: text("The answer is 42.")})

	assert.Equal(t, "assistant> The answer is 42.\n", buf.String())
}

func TestTurnPrinter_CloseEndsTurn(t *testing.T) {
	p, buf := newTestPrinter()
	lost := errors.New("connection reset")

	p.Handle(chat.Event{Kind: chat.EventFragment, Turn: 1, Message: text("partial")})
	p.Handle(chat.Event{Kind: chat.EventState, Turn: 1, State: chat.Closed, Err: lost})
	p.Finish(chat.Reply{Turn: 1, Err: lost})

	assert.Equal(t, "assistant> partial\n✗ Connection closed: connection reset\n", buf.String())

	buf.Reset()
	p.Handle(chat.Event{Kind: chat.EventFinalized, Turn: 2, Message: text("next")})
	assert.Equal(t, "assistant> next\n", buf.String(), "the next reply starts fresh")
}

func TestTurnPrinter_IgnoresOtherStates(t *testing.T) {
	p, buf := newTestPrinter()

	p.Handle(chat.Event{Kind: chat.EventState, State: chat.Open})
	p.Handle(chat.Event{Kind: chat.EventUserMessage, Turn: 1, Message: &chat.Message{Role: chat.RoleUser, Content: "hi"}})

	assert.Empty(t, buf.String())
}

func TestWriteMessage(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	writeMessage(&buf, chat.Message{Role: chat.RoleUser, Content: "hi", MediaType: chat.MediaText})
	writeMessage(&buf, chat.Message{Role: chat.RoleAssistant, Content: "https://cdn/v.mp4", MediaType: chat.MediaVideo})

	assert.Equal(t, "you> hi\nassistant> [video] https://cdn/v.mp4\n", buf.String())
}

// scriptedConn answers each Send with the next scripted batch of frames.
type scriptedConn struct {
	mu      sync.Mutex
	replies [][]chat.Frame
	sendErr error
	frames  chan chat.Frame
	done    chan struct{}
	once    sync.Once
}

func newScriptedConn(replies ...[]chat.Frame) *scriptedConn {
	return &scriptedConn{replies: replies, frames: make(chan chat.Frame, 1024), done: make(chan struct{})}
}

func (c *scriptedConn) Send(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if len(c.replies) == 0 {
		return nil
	}
	for _, f := range c.replies[0] {
		c.frames <- f
	}
	c.replies = c.replies[1:]
	return nil
}

func (c *scriptedConn) ReadFrame() (chat.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, chat.ErrConnClosed
	}
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type scriptedDialer struct{ conn *scriptedConn }

func (d scriptedDialer) Dial(context.Context, chat.Target) (chat.Conn, error) { return d.conn, nil }

func newTestChat(t *testing.T, conn *scriptedConn) (*chatSession, *syncBuffer) {
	t.Helper()
	stream := chat.NewStream(scriptedDialer{conn: conn}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(stream.Close)
	require.NoError(t, stream.Connect(context.Background(), chat.Target{AssistantID: "a1", ConversationID: "c1", Token: "tok"}))

	printer, buf := newTestPrinter()
	return &chatSession{stream: stream, printer: printer, aid: "a1"}, buf
}

func TestChatSend_LongReplyWithStalledRenderer(t *testing.T) {
	var frames []chat.Frame
	var want strings.Builder
	for i := 0; i < 200; i++ {
		frames = append(frames, chat.MessageFrame{Content: "word ", MediaType: chat.MediaText})
		want.WriteString("word ")
	}
	frames = append(frames, chat.EndFrame{})
	s, buf := newTestChat(t, newScriptedConn(frames))

	// Nobody reads this subscription until the turn is over, so its buffer
	// overflows and the end-of-turn event is dropped.
	subCtx, unsubscribe := context.WithCancel(context.Background())
	events := s.stream.Subscribe(subCtx)

	require.NoError(t, s.send(context.Background(), "tell me a long story"))
	assert.Equal(t, "assistant> "+want.String()+"\n", buf.String())

	unsubscribe()
	for ev := range events {
		s.printer.Handle(ev)
	}
	assert.Equal(t, "assistant> "+want.String()+"\n", buf.String(), "late events of a finished turn print nothing")
}

func TestChatSend_ErrorThenEndDoesNotLeakIntoNextTurn(t *testing.T) {
	conn := newScriptedConn(
		[]chat.Frame{chat.ErrorFrame{Content: "retrieval failed"}, chat.EndFrame{}},
		[]chat.Frame{chat.MessageFrame{Content: "Hello", MediaType: chat.MediaText}, chat.EndFrame{}},
	)
	s, buf := newTestChat(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rendered := make(chan struct{})
	events := s.stream.Subscribe(ctx)
	go func() {
		defer close(rendered)
		for ev := range events {
			s.printer.Handle(ev)
		}
	}()

	require.NoError(t, s.send(ctx, "first"))
	assert.Equal(t, "✗ assistant error: retrieval failed\n", buf.String())

	require.NoError(t, s.send(ctx, "second"))
	assert.Equal(t, "✗ assistant error: retrieval failed\nassistant> Hello\n", buf.String())

	cancel()
	<-rendered
	assert.Equal(t, "✗ assistant error: retrieval failed\nassistant> Hello\n", buf.String())
	assert.Len(t, s.stream.Snapshot().Messages, 4)
}

func TestChatSend_WriteFailureReportedOnce(t *testing.T) {
	conn := newScriptedConn()
	conn.sendErr = errors.New("broken pipe")
	s, buf := newTestChat(t, conn)

	require.NoError(t, s.send(context.Background(), "hello"))
	assert.Equal(t, "✗ broken pipe\n", buf.String())
}

func TestChatSend_NotConnected(t *testing.T) {
	s, buf := newTestChat(t, newScriptedConn())
	s.stream.Disconnect()

	err := s.send(context.Background(), "hello")
	require.ErrorIs(t, err, chat.ErrTransportNotReady)
	assert.Empty(t, buf.String())
}

func TestChatSend_BlankInput(t *testing.T) {
	s, buf := newTestChat(t, newScriptedConn())

	require.NoError(t, s.send(context.Background(), "   "))
	assert.Empty(t, buf.String())
}
