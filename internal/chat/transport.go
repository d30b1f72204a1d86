// ABOUTME: Transport interfaces for the chat stream
// ABOUTME: A Dialer opens one Conn per (assistant, conversation) pair

package chat

import (
	"context"
	"errors"

	"github.com/2389/kbchat/internal/client"
)

// ErrConnClosed is returned by a Conn after Close.
var ErrConnClosed = errors.New("connection closed")

// Target identifies the conversation a connection is scoped to.
type Target struct {
	AssistantID    string
	ConversationID string
	Token          string
}

// Conn is one open chat connection. ReadFrame is called from a single reader
// goroutine; Send and Close may be called from any goroutine.
type Conn interface {
	// Send writes a user message.
	Send(ctx context.Context, text string) error
	// ReadFrame blocks until the next frame. Errors wrapping ErrMalformedFrame
	// are recoverable; any other error ends the connection.
	ReadFrame() (Frame, error)
	// Close tears the connection down and unblocks ReadFrame.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Conn, error)
}

// HistorySource loads the stored messages of a conversation.
type HistorySource interface {
	ConversationHistory(ctx context.Context, assistantID, conversationID string) ([]client.HistoryMessage, error)
}
