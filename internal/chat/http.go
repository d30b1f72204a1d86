// ABOUTME: Non-streaming chat transport over plain request/response HTTP
// ABOUTME: Each reply is replayed as a message frame followed by an end frame

package chat

import (
	"context"
	"sync"

	"github.com/2389/kbchat/internal/client"
)

// MessageSender posts a chat message and returns the complete reply.
type MessageSender interface {
	SendMessage(ctx context.Context, assistantID, conversationID, content string) (*client.SendMessageResponse, error)
}

// HTTPDialer opens request/response connections.
type HTTPDialer struct {
	API MessageSender
}

// Dial never touches the network; requests happen on Send.
func (d HTTPDialer) Dial(_ context.Context, target Target) (Conn, error) {
	return &httpConn{
		api:    d.API,
		target: target,
		frames: make(chan Frame, 8),
		done:   make(chan struct{}),
	}, nil
}

type httpConn struct {
	api    MessageSender
	target Target
	frames chan Frame
	done   chan struct{}
	once   sync.Once
}

func (c *httpConn) Send(ctx context.Context, text string) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	resp, err := c.api.SendMessage(ctx, c.target.AssistantID, c.target.ConversationID, text)
	if err != nil {
		return err
	}

	for _, f := range []Frame{
		MessageFrame{
			Content:   resp.AssistantMessage,
			MediaType: ParseMediaType(resp.Type),
			Metadata:  resp.Metadata,
		},
		EndFrame{},
	} {
		select {
		case c.frames <- f:
		case <-c.done:
			return ErrConnClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *httpConn) ReadFrame() (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, ErrConnClosed
	}
}

func (c *httpConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
