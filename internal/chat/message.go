// ABOUTME: Chat message model shared by history, the stream accumulator, and exports
// ABOUTME: Converts stored history rows from the API into messages

package chat

import (
	"maps"
	"strings"
	"time"

	"github.com/2389/kbchat/internal/client"
)

// Role identifies who sent a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MediaType is the kind of content a message carries.
type MediaType string

const (
	MediaText  MediaType = "text"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ParseMediaType normalises a wire media type. An empty value is text.
func ParseMediaType(s string) MediaType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MediaText
	}
	return MediaType(s)
}

// IsText reports whether fragments of this media type concatenate.
func (m MediaType) IsText() bool { return m == MediaText }

// Message is one entry of a conversation. Messages in history are never
// modified after they are appended.
type Message struct {
	Role      Role
	Content   string
	MediaType MediaType
	CreatedAt time.Time
	Metadata  map[string]any
}

// clone returns a copy that shares no mutable state with m.
func (m Message) clone() Message {
	m.Metadata = maps.Clone(m.Metadata)
	return m
}

// FromHistory converts a stored history row into a Message.
func FromHistory(h client.HistoryMessage) Message {
	role := RoleAssistant
	if h.SenderType == client.SenderUser {
		role = RoleUser
	}

	var created time.Time
	if h.CreatedAt != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			if t, err := time.Parse(layout, h.CreatedAt); err == nil {
				created = t
				break
			}
		}
	}

	return Message{
		Role:      role,
		Content:   h.Content,
		MediaType: ParseMediaType(h.Media()),
		CreatedAt: created,
		Metadata:  h.Metadata,
	}
}

// FromHistoryList converts stored history rows in order.
func FromHistoryList(rows []client.HistoryMessage) []Message {
	msgs := make([]Message, 0, len(rows))
	for _, h := range rows {
		msgs = append(msgs, FromHistory(h))
	}
	return msgs
}
