// ABOUTME: Typed union of frames delivered by a chat transport
// ABOUTME: ParseFrame decodes the backend's {type, content, media_type, metadata} JSON

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for frames that are not valid JSON objects.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameKind is the "type" field of a frame.
type FrameKind string

const (
	FrameMessage FrameKind = "message"
	FrameStatus  FrameKind = "status"
	FrameError   FrameKind = "error"
	FrameEnd     FrameKind = "end"
)

// Frame is one unit delivered by a transport.
type Frame interface {
	Kind() FrameKind
}

// MessageFrame carries a fragment of the assistant's reply.
type MessageFrame struct {
	Content   string
	MediaType MediaType
	Metadata  map[string]any
}

// StatusFrame is informational progress from the backend.
type StatusFrame struct {
	Content string
}

// ErrorFrame reports a server-side failure for the in-flight turn.
type ErrorFrame struct {
	Content string
}

// EndFrame finishes the current turn.
type EndFrame struct {
	Metadata map[string]any
}

// UnknownFrame is any frame with an unrecognised type.
type UnknownFrame struct {
	Type string
	Raw  json.RawMessage
}

func (MessageFrame) Kind() FrameKind   { return FrameMessage }
func (StatusFrame) Kind() FrameKind    { return FrameStatus }
func (ErrorFrame) Kind() FrameKind     { return FrameError }
func (EndFrame) Kind() FrameKind       { return FrameEnd }
func (f UnknownFrame) Kind() FrameKind { return FrameKind(f.Type) }

// wireFrame is the JSON shape sent by the backend.
type wireFrame struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// ParseFrame decodes one frame. Unrecognised types decode to UnknownFrame.
func ParseFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch FrameKind(w.Type) {
	case FrameMessage:
		return MessageFrame{
			Content:   contentString(w.Content),
			MediaType: ParseMediaType(w.MediaType),
			Metadata:  w.Metadata,
		}, nil
	case FrameStatus:
		return StatusFrame{Content: contentString(w.Content)}, nil
	case FrameError:
		return ErrorFrame{Content: contentString(w.Content)}, nil
	case FrameEnd:
		return EndFrame{Metadata: w.Metadata}, nil
	default:
		return UnknownFrame{Type: w.Type, Raw: json.RawMessage(data)}, nil
	}
}

// contentString returns a JSON string's value, or the raw JSON for other
// values (status and error frames sometimes carry objects).
func contentString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// outgoing is the JSON frame the client writes for a user message.
type outgoing struct {
	Content string `json:"content"`
}
