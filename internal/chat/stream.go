// ABOUTME: Stream owns one chat connection per open conversation and its message state
// ABOUTME: Applies transport frames in order, accumulating fragments into finalized history

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/kbchat/internal/broadcast"
)

var (
	// ErrTransportNotReady is returned by Send when no connection is open.
	ErrTransportNotReady = errors.New("chat transport not ready")
	// ErrSuperseded is returned by Connect when a newer Connect or a
	// Disconnect happened while it was dialing. A reply still pending when the
	// connection is replaced or closed resolves with it too.
	ErrSuperseded = errors.New("connection superseded")
)

// State is the lifecycle state of a stream's current connection.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ServerError is recorded when the backend sends an error frame.
type ServerError struct {
	Content string
}

func (e *ServerError) Error() string {
	return "assistant error: " + e.Content
}

// EventKind says what changed in an Event.
type EventKind int

const (
	EventState EventKind = iota
	EventUserMessage
	EventFragment
	EventFinalized
	EventStatus
	EventError
)

// Event is published to subscribers after each state change. Delivery is
// best effort: a subscriber that falls behind loses events. Use Ask to learn
// reliably when a reply is complete.
type Event struct {
	Kind  EventKind
	State State
	// Turn is the number of the latest Ask when the event was emitted, or 0
	// before the first one.
	Turn uint64
	// Delta is the fragment for EventFragment, or the status text for
	// EventStatus.
	Delta string
	// Message is the user message, the in-flight accumulator, or the
	// finalized reply, depending on Kind.
	Message *Message
	Err     error
}

// Reply is the outcome of one turn started by Ask.
type Reply struct {
	Turn uint64
	// Message is the finalized assistant message, or nil when the turn ended
	// without an end frame.
	Message *Message
	// Err is the error frame the server sent during the turn, the connection
	// failure that ended it, or ErrSuperseded.
	Err error
}

// Snapshot is a point-in-time copy of a stream's state.
type Snapshot struct {
	AssistantID    string
	ConversationID string
	State          State
	Messages       []Message
	InFlight       *Message
	Typing         bool
	Err            error
}

// Stream drives one conversation's chat connection.
type Stream struct {
	dialer  Dialer
	history HistorySource
	events  *broadcast.Broadcaster[Event]
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	gen      uint64
	conn     Conn
	target   Target
	state    State
	messages []Message
	acc      *Message
	typing   bool
	lastErr  error

	turn    uint64
	pending chan Reply
	turnErr error
}

// NewStream creates an idle stream. history may be nil to skip loading
// stored messages on Connect.
func NewStream(dialer Dialer, history HistorySource, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		dialer:  dialer,
		history: history,
		events:  broadcast.New[Event](logger),
		logger:  logger.With("component", "chat"),
		now:     time.Now,
	}
}

// Connect tears down any previous connection, loads the conversation's
// history and opens a new connection to target.
func (s *Stream) Connect(ctx context.Context, target Target) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	old := s.conn
	s.conn = nil
	s.target = target
	s.messages = nil
	s.acc = nil
	s.typing = false
	s.lastErr = nil
	s.endTurnLocked(Reply{Err: ErrSuperseded})
	s.state = Connecting
	s.emitLocked(Event{Kind: EventState})
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	logger := s.logger.With("assistant_id", target.AssistantID, "conversation_id", target.ConversationID)
	logger.Debug("connecting")

	var (
		conn    Conn
		history []Message
		histErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.history != nil {
		g.Go(func() error {
			rows, err := s.history.ConversationHistory(gctx, target.AssistantID, target.ConversationID)
			if err != nil {
				histErr = err
				return nil
			}
			history = FromHistoryList(rows)
			return nil
		})
	}
	g.Go(func() error {
		c, err := s.dialer.Dial(gctx, target)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	dialErr := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}

	if histErr != nil {
		logger.Warn("failed to load conversation history", "error", histErr)
		s.lastErr = histErr
	}
	s.messages = history

	if dialErr != nil {
		logger.Warn("chat connection failed", "error", dialErr)
		s.state = Closed
		s.lastErr = dialErr
		s.emitLocked(Event{Kind: EventState, Err: dialErr})
		return fmt.Errorf("connect: %w", dialErr)
	}

	s.conn = conn
	s.state = Open
	s.emitLocked(Event{Kind: EventState})
	logger.Info("chat connected", "history", len(history))

	go s.read(gen, conn)
	return nil
}

// Send transmits a user message. Blank input is ignored.
func (s *Stream) Send(ctx context.Context, text string) error {
	_, err := s.Ask(ctx, text)
	return err
}

// Ask transmits a user message and returns a channel that receives exactly
// one Reply when the assistant finishes the turn, the connection ends, or the
// stream moves to another conversation. Blank input is ignored and returns a
// nil channel. The channel is non-nil whenever a turn was started, including
// when the write itself fails.
func (s *Stream) Ask(ctx context.Context, text string) (<-chan Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.conn == nil || (s.state != Open && s.state != Streaming) {
		s.mu.Unlock()
		return nil, ErrTransportNotReady
	}
	conn := s.conn
	gen := s.gen
	msg := Message{
		Role:      RoleUser,
		Content:   text,
		MediaType: MediaText,
		CreatedAt: s.now(),
	}
	// A turn still waiting for its end frame is abandoned.
	s.endTurnLocked(Reply{Err: ErrSuperseded})
	s.turn++
	reply := make(chan Reply, 1)
	s.pending = reply
	s.messages = append(s.messages, msg)
	s.typing = true
	s.emitLocked(Event{Kind: EventUserMessage, Message: &msg})
	s.mu.Unlock()

	if err := conn.Send(ctx, text); err != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.typing = false
			s.lastErr = err
			s.emitLocked(Event{Kind: EventError, Err: err})
			s.endTurnLocked(Reply{Err: err})
		}
		s.mu.Unlock()
		return reply, fmt.Errorf("send message: %w", err)
	}
	return reply, nil
}

// Disconnect closes the current connection. Frames that arrive afterwards are
// dropped.
func (s *Stream) Disconnect() {
	s.mu.Lock()
	s.gen++
	old := s.conn
	s.conn = nil
	s.acc = nil
	s.typing = false
	s.endTurnLocked(Reply{Err: ErrSuperseded})
	if s.state != Idle {
		s.state = Closed
	}
	s.emitLocked(Event{Kind: EventState})
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Close disconnects and closes all subscriber channels.
func (s *Stream) Close() {
	s.Disconnect()
	s.events.Close()
}

// Subscribe returns a channel of events that closes when ctx is cancelled or
// the stream is closed.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch, _ := s.events.Subscribe(ctx)
	return ch
}

// Snapshot returns a copy of the current state.
func (s *Stream) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		AssistantID:    s.target.AssistantID,
		ConversationID: s.target.ConversationID,
		State:          s.state,
		Messages:       make([]Message, len(s.messages)),
		Typing:         s.typing,
		Err:            s.lastErr,
	}
	for i, m := range s.messages {
		snap.Messages[i] = m.clone()
	}
	if s.acc != nil {
		m := s.acc.clone()
		snap.InFlight = &m
	}
	return snap
}

// read is the single reader for one connection.
func (s *Stream) read(gen uint64, conn Conn) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				s.logger.Warn("dropping malformed frame", "error", err)
				continue
			}
			s.fail(gen, conn, err)
			return
		}
		if !s.apply(gen, frame) {
			return
		}
	}
}

// apply folds one frame into the stream state. It returns false when the
// connection has been superseded.
func (s *Stream) apply(gen uint64, frame Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.conn == nil {
		return false
	}

	switch f := frame.(type) {
	case MessageFrame:
		s.typing = false
		if s.acc != nil && f.MediaType.IsText() && s.acc.MediaType == f.MediaType {
			s.acc.Content += f.Content
			s.acc.Metadata = mergeMetadata(s.acc.Metadata, f.Metadata)
		} else {
			s.acc = &Message{
				Role:      RoleAssistant,
				Content:   f.Content,
				MediaType: f.MediaType,
				CreatedAt: s.now(),
				Metadata:  maps.Clone(f.Metadata),
			}
		}
		s.state = Streaming
		m := s.acc.clone()
		s.emitLocked(Event{Kind: EventFragment, Delta: f.Content, Message: &m})

	case StatusFrame:
		s.logger.Info("assistant status", "status", f.Content)
		s.emitLocked(Event{Kind: EventStatus, Delta: f.Content})

	case ErrorFrame:
		err := &ServerError{Content: f.Content}
		s.lastErr = err
		if s.pending != nil {
			s.turnErr = err
		}
		s.logger.Warn("assistant reported error", "error", f.Content)
		s.emitLocked(Event{Kind: EventError, Err: err})

	case EndFrame:
		final := Message{Role: RoleAssistant, MediaType: MediaText, CreatedAt: s.now()}
		if s.acc != nil {
			final = *s.acc
		}
		final.Metadata = mergeMetadata(final.Metadata, f.Metadata)
		s.messages = append(s.messages, final)
		s.acc = nil
		s.typing = false
		s.state = Open
		m := final.clone()
		s.emitLocked(Event{Kind: EventFinalized, Message: &m})
		r := final.clone()
		s.endTurnLocked(Reply{Message: &r})

	default:
		s.logger.Debug("ignoring unknown frame", "type", string(frame.Kind()))
	}
	return true
}

// fail handles a connection-level error. There is no reconnect.
func (s *Stream) fail(gen uint64, conn Conn, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.acc = nil
	s.typing = false
	s.state = Closed
	s.lastErr = err
	s.logger.Warn("chat connection lost", "error", err)
	s.emitLocked(Event{Kind: EventState, Err: err})
	s.endTurnLocked(Reply{Err: err})
	s.mu.Unlock()

	_ = conn.Close()
}

// emitLocked publishes ev stamped with the current state and turn. Callers
// hold s.mu, which keeps events in the order the state changed.
func (s *Stream) emitLocked(ev Event) {
	ev.State = s.state
	ev.Turn = s.turn
	s.events.Publish(ev)
}

// endTurnLocked resolves the pending Ask, if any. r.Err defaults to the error
// frame received during the turn.
func (s *Stream) endTurnLocked(r Reply) {
	if s.pending == nil {
		return
	}
	if r.Err == nil {
		r.Err = s.turnErr
	}
	r.Turn = s.turn
	s.pending <- r
	close(s.pending)
	s.pending = nil
	s.turnErr = nil
}

func mergeMetadata(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
