// ABOUTME: Renders chat stream events to the terminal as the reply arrives
// ABOUTME: Prints only the unseen suffix of the in-flight message so dropped events never garble output

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/chat"
	"github.com/2389/kbchat/internal/client"
)

// turnPrinter writes one assistant reply at a time. Events may arrive late or
// not at all; Finish closes a turn from the stream's own Reply.
type turnPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	printed string
	media   chat.MediaType
	// shown is the last error printed, so a failure reported by both an
	// event and a Reply appears once.
	shown error
	// finished is the last turn whose reply has been printed in full.
	finished uint64
}

func newTurnPrinter(out io.Writer) *turnPrinter {
	return &turnPrinter{out: out, media: chat.MediaText}
}

// stale reports whether ev belongs to a turn that is already printed.
func (p *turnPrinter) stale(ev chat.Event) bool {
	return ev.Turn != 0 && ev.Turn <= p.finished
}

// Handle renders one event.
func (p *turnPrinter) Handle(ev chat.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case chat.EventFragment:
		if !p.stale(ev) {
			p.show(ev.Message)
		}
	case chat.EventFinalized:
		if !p.stale(ev) {
			p.show(ev.Message)
			p.endTurn(ev.Turn)
		}
	case chat.EventStatus:
		if !p.stale(ev) {
			p.breakLine()
			color.New(color.Faint).Fprintf(p.out, "  … %s\n", ev.Delta)
		}
	case chat.EventError:
		if !p.stale(ev) {
			p.breakLine()
			p.showError("", ev.Err)
		}
	case chat.EventState:
		if ev.State == chat.Closed {
			p.breakLine()
			if ev.Err != nil {
				p.showError("Connection closed: ", ev.Err)
			}
			p.reset()
		}
	}
}

// Finish prints whatever part of r the events did not, then ends the turn.
func (p *turnPrinter) Finish(r chat.Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.Turn > p.finished {
		p.show(r.Message)
		p.endTurn(r.Turn)
	}
	if r.Err != nil {
		p.showError("", r.Err)
	}
}

// show prints whatever part of m has not been printed yet. A message that
// no longer extends what was printed starts on a new line. An empty message
// prints nothing.
func (p *turnPrinter) show(m *chat.Message) {
	if m == nil || (m.Content == "" && !p.started) {
		return
	}
	if !p.started {
		color.New(color.FgCyan).Fprint(p.out, "assistant> ")
		p.started = true
	}

	if m.MediaType.IsText() && p.media.IsText() && strings.HasPrefix(m.Content, p.printed) {
		fmt.Fprint(p.out, m.Content[len(p.printed):])
		p.printed = m.Content
		return
	}
	if m.MediaType == p.media && m.Content == p.printed {
		return
	}

	if p.printed != "" {
		fmt.Fprintln(p.out)
	}
	if m.MediaType.IsText() {
		fmt.Fprint(p.out, m.Content)
	} else {
		fmt.Fprintf(p.out, "[%s] %s", m.MediaType, m.Content)
	}
	p.printed = m.Content
	p.media = m.MediaType
}

// showError prints err unless it is the one printed last.
func (p *turnPrinter) showError(prefix string, err error) {
	if p.shown != nil && errors.Is(err, p.shown) {
		return
	}
	p.shown = err
	color.New(color.FgRed).Fprintf(p.out, "✗ %s%s\n", prefix, errorText(err))
}

func (p *turnPrinter) endTurn(turn uint64) {
	if p.started {
		fmt.Fprintln(p.out)
	}
	p.reset()
	if turn > p.finished {
		p.finished = turn
	}
}

// breakLine ends a partially printed reply line.
func (p *turnPrinter) breakLine() {
	if p.started && p.printed != "" {
		fmt.Fprintln(p.out)
		p.printed = ""
	}
}

func (p *turnPrinter) reset() {
	p.started = false
	p.printed = ""
	p.media = chat.MediaText
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return client.Message(err)
}

// writeMessage renders a stored message.
func writeMessage(w io.Writer, m chat.Message) {
	label := color.New(color.FgGreen).Sprint("you> ")
	if m.Role == chat.RoleAssistant {
		label = color.New(color.FgCyan).Sprint("assistant> ")
	}
	if m.MediaType.IsText() {
		fmt.Fprintf(w, "%s%s\n", label, m.Content)
		return
	}
	fmt.Fprintf(w, "%s[%s] %s\n", label, m.MediaType, m.Content)
}
