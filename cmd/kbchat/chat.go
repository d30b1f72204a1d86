// ABOUTME: Interactive chat with an assistant over the streaming socket or plain HTTP
// ABOUTME: Slash commands switch, rename, list, and export conversations without leaving the prompt

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/chat"
	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
	"github.com/2389/kbchat/internal/export"
)

func cmdChat(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "chat [-mode stream|http] <assistant> [conversation]", app.ErrOut)
	mode := fs.String("mode", app.Config.Chat.Mode, "transport: stream or http")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	aid, cid := fs.Arg(0), fs.Arg(1)

	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	dialer, err := newDialer(app, *mode)
	if err != nil {
		return err
	}

	assistant, err := app.Client.GetAssistant(ctx, aid)
	if err != nil {
		return err
	}
	if cid == "" {
		conv, err := app.Client.CreateConversation(ctx, aid)
		if err != nil {
			return err
		}
		cid = conv.ID
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Revalidate the session while the prompt is open and stop on sign-out.
	go app.Session.Run(ctx)
	go func() {
		for st := range app.Session.Subscribe(ctx) {
			if !st.Loading && !st.IsAuthenticated {
				cancel()
				return
			}
		}
	}()

	stream := chat.NewStream(dialer, app.Client, app.Logger)
	defer stream.Close()

	printer := newTurnPrinter(app.Out)
	events := stream.Subscribe(ctx)
	go func() {
		for ev := range events {
			printer.Handle(ev)
		}
	}()

	s := &chatSession{app: app, stream: stream, printer: printer, assistant: assistant.Name, aid: aid}
	if err := s.open(ctx, cid); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(app.Out, "Chatting with %s (%s mode).\n", assistant.Name, *mode)
	fmt.Fprintln(app.Out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(app.Out)

	err = s.loop(ctx, os.Stdin)
	fmt.Fprintln(app.Out, "\nGoodbye!")
	if errors.Is(err, context.Canceled) {
		if !app.Session.State().IsAuthenticated {
			return cli.ErrRedirected
		}
		return nil
	}
	return err
}

func newDialer(app *cli.App, mode string) (chat.Dialer, error) {
	switch mode {
	case "", config.ChatModeStream:
		return chat.NewWebSocketDialer(app.Config.API.BaseURL, app.Logger)
	case config.ChatModeHTTP:
		return chat.HTTPDialer{API: app.Client}, nil
	default:
		fmt.Fprintf(app.ErrOut, "Unknown chat mode %q (want %s or %s)\n", mode, config.ChatModeStream, config.ChatModeHTTP)
		return nil, cli.ErrUsage
	}
}

type chatSession struct {
	app       *cli.App
	stream    *chat.Stream
	printer   *turnPrinter
	assistant string
	aid       string
}

// open connects to conversation cid and prints its stored messages.
func (s *chatSession) open(ctx context.Context, cid string) error {
	token, err := s.app.Session.Token(ctx)
	if err != nil {
		return err
	}

	s.app.Session.Enter(chatPath(s.aid))
	err = s.stream.Connect(ctx, chat.Target{AssistantID: s.aid, ConversationID: cid, Token: token})
	if errors.Is(err, client.ErrUnauthorized) {
		// The socket handshake bypasses the API client's 401 hook.
		s.app.Session.HandleUnauthorized()
		return cli.ErrRedirected
	}
	if err != nil {
		return err
	}

	snap := s.stream.Snapshot()
	if snap.Err != nil {
		s.app.Notify.Warn("could not load history: %s", errorText(snap.Err))
	}
	if n := len(snap.Messages); n > 0 {
		color.New(color.Faint).Fprintf(s.app.Out, "── %d earlier message(s) ──\n", n)
		for _, m := range snap.Messages {
			writeMessage(s.app.Out, m)
		}
		fmt.Fprintln(s.app.Out)
	}
	s.app.Logger.Debug("conversation open", "assistant_id", s.aid, "conversation_id", cid)
	return nil
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	green := color.New(color.FgGreen)

	for {
		green.Fprint(s.app.Out, "you> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
				return
			}
			if err := scanner.Err(); err != nil {
				errCh <- err
				return
			}
			errCh <- io.EOF
		}()

		var input string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			quit, err := s.command(ctx, input)
			if errors.Is(err, cli.ErrRedirected) {
				return err
			}
			if err != nil {
				s.app.Notify.Error(err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, input); err != nil {
			if errors.Is(err, chat.ErrTransportNotReady) {
				s.app.Notify.Warn("Not connected. Use /reconnect or /switch <id>.")
				continue
			}
			s.app.Notify.Error(err)
		}
	}
}

// send transmits input and waits for the reply to finish. A failed write is
// reported through the printer like any other failed turn.
func (s *chatSession) send(ctx context.Context, input string) error {
	reply, err := s.stream.Ask(ctx, input)
	if reply == nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-reply:
		s.printer.Finish(r)
		return nil
	}
}

// command runs a slash command and reports whether to quit.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	snap := s.stream.Snapshot()

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help":
		printChatHelp(s.app.Out)

	case "/history":
		for _, m := range snap.Messages {
			writeMessage(s.app.Out, m)
		}

	case "/list":
		return false, printConversations(ctx, s.app, s.aid)

	case "/new":
		conv, err := s.app.Client.CreateConversation(ctx, s.aid)
		if err != nil {
			return false, err
		}
		if err := s.open(ctx, conv.ID); err != nil {
			return false, err
		}
		s.app.Notify.Success("Started conversation %s", conv.ID)

	case "/switch":
		if arg == "" {
			return false, errors.New("usage: /switch <conversation id>")
		}
		if err := s.open(ctx, arg); err != nil {
			return false, err
		}
		s.app.Notify.Success("Switched to conversation %s", arg)

	case "/reconnect":
		return false, s.open(ctx, snap.ConversationID)

	case "/rename":
		if arg == "" {
			return false, errors.New("usage: /rename <name>")
		}
		if err := s.app.Client.RenameConversation(ctx, s.aid, snap.ConversationID, arg); err != nil {
			return false, err
		}
		s.app.Notify.Success("Renamed conversation to %q", arg)

	case "/export":
		dir := arg
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, fmt.Sprintf("conversation-%s.html", snap.ConversationID))
		conv := export.Conversation{
			Title:         "Conversation " + snap.ConversationID,
			AssistantName: s.assistant,
			ExportedAt:    time.Now(),
			Messages:      snap.Messages,
		}
		if err := export.NewRenderer().WriteHTMLFile(path, conv); err != nil {
			return false, err
		}
		s.app.Notify.Success("Saved %s", path)

	case "/status":
		fmt.Fprintf(s.app.Out, "  conversation %s, %s, %d message(s)\n", snap.ConversationID, snap.State, len(snap.Messages))

	default:
		fmt.Fprintf(s.app.Out, "Unknown command %s. /help lists them.\n", name)
	}
	return false, nil
}

func printChatHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /history       Show this conversation's messages")
	fmt.Fprintln(w, "  /list          List this assistant's conversations")
	fmt.Fprintln(w, "  /new           Start a new conversation")
	fmt.Fprintln(w, "  /switch <id>   Open another conversation")
	fmt.Fprintln(w, "  /rename <name> Rename this conversation")
	fmt.Fprintln(w, "  /export [dir]  Save this conversation as HTML")
	fmt.Fprintln(w, "  /reconnect     Reopen the connection")
	fmt.Fprintln(w, "  /status        Show the connection state")
	fmt.Fprintln(w, "  /help          Show this help")
	fmt.Fprintln(w, "  /quit          Exit the chat")
}
