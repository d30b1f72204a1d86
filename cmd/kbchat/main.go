// ABOUTME: Terminal client for the knowledge-base chatbot platform
// ABOUTME: Subcommands cover sessions, knowledge bases, documents, assistants, chat, and the dashboard

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/cli"
)

const banner = `
 _    _          _           _
| | _| |__   ___| |__   __ _| |_
| |/ / '_ \ / __| '_ \ / _' | __|
|   <| |_) | (__| | | | (_| | |_
|_|\_\_.__/ \___|_| |_|\__,_|\__|
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd, args := argv[0], argv[1:]
	switch cmd {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := cli.New(ctx, os.Stdout, os.Stderr)
	if err != nil {
		color.Red("Error: %v\n", err)
		return 1
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		app.Close(closeCtx)
	}()

	switch cmd {
	case "login":
		err = cmdLogin(ctx, app, args)
	case "logout":
		err = cmdLogout(ctx, app)
	case "register":
		err = cmdRegister(ctx, app, args)
	case "whoami":
		err = cmdWhoami(ctx, app)
	case "kb":
		err = cmdKB(ctx, app, args)
	case "docs":
		err = cmdDocs(ctx, app, args)
	case "assistants":
		err = cmdAssistants(ctx, app, args)
	case "conversations", "conv":
		err = cmdConversations(ctx, app, args)
	case "chat":
		err = cmdChat(ctx, app, args)
	case "dashboard":
		err = cmdDashboard(ctx, app, args)
	case "tools":
		err = cmdTools(ctx, app)
	case "agents":
		err = cmdAgents(ctx, app)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		return 1
	}

	return app.ExitCode(err)
}

func printUsage(w io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Terminal client for knowledge bases, assistants, and chat")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Session:")
	fmt.Fprintln(w, "  login [-u user]                          Sign in and store the session")
	fmt.Fprintln(w, "  logout                                   Forget the stored session")
	fmt.Fprintln(w, "  register                                 Create an account")
	fmt.Fprintln(w, "  whoami                                   Show the signed-in user")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Knowledge bases:")
	fmt.Fprintln(w, "  kb list                                  List knowledge bases")
	fmt.Fprintln(w, "  kb show <kb>                             Show a knowledge base and its documents")
	fmt.Fprintln(w, "  kb create -name N [-description D] [-contextual]")
	fmt.Fprintln(w, "  kb delete <kb>                           Delete a knowledge base")
	fmt.Fprintln(w, "  kb inherit <source> <target>             Copy documents between knowledge bases")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Documents:")
	fmt.Fprintln(w, "  docs list <kb>                           List documents")
	fmt.Fprintln(w, "  docs upload [-process] <kb> <file>...    Upload files")
	fmt.Fprintln(w, "  docs process [-watch] <kb> <doc>...      Start processing")
	fmt.Fprintln(w, "  docs stop <kb> <doc>                     Stop processing")
	fmt.Fprintln(w, "  docs retry [-watch] <kb> <doc>           Discard output and process again")
	fmt.Fprintln(w, "  docs delete <kb> <doc>                   Delete a document")
	fmt.Fprintln(w, "  docs download [-o path] <kb> <doc>       Download the original file")
	fmt.Fprintln(w, "  docs watch <kb>                          Follow processing until it settles")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Assistants:")
	fmt.Fprintln(w, "  assistants list | show <id> | delete <id>")
	fmt.Fprintln(w, "  assistants create -name N -kb KB [-prompt P] [-backstory B] [-agent A]")
	fmt.Fprintln(w, "  assistants update [-prompt P] [-backstory B] [-agent A] <id>")
	fmt.Fprintln(w, "  assistants tools [-answer] <id> [tool]...")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Conversations:")
	fmt.Fprintln(w, "  conversations list <assistant>           List conversations")
	fmt.Fprintln(w, "  conversations new <assistant>            Start a conversation")
	fmt.Fprintln(w, "  conversations rename <assistant> <id> <name>")
	fmt.Fprintln(w, "  conversations delete <assistant> <id>")
	fmt.Fprintln(w, "  conversations history <assistant> <id>")
	fmt.Fprintln(w, "  conversations export [-html] [-dir D] <assistant> [id]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Chat:")
	fmt.Fprintln(w, "  chat [-mode stream|http] <assistant> [conversation]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Dashboard:")
	fmt.Fprintln(w, "  dashboard stats                          Usage statistics")
	fmt.Fprintln(w, "  dashboard sources <kbs|assistants|conversations>")
	fmt.Fprintln(w, "  dashboard export [-dir D] [-conversations]")
	fmt.Fprintln(w, "  dashboard wordcloud [-user] [-dir D] <kb|assistant|conversation> <id>")
	fmt.Fprintln(w, "  tools | agents                           List the tool and agent catalogs")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  KBCHAT_CONFIG    Config file path")
	fmt.Fprintln(w, "  KBCHAT_API_URL   Backend base URL")
	fmt.Fprintln(w, "  KBCHAT_TOKEN     Session token for this process only")
}
