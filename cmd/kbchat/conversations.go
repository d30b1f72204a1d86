// ABOUTME: Conversation commands: list, new, rename, delete, history, export
// ABOUTME: Exports save the server's spreadsheet or render history to standalone HTML

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/chat"
	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/export"
)

func chatPath(assistantID string) string {
	return pathAssistants + "/" + assistantID
}

func cmdConversations(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	switch sub {
	case "list", "ls":
		return conversationsList(ctx, app, args)
	case "new":
		return conversationsNew(ctx, app, args)
	case "rename":
		return conversationsRename(ctx, app, args)
	case "delete", "rm":
		return conversationsDelete(ctx, app, args)
	case "history":
		return conversationsHistory(ctx, app, args)
	case "export":
		return conversationsExport(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, "kbchat", "conversations", sub)
	}
}

func conversationsList(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations list <assistant>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	aid := fs.Arg(0)
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}
	return printConversations(ctx, app, aid)
}

func printConversations(ctx context.Context, app *cli.App, aid string) error {
	list, err := app.Client.ListConversations(ctx, aid)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Conversations")
	if len(list) == 0 {
		cli.Empty(app.Out, "conversations")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "NAME", "CREATED", "UPDATED")
	for _, c := range list {
		cli.Row(tw, c.ID, cli.Truncate(orDash(c.Name), 40), cli.When(c.CreatedAt), cli.When(c.UpdatedAt))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func conversationsNew(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations new <assistant>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	aid := fs.Arg(0)
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	conv, err := app.Client.CreateConversation(ctx, aid)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Started conversation %s\n", conv.ID)
	fmt.Fprintf(app.Out, "  Run `kbchat chat %s %s` to talk.\n", aid, conv.ID)
	return nil
}

func conversationsRename(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations rename <assistant> <id> <name>", app.ErrOut)
	if err := fs.Parse(args, 3); err != nil {
		return err
	}
	aid, cid := fs.Arg(0), fs.Arg(1)
	name := strings.Join(fs.Args()[2:], " ")
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	if err := app.Client.RenameConversation(ctx, aid, cid, name); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Renamed %s to %q\n", cid, name)
	return printConversations(ctx, app, aid)
}

func conversationsDelete(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations delete [-y] <assistant> <id>", app.ErrOut)
	yes := fs.Bool("y", false, "skip confirmation")
	if err := fs.Parse(args, 2); err != nil {
		return err
	}
	aid, cid := fs.Arg(0), fs.Arg(1)
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	if !*yes && !cli.NewPrompter(app.ErrOut).Confirm(fmt.Sprintf("Delete conversation %s?", cid)) {
		fmt.Fprintln(app.Out, "Cancelled.")
		return nil
	}
	if err := app.Client.DeleteConversation(ctx, aid, cid); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Deleted conversation %s\n", cid)
	return printConversations(ctx, app, aid)
}

func conversationsHistory(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations history <assistant> <id>", app.ErrOut)
	if err := fs.Parse(args, 2); err != nil {
		return err
	}
	aid, cid := fs.Arg(0), fs.Arg(1)
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	rows, err := app.Client.ConversationHistory(ctx, aid, cid)
	if err != nil {
		return err
	}
	msgs := chat.FromHistoryList(rows)
	if len(msgs) == 0 {
		fmt.Fprintln(app.Out, "  (no messages)")
		return nil
	}
	for _, m := range msgs {
		writeMessage(app.Out, m)
	}
	return nil
}

func conversationsExport(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "conversations export [-html] [-dir D] <assistant> [id]", app.ErrOut)
	asHTML := fs.Bool("html", false, "render the conversation to HTML instead of the server's spreadsheet")
	dir := fs.String("dir", ".", "output directory")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	aid, cid := fs.Arg(0), fs.Arg(1)
	if err := app.Require(ctx, chatPath(aid)); err != nil {
		return err
	}

	if *asHTML {
		if cid == "" {
			return fs.Usagef("An HTML export needs a conversation id.")
		}
		return exportHTML(ctx, app, *dir, aid, cid)
	}

	var blob *client.Blob
	var err error
	fallback := fmt.Sprintf("assistant-%s.xlsx", aid)
	if cid == "" {
		blob, err = app.Client.ExportConversations(ctx, aid)
	} else {
		blob, err = app.Client.ExportConversation(ctx, aid, cid)
		fallback = fmt.Sprintf("conversation-%s.xlsx", cid)
	}
	if err != nil {
		return err
	}
	path, err := export.SaveBlob(*dir, blob, fallback)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Saved %s\n", path)
	return nil
}

func exportHTML(ctx context.Context, app *cli.App, dir, aid, cid string) error {
	assistant, err := app.Client.GetAssistant(ctx, aid)
	if err != nil {
		return err
	}
	rows, err := app.Client.ConversationHistory(ctx, aid, cid)
	if err != nil {
		return err
	}

	title := "Conversation " + cid
	if list, err := app.Client.ListConversations(ctx, aid); err == nil {
		for _, c := range list {
			if c.ID == cid && c.Name != "" {
				title = c.Name
			}
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("conversation-%s.html", cid))
	conv := export.Conversation{
		Title:         title,
		AssistantName: assistant.Name,
		ExportedAt:    time.Now(),
		Messages:      chat.FromHistoryList(rows),
	}
	if err := export.NewRenderer().WriteHTMLFile(path, conv); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Saved %s\n", path)
	return nil
}
