// ABOUTME: Knowledge base commands: list, show, create, delete, inherit
// ABOUTME: Each command refreshes from the backend after mutating

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
)

const pathKnowledge = "/knowledge"

func cmdKB(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	switch sub {
	case "list", "ls":
		return kbList(ctx, app)
	case "show":
		return kbShow(ctx, app, args)
	case "create":
		return kbCreate(ctx, app, args)
	case "delete", "rm":
		return kbDelete(ctx, app, args)
	case "inherit":
		return kbInherit(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, "kbchat", "kb", sub)
	}
}

func kbList(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, pathKnowledge); err != nil {
		return err
	}
	return printKnowledgeBases(ctx, app)
}

func printKnowledgeBases(ctx context.Context, app *cli.App) error {
	kbs, err := app.Client.ListKnowledgeBases(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Knowledge bases")
	if len(kbs) == 0 {
		cli.Empty(app.Out, "knowledge bases")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "NAME", "DOCS", "UPDATED", "DESCRIPTION")
	for _, kb := range kbs {
		updated := kb.LastUpdated
		if updated == "" {
			updated = kb.UpdatedAt
		}
		cli.Row(tw, kb.ID, kb.Name, kb.DocumentCount, cli.When(updated), cli.Truncate(kb.Description, 40))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func kbShow(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "kb show <kb>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}

	docs := newDocuments(app, fs.Arg(0))
	if err := app.Require(ctx, docs.Path()); err != nil {
		return err
	}
	kb, err := docs.Load(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, kb.Name)
	fmt.Fprintf(app.Out, "  ID:          %s\n", kb.ID)
	if kb.Description != "" {
		fmt.Fprintf(app.Out, "  Description: %s\n", kb.Description)
	}
	fmt.Fprintf(app.Out, "  Contextual:  %t\n", kb.IsContextualRAG)
	printDocuments(app, docs.Board().List())
	return nil
}

func kbCreate(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "kb create -name N [-description D] [-contextual]", app.ErrOut)
	name := fs.String("name", "", "knowledge base name")
	description := fs.String("description", "", "description")
	contextual := fs.Bool("contextual", false, "enable contextual retrieval")
	if err := fs.Parse(args, 0); err != nil {
		return err
	}
	if *name == "" && fs.NArg() > 0 {
		*name = fs.Arg(0)
	}
	if *name == "" {
		return fs.Usagef("-name is required")
	}

	if err := app.Require(ctx, pathKnowledge); err != nil {
		return err
	}
	kb, err := app.Client.CreateKnowledgeBase(ctx, client.CreateKnowledgeBaseRequest{
		Name:            *name,
		Description:     *description,
		IsContextualRAG: *contextual,
	})
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Created knowledge base %s (%s)\n", kb.Name, kb.ID)
	return printKnowledgeBases(ctx, app)
}

func kbDelete(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "kb delete [-y] <kb>", app.ErrOut)
	yes := fs.Bool("y", false, "skip confirmation")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	id := fs.Arg(0)

	if err := app.Require(ctx, pathKnowledge); err != nil {
		return err
	}
	if !*yes && !cli.NewPrompter(app.ErrOut).Confirm(fmt.Sprintf("Delete knowledge base %s and all its documents?", id)) {
		fmt.Fprintln(app.Out, "Cancelled.")
		return nil
	}
	if err := app.Client.DeleteKnowledgeBase(ctx, id); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Deleted knowledge base %s\n", id)
	return printKnowledgeBases(ctx, app)
}

func kbInherit(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "kb inherit <source> <target>", app.ErrOut)
	if err := fs.Parse(args, 2); err != nil {
		return err
	}

	if err := app.Require(ctx, pathKnowledge); err != nil {
		return err
	}
	req := client.InheritKnowledgeBaseRequest{
		SourceKnowledgeBaseID: fs.Arg(0),
		TargetKnowledgeBaseID: fs.Arg(1),
	}
	if err := app.Client.InheritKnowledgeBase(ctx, req); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Copied documents from %s into %s\n", req.SourceKnowledgeBaseID, req.TargetKnowledgeBaseID)
	return printKnowledgeBases(ctx, app)
}
