// ABOUTME: Assistant commands: list, show, create, update, tools, delete
// ABOUTME: Also lists the tool and agent-type catalogs used when configuring assistants

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
)

const pathAssistants = "/chat"

func cmdAssistants(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	switch sub {
	case "list", "ls":
		return assistantsList(ctx, app)
	case "show":
		return assistantsShow(ctx, app, args)
	case "create":
		return assistantsCreate(ctx, app, args)
	case "update":
		return assistantsUpdate(ctx, app, args)
	case "tools":
		return assistantsTools(ctx, app, args)
	case "delete", "rm":
		return assistantsDelete(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, "kbchat", "assistants", sub)
	}
}

func assistantsList(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}
	return printAssistants(ctx, app)
}

func printAssistants(ctx context.Context, app *cli.App) error {
	list, err := app.Client.ListAssistants(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Assistants")
	if len(list) == 0 {
		cli.Empty(app.Out, "assistants")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "NAME", "AGENT", "KNOWLEDGE BASE", "TOOLS", "DESCRIPTION")
	for _, a := range list {
		cli.Row(tw, a.ID, a.Name, orDash(a.AgentType), orDash(a.KnowledgeBaseID),
			len(a.Tools), cli.Truncate(a.Description, 36))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func assistantsShow(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "assistants show <id>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}

	a, err := app.Client.GetAssistant(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	cli.Heading(app.Out, a.Name)
	fmt.Fprintf(app.Out, "  ID:             %s\n", a.ID)
	fmt.Fprintf(app.Out, "  Agent type:     %s\n", orDash(a.AgentType))
	fmt.Fprintf(app.Out, "  Knowledge base: %s\n", orDash(a.KnowledgeBaseID))
	fmt.Fprintf(app.Out, "  Created:        %s\n", cli.When(a.CreatedAt))
	if a.Description != "" {
		fmt.Fprintf(app.Out, "  Description:    %s\n", a.Description)
	}
	if a.InstructPrompt != "" {
		fmt.Fprintf(app.Out, "\n  Prompt:\n    %s\n", strings.ReplaceAll(a.InstructPrompt, "\n", "\n    "))
	}
	if a.AgentBackstory != "" {
		fmt.Fprintf(app.Out, "\n  Backstory:\n    %s\n", strings.ReplaceAll(a.AgentBackstory, "\n", "\n    "))
	}

	if len(a.Tools) > 0 {
		fmt.Fprintln(app.Out)
		tw := cli.Table(app.Out, "TOOL", "RETURNS ANSWER", "DESCRIPTION")
		for _, name := range a.Tools.Names() {
			t := a.Tools[name]
			cli.Row(tw, name, t.ReturnAsAnswer, cli.Truncate(t.Description, 50))
		}
		tw.Flush()
	}
	fmt.Fprintln(app.Out)
	return nil
}

func assistantsCreate(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "assistants create -name N -kb KB [-description D] [-prompt P] [-backstory B] [-agent A]", app.ErrOut)
	name := fs.String("name", "", "assistant name")
	description := fs.String("description", "", "description")
	kb := fs.String("kb", "", "knowledge base id")
	prompt := fs.String("prompt", "", "instruction prompt")
	backstory := fs.String("backstory", "", "agent backstory")
	agent := fs.String("agent", "", "agent type (see `kbchat agents`)")
	if err := fs.Parse(args, 0); err != nil {
		return err
	}
	if *name == "" || *kb == "" {
		return fs.Usagef("-name and -kb are required")
	}

	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}
	a, err := app.Client.CreateAssistant(ctx, client.CreateAssistantRequest{
		Name:            *name,
		Description:     *description,
		InstructPrompt:  *prompt,
		AgentBackstory:  *backstory,
		KnowledgeBaseID: *kb,
		Configuration:   map[string]any{},
		AgentType:       *agent,
	})
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Created assistant %s (%s)\n", a.Name, a.ID)
	return printAssistants(ctx, app)
}

func assistantsUpdate(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "assistants update [-prompt P] [-backstory B] [-agent A] <id>", app.ErrOut)
	prompt := fs.String("prompt", "", "instruction prompt")
	backstory := fs.String("backstory", "", "agent backstory")
	agent := fs.String("agent", "", "agent type")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}

	// Unset flags keep the assistant's current values.
	id := fs.Arg(0)
	current, err := app.Client.GetAssistant(ctx, id)
	if err != nil {
		return err
	}
	req := client.UpdateAssistantRequest{
		InstructPrompt: current.InstructPrompt,
		AgentBackstory: current.AgentBackstory,
		AgentType:      current.AgentType,
	}
	if fs.Set("prompt") {
		req.InstructPrompt = *prompt
	}
	if fs.Set("backstory") {
		req.AgentBackstory = *backstory
	}
	if fs.Set("agent") {
		req.AgentType = *agent
	}

	if _, err := app.Client.UpdateAssistant(ctx, id, req); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Updated assistant %s\n", current.Name)
	return nil
}

func assistantsTools(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "assistants tools [-answer] <id> [tool]...", app.ErrOut)
	answer := fs.Bool("answer", false, "return tool output as the answer")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}

	id := fs.Arg(0)
	current, err := app.Client.GetAssistant(ctx, id)
	if err != nil {
		return err
	}

	names := fs.Args()[1:]
	tools := make([]client.ToolUpdate, 0, len(names))
	for _, n := range names {
		t := current.Tools[n]
		tools = append(tools, client.ToolUpdate{
			Name:           n,
			Description:    t.Description,
			ReturnAsAnswer: *answer,
		})
	}
	if err := app.Client.UpdateTools(ctx, id, tools); err != nil {
		return err
	}
	if len(tools) == 0 {
		color.New(color.FgGreen).Fprintf(app.Out, "✓ Removed all tools from %s\n", current.Name)
	} else {
		color.New(color.FgGreen).Fprintf(app.Out, "✓ Set tools on %s: %s\n", current.Name, strings.Join(names, ", "))
	}
	return nil
}

func assistantsDelete(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "assistants delete [-y] <id>", app.ErrOut)
	yes := fs.Bool("y", false, "skip confirmation")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}

	id := fs.Arg(0)
	if !*yes && !cli.NewPrompter(app.ErrOut).Confirm(fmt.Sprintf("Delete assistant %s and its conversations?", id)) {
		fmt.Fprintln(app.Out, "Cancelled.")
		return nil
	}
	if err := app.Client.DeleteAssistant(ctx, id); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Deleted assistant %s\n", id)
	return printAssistants(ctx, app)
}

func cmdTools(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}
	tools, err := app.Client.ListTools(ctx)
	if err != nil {
		return err
	}
	printCatalog(app, "Tools", tools)
	return nil
}

func cmdAgents(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, pathAssistants); err != nil {
		return err
	}
	agents, err := app.Client.ListAgents(ctx)
	if err != nil {
		return err
	}
	printCatalog(app, "Agent types", agents)
	return nil
}

func printCatalog(app *cli.App, title string, names []string) {
	cli.Heading(app.Out, title)
	if len(names) == 0 {
		cli.Empty(app.Out, strings.ToLower(title))
		return
	}
	for _, n := range names {
		fmt.Fprintf(app.Out, "  %s\n", n)
	}
	fmt.Fprintln(app.Out)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
