// ABOUTME: Dashboard commands: usage statistics, source lists, spreadsheet export, word clouds
// ABOUTME: Binary results from the backend are saved next to the working directory

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/export"
)

const (
	pathDashboard = "/dashboard"
	pathWordCloud = "/dashboard/wordcloud"
)

func cmdDashboard(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	switch sub {
	case "stats", "":
		return dashboardStats(ctx, app)
	case "sources":
		return dashboardSources(ctx, app, args)
	case "export":
		return dashboardExport(ctx, app, args)
	case "wordcloud":
		return dashboardWordCloud(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, "kbchat", "dashboard", sub)
	}
}

func dashboardStats(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, pathDashboard); err != nil {
		return err
	}
	stats, err := app.Client.DashboardStatistics(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Usage")
	fmt.Fprintf(app.Out, "  Conversations:          %d\n", stats.TotalConversations)
	fmt.Fprintf(app.Out, "  Average response time:  %.2fs\n", stats.AverageAssistantResponseTime)

	if len(stats.AssistantStatistics) > 0 {
		cli.Heading(app.Out, "Assistants")
		tw := cli.Table(app.Out, "ID", "NAME", "CONVERSATIONS")
		for _, a := range stats.AssistantStatistics {
			cli.Row(tw, a.ID, a.Name, a.NumberOfConversations)
		}
		tw.Flush()
	}

	if len(stats.KnowledgeBaseStatistics) > 0 {
		cli.Heading(app.Out, "Knowledge bases")
		tw := cli.Table(app.Out, "ID", "NAME", "USER MESSAGES")
		for _, kb := range stats.KnowledgeBaseStatistics {
			cli.Row(tw, kb.ID, kb.Name, kb.TotalUserMessages)
		}
		tw.Flush()
	}

	if len(stats.ConversationsStatistics) > 0 {
		cli.Heading(app.Out, "Conversations")
		tw := cli.Table(app.Out, "ID", "AVG SESSION", "AVG USER MESSAGES")
		for _, c := range stats.ConversationsStatistics {
			cli.Row(tw, c.ID, fmt.Sprintf("%.1fs", c.AverageSessionChatTime), fmt.Sprintf("%.1f", c.AverageUserMessages))
		}
		tw.Flush()
	}
	fmt.Fprintln(app.Out)
	return nil
}

func dashboardSources(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "dashboard sources <kbs|assistants|conversations>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	kind := fs.Arg(0)
	switch kind {
	case client.SourceKnowledgeBases, client.SourceAssistants, client.SourceConversations:
	default:
		return fs.Usagef("Unknown source kind %q", kind)
	}

	if err := app.Require(ctx, pathWordCloud); err != nil {
		return err
	}
	sources, err := app.Client.DashboardSources(ctx, kind)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Sources: "+kind)
	if len(sources) == 0 {
		cli.Empty(app.Out, "sources")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "NAME")
	for _, s := range sources {
		cli.Row(tw, s.ID, orDash(s.Name))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func dashboardExport(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "dashboard export [-dir D] [-conversations]", app.ErrOut)
	dir := fs.String("dir", ".", "output directory")
	conversations := fs.Bool("conversations", false, "export the per-conversation sheet instead of the summary")
	if err := fs.Parse(args, 0); err != nil {
		return err
	}
	if err := app.Require(ctx, pathDashboard); err != nil {
		return err
	}

	// The statistics call prepares the export files and names them.
	stats, err := app.Client.DashboardStatistics(ctx)
	if err != nil {
		return err
	}
	name := stats.FileName
	if *conversations {
		name = stats.FileConversationName
	}
	if name == "" {
		return fmt.Errorf("the server did not prepare an export")
	}

	blob, err := app.Client.ExportFile(ctx, name)
	if err != nil {
		return err
	}
	path, err := export.SaveBlob(*dir, blob, name)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Saved %s\n", path)
	return nil
}

func dashboardWordCloud(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "dashboard wordcloud [-user] [-dir D] <kb|assistant|conversation> <id>", app.ErrOut)
	dir := fs.String("dir", ".", "output directory")
	user := fs.Bool("user", false, "use only user messages")
	if err := fs.Parse(args, 2); err != nil {
		return err
	}
	kind, id := fs.Arg(0), fs.Arg(1)
	switch kind {
	case client.WordCloudKnowledgeBase, client.WordCloudAssistant, client.WordCloudConversation:
	default:
		return fs.Usagef("Unknown word cloud kind %q", kind)
	}

	if err := app.Require(ctx, pathWordCloud); err != nil {
		return err
	}
	blob, err := app.Client.WordCloud(ctx, kind, id, *user)
	if err != nil {
		return err
	}
	path, err := export.SaveBlob(*dir, blob, fmt.Sprintf("wordcloud-%s-%s.png", kind, id))
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Saved %s\n", path)
	return nil
}
