// ABOUTME: Document commands for one knowledge base: upload, process, stop, retry, delete, download, watch
// ABOUTME: Processing documents are followed with the status poller until they settle

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/cli"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/documents"
	"github.com/2389/kbchat/internal/notify"
)

func newDocuments(app *cli.App, kbID string) *documents.Manager {
	return documents.NewManager(app.Client, app.Tokens, app.Nav, kbID, app.Config.Documents, app.Logger)
}

func cmdDocs(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	switch sub {
	case "list", "ls":
		return docsList(ctx, app, args)
	case "upload":
		return docsUpload(ctx, app, args)
	case "process":
		return docsEach(ctx, app, "process", args, (*documents.Manager).Process, "Processing")
	case "stop":
		return docsEach(ctx, app, "stop", args, (*documents.Manager).Stop, "Stopped")
	case "retry":
		return docsEach(ctx, app, "retry", args, (*documents.Manager).Retry, "Retrying")
	case "delete", "rm":
		return docsEach(ctx, app, "delete", args, (*documents.Manager).Delete, "Deleted")
	case "download":
		return docsDownload(ctx, app, args)
	case "watch":
		return docsWatch(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, "kbchat", "docs", sub)
	}
}

// openDocuments checks the route and loads the knowledge base's documents.
func openDocuments(ctx context.Context, app *cli.App, kbID string) (*documents.Manager, error) {
	docs := newDocuments(app, kbID)
	if err := app.Require(ctx, docs.Path()); err != nil {
		return nil, err
	}
	if _, err := docs.Load(ctx); err != nil {
		return nil, err
	}
	return docs, nil
}

func docsList(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "docs list <kb>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	docs, err := openDocuments(ctx, app, fs.Arg(0))
	if err != nil {
		return err
	}
	defer docs.Board().Close()
	printDocuments(app, docs.Board().List())
	return nil
}

func docsUpload(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "docs upload [-process] [-watch] <kb> <file>...", app.ErrOut)
	process := fs.Bool("process", false, "start processing each uploaded file")
	watch := fs.Bool("watch", false, "follow processing until it settles")
	if err := fs.Parse(args, 2); err != nil {
		return err
	}

	docs, err := openDocuments(ctx, app, fs.Arg(0))
	if err != nil {
		return err
	}
	defer docs.Board().Close()

	files := make([]documents.File, 0, fs.NArg()-1)
	for _, path := range fs.Args()[1:] {
		files = append(files, documents.FromPath(path))
	}

	outcomes, err := docs.Upload(ctx, files...)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			app.Notify.Notify(notifyLevelFor(o.Err), fmt.Sprintf("%s: %s", o.Name, client.Message(o.Err)))
			continue
		}
		green.Fprintf(app.Out, "✓ Uploaded %s (%s)\n", o.Name, o.Document.ID)
		if *process {
			if err := docs.Process(ctx, o.Document.ID); err != nil {
				failed++
				app.Notify.Error(err)
			}
		}
	}

	if *process && *watch {
		if err := follow(ctx, app, docs); err != nil {
			return err
		}
	}
	printDocuments(app, docs.Board().List())

	if failed > 0 {
		return cli.ErrReported
	}
	return nil
}

// docsEach applies op to each document id given after the knowledge base.
func docsEach(ctx context.Context, app *cli.App, name string, args []string,
	op func(*documents.Manager, context.Context, string) error, verb string) error {
	fs := cli.NewCommand("kbchat", fmt.Sprintf("docs %s <kb> <doc>...", name), app.ErrOut)
	watch := fs.Bool("watch", false, "follow processing until it settles")
	if err := fs.Parse(args, 2); err != nil {
		return err
	}

	docs, err := openDocuments(ctx, app, fs.Arg(0))
	if err != nil {
		return err
	}
	defer docs.Board().Close()

	green := color.New(color.FgGreen)
	for _, id := range fs.Args()[1:] {
		label := id
		if d, ok := docs.Board().Get(id); ok && d.FileName != "" {
			label = d.FileName
		}
		if err := op(docs, ctx, id); err != nil {
			return err
		}
		green.Fprintf(app.Out, "✓ %s %s\n", verb, label)
	}

	if *watch {
		if err := follow(ctx, app, docs); err != nil {
			return err
		}
	}
	printDocuments(app, docs.Board().List())
	return nil
}

func docsDownload(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "docs download [-o path] <kb> <doc>", app.ErrOut)
	out := fs.String("o", "", "output path (defaults to the document's file name)")
	if err := fs.Parse(args, 2); err != nil {
		return err
	}

	docs, err := openDocuments(ctx, app, fs.Arg(0))
	if err != nil {
		return err
	}
	defer docs.Board().Close()

	id := fs.Arg(1)
	path := *out
	if path == "" {
		path = id
		if d, ok := docs.Board().Get(id); ok && d.FileName != "" {
			path = filepath.Base(d.FileName)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := docs.Download(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Saved %s (%d bytes)\n", path, n)
	return nil
}

func docsWatch(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "docs watch <kb>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	docs, err := openDocuments(ctx, app, fs.Arg(0))
	if err != nil {
		return err
	}
	defer docs.Board().Close()

	if len(docs.Board().Processing()) == 0 {
		fmt.Fprintln(app.Out, "No documents are processing.")
		printDocuments(app, docs.Board().List())
		return nil
	}
	if err := follow(ctx, app, docs); err != nil {
		return err
	}
	printDocuments(app, docs.Board().List())
	return nil
}

// follow polls until no document is processing, printing each status change.
func follow(ctx context.Context, app *cli.App, docs *documents.Manager) error {
	poller := docs.Poller()
	poller.OnError = func(docID string, err error) {
		app.Notify.Warn("status of %s: %s", docID, client.Message(err))
	}

	watchCtx, cancel := context.WithCancel(ctx)
	changes := docs.Board().Subscribe(watchCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		last := map[string]string{}
		for ch := range changes {
			if ch.Removed {
				continue
			}
			line := statusLine(ch.Document)
			if last[ch.Document.ID] == line {
				continue
			}
			last[ch.Document.ID] = line
			fmt.Fprintf(app.Out, "  %s\n", line)
		}
	}()

	fmt.Fprintf(app.Out, "Watching %d document(s). Press Ctrl+C to stop.\n", len(docs.Board().Processing()))
	err := poller.RunUntilSettled(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(app.Out, "Stopped watching.")
		return nil
	}
	return err
}

func statusLine(d client.Document) string {
	name := d.FileName
	if name == "" {
		name = d.ID
	}
	text := statusText(d)
	switch d.Status {
	case client.StatusProcessed:
		text = color.GreenString(text)
	case client.StatusFailed:
		text = color.RedString(text)
	}
	return fmt.Sprintf("%s: %s", name, text)
}

func statusText(d client.Document) string {
	switch d.Status {
	case client.StatusProcessing:
		if d.Progress != nil {
			return fmt.Sprintf("processing %.0f%%", *d.Progress)
		}
		return "processing"
	case "":
		return "-"
	default:
		return d.Status
	}
}

// notifyLevelFor shows rejected file types as warnings and everything else
// as errors.
func notifyLevelFor(err error) notify.Level {
	if errors.Is(err, documents.ErrDisallowedExtension) {
		return notify.Warning
	}
	return notify.Error
}

func printDocuments(app *cli.App, docs []client.Document) {
	cli.Heading(app.Out, "Documents")
	if len(docs) == 0 {
		cli.Empty(app.Out, "documents")
		return
	}
	tw := cli.Table(app.Out, "ID", "FILE", "TYPE", "SIZE", "STATUS", "CREATED")
	for _, d := range docs {
		cli.Row(tw, d.ID, cli.Truncate(d.FileName, 40), d.FileType,
			fmt.Sprintf("%.2f MB", d.FileSizeInMB), statusText(d), cli.When(d.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
}
