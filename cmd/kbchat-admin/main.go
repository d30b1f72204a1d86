// ABOUTME: Admin console for the knowledge-base chatbot platform
// ABOUTME: Manages users and long-lived API tokens, and switches the session to another user

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

	"github.com/2389/kbchat/internal/auth"
	"github.com/2389/kbchat/internal/cli"
)

const banner = `
 _    _          _           _                  _           _
| | _| |__   ___| |__   __ _| |_       __ _  __| |_ __ ___ (_)_ __
| |/ / '_ \ / __| '_ \ / _' | __|____ / _' |/ _' | '_ ' _ \| | '_ \
|   <| |_) | (__| | | | (_| | ||_____| (_| | (_| | | | | | | | | | |
|_|\_\_.__/ \___|_| |_|\__,_|\__|     \__,_|\__,_|_| |_| |_|_|_| |_|
`

const (
	prog       = "kbchat-admin"
	pathUsers  = "/admin/users"
	pathTokens = "/admin/tokens"
)

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
	case "users":
		err = cmdUsers(ctx, app, args)
	case "tokens":
		err = cmdTokens(ctx, app, args)
	case "switch-user":
		err = cmdSwitchUser(ctx, app, args)
	case "register":
		err = cmdRegister(ctx, app, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		return 1
	}

	return app.ExitCode(err)
}

func cmdUsers(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	if sub == "" {
		sub = "list"
	}
	switch sub {
	case "list", "ls":
		if err := app.Require(ctx, pathUsers); err != nil {
			return err
		}
		return printUsers(ctx, app)
	case "edit":
		return usersEdit(ctx, app, args)
	case "delete", "rm":
		return usersDelete(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, prog, "users", sub)
	}
}

func printUsers(ctx context.Context, app *cli.App) error {
	users, err := app.Client.ListUsers(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "Users")
	if len(users) == 0 {
		cli.Empty(app.Out, "users")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "USERNAME", "EMAIL", "ROLE", "ORGANIZATION", "CREATED")
	for _, u := range users {
		cli.Row(tw, cli.Truncate(u.ID, 12), u.Username, orDash(u.Email), u.Role, orDash(u.Organization), cli.When(u.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func usersEdit(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "users edit -org ORGANIZATION <user-id>", app.ErrOut)
	org := fs.String("org", "", "organization")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if !fs.Set("org") {
		return fs.Usagef("-org is required")
	}
	if err := app.Require(ctx, pathUsers); err != nil {
		return err
	}

	id := fs.Arg(0)
	if err := app.Client.UpdateUser(ctx, id, *org); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Updated user %s\n", id)
	return printUsers(ctx, app)
}

func usersDelete(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "users delete [-y] <user-id>", app.ErrOut)
	yes := fs.Bool("y", false, "skip confirmation")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathUsers); err != nil {
		return err
	}

	id := fs.Arg(0)
	if !*yes && !cli.NewPrompter(app.ErrOut).Confirm(fmt.Sprintf("Delete user %s?", id)) {
		fmt.Fprintln(app.Out, "Cancelled.")
		return nil
	}
	if err := app.Client.DeleteUser(ctx, id); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Deleted user %s\n", id)
	return printUsers(ctx, app)
}

func cmdTokens(ctx context.Context, app *cli.App, args []string) error {
	sub, args := cli.Split(args)
	if sub == "" {
		sub = "list"
	}
	switch sub {
	case "list", "ls":
		if err := app.Require(ctx, pathTokens); err != nil {
			return err
		}
		return printTokens(ctx, app)
	case "create":
		return tokensCreate(ctx, app, args)
	case "delete", "rm":
		return tokensDelete(ctx, app, args)
	default:
		return cli.Unknown(app.ErrOut, prog, "tokens", sub)
	}
}

func printTokens(ctx context.Context, app *cli.App) error {
	tokens, err := app.Client.ListTokens(ctx)
	if err != nil {
		return err
	}

	cli.Heading(app.Out, "API tokens")
	if len(tokens) == 0 {
		cli.Empty(app.Out, "tokens")
		return nil
	}
	tw := cli.Table(app.Out, "ID", "USERNAME", "ROLE", "TOKEN", "CREATED")
	for _, t := range tokens {
		cli.Row(tw, cli.Truncate(t.ID, 12), t.Username, t.Role, maskToken(t.Token), cli.When(t.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}

func tokensCreate(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "tokens create <username>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathTokens); err != nil {
		return err
	}

	tok, err := app.Client.CreateToken(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(app.Out)
	green.Fprintln(app.Out, "  ✓ Token created")
	fmt.Fprintln(app.Out)
	cyan.Fprintln(app.Out, "  ID:        "+tok.ID)
	cyan.Fprintln(app.Out, "  Username:  "+tok.Username)
	fmt.Fprintln(app.Out)
	fmt.Fprintln(app.Out, "  Token (keep this secret!):")
	fmt.Fprintln(app.Out)
	fmt.Fprintln(app.Out, "  "+tok.Token)
	fmt.Fprintln(app.Out)
	return nil
}

func tokensDelete(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "tokens delete [-y] <token-id>", app.ErrOut)
	yes := fs.Bool("y", false, "skip confirmation")
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathTokens); err != nil {
		return err
	}

	id := fs.Arg(0)
	if !*yes && !cli.NewPrompter(app.ErrOut).Confirm(fmt.Sprintf("Revoke token %s?", id)) {
		fmt.Fprintln(app.Out, "Cancelled.")
		return nil
	}
	if err := app.Client.DeleteToken(ctx, id); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(app.Out, "✓ Revoked token %s\n", id)
	return printTokens(ctx, app)
}

func cmdSwitchUser(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "switch-user <username>", app.ErrOut)
	if err := fs.Parse(args, 1); err != nil {
		return err
	}
	if err := app.Require(ctx, pathUsers); err != nil {
		return err
	}

	resp, err := app.Client.SwitchUser(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	user := resp.User
	if err := app.Session.ChangeUser(ctx, &user, resp.AccessToken, resp.Expires); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(app.Out, "✓ Now signed in as %s (%s)\n", user.Username, user.Role)
	fmt.Fprintln(app.Out, "  Run `kbchat logout` and sign in again to return to your own account.")
	return nil
}

func cmdRegister(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand(prog, "register -token ADMIN_ACCESS_TOKEN", app.ErrOut)
	token := fs.String("token", os.Getenv("KBCHAT_ADMIN_ACCESS_TOKEN"), "admin access token")
	if err := fs.Parse(args, 0); err != nil {
		return err
	}
	if *token == "" {
		return fs.Usagef("an admin access token is required")
	}
	app.Session.Enter(auth.PathAdminRegister)
	return app.Register(ctx, *token)
}

// maskToken shows only enough of a token to recognise it.
func maskToken(tok string) string {
	if len(tok) <= 8 {
		return "****"
	}
	return tok[:4] + "…" + tok[len(tok)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printUsage(w io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin console for users and API tokens. Requires an admin session (`kbchat login`).")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Users:")
	fmt.Fprintln(w, "  users list                          List users")
	fmt.Fprintln(w, "  users edit -org ORG <user-id>       Change a user's organization")
	fmt.Fprintln(w, "  users delete [-y] <user-id>         Delete a user")
	fmt.Fprintln(w, "  switch-user <username>              Continue the session as another user")
	fmt.Fprintln(w, "  register -token T                   Create an account with the admin access token")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Tokens:")
	fmt.Fprintln(w, "  tokens list                         List long-lived API tokens")
	fmt.Fprintln(w, "  tokens create <username>            Issue a token for a user")
	fmt.Fprintln(w, "  tokens delete [-y] <token-id>       Revoke a token")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  KBCHAT_CONFIG               Config file path")
	fmt.Fprintln(w, "  KBCHAT_API_URL              Backend base URL")
	fmt.Fprintln(w, "  KBCHAT_TOKEN                Session token for this process only")
	fmt.Fprintln(w, "  KBCHAT_ADMIN_ACCESS_TOKEN   Default for register -token")
}
