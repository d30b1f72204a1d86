// ABOUTME: Session commands: login, logout, register, whoami
// ABOUTME: Credentials are prompted for and the token is stored by the session manager

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/auth"
	"github.com/2389/kbchat/internal/cli"
)

func cmdLogin(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "login", app.ErrOut)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args, 0); err != nil {
		return err
	}

	app.Session.Enter(auth.PathLogin)

	prompt := cli.NewPrompter(app.ErrOut)
	var err error
	if *username == "" {
		if *username, err = prompt.Line("Username", ""); err != nil {
			return err
		}
	}
	password, err := prompt.Secret("Password")
	if err != nil {
		return err
	}

	user, err := app.Session.Login(ctx, *username, password)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(app.Out, "✓ Signed in as %s", user.Username)
	if user.IsAdmin() {
		fmt.Fprint(app.Out, " (admin)")
	}
	fmt.Fprintln(app.Out)
	return nil
}

func cmdLogout(ctx context.Context, app *cli.App) error {
	if err := app.Session.Logout(ctx); err != nil {
		return err
	}
	return nil
}

func cmdRegister(ctx context.Context, app *cli.App, args []string) error {
	fs := cli.NewCommand("kbchat", "register", app.ErrOut)
	if err := fs.Parse(args, 0); err != nil {
		return err
	}
	app.Session.Enter(auth.PathRegister)
	return app.Register(ctx, "")
}

func cmdWhoami(ctx context.Context, app *cli.App) error {
	if err := app.Require(ctx, auth.PathHome); err != nil {
		return err
	}
	user := app.Session.User()

	cli.Heading(app.Out, "Signed in")
	tw := cli.Table(app.Out, "ID", "USERNAME", "ROLE", "CREATED")
	cli.Row(tw, user.ID, user.Username, user.Role, cli.When(user.CreatedAt))
	tw.Flush()
	fmt.Fprintln(app.Out)
	return nil
}
