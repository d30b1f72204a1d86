// ABOUTME: Interactive account registration shared by the user and admin binaries
// ABOUTME: The admin form additionally sends the admin access token

package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/notify"
)

// Register prompts for a new account and submits it. adminToken is empty
// for self-service registration.
func (a *App) Register(ctx context.Context, adminToken string) error {
	prompt := NewPrompter(a.ErrOut)

	var req client.RegisterRequest
	var err error
	if req.Username, err = prompt.Line("Username", ""); err != nil {
		return err
	}
	if req.Email, err = prompt.Line("Email", ""); err != nil {
		return err
	}
	if req.Password, err = prompt.Secret("Password"); err != nil {
		return err
	}
	if req.RetypePassword, err = prompt.Secret("Retype password"); err != nil {
		return err
	}
	req.AdminAccessToken = adminToken

	res, err := a.Session.Register(ctx, req)
	if err != nil {
		return err
	}
	if !res.Success {
		a.Notify.Notify(notify.Error, res.Detail)
		return ErrReported
	}

	color.New(color.FgGreen).Fprintf(a.Out, "✓ Registered %s\n", res.Username)
	if res.Detail != "" {
		fmt.Fprintf(a.Out, "  %s\n", res.Detail)
	}
	fmt.Fprintln(a.Out, "  Run `kbchat login` to sign in.")
	return nil
}
