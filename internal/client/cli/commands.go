package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/prompt"
)

type command func(a *App, ctx context.Context, args []string) error

var commands map[string]command

func init() {
	commands = map[string]command{
		"register":        (*App).register,
		"login":           (*App).login,
		"me":              (*App).me,
		"refresh":         (*App).refresh,
		"logout":          (*App).logout,
		"forgot-password": (*App).forgotPassword,
		"reset-password":  (*App).resetPassword,
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// text returns v or, when it is empty, asks for it.
func (a *App) text(v, label string) (string, error) {
	if v != "" {
		return v, nil
	}
	return prompt.GetSimpleText(a.reader, label, a.out)
}

func (a *App) signIn(ctx context.Context, out *api.AuthResponse) error {
	if err := a.session.SignIn(ctx, session.Credentials{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", out.User.Email, out.User.Role)
	return nil
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.onLoginView.Store(true)
	defer a.onLoginView.Store(false)

	var err error
	if *email, err = a.text(*email, "Enter email"); err != nil {
		return err
	}
	if *name, err = a.text(*name, "Enter name"); err != nil {
		return err
	}
	password, err := a.getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	out, err := a.api.Register(ctx, *name, *email, string(password))
	if err != nil {
		return err
	}
	return a.signIn(ctx, out)
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.onLoginView.Store(true)
	defer a.onLoginView.Store(false)

	var err error
	if *email, err = a.text(*email, "Enter email"); err != nil {
		return err
	}
	password, err := a.getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	out, err := a.api.Login(ctx, *email, string(password))
	if err != nil {
		return err
	}
	return a.signIn(ctx, out)
}

func (a *App) me(ctx context.Context, _ []string) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) || api.IsStatus(err, http.StatusUnauthorized) {
			return session.ErrSessionExpired
		}
		return err
	}
	fmt.Fprintf(a.out, "id:       %s\nemail:    %s\nname:     %s\nrole:     %s\nverified: %t\n",
		u.ID, u.Email, u.Name, u.Role, u.EmailVerified)
	return nil
}

func (a *App) refresh(ctx context.Context, _ []string) error {
	creds, err := a.session.Credentials(ctx)
	if err != nil {
		return err
	}
	if creds.RefreshToken == "" {
		return errors.New("not logged in")
	}
	tokens, err := a.api.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		_ = a.session.SignOut(ctx)
		return err
	}
	if err := a.session.SignIn(ctx, session.Credentials{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	fs := newFlagSet("logout")
	all := fs.Bool("all", false, "end every session of the account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	creds, err := a.session.Credentials(ctx)
	if err != nil {
		return err
	}
	if creds.AccessToken != "" {
		if err := a.api.Logout(ctx, creds.RefreshToken, *all); err != nil && !errors.Is(err, session.ErrSessionExpired) {
			fmt.Fprintf(a.out, "server logout failed: %v\n", err)
		}
	}
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) forgotPassword(ctx context.Context, args []string) error {
	fs := newFlagSet("forgot-password")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var err error
	if *email, err = a.text(*email, "Enter email"); err != nil {
		return err
	}
	if err := a.api.ForgotPassword(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If that email is registered, a reset link is on its way")
	return nil
}

func (a *App) resetPassword(ctx context.Context, args []string) error {
	fs := newFlagSet("reset-password")
	token := fs.String("token", "", "reset token from the email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var err error
	if *token, err = a.text(*token, "Enter reset token"); err != nil {
		return err
	}
	password, err := a.getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.ResetPassword(ctx, *token, string(password)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated. Log in with the new password")
	return nil
}
