// Package cli implements the storefront reference client commands on top of
// the session manager: register, login, me, refresh, logout, forgot-password
// and reset-password.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/config"
	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/dmitrijs2005/storefront/internal/prompt"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	session *session.Manager
	api     *api.Client
	reader  *bufio.Reader
	out     io.Writer

	// getPassword is swapped in tests.
	getPassword func(io.Writer) ([]byte, error)
	onLoginView atomic.Bool
}

// NewApp opens the local credentials database and wires the session.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := metadata.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	app := newApp(c, session.NewMetadataStore(metadata.NewSQLiteRepository(db)), os.Stdin, os.Stdout)
	app.db = db
	return app, nil
}

func newApp(c *config.Config, store session.CredentialStore, in io.Reader, out io.Writer) *App {
	a := &App{
		config:      c,
		reader:      bufio.NewReader(in),
		out:         out,
		getPassword: prompt.GetPassword,
	}
	gate := session.NewRedirectGate(a.showLogin, a.onLoginView.Load)
	a.session = session.NewManager(c.ServerURL, store, gate, nil, c.RequestTimeout)
	a.api = api.New(c.ServerURL, &http.Client{Timeout: c.RequestTimeout}, a.session.HTTPClient())
	return a
}

// showLogin is the client's "redirect to the login view".
func (a *App) showLogin() {
	fmt.Fprintln(a.out, "Your session has ended. Log in again with: client login")
}

func (a *App) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Run executes the command named in args.
func (a *App) Run(ctx context.Context, args []string) error {
	name, rest := splitCommand(args)
	cmd, ok := commands[name]
	if !ok {
		a.usage()
		if name == "" {
			return nil
		}
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(a, ctx, rest)
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "usage: client [-a url] [-d db] [-i seconds] <command> [flags]")
	fmt.Fprintln(a.out, "commands: register, login, me, refresh, logout, forgot-password, reset-password")
}

// splitCommand returns the first known command in args and the arguments
// after it. Global flags come before the command.
func splitCommand(args []string) (string, []string) {
	for i, arg := range args {
		if _, ok := commands[arg]; ok {
			return arg, args[i+1:]
		}
	}
	return "", nil
}
