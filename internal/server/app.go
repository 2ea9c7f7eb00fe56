// Package server wires the identity service together: it opens the
// configured store, builds the services and runs the HTTP and gRPC
// endpoints until the process is signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/notifier"
	"github.com/dmitrijs2005/storefront/internal/server/oauth"
	"github.com/dmitrijs2005/storefront/internal/server/ratelimit"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/rest"
	"github.com/dmitrijs2005/storefront/internal/server/services"

	gs "github.com/dmitrijs2005/storefront/internal/server/grpc"
)

const (
	shutdownTimeout = 10 * time.Second

	// oauthCookieKeyLabel separates the OAuth state cookie key from the JWT
	// signing secret it is derived from.
	oauthCookieKeyLabel = "storefront oauth state cookie"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	manager  repomanager.RepositoryManager
	counter  *ratelimit.RedisCounter
	users    *services.UserService
	verifier *services.SessionVerifier
	handler  http.Handler
}

// NewApp validates c and connects every backing service. It fails with
// common.ErrMissingSecret when no signing secret is configured.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	issuer, err := auth.NewIssuer(c.SecretKey, c.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	m, err := repomanager.Open(ctx, repomanager.Options{
		Backend:       c.StoreBackend,
		DatabaseDSN:   c.DatabaseDSN,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, manager: m}

	n, err := app.newNotifier(ctx)
	if err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if c.RedisAddr != "" {
		app.counter, err = ratelimit.NewRedisCounter(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			_ = m.Close(ctx)
			return nil, err
		}
		limiter = ratelimit.NewLimiter(app.counter, c.AuthRateLimit, time.Minute)
	}

	var provider services.OAuthProvider
	if c.OAuthEnabled() {
		provider = oauth.NewGoogleProvider(oauth.GoogleOptions{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  c.OAuthCallbackURL,
		})
	}

	cookieKey, err := cryptox.DeriveKey(c.SecretKey, oauthCookieKeyLabel)
	if err != nil {
		_ = m.Close(ctx)
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}

	app.users = services.NewUserService(m, cryptox.NewBcryptHasher(), issuer, logger)
	app.verifier = services.NewSessionVerifier(issuer, m.Users())

	app.handler = rest.NewServer(rest.Options{
		Users:          app.users,
		Verifier:       app.verifier,
		OAuth:          services.NewOAuthService(m, app.users.Credentials(), issuer, logger),
		OAuthProvider:  provider,
		Reset:          services.NewPasswordResetService(m, app.users.Credentials(), n, c.ResetTokenValidityDuration, c.FrontendURL, logger),
		Limiter:        limiter,
		Logger:         logger,
		CookieSecret:   cookieKey,
		SecureCookies:  !c.Development(),
		FrontendURL:    c.FrontendURL,
		AllowedOrigins: c.AllowedOrigins,

		TrustProxyHeaders: c.TrustProxyHeaders,
	}).Router()

	return app, nil
}

func (app *App) newNotifier(ctx context.Context) (notifier.Notifier, error) {
	if app.config.OutboxBucket == "" {
		return notifier.NewLogNotifier(app.logger, app.config.Development()), nil
	}
	o, err := notifier.NewS3Outbox(ctx, notifier.S3Options{
		Bucket:       app.config.OutboxBucket,
		Region:       app.config.S3Region,
		BaseEndpoint: app.config.S3BaseEndpoint,
		AccessKey:    app.config.S3RootUser,
		SecretKey:    app.config.S3RootPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox init error: %w", err)
	}
	return o, nil
}

// Users exposes the account service for operator tooling.
func (app *App) Users() *services.UserService { return app.users }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.verifier, app.users)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process receives a termination
// signal, then closes the store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.StoreBackend, "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.Close(context.Background())
}

// Close releases the store and rate limiter connections.
func (app *App) Close(ctx context.Context) {
	if app.counter != nil {
		if err := app.counter.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}
	if err := app.manager.Close(ctx); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}
}
