package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/adminctl"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/config"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.SecretKey, cfg.AccessTokenValidityDuration)
	if err != nil {
		return err
	}

	m, err := repomanager.Open(ctx, repomanager.Options{
		Backend:       cfg.StoreBackend,
		DatabaseDSN:   cfg.DatabaseDSN,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	if err := m.RunMigrations(ctx); err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	users := services.NewUserService(m, cryptox.NewBcryptHasher(), issuer, logger)

	return adminctl.NewRunner(users, os.Stdin, os.Stdout).Run(ctx, os.Args[1:])
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}
