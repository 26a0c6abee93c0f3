package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/config"
	"github.com/inovacc/repoload/internal/core"
	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/store"
)

// app bundles what a command needs to register repositories.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	ctrl   *core.Controller
}

// newFetcher builds the listing client. Tests replace it.
var newFetcher = func(ctx context.Context, token string, cfg *config.Config) (resolver.PageFetcher, error) {
	client, err := resolver.NewGitHubClient(ctx, token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, err
	}

	return resolver.NewGitHubFetcher(client, cfg.GitHub.PerPage), nil
}

// openApp opens the catalog and wires the controller for cmd.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg := appConfig
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}

	logger := appLogger

	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	flagToken, _ := cmd.Flags().GetString("token")

	token, source, err := config.ResolveToken(flagToken, cfg)
	switch {
	case errors.Is(err, config.ErrNoToken):
		logger.Warn("no GitHub token found, API requests are unauthenticated")
	case err != nil:
		_ = s.Close()
		return nil, err
	default:
		logger.Debug("token resolved", slog.String("source", string(source)))
	}

	fetcher, err := newFetcher(cmd.Context(), token, cfg)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating GitHub client: %w", err)
	}

	r := resolver.New(fetcher, resolver.Options{
		Policy: cfg.Policy(),
		Logger: logger,
		Host:   cfg.GitHub.Host,
	})

	ctrl := core.New(s, r, core.Options{
		Logger:      logger,
		Host:        cfg.GitHub.Host,
		VerifyRepos: cfg.GitHub.VerifyRepos,
	})

	return &app{cfg: cfg, logger: logger, store: s, ctrl: ctrl}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
