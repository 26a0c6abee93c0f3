package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/application"
	"github.com/inovacc/repoload/internal/config"
)

var (
	appConfig *config.Config
	appLogger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Register repositories and organizations for collection",
	Long: `Repoload maintains the catalog of repositories a collection pipeline
works on. It validates repository and organization URLs, expands
organizations through the GitHub API, and records every repository with its
repo group.

Configuration is read from ~/.config/repoload/config.yaml (or --config),
a .env file in the working directory, and REPOLOAD_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command. An interrupt cancels the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/repoload/config.yaml)")
	rootCmd.PersistentFlags().String("token", "", "GitHub token (default: auto-detect)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if level != "" {
		if _, err := config.ParseLevel(level); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}

		cfg.Log.Level = level
	}

	appConfig = cfg
	appLogger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(appLogger)

	return nil
}
