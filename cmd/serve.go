package cmd

import (
	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registration web API",
	Long: `Run the HTTP API the frontend submits repositories and organizations to.

Endpoints:
  GET  /health
  POST /api/users/{actorID}/repos          {"url", "group_name"}
  POST /api/users/{actorID}/orgs           {"url", "group_name"}
  GET  /api/users/{actorID}/groups
  POST /api/users/{actorID}/groups         {"name", "description"}
  GET  /api/users/{actorID}/groups/{name}/repos`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Address to listen on (default from config)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	return newWebServer(cmd, a).Start(cmd.Context())
}

func newWebServer(cmd *cobra.Command, a *app) *web.Server {
	cfg := web.Config{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}

	return web.New(a.ctrl, a.store, cfg, a.logger)
}
