package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/inovacc/repoload/internal/application"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the repoload web API as a system service",
	Long: `Install, uninstall, start, stop, or check the status of the repoload web API
as a system service.

On Windows, this creates/manages a Windows Service.
On Linux/macOS, this creates/manages a systemd/launchd service.

The service manager runs "repoload service --run", which serves the API
until the service is stopped.`,
	Args: cobra.NoArgs,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.Flags().Bool("start", false, "Start the service")
	serviceCmd.Flags().Bool("stop", false, "Stop the service")
	serviceCmd.Flags().Bool("install", false, "Install the service")
	serviceCmd.Flags().Bool("uninstall", false, "Uninstall the service")
	serviceCmd.Flags().Bool("status", false, "Check the service status")
	serviceCmd.Flags().Bool("run", false, "Run the web API under the service manager")
	_ = serviceCmd.Flags().MarkHidden("run")
}

// program implements service.Interface
type program struct {
	cmd    *cobra.Command
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	a, err := openApp(p.cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	// Start should not block
	go func() {
		defer func() { _ = a.Close() }()

		p.done <- newWebServer(p.cmd, a).Start(ctx)
	}()

	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}

	p.cancel()

	return <-p.done
}

func serviceConfig(cmd *cobra.Command) (*service.Config, error) {
	args := []string{"service", "--run"}

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}

		args = append(args, "--config", abs)
	}

	return &service.Config{
		Name:        application.ServiceName,
		DisplayName: "Repoload Registration API",
		Description: "HTTP API registering repositories for collection",
		Arguments:   args,
	}, nil
}

// serviceAction returns the single operation flag that is set.
func serviceAction(cmd *cobra.Command) (string, error) {
	var action string

	for _, name := range []string{"install", "uninstall", "start", "stop", "status", "run"} {
		set, _ := cmd.Flags().GetBool(name)
		if !set {
			continue
		}

		if action != "" {
			return "", errors.New("please specify only one operation at a time")
		}

		action = name
	}

	if action == "" {
		return "", errors.New("please specify one of: --start, --stop, --install, --uninstall, --status")
	}

	return action, nil
}

func runService(cmd *cobra.Command, _ []string) error {
	action, err := serviceAction(cmd)
	if err != nil {
		return err
	}

	svcConfig, err := serviceConfig(cmd)
	if err != nil {
		return err
	}

	s, err := service.New(&program{cmd: cmd}, svcConfig)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	out := cmd.OutOrStdout()

	switch action {
	case "run":
		return s.Run()
	case "install":
		if err := s.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}

		_, _ = fmt.Fprintln(out, okStyle.Render("✓")+" Service installed successfully!")
		_, _ = fmt.Fprintln(out, "\nTo start the service, run:")
		_, _ = fmt.Fprintln(out, "  repoload service --start")
	case "uninstall":
		_ = s.Stop()

		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}

		_, _ = fmt.Fprintln(out, okStyle.Render("✓")+" Service uninstalled successfully!")
	case "start":
		if err := s.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		_, _ = fmt.Fprintln(out, okStyle.Render("✓")+" Service started successfully!")
	case "stop":
		if err := s.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}

		_, _ = fmt.Fprintln(out, okStyle.Render("✓")+" Service stopped successfully!")
	case "status":
		status, err := s.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}

		_, _ = fmt.Fprintf(out, "Service Status: %s\n", formatServiceStatus(status))
	}

	return nil
}

func formatServiceStatus(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return okStyle.Render("Running ✓")
	case service.StatusStopped:
		return "Stopped"
	case service.StatusUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("%v", status)
	}
}
