package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/audit"
	"github.com/ostrem/steward/internal/config"
	"github.com/ostrem/steward/internal/console"
	"github.com/ostrem/steward/internal/directory"
)

var consoleCmd = &cobra.Command{
	Use:     "console",
	Short:   "Open the interactive admin console",
	GroupID: groupCore,
	Long: `Open the full-screen admin console.

Tabs for users and groups, incremental search, and a group detail
screen for managing memberships. Mutations are recorded in the local
audit trail as they commit.

The console needs a real terminal and logs to the log file rather than
stderr while the alternate screen is active.

Examples:
  steward console
  steward --server http://directory.internal:17170 console
  STEWARD_LOG_LEVEL=debug steward console`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	if os.Getenv("TERM") == "dumb" {
		return fmt.Errorf("TERM=dumb is not supported")
	}
	if !stdoutIsTerminal() {
		return fmt.Errorf("the console needs a terminal; use 'steward users list' for scripted output")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = paths.LogFile()
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	// lipgloss detects its profile from stdout; NO_COLOR and --no-color
	// force plain rendering.
	if flagNoColor || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		recorder, err = audit.Open(auditDBPath(cfg), logger)
		if err != nil {
			// The console is still usable without the trail.
			logger.Warn("audit trail unavailable", "error", err)
			fmt.Fprintf(os.Stderr, "steward: audit trail unavailable: %v\n", err)
			recorder = nil
		} else {
			defer recorder.Close()
		}
	}

	client := directory.NewClient(directory.ClientConfig{
		BaseURL: cfg.Server.URL,
		Socket:  cfg.Server.Socket,
		Timeout: time.Duration(cfg.Server.TimeoutMs) * time.Millisecond,
		Audit:   recorder,
		Logger:  logger,
	})

	logger.Info("console starting",
		"version", Version,
		"server", cfg.Server.URL,
		"audit", recorder != nil,
	)

	if err := console.Run(client, logger, console.Options{
		ConfirmDestructive: cfg.Console.ConfirmDestructive,
		PageSize:           cfg.Console.PageSize,
	}); err != nil {
		return fmt.Errorf("console error: %w", err)
	}

	logger.Info("console exited")
	return nil
}
