package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/config"
	"github.com/ostrem/steward/internal/directory"
)

// Help output groups.
const (
	groupCore  = "core"
	groupSetup = "setup"
)

// Persistent flags shared by every subcommand.
var (
	flagConfig  string
	flagServer  string
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "admin console for the directory service",
	Long: `steward - admin console for the directory service
  - browse and search users and groups
  - manage group memberships with a local audit trail`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagNoColor {
			colorMode = "never"
		}
		applyColorMode()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Directory service URL (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Core Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the configuration, honoring the --config and --server
// flags.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flagServer != "" {
		if err := cfg.Set("server.url", flagServer); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// newLogger builds the text logger non-TUI commands share.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newReadClient builds a directory client for one-shot read commands.
// Reads are not audited, so no recorder is attached.
func newReadClient(cfg *config.Config) *directory.Client {
	return directory.NewClient(directory.ClientConfig{
		BaseURL: cfg.Server.URL,
		Socket:  cfg.Server.Socket,
		Timeout: time.Duration(cfg.Server.TimeoutMs) * time.Millisecond,
		Logger:  newLogger(cfg, os.Stderr),
	})
}

// opContext bounds a one-shot command. Slightly longer than the client's
// own timeout so transport errors surface before the context expires.
func opContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := time.Duration(cfg.Server.TimeoutMs)*time.Millisecond + time.Second
	return context.WithTimeout(context.Background(), timeout)
}
