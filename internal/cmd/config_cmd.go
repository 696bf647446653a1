package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ostrem/steward/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config [key] [value]",
	Short:   "Get or set configuration values",
	GroupID: groupSetup,
	Long: `Get or set steward configuration values.

Without arguments, lists all configuration keys.
With one argument, shows the value of that key.
With two arguments, sets the key to the value.

Configuration is stored in ~/.config/steward/config.yaml (XDG compliant).

Keys are in the format: section.key
Sections: server, console, audit, log

Examples:
  steward config                                  # List all keys
  steward config server.url                       # Get server.url value
  steward config server.url http://dir:17170      # Point at another directory
  steward config console.confirm_destructive false
  steward config audit.retention_days 30`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config, audit and log file locations",
	Run:   runConfigPath,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configFilePath resolves where the config lives: the --config flag when
// given, the XDG location otherwise.
func configFilePath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPaths().ConfigFile()
}

func runConfig(cmd *cobra.Command, args []string) error {
	configFile := configFilePath()
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch len(args) {
	case 0:
		return listConfig(cfg, configFile)
	case 1:
		return getConfig(cfg, args[0])
	case 2:
		return setConfig(cfg, configFile, args[0], args[1])
	}

	return nil
}

func listConfig(cfg *config.Config, configFile string) error {
	fmt.Printf("%sConfiguration Keys%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Println()

	for _, key := range config.ListKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}

		displayValue := value
		if displayValue == "" {
			displayValue = colorDim + "(not set)" + colorReset
		}

		fmt.Printf("  %s%s%s = %s\n", colorCyan, key, colorReset, displayValue)
	}

	fmt.Println()
	fmt.Printf("Config file: %s\n", configFile)

	return nil
}

func getConfig(cfg *config.Config, key string) error {
	value, err := cfg.Get(key)
	if err != nil {
		return err
	}

	if value == "" {
		fmt.Printf("%s(not set)%s\n", colorDim, colorReset)
	} else {
		fmt.Println(value)
	}

	return nil
}

func setConfig(cfg *config.Config, configFile, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.DefaultPaths().EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := cfg.SaveToFile(configFile); err != nil {
		return err
	}

	fmt.Printf("%s%s%s = %s\n", colorCyan, key, colorReset, value)
	fmt.Printf("Saved to: %s\n", configFile)

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	paths := config.DefaultPaths()
	configFile := configFilePath()

	auditPath := paths.AuditDBFile()
	logPath := paths.LogFile()
	if cfg, err := config.LoadFromFile(configFile); err == nil {
		auditPath = auditDBPath(cfg)
		if cfg.Log.File != "" {
			logPath = cfg.Log.File
		}
	}

	fmt.Printf("%sconfig%s  %s\n", colorCyan, colorReset, configFile)
	fmt.Printf("%saudit%s   %s\n", colorCyan, colorReset, auditPath)
	fmt.Printf("%slog%s     %s\n", colorCyan, colorReset, logPath)
}
