package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgdbml/pgdbml/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate, and initialize pgdbml configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Source:\n")
		fmt.Printf("    Host:       %s\n", cfg.Source.Host)
		fmt.Printf("    Port:       %d\n", cfg.Source.Port)
		fmt.Printf("    Database:   %s\n", cfg.Source.Database)
		fmt.Printf("    Schema:     %s\n", cfg.Source.Schema)
		fmt.Printf("    Username:   %s\n", cfg.Source.Username)
		fmt.Printf("    Password:   %s\n", maskSecret(cfg.Source.Password))
		fmt.Printf("    Max Conns:  %d\n", cfg.Source.MaxConnections)
		fmt.Println()
		fmt.Printf("  Convert:\n")
		fmt.Printf("    Strict:             %v\n", cfg.Convert.Strict)
		fmt.Printf("    Backslash Escapes:  %v\n", cfg.Convert.BackslashEscapes)
		fmt.Printf("    Type Overrides:     %d\n", len(cfg.Convert.TypeOverrides))
		fmt.Println()
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level:      %s\n", cfg.Logging.Level)
		fmt.Printf("    Directory:  %s\n", cfg.Logging.Directory)

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		var errors []string
		if cfg.Source.Host != "" && cfg.Source.Database == "" {
			errors = append(errors, "source.database is required when source.host is set")
		}
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug", "info", "warn", "error":
		default:
			errors = append(errors, "logging.level must be one of debug, info, warn, error")
		}

		if len(errors) > 0 {
			fmt.Println("Validation errors:")
			for _, e := range errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("%d validation error(s)", len(errors))
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
