package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimvault/internal/model"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage claimvault configuration",
		Long: `Manage claimvault configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMVAULT_*, e.g. CLAIMVAULT_STORE_DATA_DIR)
3. Config file (~/.claimvault/config.yaml)
4. Defaults`,
	}

	configCmd.AddCommand(newConfigShowCmd(a), newConfigInitCmd(a))
	return configCmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the effective configuration after merging defaults, config file and environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if configFile := a.v.ConfigFileUsed(); configFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n", configFile)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n")
			}

			return a.print(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration file",
		Long:  `Create a default configuration file at ~/.claimvault/config.yaml (or the --config path).`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			configPath := a.cfgFile
			if configPath == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("error finding home directory: %w", err)
				}
				configPath = filepath.Join(home, ".claimvault", "config.yaml")
			}

			// Check if config already exists
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s\nUse 'claimvault config show' to view it, or delete it first to recreate", configPath)
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}

			f, err := os.Create(configPath)
			if err != nil {
				return fmt.Errorf("error creating config file: %w", err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("close config file: %w", closeErr)
				}
			}()

			// Helper for writing with error checking
			printf := func(format string, args ...any) {
				if err != nil {
					return
				}
				_, err = fmt.Fprintf(f, format, args...)
			}

			printf("# Claimvault Configuration File\n")
			printf("#\n")
			printf("# Configuration hierarchy (highest to lowest priority):\n")
			printf("#   1. CLI flags\n")
			printf("#   2. Environment variables (CLAIMVAULT_*)\n")
			printf("#   3. This config file\n")
			printf("#   4. Built-in defaults\n")
			printf("#\n")
			printf("# store.backend: badger or memory. An empty data_dir means ~/.claimvault/data.\n")
			printf("# ledger.source: clock (genesis_unix + close_interval) or static (sequence).\n")
			printf("# auth.mode: schnorr, static (with an allowed list) or allow-all.\n")
			printf("# metrics.listen_address: host:port for /metrics. Empty disables metrics.\n\n")
			if err != nil {
				return err
			}

			yamlData, err := yaml.Marshal(model.DefaultConfig())
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			if _, err := f.Write(yamlData); err != nil {
				return fmt.Errorf("error writing config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "\nTo view the configuration:\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  claimvault config show\n")

			return nil
		},
	}
}
