package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homiewatch/internal/infrastructure/config"
)

// defaultConfigPath is used when neither --config nor HOMIEWATCH_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "homiewatch",
		Short: "Homie device discovery over MQTT",
		Long: `homiewatch subscribes to a Homie base topic, assembles the device, node and
property tree as messages arrive, and serves it over a REST and WebSocket API.

Running without a subcommand is the same as "homiewatch serve".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", getConfigPath(),
		"config file (env: HOMIEWATCH_CONFIG)")

	cmd.AddCommand(
		newServeCmd(opts),
		newTreeCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// getConfigPath returns the configuration file path.
// Uses HOMIEWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMIEWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the file named by --config. A missing default file falls
// back to built-in defaults; a missing file the user named is an error.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	_, err := os.Stat(o.configPath)
	if errors.Is(err, fs.ErrNotExist) && o.configPath == defaultConfigPath {
		cfg, err := config.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "homiewatch %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
