package main

import (
	"fmt"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(cfg *config.RuntimeConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
		Long: `The config file (TYPELESS_CONFIG, default ~/.typeless/config.json) is
overlaid by environment variables: TYPELESS_PORT, TYPELESS_TOKEN,
TYPELESS_STATE_DIR, TYPELESS_STORE, TYPELESS_HEADLESS, CDP_URL,
CHROME_BINARY and friends.`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if err := config.InitFile(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			config.Show(cmd.OutOrStdout(), cfg)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path())
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}
