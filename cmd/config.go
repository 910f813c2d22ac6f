package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vietdv277/gpuws/internal/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the gpuws config file",
		Long: `The config file holds the workspace names, address plan, ingress ports
and instance settings. Flags and GPUWS_* environment variables override it
key by key.

Examples:
  gpuws config init              # Write ~/.gpuws/config.yaml with the defaults
  gpuws config show              # Print the effective settings`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the default workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("failed to check config file: %w", err)
				}
			}

			ws := config.Default()
			ws.Profile = g.v.GetString("profile")
			if r := g.v.GetString("region"); r != "" {
				ws.Region = r
			}
			if err := config.SaveConfig(path, ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective workspace settings as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(cmd, nil)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(ws)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
