package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javi11/metadatarr/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configFile); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", configFile)
			}

			if err := config.SaveToFile(config.DefaultConfig(), configFile); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s; set radarr.api_key before running.\n", configFile)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var checkConnection bool
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !checkConnection {
				if _, err := config.LoadConfig(configFile); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", configFile)
				return nil
			}

			a, err := setupApp()
			if err != nil {
				return err
			}
			if err := a.svc.TestConnection(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid and Radarr is reachable at %s\n", configFile, a.cfg.Radarr.URL)
			return nil
		},
	}
	validateCmd.Flags().BoolVar(&checkConnection, "check-connection", false, "also connect to Radarr")

	configCmd.AddCommand(initCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}
