package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	var (
		dryRun  bool
		reverse bool
	)

	stripCmd := &cobra.Command{
		Use:   "strip",
		Short: "Remove the edition block from every movie folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			cfg, opts := stripPass(a.cfg, dryRun, reverse)
			return a.runPass(cmd.Context(), cfg, opts)
		},
	}

	stripCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log planned renames without changing anything")
	stripCmd.Flags().BoolVar(&reverse, "reverse", false, "process movies in reverse order")

	rootCmd.AddCommand(stripCmd)
}
