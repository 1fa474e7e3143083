package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	var (
		thorough bool
		dryRun   bool
		reverse  bool
	)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Add or update the edition block of every movie folder once",
		Long: `Run one pass over the Radarr library. Each movie folder gets an
{edition-...} block built from the movie's metadata; folders already carrying
an equivalent block are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			cfg, opts := reconcilePass(a.cfg, thorough, dryRun, reverse)
			return a.runPass(cmd.Context(), cfg, opts)
		},
	}

	reconcileCmd.Flags().BoolVar(&thorough, "thorough", false, "refresh each movie in Radarr before building its block")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log planned renames without changing anything")
	reconcileCmd.Flags().BoolVar(&reverse, "reverse", false, "process movies in reverse order")

	rootCmd.AddCommand(reconcileCmd)
}
