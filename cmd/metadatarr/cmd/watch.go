package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/javi11/metadatarr/internal/config"
	"github.com/javi11/metadatarr/internal/reconcile"
	"github.com/javi11/metadatarr/internal/slogutil"
)

func init() {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile the library continuously on the configured schedule",
		Long: `Run reconcile passes forever, either on run.schedule (a cron expression)
or every run.interval. The config file is watched; changes apply from the next
pass. SIGINT or SIGTERM stops the loop once the current pass has finished.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			release, err := a.acquireLock()
			if err != nil {
				return err
			}
			defer release()

			configManager := config.NewManager(a.cfg, configFile)
			configManager.OnConfigChange(func(oldConfig, newConfig *config.Config) {
				slog.Info("Configuration reloaded, applies from the next pass")

				if oldConfig.Log.Level != newConfig.Log.Level {
					a.leveler.SetLevel(slogutil.ParseLevel(newConfig.Log.Level))
					slog.Info("Log level changed", "old", oldConfig.Log.Level, "new", newConfig.Log.Level)
				}

				if oldConfig.Radarr != newConfig.Radarr || oldConfig.Retry != newConfig.Retry {
					slog.Warn("Radarr connection settings changed (restart required)")
				}
			})
			configManager.Watch(func(err error) {
				slog.Error("Failed to reload configuration, keeping the current one", "err", err)
			})

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			slog.InfoContext(ctx, "Starting continuous mode",
				"schedule", a.cfg.Run.Schedule,
				"interval", a.cfg.Run.Interval,
				"mode", a.cfg.Run.Mode)

			return a.runner.RunContinuous(ctx, configManager.GetConfigGetter(), reconcile.Options{
				Mode: reconcile.ModeApply,
			})
		},
	}

	rootCmd.AddCommand(watchCmd)
}
