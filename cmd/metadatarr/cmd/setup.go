package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/javi11/metadatarr/internal/arrs"
	"github.com/javi11/metadatarr/internal/config"
	"github.com/javi11/metadatarr/internal/pathutil"
	"github.com/javi11/metadatarr/internal/reconcile"
	"github.com/javi11/metadatarr/internal/runner"
	"github.com/javi11/metadatarr/internal/slogutil"
)

// app holds the services shared by the run commands.
type app struct {
	cfg     *config.Config
	leveler *slogutil.DynamicLeveler
	svc     *arrs.Service
	runner  *runner.Runner
}

// setupApp loads the configuration, installs the logger and wires the Radarr
// service and the runner.
func setupApp() (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return nil, err
	}

	if err := pathutil.CheckFileDirectoryWritable(cfg.Log.File, "log"); err != nil {
		return nil, err
	}

	logger, leveler := slogutil.SetupLogRotation(cfg.Log)
	slog.SetDefault(logger)

	logger.Debug("Logging configured",
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level,
		"max_size_mb", cfg.Log.MaxSize,
		"max_age_days", cfg.Log.MaxAge,
		"max_backups", cfg.Log.MaxBackups,
		"compress", cfg.Log.Compress)

	svc := arrs.NewService(cfg)

	return &app{
		cfg:     cfg,
		leveler: leveler,
		svc:     svc,
		runner:  runner.New(svc, afero.NewOsFs()),
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// acquireLock takes the run lock so two processes never rename folders of the
// same library at once. The returned func releases it.
func (a *app) acquireLock() (func(), error) {
	return acquireLock(a.cfg.Run.LockFile)
}

// acquireLock locks path without blocking. An empty path disables locking.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another metadatarr run holds %s", path)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "lock", path, "err", err)
		}
	}, nil
}

// reconcilePass derives the pass config and options of the reconcile command.
// base is never modified.
func reconcilePass(base *config.Config, thorough, dryRun, reverse bool) (*config.Config, reconcile.Options) {
	cfg := base.DeepCopy()
	cfg.Run.Reverse = cfg.Run.Reverse || reverse

	return cfg, reconcile.Options{
		Mode:     reconcile.ModeApply,
		Thorough: thorough,
		DryRun:   dryRun,
	}
}

// stripPass derives the pass config and options of the strip command. Strip
// passes never refresh, so the run mode is forced to fast.
func stripPass(base *config.Config, dryRun, reverse bool) (*config.Config, reconcile.Options) {
	cfg := base.DeepCopy()
	cfg.Run.Reverse = cfg.Run.Reverse || reverse
	cfg.Run.Mode = config.ModeFast

	return cfg, reconcile.Options{
		Mode:   reconcile.ModeStrip,
		DryRun: dryRun,
	}
}

// runPass runs a single pass and turns item errors into a non-zero exit.
func (a *app) runPass(ctx context.Context, cfg *config.Config, opts reconcile.Options) error {
	release, err := a.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signalContext(ctx)
	defer cancel()

	stats, err := a.runner.RunOnce(ctx, cfg, opts)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, stats)

	if stats.Errored > 0 {
		return fmt.Errorf("%d of %d items failed, see the log for details", stats.Errored, stats.Processed)
	}
	return nil
}
