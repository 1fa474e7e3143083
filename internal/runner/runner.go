// Package runner drives reconciliation passes over the whole library.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"github.com/javi11/metadatarr/internal/config"
	"github.com/javi11/metadatarr/internal/fsrename"
	"github.com/javi11/metadatarr/internal/library"
	"github.com/javi11/metadatarr/internal/reconcile"
	"github.com/javi11/metadatarr/internal/slogutil"
)

// Runner runs passes sequentially against one library service.
type Runner struct {
	svc  library.Service
	exec *fsrename.Executor

	// sleep and after are replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	after func(d time.Duration) <-chan time.Time
	now   func() time.Time
}

// New creates a runner renaming folders on fs.
func New(svc library.Service, fs afero.Fs) *Runner {
	return &Runner{
		svc:   svc,
		exec:  fsrename.NewExecutor(fs),
		sleep: sleepContext,
		after: time.After,
		now:   time.Now,
	}
}

// RunOnce lists every item and reconciles them in order. Only a listing
// failure aborts the pass. Cancelling ctx stops the pass before the next item;
// the item in flight always finishes, so a folder renamed on disk is also
// recorded remotely.
func (r *Runner) RunOnce(ctx context.Context, cfg *config.Config, opts reconcile.Options) (reconcile.Stats, error) {
	var stats reconcile.Stats

	runID := uuid.NewString()
	ctx = slogutil.With(ctx, "run_id", runID)

	opts.Thorough = opts.Thorough || cfg.Run.Mode == config.ModeThorough
	delay := cfg.Run.FastDelay
	if opts.Thorough {
		delay = cfg.Run.ThoroughDelay
	}

	slog.InfoContext(ctx, "Starting pass",
		"mode", opts.Mode.String(),
		"thorough", opts.Thorough,
		"dry_run", opts.DryRun,
		"reverse", cfg.Run.Reverse)

	items, err := r.svc.ListItems(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list items, aborting pass", "error", err)
		return stats, fmt.Errorf("failed to list items: %w", err)
	}

	if cfg.Run.Reverse {
		slices.Reverse(items)
	}

	ctrl := reconcile.NewController(cfg, r.svc, r.exec, opts)
	start := r.now()

	for i, item := range items {
		if i > 0 && delay > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				slog.WarnContext(ctx, "Pass interrupted", "remaining", len(items)-i, "stats", stats)
				return stats, err
			}
		}

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "Pass interrupted", "remaining", len(items)-i, "stats", stats)
			return stats, err
		}

		res := ctrl.Reconcile(context.WithoutCancel(ctx), item)
		stats.Add(res)
	}

	slog.InfoContext(ctx, "Pass complete",
		"duration", r.now().Sub(start).Round(time.Millisecond),
		"stats", stats)

	return stats, nil
}

// RunContinuous repeats passes on the configured schedule until ctx is
// cancelled. The configuration is read at the start of every pass, and a pass
// in flight always runs to completion.
func (r *Runner) RunContinuous(ctx context.Context, getter config.ConfigGetter, opts reconcile.Options) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		cfg := getter()
		schedule, err := Schedule(cfg.Run)
		if err != nil {
			return err
		}

		if _, err := r.RunOnce(context.WithoutCancel(ctx), cfg, opts); err != nil {
			slog.ErrorContext(ctx, "Pass failed", "error", err)
		}

		next := schedule.Next(r.now())
		slog.InfoContext(ctx, "Next pass scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Continuous mode stopped")
			return nil
		case <-r.after(next.Sub(r.now())):
		}
	}
}

// Schedule returns the pass schedule: the cron expression when set, the fixed
// interval otherwise.
func Schedule(cfg config.RunConfig) (cron.Schedule, error) {
	if cfg.Schedule != "" {
		schedule, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid run.schedule %q: %w", cfg.Schedule, err)
		}
		return schedule, nil
	}

	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("run.interval must be greater than 0")
	}
	return cron.Every(cfg.Interval), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
