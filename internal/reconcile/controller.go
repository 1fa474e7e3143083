// Package reconcile brings one item's folder name in line with its metadata.
//
// Per item the controller checks the folder exists, decodes the current name,
// builds the candidate descriptor, compares the two and, when they differ,
// renames the folder and stores the new path on the remote record.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/javi11/metadatarr/internal/config"
	"github.com/javi11/metadatarr/internal/descriptor"
	apperrors "github.com/javi11/metadatarr/internal/errors"
	"github.com/javi11/metadatarr/internal/foldername"
	"github.com/javi11/metadatarr/internal/fsrename"
	"github.com/javi11/metadatarr/internal/library"
	"github.com/javi11/metadatarr/internal/pathutil"
	"github.com/javi11/metadatarr/internal/slogutil"
)

// Mode selects what the controller writes into the folder name.
type Mode int

const (
	// ModeApply adds or updates the edition block.
	ModeApply Mode = iota
	// ModeStrip removes the edition block.
	ModeStrip
)

func (m Mode) String() string {
	if m == ModeStrip {
		return "strip"
	}
	return "apply"
}

// Options tunes a controller.
type Options struct {
	Mode Mode
	// Thorough refreshes each item on the remote before building its descriptor.
	Thorough bool
	// DryRun computes renames without touching the filesystem or the remote.
	DryRun bool
}

// Controller reconciles items one at a time.
type Controller struct {
	svc        library.Service
	exec       *fsrename.Executor
	builder    *descriptor.Builder
	comparator *descriptor.Comparator
	cfg        config.ReconcileConfig
	opts       Options
}

// NewController creates a controller from a configuration snapshot.
func NewController(cfg *config.Config, svc library.Service, exec *fsrename.Executor, opts Options) *Controller {
	return &Controller{
		svc:        svc,
		exec:       exec,
		builder:    descriptor.NewBuilder(descriptor.OptionsFromConfig(cfg.Edition)),
		comparator: descriptor.NewComparator(cfg.Edition.Codec.Aliases),
		cfg:        cfg.Reconcile,
		opts:       opts,
	}
}

// Reconcile processes one item. It never returns an error; failures are
// reported through the result outcome.
func (c *Controller) Reconcile(ctx context.Context, item library.Item) Result {
	ctx = slogutil.With(ctx, "movie_id", item.ID, "title", item.Title)
	res := Result{ItemID: item.ID, Title: item.Title}

	if item.ID == 0 {
		res.Outcome = OutcomeError
		res.Err = fmt.Errorf("item has no id: %w", apperrors.ErrMissingMetadata)
		slog.ErrorContext(ctx, "Item is missing its id", "error", res.Err)
		return res
	}

	folder := item.Folder()
	current := pathutil.FolderPath(item.RootPath, folder)
	res.OldPath = current
	if current == "" {
		res.Outcome = OutcomeSkippedMissingFolder
		slog.WarnContext(ctx, "Item has no root path or folder name",
			"root_path", item.RootPath,
			"folder_name", item.FolderName)
		return res
	}

	exists, err := c.exec.Exists(current)
	if err != nil || !exists {
		res.Outcome = OutcomeSkippedMissingFolder
		res.Err = err
		slog.WarnContext(ctx, "Folder does not exist on disk", "path", current, "error", err)
		return res
	}

	parts := foldername.Decode(folder)

	target, outcome, ok := c.candidate(ctx, item, folder, parts)
	if !ok {
		res.Outcome = outcome
		return res
	}

	newPath := pathutil.Sibling(current, target)
	res.NewPath = newPath

	if c.opts.DryRun {
		return c.plan(ctx, res)
	}

	return c.apply(ctx, res)
}

// candidate returns the folder name the item should carry. When ok is false
// the item is finished with outcome.
func (c *Controller) candidate(ctx context.Context, item library.Item, folder string, parts foldername.Parts) (string, Outcome, bool) {
	if c.opts.Mode == ModeStrip {
		if !parts.HasBlock {
			slog.DebugContext(ctx, "Folder carries no edition block", "folder", folder)
			return "", OutcomeNoChange, false
		}
		return stripped(folder)
	}

	if c.opts.Thorough {
		item = c.refresh(ctx, item)
	}

	built := c.builder.Build(ctx, item)
	switch {
	case built.StripsBlock():
		if !parts.HasBlock {
			slog.DebugContext(ctx, "No descriptor to write and no block present", "status", built.Status.String())
			return "", OutcomeNoChange, false
		}
		slog.InfoContext(ctx, "No descriptor fields available, removing edition block", "status", built.Status.String())
		return stripped(folder)

	case !built.Usable():
		slog.WarnContext(ctx, "Descriptor incomplete, skipping",
			"missing", built.Missing,
			"error", apperrors.ErrIncomplete)
		return "", OutcomeSkippedIncomplete, false
	}

	if built.Status == descriptor.StatusPartial {
		slog.InfoContext(ctx, "Writing partial descriptor", "missing", built.Missing)
	}

	if parts.HasBlock && c.comparator.MatchesText(parts.Block, built.Descriptor) {
		slog.DebugContext(ctx, "Edition block already up to date", "block", parts.Block)
		return "", OutcomeNoChange, false
	}

	target := foldername.WithBlock(parts.Base, built.Descriptor.Text())
	if target == folder {
		return "", OutcomeNoChange, false
	}
	return target, 0, true
}

func stripped(folder string) (string, Outcome, bool) {
	target := foldername.Strip(folder)
	if target == folder {
		return "", OutcomeNoChange, false
	}
	return target, 0, true
}

// refresh returns a freshly fetched snapshot. The listed snapshot is kept when
// the refresh fails.
func (c *Controller) refresh(ctx context.Context, item library.Item) library.Item {
	fresh, err := c.svc.RefreshItem(ctx, item.ID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to refresh item, using listed metadata", "error", err)
		return item
	}
	return fresh
}

func (c *Controller) plan(ctx context.Context, res Result) Result {
	exists, err := c.exec.Exists(res.NewPath)
	if err == nil && exists {
		res.Outcome = OutcomeSkippedCollision
		slog.WarnContext(ctx, "Destination already exists, skipping", "from", res.OldPath, "to", res.NewPath)
		return res
	}

	res.Outcome = OutcomePlanned
	slog.InfoContext(ctx, "Would rename folder", "from", res.OldPath, "to", res.NewPath)
	return res
}

func (c *Controller) apply(ctx context.Context, res Result) Result {
	strategy, err := c.exec.Rename(ctx, res.OldPath, res.NewPath)
	renamed := true

	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrFallbackIncomplete):
		slog.WarnContext(ctx, "Folder copied but the old folder remains, clean it up manually",
			"from", res.OldPath,
			"to", res.NewPath,
			"error", err)
	case apperrors.Is(err, apperrors.ErrCollision):
		res.Outcome = OutcomeSkippedCollision
		res.Err = err
		slog.WarnContext(ctx, "Destination already exists, skipping", "from", res.OldPath, "to", res.NewPath)
		return res
	case apperrors.Is(err, apperrors.ErrMissingSource):
		res.Outcome = OutcomeSkippedMissingFolder
		res.Err = err
		slog.WarnContext(ctx, "Folder disappeared before rename", "path", res.OldPath)
		return res
	default:
		res.Err = err
		if !c.cfg.ForceUpdateOnRenameFailure {
			res.Outcome = OutcomeSkippedRenameFailed
			slog.ErrorContext(ctx, "Failed to rename folder", "from", res.OldPath, "to", res.NewPath, "error", err)
			return res
		}
		renamed = false
		res.Forced = true
		slog.WarnContext(ctx, "Rename failed, forcing remote update to the new path",
			"from", res.OldPath,
			"to", res.NewPath,
			"error", err)
	}

	if renamed {
		slog.InfoContext(ctx, "Renamed folder", "from", res.OldPath, "to", res.NewPath, "strategy", strategy.String())
	}

	if _, err := c.svc.UpdateItemPath(ctx, res.ItemID, res.NewPath); err != nil {
		res.Outcome = OutcomeError
		if renamed {
			res.Err = fmt.Errorf("%w: renamed %s to %s but the remote update failed: %v",
				apperrors.ErrUnreconciled, res.OldPath, res.NewPath, err)
			slog.ErrorContext(ctx, "Folder renamed but the remote record was not updated, manual fix required",
				"from", res.OldPath,
				"to", res.NewPath,
				"error", err)
		} else {
			res.Err = fmt.Errorf("forced remote update failed: %w", err)
			slog.ErrorContext(ctx, "Forced remote update failed", "error", err)
		}
		return res
	}

	c.sendCommands(ctx, res.ItemID)

	res.Outcome = OutcomeUpdated
	slog.InfoContext(ctx, "Updated item path", "path", res.NewPath, "forced", res.Forced)
	return res
}

// sendCommands queues the refresh and, when enabled, the downstream notify
// command. Failures are logged; the item still counts as updated.
func (c *Controller) sendCommands(ctx context.Context, id int64) {
	if err := c.svc.TriggerCommand(ctx, c.cfg.RefreshCommand, id); err != nil {
		slog.WarnContext(ctx, "Failed to trigger refresh", "command", c.cfg.RefreshCommand, "error", err)
	}

	if !c.cfg.NotifyDownstream {
		return
	}
	if err := c.svc.TriggerCommand(ctx, c.cfg.NotifyCommand, id); err != nil {
		slog.WarnContext(ctx, "Failed to notify downstream", "command", c.cfg.NotifyCommand, "error", err)
	}
}
