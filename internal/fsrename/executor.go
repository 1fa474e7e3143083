// Package fsrename performs collision-checked directory renames.
//
// A rename is first attempted directly. When that fails (typically a
// cross-device rename) the tree is copied to the destination and the source is
// removed. The fallback is not atomic: a crash while it runs can leave content
// at both paths or a partial copy at the destination. Every use of the fallback
// is logged at warn level so operators can spot it.
package fsrename

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	apperrors "github.com/javi11/metadatarr/internal/errors"
)

// Strategy reports how a rename was carried out.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyDirect
	StrategyFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Executor renames directories on an afero filesystem.
type Executor struct {
	fs afero.Fs
}

// NewExecutor creates an executor on fs.
func NewExecutor(fs afero.Fs) *Executor {
	return &Executor{fs: fs}
}

// Exists reports whether path exists.
func (e *Executor) Exists(path string) (bool, error) {
	return afero.Exists(e.fs, path)
}

// Rename moves oldPath to newPath. It never overwrites: an existing
// destination yields ErrCollision and a missing source ErrMissingSource, both
// without touching the filesystem. When both strategies fail the error wraps
// ErrRenameFailed. ErrFallbackIncomplete is returned together with
// StrategyFallback when the destination is complete but the source could not
// be removed.
func (e *Executor) Rename(ctx context.Context, oldPath, newPath string) (Strategy, error) {
	exists, err := e.Exists(oldPath)
	if err != nil {
		return StrategyNone, fmt.Errorf("failed to stat %s: %w", oldPath, err)
	}
	if !exists {
		return StrategyNone, fmt.Errorf("%s: %w", oldPath, apperrors.ErrMissingSource)
	}

	exists, err = e.Exists(newPath)
	if err != nil {
		return StrategyNone, fmt.Errorf("failed to stat %s: %w", newPath, err)
	}
	if exists {
		return StrategyNone, fmt.Errorf("%s: %w", newPath, apperrors.ErrCollision)
	}

	renameErr := e.fs.Rename(oldPath, newPath)
	if renameErr == nil {
		slog.DebugContext(ctx, "Renamed directory", "from", oldPath, "to", newPath)
		return StrategyDirect, nil
	}

	slog.WarnContext(ctx, "Direct rename failed, falling back to non-atomic copy and remove",
		"from", oldPath,
		"to", newPath,
		"error", renameErr)

	if err := e.copyTree(oldPath, newPath); err != nil {
		if cleanupErr := e.fs.RemoveAll(newPath); cleanupErr != nil {
			slog.ErrorContext(ctx, "Failed to remove partial copy", "path", newPath, "error", cleanupErr)
		}
		return StrategyNone, fmt.Errorf("%w: rename: %v; fallback copy: %v", apperrors.ErrRenameFailed, renameErr, err)
	}

	if err := e.fs.RemoveAll(oldPath); err != nil {
		slog.ErrorContext(ctx, "Fallback move copied the directory but could not remove the source",
			"from", oldPath,
			"to", newPath,
			"error", err)
		return StrategyFallback, fmt.Errorf("%w: %s and %s: %v", apperrors.ErrFallbackIncomplete, oldPath, newPath, err)
	}

	slog.DebugContext(ctx, "Fallback: moved directory", "from", oldPath, "to", newPath)
	return StrategyFallback, nil
}

// copyTree copies src to dst, which must not exist.
func (e *Executor) copyTree(src, dst string) error {
	return afero.Walk(e.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return e.fs.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			return e.copySymlink(path, target)
		case info.Mode().IsRegular():
			return e.copyFile(path, target, info.Mode().Perm())
		default:
			return fmt.Errorf("cannot copy %s: unsupported file type %s", path, info.Mode().Type())
		}
	})
}

func (e *Executor) copyFile(src, dst string, perm os.FileMode) error {
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := e.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (e *Executor) copySymlink(src, dst string) error {
	reader, ok := e.fs.(afero.LinkReader)
	if !ok {
		return fmt.Errorf("cannot copy symlink %s: filesystem does not support links", src)
	}
	linker, ok := e.fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("cannot copy symlink %s: filesystem does not support links", src)
	}

	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(target, dst)
}
