// Package arrs adapts a Radarr instance to the library.Service contract.
package arrs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/javi11/metadatarr/internal/config"
	apperrors "github.com/javi11/metadatarr/internal/errors"
	"github.com/javi11/metadatarr/internal/httpclient"
	"github.com/javi11/metadatarr/internal/library"
	"github.com/javi11/metadatarr/internal/retry"
)

// Service talks to Radarr. Every remote call runs under the retry policy.
type Service struct {
	client         *radarr.Radarr
	retry          retry.Policy
	refreshCommand string
	settleDelay    time.Duration

	// sleep waits for refreshes to settle; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a Radarr-backed library service from the configuration.
func NewService(cfg *config.Config) *Service {
	client := radarr.New(&starr.Config{
		URL:    cfg.Radarr.URL,
		APIKey: cfg.Radarr.APIKey,
		Client: httpclient.New(httpclient.WithTimeout(cfg.Radarr.Timeout)),
	})

	return &Service{
		client:         client,
		retry:          retry.FromConfig(cfg.Retry),
		refreshCommand: cfg.Reconcile.RefreshCommand,
		settleDelay:    cfg.Reconcile.RefreshSettleDelay,
		sleep:          sleepContext,
	}
}

// TestConnection checks that Radarr is reachable with the configured API key.
func (s *Service) TestConnection(ctx context.Context) error {
	status, err := s.client.GetSystemStatusContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Radarr: %w", err)
	}

	slog.DebugContext(ctx, "Connected to Radarr", "version", status.Version)
	return nil
}

// ListItems returns every movie in Radarr's listing order.
func (s *Service) ListItems(ctx context.Context) ([]library.Item, error) {
	movies, err := retry.DoValue(ctx, s.retry, "list movies", func() ([]*radarr.Movie, error) {
		movies, err := s.client.GetMovieContext(ctx, &radarr.GetMovie{})
		return movies, classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	roots := s.rootFolders(ctx)
	items := make([]library.Item, 0, len(movies))
	for _, movie := range movies {
		if movie == nil {
			continue
		}
		items = append(items, toItem(movie, roots))
	}

	slog.DebugContext(ctx, "Listed movies", "count", len(items))
	return items, nil
}

// GetItem fetches a single movie.
func (s *Service) GetItem(ctx context.Context, id int64) (library.Item, error) {
	movie, err := s.getMovie(ctx, id)
	if err != nil {
		return library.Item{}, err
	}
	return toItem(movie, s.rootFolders(ctx)), nil
}

// RefreshItem queues the refresh command for id, waits for Radarr to settle
// and re-fetches the movie.
func (s *Service) RefreshItem(ctx context.Context, id int64) (library.Item, error) {
	if err := s.TriggerCommand(ctx, s.refreshCommand, id); err != nil {
		return library.Item{}, err
	}

	if s.settleDelay > 0 {
		slog.DebugContext(ctx, "Waiting for refresh to settle", "delay", s.settleDelay)
		if err := s.sleep(ctx, s.settleDelay); err != nil {
			return library.Item{}, err
		}
	}

	return s.GetItem(ctx, id)
}

// UpdateItemPath stores newPath as the movie's folder and path. Radarr is told
// not to move files; the folder has already been renamed on disk.
func (s *Service) UpdateItemPath(ctx context.Context, id int64, newPath string) (library.Item, error) {
	current, err := s.getMovie(ctx, id)
	if err != nil {
		return library.Item{}, err
	}

	// The PUT body is a copy so current keeps the old path for the log line
	// and the error below.
	payload := &radarr.Movie{}
	if err := copier.Copy(payload, current); err != nil {
		return library.Item{}, fmt.Errorf("failed to copy movie %d: %w", id, err)
	}
	payload.FolderName = newPath
	payload.Path = newPath

	updated, err := retry.DoValue(ctx, s.retry, "update movie", func() (*radarr.Movie, error) {
		movie, err := s.client.UpdateMovieContext(ctx, id, payload, false)
		return movie, classify(err)
	})
	if err != nil {
		return library.Item{}, fmt.Errorf("failed to update movie %d from %s: %w", id, current.Path, err)
	}

	slog.DebugContext(ctx, "Updated movie path",
		"item_id", id,
		"old_path", current.Path,
		"new_path", newPath)

	if updated == nil {
		updated = payload
	}
	return toItem(updated, s.rootFolders(ctx)), nil
}

// TriggerCommand queues a Radarr command for one movie.
func (s *Service) TriggerCommand(ctx context.Context, name string, id int64) error {
	err := s.retry.Do(ctx, "command "+name, func() error {
		_, err := s.client.SendCommandContext(ctx, &radarr.CommandRequest{
			Name:     name,
			MovieIDs: []int64{id},
		})
		return classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to send %s for movie %d: %w", name, id, err)
	}

	slog.DebugContext(ctx, "Queued Radarr command", "command", name, "item_id", id)
	return nil
}

func (s *Service) getMovie(ctx context.Context, id int64) (*radarr.Movie, error) {
	movie, err := retry.DoValue(ctx, s.retry, "get movie", func() (*radarr.Movie, error) {
		movie, err := s.client.GetMovieByIDContext(ctx, id)
		return movie, classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}
	if movie == nil {
		return nil, fmt.Errorf("movie %d: %w", id, apperrors.ErrMissingMetadata)
	}
	return movie, nil
}

// rootFolders returns Radarr's configured root folder paths. A failure is
// logged and yields no roots, so items fall back to their parent directory.
func (s *Service) rootFolders(ctx context.Context) []string {
	folders, err := retry.DoValue(ctx, s.retry, "list root folders", func() ([]*radarr.RootFolder, error) {
		folders, err := s.client.GetRootFoldersContext(ctx)
		return folders, classify(err)
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to get Radarr root folders, using parent directories", "error", err)
		return nil
	}

	roots := make([]string, 0, len(folders))
	for _, folder := range folders {
		if folder == nil || folder.Path == "" {
			continue
		}
		roots = append(roots, folder.Path)
	}
	return roots
}

// rootFor picks the longest root that contains path. Without a match the
// parent directory of path is used.
func rootFor(path string, roots []string) string {
	if path == "" {
		return ""
	}

	clean := strings.TrimRight(path, "/")
	best := ""
	for _, root := range roots {
		r := strings.TrimRight(root, "/")
		if r == "" {
			continue
		}
		if (clean == r || strings.HasPrefix(clean, r+"/")) && len(r) > len(best) {
			best = r
		}
	}
	if best != "" {
		return best
	}
	return filepath.Dir(clean)
}

// classify marks client errors as non-retryable. Timeouts, throttling and
// server errors stay retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var reqErr *starr.ReqError
	if errors.As(err, &reqErr) {
		code := reqErr.Code
		if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
			return apperrors.WrapNonRetryable(err)
		}
	}
	return err
}

// toItem maps a Radarr movie onto the library snapshot.
func toItem(movie *radarr.Movie, roots []string) library.Item {
	item := library.Item{
		ID:         movie.ID,
		Title:      movie.Title,
		RootPath:   rootFor(movie.Path, roots),
		FolderName: movie.FolderName,
		Path:       movie.Path,
	}

	if len(movie.Ratings) > 0 {
		item.Ratings = make(map[string]float64, len(movie.Ratings))
		for source, rating := range movie.Ratings {
			item.Ratings[source] = rating.Value
		}
	}

	file := movie.MovieFile
	if file == nil {
		return item
	}

	if file.Quality != nil && file.Quality.Quality != nil {
		item.Quality = file.Quality.Quality.Name
	}
	if file.MediaInfo != nil {
		item.Codec = file.MediaInfo.VideoCodec
	}
	for _, lang := range file.Languages {
		if lang != nil && lang.Name != "" {
			item.Language = lang.Name
			break
		}
	}

	item.ReleaseName = file.SceneName
	if item.ReleaseName == "" {
		item.ReleaseName = file.RelativePath
	}

	return item
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

var _ library.Service = (*Service)(nil)
