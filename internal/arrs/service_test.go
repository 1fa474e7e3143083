package arrs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/metadatarr/internal/config"
	apperrors "github.com/javi11/metadatarr/internal/errors"
)

// fakeRadarr serves the subset of the Radarr v3 API the service uses.
type fakeRadarr struct {
	mu       sync.Mutex
	movies   map[int64]map[string]any
	order    []int64
	puts     []map[string]any
	commands []map[string]any
	roots    []string
	rootFail bool
	putFail  bool
	listFail int // number of list requests to fail with 500
	gets     int
}

func newFakeRadarr() *fakeRadarr {
	return &fakeRadarr{
		movies: make(map[int64]map[string]any),
		roots:  []string{"/movies"},
	}
}

func (f *fakeRadarr) add(movie map[string]any) {
	id := int64(movie["id"].(int))
	f.movies[id] = movie
	f.order = append(f.order, id)
}

func (f *fakeRadarr) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v3/system/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"version": "5.14.0"})
	})

	mux.HandleFunc("GET /api/v3/rootfolder", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rootFail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		list := make([]map[string]any, 0, len(f.roots))
		for i, root := range f.roots {
			list = append(list, map[string]any{"id": i + 1, "path": root, "accessible": true})
		}
		writeJSON(w, list)
	})

	mux.HandleFunc("GET /api/v3/movie", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.listFail > 0 {
			f.listFail--
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		list := make([]map[string]any, 0, len(f.order))
		for _, id := range f.order {
			list = append(list, f.movies[id])
		}
		writeJSON(w, list)
	})

	mux.HandleFunc("GET /api/v3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.gets++
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		movie, ok := f.movies[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, movie)
	})

	mux.HandleFunc("PUT /api/v3/movie/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.putFail {
			http.Error(w, "validation failed", http.StatusBadRequest)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "false", r.URL.Query().Get("moveFiles"))
		f.puts = append(f.puts, body)
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		f.movies[id] = body
		writeJSON(w, body)
	})

	mux.HandleFunc("POST /api/v3/command", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.commands = append(f.commands, body)
		writeJSON(w, map[string]any{"id": len(f.commands), "name": body["name"], "status": "queued"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testMovie() map[string]any {
	return map[string]any{
		"id":         1,
		"title":      "Film",
		"path":       "/movies/Film (2020)",
		"folderName": "Film (2020)",
		"hasFile":    true,
		"ratings": map[string]any{
			"imdb": map[string]any{"votes": 1200, "value": 7.1, "type": "user"},
			"tmdb": map[string]any{"votes": 800, "value": 7.55, "type": "user"},
		},
		"movieFile": map[string]any{
			"id":           10,
			"relativePath": "Film.2020.1080p.BluRay.x264-GRP.mkv",
			"sceneName":    "Film.2020.1080p.BluRay.x264-GRP",
			"quality": map[string]any{
				"quality": map[string]any{"id": 7, "name": "Bluray-1080p"},
			},
			"mediaInfo": map[string]any{"videoCodec": "x264"},
			"languages": []map[string]any{{"id": 1, "name": "English"}},
		},
	}
}

func newTestService(t *testing.T, fake *fakeRadarr) *Service {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Radarr.URL = server.URL
	cfg.Radarr.APIKey = "test-key"
	cfg.Retry.Delay = 0
	cfg.Reconcile.RefreshSettleDelay = 0

	return NewService(cfg)
}

func TestService_ListItemsMapsMovies(t *testing.T) {
	fake := newFakeRadarr()
	fake.add(testMovie())
	fake.add(map[string]any{"id": 2, "title": "Empty", "path": "/movies/Empty", "folderName": "Empty"})
	svc := newTestService(t, fake)

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	item := items[0]
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, "Film", item.Title)
	assert.Equal(t, "/movies", item.RootPath)
	assert.Equal(t, "Film (2020)", item.FolderName)
	assert.Equal(t, "/movies/Film (2020)", item.Path)
	assert.InDelta(t, 7.55, item.Ratings["tmdb"], 0.0001)
	assert.InDelta(t, 7.1, item.Ratings["imdb"], 0.0001)
	assert.Equal(t, "Bluray-1080p", item.Quality)
	assert.Equal(t, "x264", item.Codec)
	assert.Equal(t, "English", item.Language)
	assert.Equal(t, "Film.2020.1080p.BluRay.x264-GRP", item.ReleaseName)

	assert.Equal(t, int64(2), items[1].ID)
	assert.Empty(t, items[1].Quality)
	assert.Nil(t, items[1].Ratings)
}

func TestService_ListItemsResolvesRootFolders(t *testing.T) {
	fake := newFakeRadarr()
	fake.roots = []string{"/movies/", "/movies/4k"}
	fake.add(map[string]any{"id": 1, "title": "Film", "path": "/movies/Film (2020)", "folderName": "Film (2020)"})
	fake.add(map[string]any{"id": 2, "title": "Big", "path": "/movies/4k/Big (2021)", "folderName": "Big (2021)"})
	fake.add(map[string]any{"id": 3, "title": "Stray", "path": "/other/Stray (1999)", "folderName": "Stray (1999)"})
	svc := newTestService(t, fake)

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "/movies", items[0].RootPath)
	assert.Equal(t, "/movies/4k", items[1].RootPath, "longest matching root wins")
	assert.Equal(t, "/other", items[2].RootPath, "unmatched paths use the parent directory")
}

func TestService_RootFolderFailureFallsBackToParent(t *testing.T) {
	fake := newFakeRadarr()
	fake.rootFail = true
	fake.add(map[string]any{"id": 1, "title": "Film", "path": "/movies/Film (2020)", "folderName": "Film (2020)"})
	svc := newTestService(t, fake)

	item, err := svc.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "/movies", item.RootPath)
	assert.Equal(t, "Film (2020)", item.Folder())
}

func TestRootFor(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		roots []string
		want  string
	}{
		{name: "exact prefix", path: "/movies/Film", roots: []string{"/movies"}, want: "/movies"},
		{name: "trailing slash root", path: "/movies/Film", roots: []string{"/movies/"}, want: "/movies"},
		{name: "longest root", path: "/data/movies/Film", roots: []string{"/data", "/data/movies"}, want: "/data/movies"},
		{name: "sibling name is not a prefix", path: "/movies-4k/Film", roots: []string{"/movies"}, want: "/movies-4k"},
		{name: "no roots", path: "/movies/Film/", roots: nil, want: "/movies"},
		{name: "empty path", path: "", roots: []string{"/movies"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rootFor(tt.path, tt.roots))
		})
	}
}

func TestService_ListItemsRetriesServerErrors(t *testing.T) {
	fake := newFakeRadarr()
	fake.add(testMovie())
	fake.listFail = 2
	svc := newTestService(t, fake)

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestService_ListItemsFailsAfterAttempts(t *testing.T) {
	fake := newFakeRadarr()
	fake.listFail = 10
	svc := newTestService(t, fake)

	_, err := svc.ListItems(context.Background())
	require.Error(t, err)
	assert.Equal(t, 7, fake.listFail, "three attempts consumed")
}

func TestService_GetItemNotFoundIsNotRetried(t *testing.T) {
	fake := newFakeRadarr()
	svc := newTestService(t, fake)

	_, err := svc.GetItem(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperrors.IsNonRetryable(err))
	assert.Equal(t, 1, fake.gets)
}

func TestService_UpdateItemPath(t *testing.T) {
	fake := newFakeRadarr()
	fake.add(testMovie())
	svc := newTestService(t, fake)

	newPath := "/movies/Film (2020) {edition-7.6 - 1080p}"
	item, err := svc.UpdateItemPath(context.Background(), 1, newPath)
	require.NoError(t, err)

	assert.Equal(t, newPath, item.Path)
	assert.Equal(t, "Film (2020) {edition-7.6 - 1080p}", item.Folder())

	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	assert.Equal(t, newPath, put["path"])
	assert.Equal(t, newPath, put["folderName"])
	assert.Equal(t, "Film", put["title"], "the rest of the record is sent back unchanged")
}

func TestService_UpdateItemPathFailureReportsOldPath(t *testing.T) {
	fake := newFakeRadarr()
	fake.add(testMovie())
	fake.putFail = true
	svc := newTestService(t, fake)

	_, err := svc.UpdateItemPath(context.Background(), 1, "/movies/Film (2020) {edition-7.6}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from /movies/Film (2020)")
	assert.True(t, apperrors.IsNonRetryable(err))
	assert.Equal(t, "/movies/Film (2020)", fake.movies[1]["path"], "the stored record is unchanged")
}

func TestService_RefreshItem(t *testing.T) {
	fake := newFakeRadarr()
	fake.add(testMovie())
	svc := newTestService(t, fake)
	svc.settleDelay = time.Second

	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	item, err := svc.RefreshItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, []time.Duration{time.Second}, slept)

	require.Len(t, fake.commands, 1)
	assert.Equal(t, "RefreshMovie", fake.commands[0]["name"])
	assert.Equal(t, []any{float64(1)}, fake.commands[0]["movieIds"])
}

func TestService_TriggerCommand(t *testing.T) {
	fake := newFakeRadarr()
	svc := newTestService(t, fake)

	require.NoError(t, svc.TriggerCommand(context.Background(), "RescanMovie", 7))
	require.Len(t, fake.commands, 1)
	assert.Equal(t, "RescanMovie", fake.commands[0]["name"])
}

func TestService_TestConnection(t *testing.T) {
	svc := newTestService(t, newFakeRadarr())
	assert.NoError(t, svc.TestConnection(context.Background()))
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
