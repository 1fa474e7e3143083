package reconcile

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/javi11/metadatarr/internal/config"
	apperrors "github.com/javi11/metadatarr/internal/errors"
	"github.com/javi11/metadatarr/internal/fsrename"
	"github.com/javi11/metadatarr/internal/library"
	"github.com/javi11/metadatarr/internal/library/librarytest"
)

const (
	root      = "/movies"
	plainDir  = "/movies/Film (2020)"
	taggedDir = "/movies/Film (2020) {edition-7.6 - 1080p}"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Radarr.APIKey = "key"
	return cfg
}

func filmItem() library.Item {
	return library.Item{
		ID:         1,
		Title:      "Film",
		RootPath:   root,
		FolderName: "Film (2020)",
		Ratings:    map[string]float64{"tmdb": 7.55},
		Quality:    "Bluray-1080p",
		Codec:      "h264",
	}
}

type env struct {
	fs   afero.Fs
	fake *librarytest.Fake
}

func newEnv(t *testing.T, dirs ...string) *env {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, dir := range dirs {
		require.NoError(t, fs.MkdirAll(dir, 0755))
		require.NoError(t, afero.WriteFile(fs, dir+"/film.mkv", []byte("video"), 0644))
	}
	return &env{fs: fs, fake: librarytest.New()}
}

func (e *env) controller(cfg *config.Config, opts Options) *Controller {
	return NewController(cfg, e.fake, fsrename.NewExecutor(e.fs), opts)
}

func (e *env) exists(path string) bool {
	ok, _ := afero.DirExists(e.fs, path)
	return ok
}

func TestReconcile_AddsBlock(t *testing.T) {
	e := newEnv(t, plainDir)
	item := filmItem()
	e.fake.Put(item)

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)

	require.Equal(t, OutcomeUpdated, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, plainDir, res.OldPath)
	assert.Equal(t, taggedDir, res.NewPath)
	assert.True(t, e.exists(taggedDir))
	assert.False(t, e.exists(plainDir))

	require.Len(t, e.fake.Updates, 1)
	assert.Equal(t, taggedDir, e.fake.Updates[0].Path)
	assert.Equal(t, []librarytest.Command{{Name: "RefreshMovie", ID: 1}}, e.fake.Commands)
}

func TestReconcile_SecondPassIsNoChange(t *testing.T) {
	e := newEnv(t, plainDir)
	e.fake.Put(filmItem())
	ctrl := e.controller(testConfig(), Options{})

	first := ctrl.Reconcile(context.Background(), e.fake.Item(1))
	require.Equal(t, OutcomeUpdated, first.Outcome)
	e.fake.Reset()

	// The remote now stores the absolute path as folder name.
	second := ctrl.Reconcile(context.Background(), e.fake.Item(1))
	assert.Equal(t, OutcomeNoChange, second.Outcome)
	assert.Zero(t, e.fake.Mutations())
	assert.True(t, e.exists(taggedDir))
}

func TestReconcile_CodecAliasIsNoChange(t *testing.T) {
	existing := "/movies/Film (2020) {edition-7.6 - x264}"
	e := newEnv(t, existing)

	cfg := testConfig()
	cfg.Edition.Order = []string{config.FieldRating, config.FieldCodec}
	cfg.Edition.Resolution.Enabled = false
	cfg.Edition.Codec.Enabled = true

	item := filmItem()
	item.FolderName = "Film (2020) {edition-7.6 - x264}"

	res := e.controller(cfg, Options{}).Reconcile(context.Background(), item)

	assert.Equal(t, OutcomeNoChange, res.Outcome)
	assert.True(t, e.exists(existing))
	assert.Zero(t, e.fake.Mutations())
}

func TestReconcile_CaseInsensitiveBlockIsNoChange(t *testing.T) {
	existing := "/movies/Film (2020) {EDITION-7.6 - 1080P}"
	e := newEnv(t, existing)

	item := filmItem()
	item.FolderName = "Film (2020) {EDITION-7.6 - 1080P}"

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)
	assert.Equal(t, OutcomeNoChange, res.Outcome)
}

func TestReconcile_CollisionLeavesEverythingUntouched(t *testing.T) {
	e := newEnv(t, plainDir, taggedDir)
	item := filmItem()
	e.fake.Put(item)

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)

	assert.Equal(t, OutcomeSkippedCollision, res.Outcome)
	assert.ErrorIs(t, res.Err, apperrors.ErrCollision)
	assert.True(t, e.exists(plainDir))
	assert.Zero(t, e.fake.Mutations())
}

func TestReconcile_MissingFolder(t *testing.T) {
	tests := []struct {
		name string
		edit func(*library.Item)
	}{
		{"no root path", func(i *library.Item) { i.RootPath = "" }},
		{"no folder name", func(i *library.Item) { i.FolderName = "" }},
		{"not on disk", func(i *library.Item) { i.FolderName = "Other (1999)" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, plainDir)
			item := filmItem()
			tt.edit(&item)

			res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)

			assert.Equal(t, OutcomeSkippedMissingFolder, res.Outcome)
			assert.Zero(t, e.fake.Mutations())
		})
	}
}

func TestReconcile_MissingIDIsError(t *testing.T) {
	e := newEnv(t, plainDir)
	item := filmItem()
	item.ID = 0

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, apperrors.ErrMissingMetadata)
	assert.True(t, e.exists(plainDir))
}

func TestReconcile_IncompleteKeepsExistingBlock(t *testing.T) {
	existing := "/movies/Film (2020) {edition-7.6 - 1080p}"
	e := newEnv(t, existing)

	item := filmItem()
	item.FolderName = "Film (2020) {edition-7.6 - 1080p}"
	item.Quality = ""

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), item)

	assert.Equal(t, OutcomeSkippedIncomplete, res.Outcome)
	assert.True(t, e.exists(existing), "a block is never stripped for lack of data")
	assert.Zero(t, e.fake.Mutations())
}

func TestReconcile_BestEffortWritesPartialDescriptor(t *testing.T) {
	e := newEnv(t, plainDir)
	item := filmItem()
	item.Quality = ""
	e.fake.Put(item)

	cfg := testConfig()
	cfg.Edition.Completeness = config.CompletenessBestEffort

	res := e.controller(cfg, Options{}).Reconcile(context.Background(), item)

	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "/movies/Film (2020) {edition-7.6}", res.NewPath)
}

func TestReconcile_NoFieldsConfiguredStripsBlock(t *testing.T) {
	e := newEnv(t, taggedDir)
	item := filmItem()
	item.FolderName = "Film (2020) {edition-7.6 - 1080p}"
	e.fake.Put(item)

	cfg := testConfig()
	cfg.Edition.Rating.Enabled = false
	cfg.Edition.Resolution.Enabled = false

	res := e.controller(cfg, Options{}).Reconcile(context.Background(), item)

	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, plainDir, res.NewPath)
	assert.True(t, e.exists(plainDir))
}

func TestReconcile_StripMode(t *testing.T) {
	e := newEnv(t, taggedDir)
	item := filmItem()
	item.FolderName = "Film (2020) {edition-7.6 - 1080p}"
	e.fake.Put(item)
	ctrl := e.controller(testConfig(), Options{Mode: ModeStrip})

	res := ctrl.Reconcile(context.Background(), item)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.True(t, e.exists(plainDir))
	assert.False(t, e.exists(taggedDir))
	e.fake.Reset()

	again := ctrl.Reconcile(context.Background(), e.fake.Item(1))
	assert.Equal(t, OutcomeNoChange, again.Outcome)
	assert.Zero(t, e.fake.Mutations())
}

func TestReconcile_DryRun(t *testing.T) {
	e := newEnv(t, plainDir)
	item := filmItem()
	e.fake.Put(item)

	res := e.controller(testConfig(), Options{DryRun: true}).Reconcile(context.Background(), item)

	assert.Equal(t, OutcomePlanned, res.Outcome)
	assert.Equal(t, taggedDir, res.NewPath)
	assert.True(t, e.exists(plainDir))
	assert.False(t, e.exists(taggedDir))
	assert.Zero(t, e.fake.Mutations())
}

func TestReconcile_DryRunReportsCollision(t *testing.T) {
	e := newEnv(t, plainDir, taggedDir)
	item := filmItem()

	res := e.controller(testConfig(), Options{DryRun: true}).Reconcile(context.Background(), item)
	assert.Equal(t, OutcomeSkippedCollision, res.Outcome)
}

func TestReconcile_RenameFailure(t *testing.T) {
	for _, force := range []bool{false, true} {
		t.Run(map[bool]string{false: "skip", true: "force"}[force], func(t *testing.T) {
			mem := afero.NewMemMapFs()
			require.NoError(t, mem.MkdirAll(plainDir, 0755))
			fake := librarytest.New(filmItem())

			cfg := testConfig()
			cfg.Reconcile.ForceUpdateOnRenameFailure = force
			ctrl := NewController(cfg, fake, fsrename.NewExecutor(afero.NewReadOnlyFs(mem)), Options{})

			res := ctrl.Reconcile(context.Background(), filmItem())

			assert.ErrorIs(t, res.Err, apperrors.ErrRenameFailed)
			exists, _ := afero.DirExists(mem, plainDir)
			assert.True(t, exists)

			if !force {
				assert.Equal(t, OutcomeSkippedRenameFailed, res.Outcome)
				assert.Zero(t, fake.Mutations())
				return
			}
			assert.Equal(t, OutcomeUpdated, res.Outcome)
			assert.True(t, res.Forced)
			require.Len(t, fake.Updates, 1)
			assert.Equal(t, taggedDir, fake.Updates[0].Path)
		})
	}
}

func TestReconcile_RemoteFailureAfterRenameIsUnreconciled(t *testing.T) {
	e := newEnv(t, plainDir)
	e.fake.Put(filmItem())
	e.fake.UpdateErr = errors.New("connection reset")

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), filmItem())

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, apperrors.ErrUnreconciled)
	assert.True(t, e.exists(taggedDir), "the rename is not rolled back")
	assert.Empty(t, e.fake.Commands)
}

func TestReconcile_CommandFailureStillUpdated(t *testing.T) {
	e := newEnv(t, plainDir)
	e.fake.Put(filmItem())
	e.fake.CommandErr = errors.New("queue full")

	res := e.controller(testConfig(), Options{}).Reconcile(context.Background(), filmItem())

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Len(t, e.fake.Updates, 1)
}

func TestReconcile_ThoroughUsesRefreshedMetadata(t *testing.T) {
	e := newEnv(t, plainDir)
	e.fake.Put(filmItem())
	e.fake.OnRefresh = func(item library.Item) library.Item {
		item.Ratings = map[string]float64{"tmdb": 8.04}
		return item
	}

	res := e.controller(testConfig(), Options{Thorough: true}).Reconcile(context.Background(), filmItem())

	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "/movies/Film (2020) {edition-8.0 - 1080p}", res.NewPath)
	assert.Equal(t, []int64{1}, e.fake.Refreshes)
}

func TestReconcile_ThoroughRefreshFailureFallsBack(t *testing.T) {
	e := newEnv(t, plainDir)
	e.fake.Put(filmItem())
	e.fake.RefreshErr = errors.New("timeout")

	res := e.controller(testConfig(), Options{Thorough: true}).Reconcile(context.Background(), filmItem())

	require.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, taggedDir, res.NewPath)
}

// mockService records the exact remote call sequence.
type mockService struct {
	mock.Mock
}

func (m *mockService) ListItems(ctx context.Context) ([]library.Item, error) {
	args := m.Called(ctx)
	return args.Get(0).([]library.Item), args.Error(1)
}

func (m *mockService) GetItem(ctx context.Context, id int64) (library.Item, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(library.Item), args.Error(1)
}

func (m *mockService) RefreshItem(ctx context.Context, id int64) (library.Item, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(library.Item), args.Error(1)
}

func (m *mockService) UpdateItemPath(ctx context.Context, id int64, newPath string) (library.Item, error) {
	args := m.Called(ctx, id, newPath)
	return args.Get(0).(library.Item), args.Error(1)
}

func (m *mockService) TriggerCommand(ctx context.Context, name string, id int64) error {
	args := m.Called(ctx, name, id)
	return args.Error(0)
}

func TestReconcile_RemoteCallSequenceWithNotify(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(plainDir, os.ModePerm))

	svc := &mockService{}
	update := svc.On("UpdateItemPath", mock.Anything, int64(1), taggedDir).
		Return(library.Item{ID: 1, Path: taggedDir, FolderName: taggedDir}, nil).Once()
	refresh := svc.On("TriggerCommand", mock.Anything, "RefreshMovie", int64(1)).
		Return(nil).Once().NotBefore(update)
	svc.On("TriggerCommand", mock.Anything, "RescanMovie", int64(1)).
		Return(nil).Once().NotBefore(refresh)

	cfg := testConfig()
	cfg.Reconcile.NotifyDownstream = true

	res := NewController(cfg, svc, fsrename.NewExecutor(fs), Options{}).Reconcile(context.Background(), filmItem())

	assert.Equal(t, OutcomeUpdated, res.Outcome)
	svc.AssertExpectations(t)
}
