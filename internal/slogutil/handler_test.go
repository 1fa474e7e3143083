package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_AppendsContextData(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewTextHandler(&buf, nil)))

	ctx := With(context.Background(), "run_id", "abc")
	ctx = With(ctx, "movie_id", int64(7), "title", "Film")

	logger.InfoContext(ctx, "Reconciled item")

	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "movie_id=7")
	assert.Contains(t, out, "title=Film")
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	parent := With(context.Background(), "run_id", "abc")
	child := With(parent, "movie_id", 1)

	assert.Len(t, Attrs(parent), 1)
	assert.Len(t, Attrs(child), 2)
	assert.Equal(t, parent, With(parent))
}

func TestDynamicLeveler(t *testing.T) {
	var buf bytes.Buffer
	leveler := NewDynamicLeveler(slog.LevelWarn)
	logger := slog.New(WrapHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: leveler})))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	leveler.SetLevel(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
