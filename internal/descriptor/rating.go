package descriptor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/javi11/metadatarr/internal/library"
)

func (b *Builder) rating(ctx context.Context, item library.Item) (string, bool) {
	source := b.opts.Rating.Source
	value, ok := item.Ratings[source]
	if !ok && b.opts.Rating.FallbackSource != "" {
		source = b.opts.Rating.FallbackSource
		value, ok = item.Ratings[source]
	}
	if !ok {
		return "", false
	}

	formatted, err := FormatRating(value, b.opts.Rating.Percent)
	if err != nil {
		slog.WarnContext(ctx, "Error processing rating value", "source", source, "error", err)
		return "", false
	}

	slog.DebugContext(ctx, "Rating", "source", source, "value", formatted)
	return b.opts.Rating.Label + formatted, true
}

// FormatRating rounds value to one decimal place, or renders it as an integer
// percentage of a ten-point scale when percent is set.
func FormatRating(value float64, percent bool) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("rating %v is not a finite number", value)
	}

	if percent {
		return strconv.FormatInt(int64(math.Round(value*10)), 10) + "%", nil
	}

	return strconv.FormatFloat(math.Round(value*10)/10, 'f', 1, 64), nil
}
