package descriptor

import (
	"context"
	"log/slog"
	"strings"

	ptn "github.com/middelink/go-parse-torrent-name"
	"golang.org/x/text/cases"
	textlang "golang.org/x/text/language"

	"github.com/javi11/metadatarr/internal/config"
	"github.com/javi11/metadatarr/internal/library"
)

// RatingOptions controls rating extraction and formatting.
type RatingOptions struct {
	Source         string
	FallbackSource string
	Percent        bool
	Label          string
}

// Options configures a Builder.
type Options struct {
	// Order lists the enabled kinds in the order they appear in the block.
	Order            []Kind
	Strict           bool
	Rating           RatingOptions
	QualityMap       map[string]string
	ParseReleaseName bool
}

// OptionsFromConfig converts the edition section of the config.
func OptionsFromConfig(cfg config.EditionConfig) Options {
	opts := Options{
		Strict:           cfg.Completeness != config.CompletenessBestEffort,
		ParseReleaseName: cfg.ParseReleaseName,
		QualityMap:       cfg.Resolution.QualityMap,
		Rating: RatingOptions{
			Source:         cfg.Rating.Source,
			FallbackSource: cfg.Rating.FallbackSource,
			Percent:        cfg.Rating.Format == config.RatingFormatPercent,
			Label:          cfg.Rating.Label,
		},
	}
	for _, name := range cfg.EnabledFields() {
		opts.Order = append(opts.Order, Kind(name))
	}
	return opts
}

// Builder derives descriptors from item snapshots.
type Builder struct {
	opts    Options
	quality map[string]string
}

// NewBuilder creates a builder. Quality map lookups are case-insensitive.
func NewBuilder(opts Options) *Builder {
	quality := make(map[string]string, len(opts.QualityMap))
	for k, v := range opts.QualityMap {
		quality[strings.ToLower(k)] = v
	}
	return &Builder{opts: opts, quality: quality}
}

// Build derives the descriptor for item.
func (b *Builder) Build(ctx context.Context, item library.Item) Result {
	if len(b.opts.Order) == 0 {
		return Result{Status: StatusUnconfigured}
	}

	var (
		release *ptn.TorrentInfo
		parsed  bool
	)
	releaseInfo := func() *ptn.TorrentInfo {
		if !parsed {
			parsed = true
			release = b.parseRelease(ctx, item)
		}
		return release
	}

	var res Result
	for _, kind := range b.opts.Order {
		var (
			value string
			ok    bool
		)
		switch kind {
		case KindRating:
			value, ok = b.rating(ctx, item)
		case KindResolution:
			value, ok = b.resolution(item, releaseInfo)
		case KindCodec:
			value, ok = b.codec(item, releaseInfo)
		case KindLanguage:
			value, ok = b.language(item)
		}

		if !ok {
			res.Missing = append(res.Missing, kind)
			continue
		}
		res.Descriptor.Fields = append(res.Descriptor.Fields, Field{Kind: kind, Value: value})
	}

	switch {
	case len(res.Missing) == 0:
		res.Status = StatusComplete
	case b.opts.Strict:
		res.Status = StatusIncomplete
		res.Descriptor = Descriptor{}
	case res.Descriptor.Len() == 0:
		res.Status = StatusEmpty
	default:
		res.Status = StatusPartial
	}

	slog.DebugContext(ctx, "Built descriptor",
		"status", res.Status.String(),
		"text", res.Descriptor.Text(),
		"missing", res.Missing)

	return res
}

func (b *Builder) resolution(item library.Item, release func() *ptn.TorrentInfo) (string, bool) {
	label := strings.TrimSpace(item.Quality)
	if label == "" {
		if info := release(); info != nil {
			label = info.Resolution
		}
	}
	if label == "" {
		return "", false
	}
	if mapped, ok := b.quality[strings.ToLower(label)]; ok {
		return mapped, true
	}
	return label, true
}

func (b *Builder) codec(item library.Item, release func() *ptn.TorrentInfo) (string, bool) {
	codec := strings.TrimSpace(item.Codec)
	if codec == "" {
		if info := release(); info != nil {
			codec = info.Codec
		}
	}
	return codec, codec != ""
}

func (b *Builder) language(item library.Item) (string, bool) {
	lang := strings.TrimSpace(item.Language)
	if lang == "" {
		return "", false
	}
	return cases.Upper(textlang.Und).String(lang), true
}

// parseRelease returns the parsed release name, or nil when the fallback is
// disabled or the release name is empty or unparsable.
func (b *Builder) parseRelease(ctx context.Context, item library.Item) *ptn.TorrentInfo {
	if !b.opts.ParseReleaseName || item.ReleaseName == "" {
		return nil
	}
	info, err := ptn.Parse(item.ReleaseName)
	if err != nil {
		slog.DebugContext(ctx, "Failed to parse release name", "release_name", item.ReleaseName, "error", err)
		return nil
	}
	return info
}
