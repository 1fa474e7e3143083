package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Field names accepted in edition.order.
const (
	FieldRating     = "rating"
	FieldResolution = "resolution"
	FieldCodec      = "codec"
	FieldLanguage   = "language"
)

// Completeness policies for descriptor building.
const (
	CompletenessStrict     = "strict"
	CompletenessBestEffort = "best_effort"
)

// Rating formats.
const (
	RatingFormatDecimal = "decimal"
	RatingFormatPercent = "percent"
)

// Operating modes of the run loop.
const (
	ModeFast     = "fast"
	ModeThorough = "thorough"
)

// Config represents the complete application configuration
type Config struct {
	Radarr    RadarrConfig    `yaml:"radarr" mapstructure:"radarr"`
	Edition   EditionConfig   `yaml:"edition" mapstructure:"edition"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RadarrConfig represents the remote library service connection
type RadarrConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EditionConfig controls which descriptor fields are derived and how they are formatted
type EditionConfig struct {
	Order            []string         `yaml:"order" mapstructure:"order"`
	Completeness     string           `yaml:"completeness" mapstructure:"completeness"`
	ParseReleaseName bool             `yaml:"parse_release_name" mapstructure:"parse_release_name"`
	Rating           RatingConfig     `yaml:"rating" mapstructure:"rating"`
	Resolution       ResolutionConfig `yaml:"resolution" mapstructure:"resolution"`
	Codec            CodecConfig      `yaml:"codec" mapstructure:"codec"`
	Language         LanguageConfig   `yaml:"language" mapstructure:"language"`
}

// RatingConfig represents the rating field settings
type RatingConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Source         string `yaml:"source" mapstructure:"source"`                   // tmdb, imdb, metacritic, rottenTomatoes
	FallbackSource string `yaml:"fallback_source" mapstructure:"fallback_source"` // used when source has no value
	Format         string `yaml:"format" mapstructure:"format"`                   // decimal or percent
	Label          string `yaml:"label" mapstructure:"label"`                     // prefix, e.g. "IMDb "
}

// ResolutionConfig represents the resolution field settings
type ResolutionConfig struct {
	Enabled    bool              `yaml:"enabled" mapstructure:"enabled"`
	QualityMap map[string]string `yaml:"quality_map" mapstructure:"quality_map"`
}

// CodecConfig represents the codec field settings
type CodecConfig struct {
	Enabled bool              `yaml:"enabled" mapstructure:"enabled"`
	Aliases map[string]string `yaml:"aliases" mapstructure:"aliases"` // raw label -> canonical label
}

// LanguageConfig represents the language field settings
type LanguageConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ReconcileConfig represents per-item reconciliation policy
type ReconcileConfig struct {
	ForceUpdateOnRenameFailure bool          `yaml:"force_update_on_rename_failure" mapstructure:"force_update_on_rename_failure"`
	NotifyDownstream           bool          `yaml:"notify_downstream" mapstructure:"notify_downstream"`
	NotifyCommand              string        `yaml:"notify_command" mapstructure:"notify_command"`
	RefreshCommand             string        `yaml:"refresh_command" mapstructure:"refresh_command"`
	RefreshSettleDelay         time.Duration `yaml:"refresh_settle_delay" mapstructure:"refresh_settle_delay"`
}

// RunConfig represents the run loop configuration
type RunConfig struct {
	Mode          string        `yaml:"mode" mapstructure:"mode"`       // fast or thorough
	Reverse       bool          `yaml:"reverse" mapstructure:"reverse"` // process items in reverse listing order
	FastDelay     time.Duration `yaml:"fast_delay" mapstructure:"fast_delay"`
	ThoroughDelay time.Duration `yaml:"thorough_delay" mapstructure:"thorough_delay"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"` // continuous mode, used when schedule is empty
	Schedule      string        `yaml:"schedule" mapstructure:"schedule"` // cron expression for continuous mode
	LockFile      string        `yaml:"lock_file" mapstructure:"lock_file"` // held while a pass runs, empty disables locking
}

// RetryConfig represents the retry policy applied to remote calls
type RetryConfig struct {
	Attempts uint          `yaml:"attempts" mapstructure:"attempts"`
	Delay    time.Duration `yaml:"delay" mapstructure:"delay"`
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// EnabledFields returns the enabled field names in configured order.
func (e EditionConfig) EnabledFields() []string {
	var fields []string
	for _, name := range e.Order {
		if e.fieldEnabled(name) {
			fields = append(fields, name)
		}
	}
	return fields
}

func (e EditionConfig) fieldEnabled(name string) bool {
	switch name {
	case FieldRating:
		return e.Rating.Enabled
	case FieldResolution:
		return e.Resolution.Enabled
	case FieldCodec:
		return e.Codec.Enabled
	case FieldLanguage:
		return e.Language.Enabled
	default:
		return false
	}
}

// DeepCopy returns a deep copy of the configuration
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copyCfg := *c
	copyCfg.Edition.Order = slices.Clone(c.Edition.Order)
	copyCfg.Edition.Resolution.QualityMap = maps.Clone(c.Edition.Resolution.QualityMap)
	copyCfg.Edition.Codec.Aliases = maps.Clone(c.Edition.Codec.Aliases)

	return &copyCfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Radarr.URL == "" {
		return fmt.Errorf("radarr url cannot be empty")
	}

	if c.Radarr.APIKey == "" {
		return fmt.Errorf("radarr api_key cannot be empty")
	}

	if c.Radarr.Timeout < 0 {
		return fmt.Errorf("radarr timeout must be non-negative")
	}

	known := []string{FieldRating, FieldResolution, FieldCodec, FieldLanguage}
	seen := make(map[string]bool, len(c.Edition.Order))
	for _, name := range c.Edition.Order {
		if !slices.Contains(known, name) {
			return fmt.Errorf("edition.order contains unknown field %q (valid: %s)", name, strings.Join(known, ", "))
		}
		if seen[name] {
			return fmt.Errorf("edition.order lists %q more than once", name)
		}
		seen[name] = true
	}
	for _, name := range known {
		if c.Edition.fieldEnabled(name) && !seen[name] {
			return fmt.Errorf("edition.%s is enabled but missing from edition.order", name)
		}
	}

	switch c.Edition.Completeness {
	case CompletenessStrict, CompletenessBestEffort:
	default:
		return fmt.Errorf("edition.completeness must be one of: %s, %s", CompletenessStrict, CompletenessBestEffort)
	}

	if c.Edition.Rating.Enabled {
		if c.Edition.Rating.Source == "" {
			return fmt.Errorf("edition.rating.source cannot be empty when rating is enabled")
		}
		switch c.Edition.Rating.Format {
		case RatingFormatDecimal, RatingFormatPercent:
		default:
			return fmt.Errorf("edition.rating.format must be one of: %s, %s", RatingFormatDecimal, RatingFormatPercent)
		}
	}

	if c.Reconcile.RefreshCommand == "" {
		return fmt.Errorf("reconcile.refresh_command cannot be empty")
	}

	if c.Reconcile.NotifyDownstream && c.Reconcile.NotifyCommand == "" {
		return fmt.Errorf("reconcile.notify_command cannot be empty when notify_downstream is enabled")
	}

	if c.Reconcile.RefreshSettleDelay < 0 {
		return fmt.Errorf("reconcile.refresh_settle_delay must be non-negative")
	}

	switch c.Run.Mode {
	case ModeFast, ModeThorough:
	default:
		return fmt.Errorf("run.mode must be one of: %s, %s", ModeFast, ModeThorough)
	}

	if c.Run.FastDelay < 0 || c.Run.ThoroughDelay < 0 {
		return fmt.Errorf("run delays must be non-negative")
	}

	if c.Run.Schedule != "" {
		if _, err := cron.ParseStandard(c.Run.Schedule); err != nil {
			return fmt.Errorf("run.schedule is not a valid cron expression: %w", err)
		}
	} else if c.Run.Interval <= 0 {
		return fmt.Errorf("run.interval must be greater than 0 when run.schedule is empty")
	}

	if c.Retry.Attempts == 0 {
		return fmt.Errorf("retry.attempts must be greater than 0")
	}

	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must be non-negative")
	}

	if c.Log.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, c.Log.Level) {
			return fmt.Errorf("log.level must be one of: debug, info, warn, error")
		}
	}

	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}

	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}

	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// ChangeCallback represents a function called when configuration changes
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter represents a function that returns the current configuration
type ConfigGetter func() *Config

// Manager manages configuration state and reloads
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// GetConfigGetter returns a function that provides the current configuration
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig updates the current configuration (thread-safe)
func (m *Manager) UpdateConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	m.mutex.Lock()
	// Take a deep copy of the old config so callbacks get an immutable snapshot
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	// Notify callbacks after releasing the lock
	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback to be called when configuration changes
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ReloadConfig reloads configuration from file. The current configuration is
// kept when the file cannot be read or does not validate.
func (m *Manager) ReloadConfig() error {
	if m.configFile == "" {
		return fmt.Errorf("no config file path provided")
	}

	config, err := LoadConfig(m.configFile)
	if err != nil {
		return err
	}

	return m.UpdateConfig(config)
}

// Watch reloads the configuration whenever the config file changes. Reload
// errors are passed to onError and leave the current configuration in place.
func (m *Manager) Watch(onError func(error)) {
	if m.configFile == "" {
		return
	}

	v := viper.New()
	v.SetConfigFile(m.configFile)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := m.ReloadConfig(); err != nil && onError != nil {
			onError(err)
		}
	})
	v.WatchConfig()
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Radarr: RadarrConfig{
			URL:     "http://localhost:7878",
			Timeout: 10 * time.Second,
		},
		Edition: EditionConfig{
			Order:        []string{FieldRating, FieldResolution, FieldCodec, FieldLanguage},
			Completeness: CompletenessStrict,
			Rating: RatingConfig{
				Enabled:        true,
				Source:         "tmdb",
				FallbackSource: "imdb",
				Format:         RatingFormatDecimal,
			},
			Resolution: ResolutionConfig{
				Enabled:    true,
				QualityMap: DefaultQualityMap(),
			},
			Codec: CodecConfig{
				Enabled: false,
				Aliases: DefaultCodecAliases(),
			},
			Language: LanguageConfig{
				Enabled: false,
			},
		},
		Reconcile: ReconcileConfig{
			RefreshCommand:     "RefreshMovie",
			NotifyCommand:      "RescanMovie",
			RefreshSettleDelay: 5 * time.Second,
		},
		Run: RunConfig{
			Mode:          ModeFast,
			FastDelay:     500 * time.Millisecond,
			ThoroughDelay: 2 * time.Second,
			Interval:      6 * time.Hour,
			LockFile:      filepath.Join(os.TempDir(), "metadatarr.lock"),
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    2 * time.Second,
		},
		Log: LogConfig{
			File:       "",     // Empty = console only
			Level:      "info", // Default log level
			MaxSize:    100,    // 100MB max size
			MaxAge:     30,     // Keep for 30 days
			MaxBackups: 10,     // Keep 10 old files
			Compress:   true,   // Compress old files
		},
	}
}

// DefaultQualityMap maps Radarr quality names to display labels. Keys are
// lower case because viper lower-cases map keys read from the config file.
func DefaultQualityMap() map[string]string {
	return map[string]string{
		// DVD Releases
		"dvd-480p": "480p",
		"dvd-576p": "576p",
		"dvd":      "DVD",
		// Standard Definition (SD)
		"sdtv":  "SDTV",
		"tvrip": "TVRip",
		// High Definition (HD)
		"hdtv-480p":    "480p",
		"hdtv-720p":    "720p",
		"hdtv-1080p":   "1080p",
		"bluray-720p":  "720p",
		"bluray-1080p": "1080p",
		"webrip-480p":  "480p",
		"webrip-720p":  "720p",
		"webrip-1080p": "1080p",
		"webdl-480p":   "480p",
		"webdl-720p":   "720p",
		"webdl-1080p":  "1080p",
		"dvdrip":       "DVDRip",
		"hdrip":        "HDRip",
		"bdrip":        "BDRip",
		// Ultra HD / 4K
		"bluray-4k":     "4K",
		"bluray-2160p":  "4K",
		"ultrahd-2160p": "4K",
		"webrip-4k":     "4K",
		"webdl-4k":      "4K",
		"webrip-2160p":  "4K",
		"webdl-2160p":   "4K",
		"remux-1080p":   "1080p",
		"remux-2160p":   "4K",
		// Other Formats
		"cam":      "CAM",
		"hdts":     "HDTS",
		"ts":       "TS",
		"tc":       "TC",
		"screener": "Screener",
		"vhsrip":   "VHS",
	}
}

// DefaultCodecAliases maps raw codec labels onto the compression standard they
// denote. Keys must not contain dots, viper treats them as key separators.
func DefaultCodecAliases() map[string]string {
	return map[string]string{
		"x264":       "h264",
		"h264":       "h264",
		"avc":        "h264",
		"x265":       "h265",
		"h265":       "h265",
		"hevc":       "h265",
		"av1":        "av1",
		"vc1":        "vc1",
		"vc-1":       "vc1",
		"xvid":       "mpeg4",
		"divx":       "mpeg4",
		"mpeg4":      "mpeg4",
		"mpeg2":      "mpeg2",
		"mpeg2video": "mpeg2",
		"vp9":        "vp9",
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults.
// METADATARR_RADARR_URL and METADATARR_RADARR_API_KEY override the file.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Look for config file in common locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("METADATARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("radarr.url")
	_ = v.BindEnv("radarr.api_key")

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			// If a specific config file was provided but couldn't be read, return error
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil, fmt.Errorf("no configuration file found. Please create config.yaml or use --config flag")
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}
