package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendCDN   = "cdn"
	BackendPutio = "putio"
)

// Config struct for environment variables.
type Config struct {
	Backend string `envconfig:"BACKEND" default:"cdn"`

	// Groups are the content labels patched on every run, in probe order.
	Groups []string `envconfig:"PATCH_GROUPS" default:"prefab,sprite"`

	CacheDir         string        `envconfig:"CACHE_DIR" default:"cache"`
	CDNCatalogURL    string        `envconfig:"CDN_CATALOG_URL"`
	CDNBundleBaseURL string        `envconfig:"CDN_BUNDLE_BASE_URL"`
	CatalogTTL       time.Duration `envconfig:"CATALOG_TTL" default:"1m"`

	PutioToken      string `envconfig:"PUTIO_TOKEN"`
	PutioRootFolder string `envconfig:"PUTIO_ROOT_FOLDER" default:"patches"`

	MaxParallel  int           `envconfig:"MAX_PARALLEL" default:"5"`
	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"100ms"`
	AutoConfirm  bool          `envconfig:"AUTO_CONFIRM" default:"false"`

	LogLevel          string        `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`
	DBPath            string        `envconfig:"DB_PATH" default:"patches.db"`
	KeepHistoryFor    time.Duration `envconfig:"KEEP_HISTORY_FOR" default:"168h"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"true"`
		ServiceName  string `split_words:"true" default:"asset_patcher"`
		OTLPEndpoint string `split_words:"true"`
	}

	API struct {
		Username string `split_words:"true"`
		Password string `split_words:"true"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	var errs []error

	groups := c.Groups[:0]
	for _, g := range c.Groups {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	c.Groups = groups

	if len(c.Groups) == 0 {
		errs = append(errs, errors.New("PATCH_GROUPS must name at least one group"))
	}

	switch c.Backend {
	case BackendCDN:
		if c.CDNCatalogURL == "" {
			errs = append(errs, errors.New("CDN_CATALOG_URL is required for the cdn backend"))
		}
	case BackendPutio:
		if c.PutioToken == "" {
			errs = append(errs, errors.New("PUTIO_TOKEN is required for the putio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %q", c.Backend))
	}

	if c.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("MAX_PARALLEL must be positive, got %d", c.MaxParallel))
	}

	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
