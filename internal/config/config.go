package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gate      GateConfig      `yaml:"gate" mapstructure:"gate"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Photos    PhotosConfig    `yaml:"photos" mapstructure:"photos"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the local snapshot database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CatalogConfig configures the destination catalog database.
type CatalogConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GoogleConfig holds Places API settings.
type GoogleConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GateConfig configures call pacing and rate-limit retry.
type GateConfig struct {
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
}

// ResolverConfig configures place resolution.
type ResolverConfig struct {
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	BiasRadiusM   float64 `yaml:"bias_radius_m" mapstructure:"bias_radius_m"`
}

// PhotosConfig configures photo migration.
type PhotosConfig struct {
	MaxPhotos        int           `yaml:"max_photos" mapstructure:"max_photos"`
	MaxWidthPx       int           `yaml:"max_width_px" mapstructure:"max_width_px"`
	DownloadInterval time.Duration `yaml:"download_interval" mapstructure:"download_interval"`
	DryRun           bool          `yaml:"dry_run" mapstructure:"dry_run"`
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	Bucket        string `yaml:"bucket" mapstructure:"bucket"`
	Region        string `yaml:"region" mapstructure:"region"`
	AccessKey     string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey     string `yaml:"secret_key" mapstructure:"secret_key"`
	UseSSL        bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	DuplicateDelay time.Duration `yaml:"duplicate_delay" mapstructure:"duplicate_delay"`
	CategoriesFile string        `yaml:"categories_file" mapstructure:"categories_file"`
	DryRun         bool          `yaml:"dry_run" mapstructure:"dry_run"`
}

// ServerConfig configures the operator HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Load reads configuration from config.yaml, environment variables and
// defaults, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLACEIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.path", "place-import.db")
	v.SetDefault("catalog.max_conns", 4)
	v.SetDefault("catalog.min_conns", 1)
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.timeout_secs", 15)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 600)
	v.SetDefault("gate.min_interval", time.Second)
	v.SetDefault("gate.max_retries", 3)
	v.SetDefault("gate.base_delay", 2*time.Second)
	v.SetDefault("resolver.max_candidates", 5)
	v.SetDefault("resolver.bias_radius_m", 500.0)
	v.SetDefault("photos.max_photos", 5)
	v.SetDefault("photos.max_width_px", 1600)
	v.SetDefault("photos.download_interval", 250*time.Millisecond)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("pipeline.duplicate_delay", time.Second)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every setting required by mode that is missing or out
// of range. Modes are "process", "approve" and "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "process":
		c.validateProcess(require)
	case "approve":
		c.validateApprove(require)
	case "serve":
		c.validateProcess(require)
		c.validateApprove(require)
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be > 0 and < 65536")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	require(c.Store.Path != "", "store.path is required")
	require(c.Gate.MinInterval >= 0, "gate.min_interval must be >= 0")
	require(c.Gate.MaxRetries >= 0, "gate.max_retries must be >= 0")

	if len(problems) > 0 {
		return eris.New(fmt.Sprintf("config: %s", strings.Join(problems, "; ")))
	}
	return nil
}

func (c *Config) validateProcess(require func(bool, string)) {
	require(c.Google.Key != "", "google.key is required")
	require(c.Anthropic.Key != "", "anthropic.key is required")
	require(c.Catalog.DatabaseURL != "", "catalog.database_url is required")
	require(c.Resolver.MaxCandidates >= 1, "resolver.max_candidates must be >= 1")
}

func (c *Config) validateApprove(require func(bool, string)) {
	require(c.Catalog.DatabaseURL != "", "catalog.database_url is required")
	require(c.Photos.MaxPhotos >= 0, "photos.max_photos must be >= 0")
	if c.Photos.DryRun || c.Pipeline.DryRun {
		return
	}
	require(c.Google.Key != "", "google.key is required")
	require(c.Storage.Endpoint != "", "storage.endpoint is required")
	require(c.Storage.Bucket != "", "storage.bucket is required")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
