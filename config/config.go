//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the service configuration from an optional YAML file
// and the environment. The result is built once and handed to constructors.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"trpc.group/trpc-go/trpc-gameasset-go/render"
	"trpc.group/trpc-go/trpc-gameasset-go/retry"
)

// EnvPrefix prefixes every environment variable, e.g. GAMEASSET_STORAGE_BUCKET.
const EnvPrefix = "GAMEASSET"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "gameasset"

// Backend names.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"

	ImageBackendModel  = "model"
	ImageBackendRender = "render"

	StorageS3     = "s3"
	StorageCOS    = "cos"
	StorageMemory = "memory"

	LedgerDynamoDB = "dynamodb"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"
	LedgerNone     = "none"
)

// legacyEnv maps configuration keys to the unprefixed variable names the
// service has always been deployed with.
var legacyEnv = map[string]string{
	"region":         "REGION_NAME",
	"text.model":     "MODEL_ID",
	"image.model":    "MODEL_ID_GEN_IMAGE",
	"ledger.table":   "TABLE_NAME",
	"storage.bucket": "BUCKET_NAME",
	"image.prefix":   "PREFIX",
	"server.address": "SERVER_ADDRESS",
}

// Config is the complete service configuration.
type Config struct {
	// Region is the cloud region shared by the AWS backed components.
	Region      string          `mapstructure:"region"`
	Server      ServerConfig    `mapstructure:"server"`
	Text        TextConfig      `mapstructure:"text"`
	Image       ImageConfig     `mapstructure:"image"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Ledger      LedgerConfig    `mapstructure:"ledger"`
	Render      RenderConfig    `mapstructure:"render"`
	Retry       RetryConfig     `mapstructure:"retry"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Log         LogConfig       `mapstructure:"log"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	PromptsFile string          `mapstructure:"prompts_file"`
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TextConfig selects the text model.
type TextConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ImageConfig selects how character images are produced.
type ImageConfig struct {
	// Backend is "model" for a text-to-image model or "render" for the
	// render queue.
	Backend  string `mapstructure:"backend"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Prefix   string `mapstructure:"prefix"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
}

// StorageConfig selects the artifact store.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	Bucket       string `mapstructure:"bucket"`
	Endpoint     string `mapstructure:"endpoint"`
	BucketURL    string `mapstructure:"bucket_url"`
	SecretID     string `mapstructure:"secret_id"`
	SecretKey    string `mapstructure:"secret_key"`
	URIPrefix    string `mapstructure:"uri_prefix"`
	MaxConflicts int    `mapstructure:"max_conflicts"`
	TilePrefix   string `mapstructure:"tile_prefix"`
	TileWorkers  int    `mapstructure:"tile_workers"`
}

// LedgerConfig selects the provenance ledger.
type LedgerConfig struct {
	Backend        string        `mapstructure:"backend"`
	Table          string        `mapstructure:"table"`
	KeyAttribute   string        `mapstructure:"key_attribute"`
	ConsistentRead bool          `mapstructure:"consistent_read"`
	Redis          string        `mapstructure:"redis"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
	Expiration     time.Duration `mapstructure:"expiration"`
}

// RenderConfig configures the render queue.
type RenderConfig struct {
	Address  string        `mapstructure:"address"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// ManifestPath is an optional template manifest file. Templates given
	// inline take precedence over the ones it lists.
	ManifestPath string                     `mapstructure:"manifest"`
	Templates    map[string]render.Template `mapstructure:"templates"`
	Prefixes     map[string]string          `mapstructure:"prefixes"`
	TileRows     int                        `mapstructure:"tile_rows"`
	TileCols     int                        `mapstructure:"tile_cols"`
}

// RetryConfig configures the throttling retry policy.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// RedisConfig registers named redis instances, referenced by name from
// ledger.redis.
type RedisConfig struct {
	Instances map[string]string `mapstructure:"instances"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	Protocol        string  `mapstructure:"protocol"`
	Endpoint        string  `mapstructure:"endpoint"`
	MetricsEndpoint string  `mapstructure:"metrics_endpoint"`
	SampleRatio     float64 `mapstructure:"sample_ratio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", "us-east-1")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("text.provider", ProviderBedrock)
	v.SetDefault("text.model", "")
	v.SetDefault("text.api_key", "")
	v.SetDefault("text.base_url", "")
	v.SetDefault("image.backend", ImageBackendModel)
	v.SetDefault("image.provider", ProviderBedrock)
	v.SetDefault("image.model", "")
	v.SetDefault("image.api_key", "")
	v.SetDefault("image.base_url", "")
	v.SetDefault("image.prefix", "character/")
	v.SetDefault("image.width", 512)
	v.SetDefault("image.height", 512)
	v.SetDefault("storage.backend", StorageS3)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.bucket_url", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.uri_prefix", "")
	v.SetDefault("storage.max_conflicts", 5)
	v.SetDefault("storage.tile_prefix", "tiles/")
	v.SetDefault("storage.tile_workers", 4)
	v.SetDefault("ledger.backend", LedgerDynamoDB)
	v.SetDefault("ledger.table", "")
	v.SetDefault("ledger.key_attribute", "bucket_id")
	v.SetDefault("ledger.consistent_read", false)
	v.SetDefault("ledger.redis", "")
	v.SetDefault("ledger.key_prefix", "gameasset:provenance:")
	v.SetDefault("ledger.expiration", time.Duration(0))
	v.SetDefault("render.address", "")
	v.SetDefault("render.client_id", "")
	v.SetDefault("render.timeout", 5*time.Minute)
	v.SetDefault("render.manifest", "")
	v.SetDefault("render.tile_rows", 0)
	v.SetDefault("render.tile_cols", 0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_base", time.Second)
	v.SetDefault("retry.backoff_factor", 1.5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.metrics_endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("prompts_file", "")
}

// New returns a viper instance with defaults and environment bindings but
// no file loaded. Callers may bind command line flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		// The prefixed name wins when both are set.
		_ = v.BindEnv(key, prefixed, legacy)
	}
	return v
}

// Load reads path, or ./gameasset.yaml when path is empty, and the
// environment. A missing default file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(New(), path)
}

// LoadWith is Load on a caller supplied viper instance.
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("config: %s %q must be one of %s", field, value,
			strings.Join(allowed, ", ")))
	}
	oneOf("text.provider", c.Text.Provider, ProviderBedrock, ProviderOpenAI, ProviderGemini)
	oneOf("image.backend", c.Image.Backend, ImageBackendModel, ImageBackendRender)
	if c.Image.Backend == ImageBackendModel {
		oneOf("image.provider", c.Image.Provider, ProviderBedrock, ProviderOpenAI)
	}
	oneOf("storage.backend", c.Storage.Backend, StorageS3, StorageCOS, StorageMemory)
	oneOf("ledger.backend", c.Ledger.Backend, LedgerDynamoDB, LedgerRedis, LedgerMemory, LedgerNone)

	switch c.Storage.Backend {
	case StorageS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("config: storage.bucket is required for s3"))
		}
	case StorageCOS:
		if c.Storage.BucketURL == "" {
			errs = append(errs, errors.New("config: storage.bucket_url is required for cos"))
		}
	}
	switch c.Ledger.Backend {
	case LedgerDynamoDB:
		if c.Ledger.Table == "" {
			errs = append(errs, errors.New("config: ledger.table is required for dynamodb"))
		}
	case LedgerRedis:
		if c.Ledger.Redis == "" {
			errs = append(errs, errors.New("config: ledger.redis is required for redis"))
		}
	}
	if c.Image.Backend == ImageBackendRender && c.Render.Address == "" {
		errs = append(errs, errors.New("config: render.address is required for the render backend"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("config: retry.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// Policy builds the retry policy for errors matching cond.
func (r RetryConfig) Policy(cond retry.Condition) retry.Policy {
	p := retry.Default(cond)
	p.MaxAttempts = r.MaxAttempts
	if r.BackoffBase > 0 && r.BackoffFactor > 0 {
		p.Backoff = retry.Exponential(r.BackoffBase, r.BackoffFactor)
	}
	return p
}

// LoadManifest merges the manifest file with the inline templates.
func (r RenderConfig) LoadManifest() (render.Manifest, error) {
	m := render.Manifest{}
	if r.ManifestPath != "" {
		loaded, err := render.LoadManifest(r.ManifestPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	for class, t := range r.Templates {
		m[class] = t
	}
	return m, nil
}
