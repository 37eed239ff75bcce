// Package config loads the settings of the coltab command and server from
// a YAML file and COLTAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/internal/filter"
	"github.com/robert-malhotra/go-coltab/internal/logging"
	"github.com/robert-malhotra/go-coltab/kv/gcskv"
	"github.com/robert-malhotra/go-coltab/kv/s3kv"
)

// EnvPrefix prefixes environment overrides: storage.level is read from
// COLTAB_STORAGE_LEVEL.
const EnvPrefix = "COLTAB"

// Text handling modes.
const (
	TextStrict  = "strict"
	TextReplace = "replace"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full configuration.
type Config struct {
	Log     logging.Config `mapstructure:"log" yaml:"log"`
	Storage Storage        `mapstructure:"storage" yaml:"storage"`
	Text    string         `mapstructure:"text" yaml:"text"`
	S3      S3             `mapstructure:"s3" yaml:"s3"`
	GCS     GCS            `mapstructure:"gcs" yaml:"gcs"`
	Server  Server         `mapstructure:"server" yaml:"server"`
}

// Storage configures the chunks of new arrays.
type Storage struct {
	Compressor string `mapstructure:"compressor" yaml:"compressor"`
	Level      int    `mapstructure:"level" yaml:"level"`
	Shuffle    bool   `mapstructure:"shuffle" yaml:"shuffle"`
	Fletcher32 bool   `mapstructure:"fletcher32" yaml:"fletcher32"`
	ChunkLen   int    `mapstructure:"chunk_len" yaml:"chunk_len"`
}

type S3 struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

type GCS struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Server configures the HTTP API.
type Server struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Metrics bool   `mapstructure:"metrics" yaml:"metrics"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	st := coltab.DefaultStorageOptions()
	return Config{
		Log: logging.DefaultConfig(),
		Storage: Storage{
			Compressor: st.Compressor,
			Level:      st.Level,
			Shuffle:    st.Shuffle,
			Fletcher32: st.Fletcher32,
			ChunkLen:   st.ChunkLen,
		},
		Text:   TextStrict,
		Server: Server{Addr: ":8080", Metrics: true},
	}
}

// New returns a viper instance with defaults and environment overrides
// registered. Every key must have a default for AutomaticEnv to see it.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	defaults := map[string]any{
		"log.level":            d.Log.Level,
		"log.development":      d.Log.Development,
		"log.encoding":         d.Log.Encoding,
		"log.output_paths":     d.Log.OutputPaths,
		"storage.compressor":   d.Storage.Compressor,
		"storage.level":        d.Storage.Level,
		"storage.shuffle":      d.Storage.Shuffle,
		"storage.fletcher32":   d.Storage.Fletcher32,
		"storage.chunk_len":    d.Storage.ChunkLen,
		"text":                 d.Text,
		"s3.region":            d.S3.Region,
		"s3.endpoint":          d.S3.Endpoint,
		"s3.path_style":        d.S3.PathStyle,
		"gcs.credentials_file": d.GCS.CredentialsFile,
		"gcs.endpoint":         d.GCS.Endpoint,
		"server.addr":          d.Server.Addr,
		"server.metrics":       d.Server.Metrics,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// BindFlags binds command line flags to configuration keys. Flags that
// are not present in fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads file, if set, into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.encoding %q", ErrInvalid, c.Log.Encoding)
	}
	if _, err := filter.CompressorConfig(c.Storage.Compressor, c.Storage.Level); err != nil {
		return fmt.Errorf("%w: storage.compressor: %v", ErrInvalid, err)
	}
	if c.Storage.ChunkLen < 0 {
		return fmt.Errorf("%w: storage.chunk_len %d", ErrInvalid, c.Storage.ChunkLen)
	}
	switch c.Text {
	case TextStrict, TextReplace:
	default:
		return fmt.Errorf("%w: text %q (want %s or %s)", ErrInvalid, c.Text, TextStrict, TextReplace)
	}
	return nil
}

// StorageOptions converts the storage section.
func (c *Config) StorageOptions() coltab.StorageOptions {
	return coltab.StorageOptions{
		Compressor: c.Storage.Compressor,
		Level:      c.Storage.Level,
		Shuffle:    c.Storage.Shuffle,
		Fletcher32: c.Storage.Fletcher32,
		ChunkLen:   c.Storage.ChunkLen,
	}
}

// StoreOptions returns the coltab options the configuration implies.
// Logger, metrics and tracer are left to the caller.
func (c *Config) StoreOptions() []coltab.Option {
	opts := []coltab.Option{coltab.WithStorage(c.StorageOptions())}
	if c.Text == TextReplace {
		opts = append(opts, coltab.WithLossyText())
	}

	var s3opts []s3kv.Option
	if c.S3.Region != "" {
		s3opts = append(s3opts, s3kv.WithRegion(c.S3.Region))
	}
	if c.S3.Endpoint != "" {
		s3opts = append(s3opts, s3kv.WithEndpoint(c.S3.Endpoint))
	}
	if c.S3.PathStyle {
		s3opts = append(s3opts, s3kv.WithPathStyle(true))
	}
	if len(s3opts) > 0 {
		opts = append(opts, coltab.WithS3(s3opts...))
	}

	var gcsopts []gcskv.Option
	if c.GCS.CredentialsFile != "" {
		gcsopts = append(gcsopts, gcskv.WithCredentialsFile(c.GCS.CredentialsFile))
	}
	if c.GCS.Endpoint != "" {
		gcsopts = append(gcsopts, gcskv.WithEndpoint(c.GCS.Endpoint))
	}
	if len(gcsopts) > 0 {
		opts = append(opts, coltab.WithGCS(gcsopts...))
	}
	return opts
}
