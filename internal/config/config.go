// Package config holds the complete application configuration. Values are
// resolved in three passes: struct tag defaults, then the YAML config file,
// then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Library  LibraryConfig  `yaml:"library" json:"library"`
	Import   ImportConfig   `yaml:"import" json:"import"`
	Player   PlayerConfig   `yaml:"player" json:"player"`
	Artwork  ArtworkConfig  `yaml:"artwork" json:"artwork"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ServerConfig holds the local control API configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host" env:"TUNEPORT_HOST" default:"127.0.0.1"`
	Port         int           `yaml:"port" json:"port" env:"TUNEPORT_PORT" default:"4747"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"TUNEPORT_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"TUNEPORT_WRITE_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds library database settings.
type DatabaseConfig struct {
	Path       string `yaml:"path" json:"path" env:"TUNEPORT_DB_PATH" default:"tuneport.db"`
	LogQueries bool   `yaml:"log_queries" json:"log_queries" env:"TUNEPORT_DB_LOG_QUERIES" default:"false"`
}

// LibraryConfig holds the music library folder settings.
type LibraryConfig struct {
	Path       string `yaml:"path" json:"path" env:"TUNEPORT_LIBRARY_PATH"`
	AutoImport bool   `yaml:"auto_import" json:"auto_import" env:"TUNEPORT_AUTO_IMPORT" default:"false"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	Concurrency     int  `yaml:"concurrency" json:"concurrency" env:"TUNEPORT_IMPORT_CONCURRENCY" default:"4"`
	ChunkSize       int  `yaml:"chunk_size" json:"chunk_size" env:"TUNEPORT_IMPORT_CHUNK_SIZE" default:"100"`
	FailureCap      int  `yaml:"failure_cap" json:"failure_cap" env:"TUNEPORT_IMPORT_FAILURE_CAP" default:"50"`
	AutoMaterialize bool `yaml:"auto_materialize" json:"auto_materialize" env:"TUNEPORT_AUTO_MATERIALIZE" default:"false"`
}

// PlayerConfig holds playback preferences.
type PlayerConfig struct {
	Volume        float64 `yaml:"volume" json:"volume" env:"TUNEPORT_VOLUME" default:"1.0"`
	DurationProbe bool    `yaml:"duration_probe" json:"duration_probe" env:"TUNEPORT_DURATION_PROBE" default:"true"`
}

// ArtworkConfig holds cover image storage settings.
type ArtworkConfig struct {
	Dir string `yaml:"dir" json:"dir" env:"TUNEPORT_ARTWORK_DIR" default:"artwork"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"TUNEPORT_LOG_LEVEL" default:"info"`
	JSON  bool   `yaml:"json" json:"json" env:"TUNEPORT_LOG_JSON" default:"false"`
}

// Load resolves the configuration from defaults, the optional YAML file at
// path, and environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := applyDefaults(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints the tag machinery cannot express.
func (c *Config) Validate() error {
	if c.Import.Concurrency < 1 {
		return fmt.Errorf("import.concurrency must be at least 1, got %d", c.Import.Concurrency)
	}
	if c.Import.ChunkSize < 1 {
		return fmt.Errorf("import.chunk_size must be at least 1, got %d", c.Import.ChunkSize)
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("player.volume must be within [0, 1], got %v", c.Player.Volume)
	}
	return nil
}

// applyDefaults walks the struct and sets zero-valued fields from their
// `default` tags.
func applyDefaults(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		def := t.Field(i).Tag.Get("default")
		if def == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, def); err != nil {
			return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

// applyEnv walks the struct and overrides fields whose `env` tag names a set
// environment variable.
func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := applyEnv(field); err != nil {
				return err
			}
			continue
		}
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported config field kind %s", field.Kind())
	}
	return nil
}
