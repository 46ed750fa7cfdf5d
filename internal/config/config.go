// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the API, the worker and the CLI.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Stream  StreamConfig  `yaml:"stream"`
	API     APIConfig     `yaml:"api"`
	OBS     OBSConfig     `yaml:"obs"`
	Status  StatusConfig  `yaml:"status"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StreamConfig struct {
	Name  string        `yaml:"name"`
	Group string        `yaml:"group"`
	Block time.Duration `yaml:"block"`
}

// APIConfig holds the address the API listens on and the URL the CLI
// reaches it at.
type APIConfig struct {
	Listen string `yaml:"listen"`
	URL    string `yaml:"url"`
}

// OBSConfig points at the bucket finished runs are archived to.
// Leaving it empty disables archiving.
type OBSConfig struct {
	Endpoint string `yaml:"endpoint"`
	AK       string `yaml:"ak"`
	SK       string `yaml:"sk"`
	Bucket   string `yaml:"bucket"`
}

// Enabled reports whether every OBS field is set.
func (c OBSConfig) Enabled() bool {
	return c.Endpoint != "" && c.AK != "" && c.SK != "" && c.Bucket != ""
}

type StatusConfig struct {
	// How long a finished or cancelled status record is kept.
	Retention time.Duration `yaml:"retention"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Stream: StreamConfig{
			Name:  "hourglass_commands",
			Group: "hourglass-workers",
			Block: 5 * time.Second,
		},
		API: APIConfig{
			Listen: ":8080",
			URL:    "http://localhost:8080",
		},
		Status: StatusConfig{
			Retention: 24 * time.Hour,
		},
		History: HistoryConfig{
			Path: "hourglass.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of the defaults and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.OBS.Endpoint, "OBS_ENDPOINT")
	override(&c.OBS.AK, "OBS_AK")
	override(&c.OBS.SK, "OBS_SK")
	override(&c.OBS.Bucket, "OBS_BUCKET")
	override(&c.API.Listen, "HOURGLASS_LISTEN")
	override(&c.API.URL, "HOURGLASS_API_URL")
	override(&c.Log.Level, "HOURGLASS_LOG_LEVEL")
}

// Validate checks the fields every binary relies on.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Stream.Name == "" || c.Stream.Group == "" {
		return errors.New("stream.name and stream.group are required")
	}
	if c.Stream.Block < 0 {
		return fmt.Errorf("stream.block must not be negative, got %v", c.Stream.Block)
	}
	if c.Status.Retention < 0 {
		return fmt.Errorf("status.retention must not be negative, got %v", c.Status.Retention)
	}
	return nil
}
