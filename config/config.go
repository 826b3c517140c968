// Package config provides configuration management for the genminute
// command-line tool. It supports loading configuration from a YAML file,
// environment variables, and command-line flags, with flags taking
// precedence over environment variables, which take precedence over the
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".genminute"
	DefaultConfigFile = "config.yaml"

	DefaultStageTimeout    = 20 * time.Minute
	DefaultRequestTimeout  = 2 * time.Minute
	DefaultTranscriberAddr = "http://localhost:9000"
	DefaultModelAddr       = "http://localhost:8000"
	DefaultModel           = "gemini-2.5-flash"
	DefaultEmbeddingModel  = "text-embedding-004"
	DefaultCalendarAddr    = "https://www.googleapis.com/calendar/v3"
	DefaultWorkDir         = "uploads"
)

// AllowedExtensions lists the media extensions accepted for ingestion.
var AllowedExtensions = []string{"wav", "mp3", "m4a", "flac", "ogg", "mp4", "webm"}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RedisConfig holds the optional Redis checkpoint store settings.
type RedisConfig struct {
	// Addr is the host:port of the Redis server. Empty disables Redis and
	// workflow checkpoints fall back to the in-memory store.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MediaConfig holds media normalization settings.
type MediaConfig struct {
	// FFmpegPath is the ffmpeg binary to invoke (default: ffmpeg on PATH).
	FFmpegPath string

	// StageTimeout bounds any single external tool invocation.
	StageTimeout time.Duration

	// WorkDir is where uploaded media and temp derivatives are placed.
	WorkDir string
}

// TranscriberConfig holds speech-to-text service settings.
type TranscriberConfig struct {
	Addr     string
	Language string
	Timeout  time.Duration
}

// ModelConfig holds language-model service settings.
type ModelConfig struct {
	Addr           string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// CalendarConfig holds calendar service settings.
type CalendarConfig struct {
	Addr    string
	Timeout time.Duration

	// Simulate routes scheduling through the simulated client instead of
	// the external service. Useful for dry runs and local development.
	Simulate bool
}

// Config is the root genminute configuration.
type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Media       MediaConfig
	Transcriber TranscriberConfig
	Model       ModelConfig
	Calendar    CalendarConfig

	LogLevel string
	LogJSON  bool
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "genminute",
			User:    "genminute",
			SSLMode: "disable",
		},
		Media: MediaConfig{
			FFmpegPath:   "ffmpeg",
			StageTimeout: DefaultStageTimeout,
			WorkDir:      DefaultWorkDir,
		},
		Transcriber: TranscriberConfig{
			Addr:    DefaultTranscriberAddr,
			Timeout: DefaultStageTimeout,
		},
		Model: ModelConfig{
			Addr:           DefaultModelAddr,
			Model:          DefaultModel,
			EmbeddingModel: DefaultEmbeddingModel,
			Timeout:        DefaultRequestTimeout,
		},
		Calendar: CalendarConfig{
			Addr:    DefaultCalendarAddr,
			Timeout: DefaultRequestTimeout,
		},
		LogLevel: "info",
	}
}

// Path returns the default config file path (~/.genminute/config.yaml).
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// fileConfig mirrors Config for YAML unmarshaling. Durations are strings
// ("5m", "90s") and parsed with time.ParseDuration.
type fileConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Media    struct {
		FFmpegPath   string `yaml:"ffmpeg_path"`
		StageTimeout string `yaml:"stage_timeout"`
		WorkDir      string `yaml:"work_dir"`
	} `yaml:"media"`
	Transcriber struct {
		Addr     string `yaml:"addr"`
		Language string `yaml:"language"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"transcriber"`
	Model struct {
		Addr           string `yaml:"addr"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		EmbeddingModel string `yaml:"embedding_model"`
		Timeout        string `yaml:"timeout"`
	} `yaml:"model"`
	Calendar struct {
		Addr     string `yaml:"addr"`
		Timeout  string `yaml:"timeout"`
		Simulate *bool  `yaml:"simulate"`
	} `yaml:"calendar"`
	LogLevel string `yaml:"log_level"`
	LogJSON  *bool  `yaml:"log_json"`
}

// Load reads configuration from the given file (optional), then applies
// GENMINUTE_* environment variable overrides. A missing file is not an
// error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := Path()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := applyFile(cfg, data); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile merges a YAML config file into cfg. Empty fields leave
// defaults untouched.
func applyFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	mergeString := func(src string, dst *string) {
		if src != "" {
			*dst = src
		}
	}
	mergeDuration := func(src string, dst *time.Duration) error {
		if src == "" {
			return nil
		}
		d, err := time.ParseDuration(src)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", src, err)
		}
		*dst = d
		return nil
	}

	mergeString(fc.Database.Host, &cfg.Database.Host)
	if fc.Database.Port != 0 {
		cfg.Database.Port = fc.Database.Port
	}
	mergeString(fc.Database.Name, &cfg.Database.Name)
	mergeString(fc.Database.User, &cfg.Database.User)
	mergeString(fc.Database.Password, &cfg.Database.Password)
	mergeString(fc.Database.SSLMode, &cfg.Database.SSLMode)

	mergeString(fc.Redis.Addr, &cfg.Redis.Addr)
	mergeString(fc.Redis.Password, &cfg.Redis.Password)
	if fc.Redis.DB != 0 {
		cfg.Redis.DB = fc.Redis.DB
	}

	mergeString(fc.Media.FFmpegPath, &cfg.Media.FFmpegPath)
	if err := mergeDuration(fc.Media.StageTimeout, &cfg.Media.StageTimeout); err != nil {
		return err
	}
	mergeString(fc.Media.WorkDir, &cfg.Media.WorkDir)

	mergeString(fc.Transcriber.Addr, &cfg.Transcriber.Addr)
	mergeString(fc.Transcriber.Language, &cfg.Transcriber.Language)
	if err := mergeDuration(fc.Transcriber.Timeout, &cfg.Transcriber.Timeout); err != nil {
		return err
	}

	mergeString(fc.Model.Addr, &cfg.Model.Addr)
	mergeString(fc.Model.APIKey, &cfg.Model.APIKey)
	mergeString(fc.Model.Model, &cfg.Model.Model)
	mergeString(fc.Model.EmbeddingModel, &cfg.Model.EmbeddingModel)
	if err := mergeDuration(fc.Model.Timeout, &cfg.Model.Timeout); err != nil {
		return err
	}

	mergeString(fc.Calendar.Addr, &cfg.Calendar.Addr)
	if err := mergeDuration(fc.Calendar.Timeout, &cfg.Calendar.Timeout); err != nil {
		return err
	}
	if fc.Calendar.Simulate != nil {
		cfg.Calendar.Simulate = *fc.Calendar.Simulate
	}

	mergeString(fc.LogLevel, &cfg.LogLevel)
	if fc.LogJSON != nil {
		cfg.LogJSON = *fc.LogJSON
	}

	return nil
}

// applyEnv overrides config fields from GENMINUTE_* environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("GENMINUTE_DB_HOST", &cfg.Database.Host)
	setInt("GENMINUTE_DB_PORT", &cfg.Database.Port)
	setString("GENMINUTE_DB_NAME", &cfg.Database.Name)
	setString("GENMINUTE_DB_USER", &cfg.Database.User)
	setString("GENMINUTE_DB_PASSWORD", &cfg.Database.Password)
	setString("GENMINUTE_DB_SSLMODE", &cfg.Database.SSLMode)

	setString("GENMINUTE_REDIS_ADDR", &cfg.Redis.Addr)
	setString("GENMINUTE_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("GENMINUTE_REDIS_DB", &cfg.Redis.DB)

	setString("GENMINUTE_FFMPEG_PATH", &cfg.Media.FFmpegPath)
	setDuration("GENMINUTE_STAGE_TIMEOUT", &cfg.Media.StageTimeout)
	setString("GENMINUTE_WORK_DIR", &cfg.Media.WorkDir)

	setString("GENMINUTE_TRANSCRIBER_ADDR", &cfg.Transcriber.Addr)
	setString("GENMINUTE_TRANSCRIBER_LANGUAGE", &cfg.Transcriber.Language)
	setDuration("GENMINUTE_TRANSCRIBER_TIMEOUT", &cfg.Transcriber.Timeout)

	setString("GENMINUTE_MODEL_ADDR", &cfg.Model.Addr)
	setString("GENMINUTE_MODEL_API_KEY", &cfg.Model.APIKey)
	setString("GENMINUTE_MODEL", &cfg.Model.Model)
	setString("GENMINUTE_EMBEDDING_MODEL", &cfg.Model.EmbeddingModel)
	setDuration("GENMINUTE_MODEL_TIMEOUT", &cfg.Model.Timeout)

	setString("GENMINUTE_CALENDAR_ADDR", &cfg.Calendar.Addr)
	setDuration("GENMINUTE_CALENDAR_TIMEOUT", &cfg.Calendar.Timeout)
	setBool("GENMINUTE_CALENDAR_SIMULATE", &cfg.Calendar.Simulate)

	setString("GENMINUTE_LOG_LEVEL", &cfg.LogLevel)
	setBool("GENMINUTE_LOG_JSON", &cfg.LogJSON)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Media.StageTimeout <= 0 {
		return fmt.Errorf("media.stage_timeout must be positive, got %s", c.Media.StageTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (expected debug, info, warn, or error)", c.LogLevel)
	}
	return nil
}

// Save writes the config to the given path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write through fileConfig so durations serialize as strings.
	var fc fileConfig
	fc.Database = c.Database
	fc.Redis = c.Redis
	fc.Media.FFmpegPath = c.Media.FFmpegPath
	fc.Media.StageTimeout = c.Media.StageTimeout.String()
	fc.Media.WorkDir = c.Media.WorkDir
	fc.Transcriber.Addr = c.Transcriber.Addr
	fc.Transcriber.Language = c.Transcriber.Language
	fc.Transcriber.Timeout = c.Transcriber.Timeout.String()
	fc.Model.Addr = c.Model.Addr
	fc.Model.APIKey = c.Model.APIKey
	fc.Model.Model = c.Model.Model
	fc.Model.EmbeddingModel = c.Model.EmbeddingModel
	fc.Model.Timeout = c.Model.Timeout.String()
	fc.Calendar.Addr = c.Calendar.Addr
	fc.Calendar.Timeout = c.Calendar.Timeout.String()
	fc.Calendar.Simulate = &c.Calendar.Simulate
	fc.LogLevel = c.LogLevel
	fc.LogJSON = &c.LogJSON

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// IsAllowedExtension reports whether ext (without dot, any case) is an
// accepted media extension.
func IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
