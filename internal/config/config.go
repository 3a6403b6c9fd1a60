// Package config resolves studymap settings. Later sources win: built-in
// defaults, the TOML file, .env, the environment, then command-line flags
// (applied by the caller).
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Store      StoreConfig           `toml:"store"`
	OpenAI     OpenAIConfig          `toml:"openai"`
	Importance model.ImportanceRange `toml:"importance"`
	Server     ServerConfig          `toml:"server"`
	Log        LogConfig             `toml:"log"`
}

type StoreConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
	// QuotaBytes caps stored value bytes. Zero means unlimited.
	QuotaBytes int64       `toml:"quota_bytes"`
	Redis      RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type OpenAIConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PromptBudget      int     `toml:"prompt_budget"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	SecureCookie   bool     `toml:"secure_cookie"`
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

// DefaultDir is ~/.studymap.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".studymap"
	}
	return filepath.Join(home, ".studymap")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string { return filepath.Join(DefaultDir(), "config.toml") }

// Default returns the built-in settings.
func Default() Config {
	ai := genai.DefaultOpenAIConfig()
	return Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(DefaultDir(), "studymap.db"),
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "studymap:"},
		},
		OpenAI: OpenAIConfig{
			BaseURL:        ai.BaseURL,
			Model:          ai.Model,
			TimeoutSeconds: int(ai.Timeout / time.Second),
			MaxRetries:     ai.MaxRetries,
			PromptBudget:   ai.PromptBudget,
		},
		Importance: model.DefaultImportanceRange,
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Log: LogConfig{Mode: "development"},
	}
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path (or DefaultPath when empty) over the defaults, then
// applies the environment. An explicit path must exist.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if err := set(strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("STUDYMAP_DB", &cfg.Store.Path)
	str("STUDYMAP_STORE", &cfg.Store.Backend)
	str("STUDYMAP_REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("STUDYMAP_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	num("STUDYMAP_QUOTA_BYTES", func(v string) (err error) {
		cfg.Store.QuotaBytes, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	str("STUDYMAP_ADDR", &cfg.Server.Addr)
	if v, ok := lookup("STUDYMAP_ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	str("STUDYMAP_LOG_MODE", &cfg.Log.Mode)

	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	str("OPENAI_MODEL", &cfg.OpenAI.Model)
	num("OPENAI_TIMEOUT_SECONDS", func(v string) (err error) {
		cfg.OpenAI.TimeoutSeconds, err = strconv.Atoi(v)
		return err
	})
	num("OPENAI_MAX_RETRIES", func(v string) (err error) {
		cfg.OpenAI.MaxRetries, err = strconv.Atoi(v)
		return err
	})
	num("STUDYMAP_LLM_RPS", func(v string) (err error) {
		cfg.OpenAI.RequestsPerSecond, err = strconv.ParseFloat(v, 64)
		return err
	})
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite, memory or redis)", c.Store.Backend)
	}
	if c.Store.QuotaBytes < 0 {
		return fmt.Errorf("store quota must not be negative")
	}
	if !c.Importance.Valid() {
		return fmt.Errorf("importance range [%d,%d] is empty", c.Importance.Min, c.Importance.Max)
	}
	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai max_retries must not be negative")
	}
	return nil
}

// GenAI converts the openai section for genai.NewOpenAIClient.
func (c Config) GenAI() genai.OpenAIConfig {
	return genai.OpenAIConfig{
		APIKey:            c.OpenAI.APIKey,
		BaseURL:           c.OpenAI.BaseURL,
		Model:             c.OpenAI.Model,
		Timeout:           time.Duration(c.OpenAI.TimeoutSeconds) * time.Second,
		MaxRetries:        c.OpenAI.MaxRetries,
		Backoff:           time.Second,
		RequestsPerSecond: c.OpenAI.RequestsPerSecond,
		PromptBudget:      c.OpenAI.PromptBudget,
		Importance:        c.Importance,
	}
}

// OpenStore opens the configured backend.
func (c StoreConfig) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return store.NewMemoryStore(c.QuotaBytes), nil
	case BackendRedis:
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:          c.Redis.Addr,
			Password:      c.Redis.Password,
			DB:            c.Redis.DB,
			Prefix:        c.Redis.Prefix,
			MaxValueBytes: c.QuotaBytes,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		ss, err := store.NewSQLiteStore(c.Path, store.WithQuota(c.QuotaBytes))
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
}
