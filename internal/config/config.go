// Package config собирает настройки сервиса из значений по умолчанию,
// необязательного YAML-файла и окружения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	Storage        string        `yaml:"storage"`
	DatabaseURL    string        `yaml:"database_url"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	PageSize       int           `yaml:"page_size"`
	IndexCacheTTL  time.Duration `yaml:"index_cache_ttl"`
	Cache          string        `yaml:"cache"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	ForbiddenWords []string      `yaml:"forbidden_words"`
	Seed           bool          `yaml:"seed"`
	LogLevel       string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		Storage:        StorageInMemory,
		JWTSecret:      "dev-secret",
		TokenTTL:       24 * time.Hour,
		PageSize:       10,
		IndexCacheTTL:  20 * time.Second,
		Cache:          CacheMemory,
		ForbiddenWords: []string{"ёж"},
		Seed:           true,
		LogLevel:       "info",
	}
}

// LookupFunc совпадает по сигнатуре с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load начинает с Default, накладывает YAML-файл по path, если путь задан,
// и затем переменные из lookup. При nil lookup читается окружение процесса.
func Load(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv переносит переменные из .env-файлов в окружение процесса, не
// перетирая уже заданные. Отсутствующие файлы пропускаются.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Addr = ":" + v
	}
	str := map[string]*string{
		"ADDR":           &c.Addr,
		"STORAGE":        &c.Storage,
		"DATABASE_URL":   &c.DatabaseURL,
		"JWT_SECRET":     &c.JWTSecret,
		"CACHE":          &c.Cache,
		"REDIS_ADDR":     &c.RedisAddr,
		"REDIS_PASSWORD": &c.RedisPassword,
		"LOG_LEVEL":      &c.LogLevel,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	durations := map[string]*time.Duration{
		"INDEX_CACHE_TTL": &c.IndexCacheTTL,
		"TOKEN_TTL":       &c.TokenTTL,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup("SEED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED: %w", err)
		}
		c.Seed = b
	}
	if v, ok := lookup("FORBIDDEN_WORDS"); ok && v != "" {
		c.ForbiddenWords = strings.Split(v, ",")
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Cache {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache %q", c.Cache))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.IndexCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("index_cache_ttl must be positive, got %s", c.IndexCacheTTL))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must be set"))
	}
	return errors.Join(errs...)
}
