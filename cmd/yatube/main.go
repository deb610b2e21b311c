package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/storage"
	"github.com/UkralStul/yatube/internal/storage/inmemory"
	"github.com/UkralStul/yatube/internal/storage/postgres"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

var (
	configPath string
	envFile    string

	rootCmd = &cobra.Command{
		Use:           "yatube",
		Short:         "Yatube blogging service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file, skipped when absent")
	rootCmd.PersistentFlags().String("storage", "", "Storage type (in-memory or postgres)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, tokenCmd, migrateCmd, userCmd, groupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig накладывает по очереди значения по умолчанию, YAML-файл, .env,
// окружение и явно заданные флаги cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage, _ = flags.GetString("storage")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		cfg.Addr = f.Value.String()
	}
	if f := flags.Lookup("seed"); f != nil && f.Changed {
		cfg.Seed, _ = flags.GetBool("seed")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func gormLogLevel(level string) logger.LogLevel {
	if strings.EqualFold(level, "debug") {
		return logger.Info
	}
	return logger.Warn
}

// openStore возвращает настроенное хранилище и функцию его закрытия.
func openStore(cfg config.Config) (storage.Storage, func(), error) {
	if cfg.Storage == config.StoragePostgres {
		store, err := postgres.New(cfg.DatabaseURL, gormLogLevel(cfg.LogLevel))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return inmemory.New(), func() {}, nil
}

// withStore вызывает fn с настроенным хранилищем.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store storage.Storage) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(cmd.Context(), store)
}
