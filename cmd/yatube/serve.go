package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/cache"
	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/httpapi"
	"github.com/UkralStul/yatube/internal/moderation"
	"github.com/UkralStul/yatube/internal/notify"
	"github.com/UkralStul/yatube/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides PORT")
	serveCmd.Flags().Bool("seed", true, "Fill the in-memory store with mock data")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting server", "storage", cfg.Storage, "cache", cfg.Cache)
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Storage == config.StorageInMemory && cfg.Seed {
		// Заполним данными для тестов
		if err := fillWithMockData(ctx, store, log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	indexCache, err := newIndexCache(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := indexCache.(interface{ Close() error }); ok {
		defer c.Close()
	}

	observer := notify.NewCommentObserver()
	svc := service.New(store,
		service.WithModeration(moderation.New(cfg.ForbiddenWords...)),
		service.WithPageSize(cfg.PageSize),
		service.WithCommentObserver(observer),
	)
	api := httpapi.New(httpapi.Deps{
		Service:  svc,
		Store:    store,
		Issuer:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Cache:    indexCache,
		Observer: observer,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newIndexCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	if cfg.Cache == config.CacheRedis {
		return cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.IndexCacheTTL)
	}
	return cache.NewMemory(256, cfg.IndexCacheTTL), nil
}
