package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"rephrasego/internal/api"
	"rephrasego/internal/config"
	"rephrasego/internal/extract"
	"rephrasego/internal/scheduler"
	"rephrasego/internal/service/ai"
	"rephrasego/internal/service/rewrite"
	"rephrasego/internal/service/session"
	"rephrasego/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the cleanup scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, driver, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	store := session.NewStore(db, driver, session.Options{
		TTL:      cfg.SessionTTL(),
		StaleAge: cfg.StaleAge(),
		Cache:    cache,
	})

	providerName := cfg.BasicConfig.Provider
	provider, err := ai.NewProvider(ctx, providerName, cfg.Providers[providerName])
	if err != nil {
		return fmt.Errorf("init provider %s: %w", providerName, err)
	}
	extractor, err := extract.NewExtractor(ctx)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	if err := os.MkdirAll(cfg.BasicConfig.FileBaseDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	sched := scheduler.New(store, scheduler.Config{
		ExpiredInterval: cfg.ExpiredInterval(),
		StaleInterval:   cfg.StaleInterval(),
	})
	sched.Start(ctx)
	defer sched.Stop()

	handlers := api.NewHandler(
		store,
		rewrite.NewService(provider),
		extractor,
		worker.NewPool(cfg.BasicConfig.MaxConcurrentRewrites),
		cfg.BasicConfig.FileBaseDir,
		cfg.MaxUploadBytes(),
	)
	return serveHTTP(ctx, cfg, handlers)
}

func serveHTTP(ctx context.Context, cfg *config.Config, handlers *api.Handler) error {
	router := gin.New()
	router.Use(gin.Logger(), api.ErrorLogger())
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
