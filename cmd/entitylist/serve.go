package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/contenttype"
	httpapp "github.com/entitylist/entitylist/internal/http"
	"github.com/entitylist/entitylist/internal/http/handlers"
	"github.com/entitylist/entitylist/internal/logging"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the HTTP list API.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotation(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry, err := contenttype.NewRegistry(cfg.ContentTypesFile, logging.ForComponent(logger, "contenttype"))
	if err != nil {
		return err
	}

	st := store.New(pool,
		store.WithMaxResponseBytes(cfg.MaxResponseBytes),
		store.WithLogger(logging.ForComponent(logger, "store")),
	)

	h := &handlers.Handlers{
		Cfg:          cfg,
		Collections:  st,
		Health:       st,
		Sessions:     httpapp.NewSessionManager(pool, cfg),
		ContentTypes: registry,
		Logger:       logging.ForComponent(logger, "http"),
	}
	httpServer := httpapp.NewEchoServer(h).NewHTTPServer(cfg.HTTPAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if _, metricsErrCh := metrics.StartServer(gctx, cfg.MetricsAddr); metricsErrCh != nil {
		g.Go(func() error {
			select {
			case err := <-metricsErrCh:
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}

	g.Go(func() error {
		return registry.Watch(gctx)
	})

	return g.Wait()
}
