package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RichardoC/chatline/internal/api"
	"github.com/RichardoC/chatline/internal/config"
	"github.com/RichardoC/chatline/internal/conversation"
	"github.com/RichardoC/chatline/internal/db"
	"github.com/RichardoC/chatline/internal/llm"
	"github.com/RichardoC/chatline/internal/logging"
	"github.com/RichardoC/chatline/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatline:", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(os.Getenv("CHATLINE_CONFIG"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := db.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database",
			zap.Error(err),
			zap.String("driver", cfg.Database.Driver))
		return err
	}
	defer store.Close()

	replier, err := llm.NewReplier(cfg.Reply)
	if err != nil {
		logger.Error("failed to initialize reply backend", zap.Error(err))
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		replier = llm.Observed(replier, cfg.Reply.Backend, m)
	}

	service := conversation.New(store, store, replier, logger)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(service, logger), api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		banner(cfg)
		logger.Info("starting server",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.String("database", cfg.Database.Driver),
			zap.String("reply", cfg.Reply.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

func banner(cfg *config.Config) {
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	cyan.Println("chatline")
	dim.Printf("  listening on %s\n", cfg.Server.HTTPAddr)
	dim.Printf("  store: %s, replies: %s\n", cfg.Database.Driver, cfg.Reply.Backend)
	if cfg.Metrics.Enabled {
		dim.Printf("  metrics at %s\n", cfg.Metrics.Path)
	}
}
