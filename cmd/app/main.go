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

	"dispatch/cmd"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dispatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cmd.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cmd.NewCompositionRoot(ctx, cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.StartBackground(gctx)
	})
	g.Go(func() error {
		addr := fmt.Sprintf("0.0.0.0:%s", cfg.HTTP.Port)
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := app.Echo().Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg cmd.LogConfig) zerolog.Logger {
	level, _ := cfg.ZerologLevel()
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "dispatch").Logger()
}
