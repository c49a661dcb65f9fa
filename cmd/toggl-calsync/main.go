package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toggl-calsync/internal/app"
	"toggl-calsync/internal/config"
	"toggl-calsync/internal/usecase"
)

func main() {
	// Flags
	mode := flag.String("mode", "", "Run one sync leg and exit: timeout, complete, initial or watch")
	op := flag.String("op", "", "Run an auxiliary operation and exit: dedupe, sweep-short, sweep-long, clear-checkpoint, notify-test")
	interval := flag.Duration("interval", 15*time.Minute, "Scheduled sync interval in watch service mode")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	// Logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// App
	application, err := app.New(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to initialize app", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *op != "" {
		if err := runOp(ctx, application, *op, logger); err != nil {
			logger.Error("operation failed", slog.String("op", *op), slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if *mode != "" {
		m, ok := usecase.ModeByName(*mode)
		if !ok {
			logger.Error("unknown mode", slog.String("mode", *mode))
			os.Exit(1)
		}
		var res usecase.RunResult
		if m.AutoContinue {
			res, err = application.RunToCompletion(ctx, m)
		} else {
			res, err = application.RunMode(ctx, m)
		}
		if err != nil {
			logger.Error("sync failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if res.ResumeIndex > 0 {
			logger.Info("sync interrupted, re-invoke to resume", slog.Int("resume_index", res.ResumeIndex))
			return
		}
		logger.Info("sync completed")
		return
	}

	// Service mode (default): watch loop plus HTTP trigger surface.
	srv := application.HTTPServer(cfg.HTTPAddr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	watchLoop(ctx, application, *interval, logger)
}

// watchLoop runs the scheduled trigger. A leg that requests continuation is
// re-triggered fire-and-forget after a short pause rather than chained
// synchronously, mirroring how a platform scheduler would enact it.
func watchLoop(ctx context.Context, application *app.App, interval time.Duration, logger *slog.Logger) {
	logger.Info("starting scheduled sync", slog.Duration("interval", interval))

	continuation := make(chan struct{}, 1)
	runLeg := func() {
		res, err := application.RunMode(ctx, usecase.ModeWatch)
		if err != nil {
			logger.Error("scheduled sync failed", slog.String("error", err.Error()))
			return
		}
		if res.ContinuationRequested {
			time.AfterFunc(5*time.Second, func() {
				select {
				case continuation <- struct{}{}:
				default:
				}
			})
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	runLeg()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-continuation:
			runLeg()
		case <-ticker.C:
			runLeg()
		}
	}
}

func runOp(ctx context.Context, application *app.App, op string, logger *slog.Logger) error {
	switch op {
	case "dedupe":
		removed, err := application.RemoveDuplicates(ctx)
		if err != nil {
			return err
		}
		logger.Info("duplicates removed", slog.Int("count", removed))
	case "sweep-short":
		removed, err := application.SweepDeleted(ctx, usecase.SweepShortRange)
		if err != nil {
			return err
		}
		logger.Info("orphan events removed", slog.Int("count", removed))
	case "sweep-long":
		removed, err := application.SweepDeleted(ctx, usecase.SweepLongRange)
		if err != nil {
			return err
		}
		logger.Info("orphan events removed", slog.Int("count", removed))
	case "clear-checkpoint":
		if err := application.ClearCheckpoint(ctx); err != nil {
			return err
		}
		logger.Info("checkpoint cleared")
	case "notify-test":
		application.TestNotification(ctx)
		logger.Info("test notification sent")
	default:
		return errors.New("unknown op " + op)
	}
	return nil
}
