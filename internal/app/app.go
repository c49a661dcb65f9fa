package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WatchBeam/clock"
	"google.golang.org/api/option"

	"toggl-calsync/internal/adapter/gcal"
	msql "toggl-calsync/internal/adapter/mysql"
	rds "toggl-calsync/internal/adapter/redis"
	tg "toggl-calsync/internal/adapter/toggl"
	"toggl-calsync/internal/checkpoint"
	"toggl-calsync/internal/config"
	"toggl-calsync/internal/migrate"
	"toggl-calsync/internal/notify"
	"toggl-calsync/internal/ports"
	"toggl-calsync/internal/retry"
	"toggl-calsync/internal/usecase"
)

// App wires adapters and use cases.
type App struct {
	log        *slog.Logger
	reconciler *usecase.Reconciler
	sweeper    *usecase.Sweeper
	store      *checkpoint.Store
	notifier   *notify.SMTPNotifier
}

func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	// Run migrations before opening the durable tier for use.
	if err := migrate.Run(ctx, cfg.MySQLDSN, log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	durable, err := msql.NewClient(ctx, cfg.MySQLDSN, log)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	cache := rds.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)

	var locker ports.Locker
	switch cfg.LockBackend {
	case "mysql":
		locker = msql.NewLocker(durable)
	default:
		locker = rds.NewLocker(cache)
	}

	var calOpts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		calOpts = append(calOpts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	cal, err := gcal.NewClient(ctx, cfg.CalendarID, log, calOpts...)
	if err != nil {
		return nil, err
	}

	api := tg.NewClient(cfg.TogglBaseURL, cfg.TogglAPIToken, log)
	notifier := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPTo, log)
	store := checkpoint.NewStore(cache, durable, cfg.CacheTTL, log)
	pol := retry.Policy{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}

	rec := &usecase.Reconciler{
		Log:        log,
		API:        api,
		Checkpoint: store,
		Lock:       locker,
		Notify:     notifier,
		Clock:      clock.C,
		Retry:      pol,
		Matcher: &usecase.Matcher{
			Log:    log,
			Cal:    cal,
			Notify: notifier,
			Retry:  pol,
			Clock:  clock.C,
		},
		Writer:   &usecase.Writer{Cal: cal},
		Overlap:  time.Duration(cfg.OverlapSeconds) * time.Second,
		LockWait: cfg.LockWait,
	}
	sweeper := &usecase.Sweeper{
		Log:   log,
		API:   api,
		Cal:   cal,
		Retry: pol,
		Clock: clock.C,
	}

	return &App{
		log:        log,
		reconciler: rec,
		sweeper:    sweeper,
		store:      store,
		notifier:   notifier,
	}, nil
}

// RunMode executes one reconciler leg in the given mode. Continuation is
// the caller's responsibility: the result only requests it.
func (a *App) RunMode(ctx context.Context, mode usecase.Mode) (usecase.RunResult, error) {
	return a.reconciler.Run(ctx, mode)
}

// RunToCompletion drives legs until no continuation is requested. Used by
// the manual auto-continuing modes; subsequent legs resume from the
// persisted index.
func (a *App) RunToCompletion(ctx context.Context, mode usecase.Mode) (usecase.RunResult, error) {
	for {
		res, err := a.reconciler.Run(ctx, mode)
		if err != nil || !res.ContinuationRequested {
			return res, err
		}
		a.log.Info("continuing interrupted batch", slog.Int("resume_index", res.ResumeIndex))
		// Later legs re-read the checkpoint, so drop the forced fresh start.
		if mode.IgnoreCheckpoint {
			mode.IgnoreCheckpoint = false
		}
	}
}

func (a *App) RemoveDuplicates(ctx context.Context) (int, error) {
	return a.sweeper.RemoveDuplicates(ctx)
}

func (a *App) SweepDeleted(ctx context.Context, window time.Duration) (int, error) {
	return a.sweeper.SweepDeleted(ctx, window)
}

func (a *App) ClearCheckpoint(ctx context.Context) error {
	return a.store.Clear(ctx)
}

func (a *App) TestNotification(ctx context.Context) {
	a.notifier.Test(ctx)
}
