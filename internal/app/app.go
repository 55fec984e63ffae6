package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"paywatch/internal/cache"
	"paywatch/internal/config"
	"paywatch/internal/importer"
	"paywatch/internal/notify"
	"paywatch/internal/scheduler"
	"paywatch/internal/source"
	"paywatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() source.MessageSource {
	cfg := a.Config.Inbox
	return source.NewInboxClient(source.InboxOptions{
		BaseURL:          cfg.BaseURL,
		AuthToken:        cfg.AuthToken,
		Query:            cfg.Query,
		PageSize:         cfg.PageSize,
		Timeout:          cfg.RequestTimeout,
		MaxRetries:       cfg.MaxRetries,
		RateLimitPerSec:  cfg.RateLimitPerSec,
		RateLimitBurst:   cfg.RateLimitBurst,
		BreakerCooldown:  cfg.BreakerCooldown,
		BreakerThreshold: cfg.BreakerThreshold,
	}, a.Logger)
}

func (a *App) newNotifier() notify.Notifier {
	if !a.Config.Slack.Enabled {
		return nil
	}
	cfg := a.Config.Slack
	return notify.NewSlackNotifier(cfg.APIToken, cfg.ChannelID, cfg.APIBase, cfg.RequestTimeout, a.Logger)
}

func (a *App) newScheduler() (*scheduler.Scheduler, error) {
	opts := scheduler.Options{
		Interval:     a.Config.Poller.Interval,
		StartupDelay: a.Config.Poller.StartupDelay,
		QuietRecheck: a.Config.QuietHours.RecheckInterval,
	}

	if a.Config.QuietHours.Enabled {
		start, err := config.ParseClock(a.Config.QuietHours.Start)
		if err != nil {
			return nil, err
		}
		end, err := config.ParseClock(a.Config.QuietHours.End)
		if err != nil {
			return nil, err
		}
		opts.Quiet = &scheduler.QuietWindow{StartMinute: start, EndMinute: end}
	}

	return scheduler.New(opts, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is required")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newImporter(sched *scheduler.Scheduler, store storage.PaymentStore) *importer.Service {
	return importer.New(
		sched,
		a.newSource(),
		store,
		cache.New(),
		a.newNotifier(),
		importer.Options{Lookback: time.Duration(a.Config.Poller.LookbackDays) * 24 * time.Hour},
		a.Logger,
	)
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched, err := a.newScheduler()
	if err != nil {
		return err
	}

	svc := a.newImporter(sched, store)

	a.Logger.Info().Msg("starting payment watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("payment watcher stopped")
	return nil
}

// ImportOnce runs a single pipeline cycle and delivers any new notices.
func (a *App) ImportOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newImporter(nil, store)
	return svc.Cycle(ctx)
}

// Migrate applies pending schema migrations.
func (a *App) Migrate() error {
	if err := storage.Migrate(a.Config.Database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Logger.Info().Str("path", a.Config.Database.MigrationsPath).Msg("migrations applied")
	return nil
}

// ExportOptions hold parameters for exporting payment history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
