// Package app assembles deskbot from its configuration: storage, locks,
// gateway, relay, workflow, telegram glue, scheduled jobs and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/deskbot/core/bootstrap"
	"github.com/m3rciful/deskbot/core/logger"
	"github.com/m3rciful/deskbot/core/metrics"
	tg "github.com/m3rciful/deskbot/core/telegram"
	"github.com/m3rciful/deskbot/internal/bot"
	"github.com/m3rciful/deskbot/internal/config"
	"github.com/m3rciful/deskbot/internal/gateway"
	"github.com/m3rciful/deskbot/internal/jobs"
	"github.com/m3rciful/deskbot/internal/locks"
	"github.com/m3rciful/deskbot/internal/relay"
	"github.com/m3rciful/deskbot/internal/storage"
	"github.com/m3rciful/deskbot/internal/storage/memory"
	"github.com/m3rciful/deskbot/internal/storage/postgres"
	"github.com/m3rciful/deskbot/internal/workflow"
)

type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	redis    *goredis.Client
	tgBot    *tele.Bot
	bot      *bot.Bot
	registry *tg.Registry
	sched    *jobs.Scheduler
	metrics  *metrics.Server
}

// New bootstraps infrastructure and builds the application.
func New(cfg *config.Config) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:       cfg.Core(),
		Database:     cfg.Database,
		SkipDatabase: cfg.Storage.Driver == config.StorageDriverMemory,
	})
	if err != nil {
		return nil, err
	}
	tgBot, err := tg.NewBot(cfg.Core())
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	a, err := assemble(cfg, infra, tgBot)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg *config.Config, infra *bootstrap.Result, tgBot *tele.Bot) (*App, error) {
	a := &App{cfg: cfg, infra: infra, tgBot: tgBot, registry: tg.NewRegistry()}

	var store storage.Store
	if infra.DB != nil {
		store = postgres.New(infra.DB)
	} else {
		store = memory.New()
	}
	logger.Info(context.Background(), "app", "storage.ready", slog.String("kind", cfg.Storage.Driver))

	locker, err := a.locker()
	if err != nil {
		return nil, err
	}

	gw := gateway.NewTelebot(tgBot)
	rl := relay.New(gw, store, relay.Config{
		GroupID:            cfg.Admin.GroupID,
		MessageTopicID:     cfg.Admin.MessageTopicID,
		ApplicationTopicID: cfg.Admin.ApplicationTopicID,
	})
	svc := workflow.New(store, rl, gw, locker, workflow.Config{
		MaxFileSize: cfg.Files.MaxSizeBytes,
		DraftTTL:    cfg.Files.DraftTTL,
	})

	a.bot = bot.New(svc, cfg.Admin.GroupID)
	if err := a.bot.Register(a.registry); err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	a.sched = jobs.NewScheduler()
	if err := a.sched.Add(cfg.Jobs.DraftSweep, jobs.NewDraftSweep(store.Drafts())); err != nil {
		a.closeRedis()
		return nil, err
	}
	return a, nil
}

func (a *App) locker() (locks.Locker, error) {
	if a.cfg.Locks.Backend != config.LockBackendRedis {
		return locks.NewMemory(a.cfg.Locks.Wait), nil
	}
	a.redis = goredis.NewClient(&goredis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.closeRedis()
		return nil, fmt.Errorf("redis ping %s: %w", a.cfg.Redis.Addr, err)
	}
	logger.Info(ctx, "locks", "locks.ready",
		slog.String("kind", config.LockBackendRedis),
		slog.String("host", a.cfg.Redis.Addr),
	)
	return locks.NewRedis(a.redis, locks.RedisOptions{TTL: a.cfg.Locks.TTL, Wait: a.cfg.Locks.Wait}), nil
}

func (a *App) closeRedis() {
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
}

// TelegramRunOptions describes how core/telegram should run this bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.Core()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Bot:         a.tgBot,
		Middlewares: a.bot.Middlewares(core),
		Routes:      a.bot.Routes(a.registry),
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(context.Context, tg.Runtime) error {
	a.metrics = metrics.Start(a.cfg.Metrics.Listen)
	a.sched.Start()
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	a.sched.Stop(ctx)
	errs := []error{a.metrics.Shutdown(ctx), a.infra.Close()}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
