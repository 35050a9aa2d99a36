package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/config"
	"github.com/department-tree/internal/database"
	"github.com/department-tree/internal/repository"
	"github.com/department-tree/internal/service"
)

// app - общие зависимости подкоманд
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "department-tree",
		Short:         "Department tree service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional env file")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, nil, err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	cmd.AddCommand(newServeCmd(load), newMigrateCmd(load), newReapCmd(load))
	return cmd
}

type loader func() (*config.Config, *slog.Logger, error)

// connect поднимает конфигурацию, логгер и подключение к БД
func connect(ctx context.Context, load loader) (*app, error) {
	cfg, logger, err := load()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *app) migrate(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return database.Migrate(ctx, sqlDB)
}

// newStore выбирает Redis, если он настроен, иначе кэш в памяти
func (a *app) newStore(ctx context.Context) (cache.Store, error) {
	if a.cfg.Redis.Addr == "" {
		a.logger.Info("redis is not configured, using in-memory cache")
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewRedisStore(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store, nil
}

func (a *app) deps(store cache.Store, notifier cache.Notifier) service.Deps {
	return service.Deps{
		Repo:       repository.NewRepository(a.db),
		Transactor: repository.NewTransactor(a.db),
		Cache:      store,
		Notifier:   notifier,
		CacheTTL:   a.cfg.Cache.TTL,
		Logger:     a.logger,
	}
}
