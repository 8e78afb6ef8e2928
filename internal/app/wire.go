package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbiq/spreadbot/internal/cache/redis"
	"github.com/arbiq/spreadbot/internal/config"
	"github.com/arbiq/spreadbot/internal/domain"
	"github.com/arbiq/spreadbot/internal/notify"
	"github.com/arbiq/spreadbot/internal/store/postgres"
)

// Deps bundles the optional infrastructure the coordinator consumes. Cache and
// Store are nil when the corresponding backend is disabled.
type Deps struct {
	Notifier *notify.Notifier
	Cache    domain.PriceCache
	Store    domain.AttemptStore
}

// Wire constructs the external dependencies from configuration. The returned
// cleanup function closes everything Wire opened, in reverse order.
func Wire(ctx context.Context, cfg *config.Config) (*Deps, func(), error) {
	logger := slog.Default()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var senders []notify.Sender
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	deps := &Deps{
		Notifier: notify.NewNotifier(senders, logger),
	}

	if cfg.Redis.Enabled {
		pc, err := redis.New(ctx, redis.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: redis: %w", err)
		}
		closers = append(closers, func() { _ = pc.Close() })
		deps.Cache = pc
		logger.Info("redis price mirror enabled", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.Postgres.Enabled {
		pc, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: postgres: %w", err)
		}
		closers = append(closers, pc.Close)
		if cfg.Postgres.RunMigrations {
			if err := pc.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: postgres migrations: %w", err)
			}
		}
		deps.Store = postgres.NewAttemptStore(pc.Pool())
		logger.Info("postgres attempt journal enabled", slog.String("database", cfg.Postgres.Database))
	}

	return deps, cleanup, nil
}
