package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/dialtone/internal/config"
	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/pkg/adapters/file"
	"github.com/aretw0/dialtone/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/dialtone/pkg/adapters/redis"
	"github.com/aretw0/dialtone/pkg/adapters/sqlite"
	"github.com/aretw0/dialtone/pkg/persistence/middleware"
	"github.com/aretw0/dialtone/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// loadConfig resolves defaults, the config file, the environment and then
// any flag the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewDefaultConfig()

	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("addr", &cfg.Addr)
	str("base-url", &cfg.BaseURL)
	str("flows", &cfg.FlowsDir)
	str("store", &cfg.SessionStore)
	str("session-dir", &cfg.SessionDir)
	str("route-store", &cfg.RouteStore)
	str("redis-addr", &cfg.Redis.Addr)
	str("sqlite-dsn", &cfg.SQLiteDSN)
	str("monitor-url", &cfg.MonitorURL)

	dur := func(name string, dst *time.Duration) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}
	dur("idle-timeout", &cfg.IdleTimeout)
	dur("sweep-interval", &cfg.SweepInterval)
	dur("step-timeout", &cfg.StepTimeout)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
}

// backends are the stores selected by the configuration.
type backends struct {
	sessions ports.SessionStore
	routes   ports.RouteStore
	locker   ports.DistributedLocker
	closers  []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	var rdb *goredis.Client
	if cfg.SessionStore == config.StoreRedis || cfg.RouteStore == config.StoreRedis {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		b.closers = append(b.closers, rdb.Close)
		logger.Info("Connected to redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		b.sessions = redisAdapter.NewFromClient(rdb,
			redisAdapter.WithPrefix(cfg.Redis.Prefix+"session:"),
			redisAdapter.WithTTL(cfg.IdleTimeout),
		)
		b.locker = redisAdapter.NewLocker(rdb, cfg.Redis.Prefix)
	case config.StoreFile:
		store := file.New(cfg.SessionDir)
		logger.Info("Using file session store", "dir", store.BasePath)
		b.sessions = store
	default:
		b.sessions = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.MaskVariables) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.MaskVariables))
	}
	active, previous, err := cfg.SessionKeys()
	if err != nil {
		b.Close()
		return nil, err
	}
	if active != nil {
		enc := middleware.EncryptionConfig{ActiveKey: active}
		if previous != nil {
			enc.FallbackKeys = [][]byte{previous}
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
		logger.Info("Session encryption enabled", "rotation", previous != nil)
	}
	b.sessions = middleware.Chain(b.sessions, mws...)

	switch cfg.RouteStore {
	case config.StoreRedis:
		b.routes = redisAdapter.NewRouteStore(rdb, cfg.Redis.Prefix)
	case config.StoreSQLite:
		store, err := sqlite.NewRouteStore(cfg.SQLiteDSN)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, store.Close)
		b.routes = store
	default:
		b.routes = memory.NewRouteStore()
	}
	return b, nil
}
