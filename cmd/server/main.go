package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/scoreboard/internal/broadcast"
	"github.com/playperu/scoreboard/internal/config"
	"github.com/playperu/scoreboard/internal/database"
	"github.com/playperu/scoreboard/internal/handler/health"
	"github.com/playperu/scoreboard/internal/match"
	"github.com/playperu/scoreboard/internal/matchstore"
	"github.com/playperu/scoreboard/internal/metrics"
	"github.com/playperu/scoreboard/internal/migrations"
	"github.com/playperu/scoreboard/internal/relay"
	"github.com/playperu/scoreboard/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(stdout, cfg)

	// --- Store ---
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Fan-out ---
	mtr := metrics.NewService()
	hub := broadcast.NewHub(logger,
		broadcast.WithBuffer(cfg.SubscriberBuffer),
		broadcast.WithMetrics(mtr),
	)

	checks := map[string]health.Checker{
		"store": health.CheckFunc(store.Ping),
	}

	var (
		pub broadcast.Publisher = hub
		rly *relay.Redis
	)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		rly = relay.NewRedis(rdb, cfg.RedisChannel, hub, logger)
		pub = rly
		checks["redis"] = rly
	}

	ctrl := match.NewController(store, pub, logger,
		match.WithTimeout(cfg.StoreTimeout),
		match.WithMetrics(mtr),
	)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, ctrl); err != nil {
			return fmt.Errorf("seeding demo match: %w", err)
		}
	}

	// --- HTTP Server ---
	srv := server.New(server.Options{
		Addr:        cfg.HTTPAddr,
		Logger:      logger,
		Matches:     ctrl,
		Hub:         hub,
		Checks:      checks,
		Metrics:     metrics.NewHandler(),
		KeepAlive:   cfg.KeepAliveInterval,
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   cfg.StaticDir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if rly != nil {
		g.Go(func() error {
			return rly.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		// Streams only return once their subscription is gone.
		hub.Close()
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogFormat == "text" {
		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(cfg.LogLevel),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (matchstore.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := matchstore.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		n, err := pg.Migrate(ctx)
		if err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to postgres", "migrations_applied", n)
		return pg, pg.Close, nil

	default:
		db, err := database.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
		}
		n, err := migrations.Run(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to sqlite", "path", cfg.DBPath, "migrations_applied", n)
		return matchstore.NewSQLite(db), func() { db.Close() }, nil
	}
}

// openRedis parses rawURL and checks the connection once. An unreachable
// Redis is not fatal: the relay falls back to local delivery and reports
// itself unhealthy until it recovers.
func openRedis(ctx context.Context, rawURL string, logger *slog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warn("redis unreachable, relaying locally until it recovers", "error", err)
	} else {
		logger.Info("connected to redis")
	}
	return rdb, nil
}
