package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kozaktomas/memory-anchor/internal/camera"
	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/database/filestore"
	"github.com/kozaktomas/memory-anchor/internal/database/images"
	"github.com/kozaktomas/memory-anchor/internal/database/mariadb"
	"github.com/kozaktomas/memory-anchor/internal/database/postgres"
	"github.com/kozaktomas/memory-anchor/internal/database/redisstore"
	"github.com/kozaktomas/memory-anchor/internal/database/sqlite"
	"github.com/kozaktomas/memory-anchor/internal/display"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/fingerprint"
	"github.com/kozaktomas/memory-anchor/internal/logger"
	"github.com/kozaktomas/memory-anchor/internal/metrics"
	"github.com/kozaktomas/memory-anchor/internal/registry"
	"github.com/kozaktomas/memory-anchor/internal/scanner"
	"github.com/kozaktomas/memory-anchor/internal/web/handlers"
)

// app holds the services shared by the commands.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	registry   *registry.Registry
	extractor  *fingerprint.EmbeddingClient
	enrollment *enrollment.Service
	images     *images.DirStore // nil when IMAGE_DIR is empty
	redis      *goredis.Client  // nil unless the redis backend or REDIS_CHANNEL is used

	closers []func() error
}

// newApp opens the configured registry backend and loads the registry. A
// corrupt registry is reported and replaced by an empty one.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.registry = registry.New(store,
		registry.WithKey(cfg.Registry.Key),
		registry.WithLogger(log),
		registry.WithSizeObserver(a.metrics.SetRegistrySize),
	)
	if err := a.registry.Load(ctx); err != nil {
		if !registry.IsStorageCorrupt(err) {
			a.Close()
			return nil, fmt.Errorf("loading registry: %w", err)
		}
		fmt.Printf("Warning: %v\nStarting with an empty registry, the stored data is left untouched until the next save.\n", err)
	}

	a.extractor = fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Dim)

	opts := []enrollment.Option{
		enrollment.WithThreshold(cfg.Matching.Threshold),
		enrollment.WithLogger(log),
		enrollment.WithMetrics(a.metrics),
	}
	if cfg.Images.Dir != "" {
		a.images, err = images.NewDirStore(cfg.Images.Dir)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, enrollment.WithImageStore(a.images))
	}
	a.enrollment = enrollment.NewService(a.registry, a.extractor, opts...)

	return a, nil
}

// openStore connects the REGISTRY_BACKEND store.
func (a *app) openStore(ctx context.Context) (registry.Store, error) {
	cfg := a.cfg
	switch cfg.Registry.Backend {
	case config.BackendFile:
		return filestore.New(cfg.Registry.File)

	case config.BackendPostgres:
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for the postgres backend")
		}
		pool, err := postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		applied, err := pool.Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		for _, m := range applied {
			a.log.Info("applied migration", "file", m)
		}
		return postgres.NewKVRepository(pool), nil

	case config.BackendMySQL:
		if cfg.Database.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN environment variable is required for the mysql backend")
		}
		pool, err := mariadb.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate MySQL: %w", err)
		}
		return pool, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil

	case config.BackendRedis:
		rdb, err := a.redisClient()
		if err != nil {
			return nil, err
		}
		return redisstore.New(rdb), nil

	default:
		return nil, fmt.Errorf("unknown REGISTRY_BACKEND %q (use file, postgres, mysql, sqlite or redis)", cfg.Registry.Backend)
	}
}

// redisClient connects once and reuses the client.
func (a *app) redisClient() (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rdb, err := redisstore.Connect(&a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.redis = rdb
	a.closers = append(a.closers, rdb.Close)
	return rdb, nil
}

// imageOpener returns the image store, or a nil interface when disabled.
func (a *app) imageOpener() handlers.ImageOpener {
	if a.images == nil {
		return nil
	}
	return a.images
}

// newScanner builds the scan controller on the configured camera.
func (a *app) newScanner(display scanner.Display) *scanner.Controller {
	cameraCfg := a.cfg.Camera
	open := func(context.Context) (scanner.FrameSource, error) {
		return camera.Open(&cameraCfg)
	}
	return scanner.NewController(scanner.Config{
		Interval:      a.cfg.Scan.Interval,
		TickTimeout:   a.cfg.Scan.TickTimeout,
		Threshold:     a.cfg.Matching.Threshold,
		DegradedAfter: a.cfg.Scan.DegradedAfter,
	}, a.extractor, a.registry, open, display,
		scanner.WithLogger(a.log),
		scanner.WithMetrics(a.metrics),
	)
}

// Close releases backend connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	a.log.Sync()
}

// withPublisher adds Redis publishing to d when REDIS_CHANNEL is set. The
// returned func stops the publisher.
func (a *app) withPublisher(d scanner.Display) (scanner.Display, func(), error) {
	if a.cfg.Redis.Channel == "" {
		return d, func() {}, nil
	}
	rdb, err := a.redisClient()
	if err != nil {
		return nil, nil, err
	}
	pub, err := display.NewRedisPublisher(rdb, a.cfg.Redis.Channel, a.log)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("Publishing transitions to Redis channel %q\n", a.cfg.Redis.Channel)
	return display.Multi{d, pub}, func() { _ = pub.Close() }, nil
}

// checkEmbeddingService warns when the face embedding service is unreachable.
func (a *app) checkEmbeddingService(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.extractor.Health(ctx); err != nil {
		fmt.Printf("Warning: face embedding service not reachable: %v\n", err)
		fmt.Println("Enrollment and recognition will fail until it is available.")
	}
}
