package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/config"
	"github.com/BaSui01/lookahead/generator"
	"github.com/BaSui01/lookahead/generator/openaicompat"
	"github.com/BaSui01/lookahead/internal/cache"
	"github.com/BaSui01/lookahead/internal/database"
	"github.com/BaSui01/lookahead/internal/journal"
	"github.com/BaSui01/lookahead/internal/metrics"
	"github.com/BaSui01/lookahead/internal/telemetry"
	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/world"
)

const instrumentationName = "github.com/BaSui01/lookahead"

// =============================================================================
// 🧩 App：组件装配
// =============================================================================

// App 持有一个进程内的全部组件。可选组件（数据库、Redis、遥测）不可用时
// 记录告警并降级，不阻止启动。
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Engine    *precache.Engine
	World     *world.Sim
	Registry  *prometheus.Registry
	Metrics   *metrics.Collector
	Telemetry *telemetry.Providers

	Pool      *database.PoolManager // 可为 nil
	Journal   *journal.Journal      // 可为 nil
	Redis     *cache.Manager        // 可为 nil
	Publisher *cache.Publisher      // 可为 nil

	// generatorHealth 远程生成器的连通性检查，离线生成器为 nil
	generatorHealth func(ctx context.Context) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewApp 按配置装配所有组件，但不启动后台任务
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	engineID := uuid.NewString()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	app.Telemetry = providers

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewCollectorWithRegisterer("lookahead", app.Registry, logger)

	recorders := precache.MultiRecorder{app.Metrics}
	if providers.Enabled() {
		rec, err := telemetry.NewEngineRecorder(providers.Meter(instrumentationName))
		if err != nil {
			logger.Warn("failed to create otel engine recorder", zap.Error(err))
		} else {
			recorders = append(recorders, rec)
		}
	}

	if cfg.Database.Enabled {
		if err := app.openJournal(ctx, engineID); err != nil {
			logger.Warn("database not available, generation journal disabled", zap.Error(err))
		} else {
			recorders = append(recorders, app.Journal)
		}
	}

	if cfg.Redis.Enabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			DefaultTTL:          cfg.Redis.StatsTTL,
			MaxRetries:          3,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			TLSEnabled:          cfg.Redis.TLSEnabled,
			HealthCheckInterval: 30 * time.Second,
		}, logger)
		if err != nil {
			logger.Warn("redis not available, stats publishing disabled", zap.Error(err))
		} else {
			app.Redis = mgr
		}
	}

	gen, health, err := newGenerator(cfg.Generator, logger)
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}
	app.generatorHealth = health

	app.World = world.NewSim(
		world.WithRadius(cfg.Simulation.Radius),
		world.WithTargets(cfg.Simulation.SimTargets()...),
	)

	engine, err := precache.New(gen, app.World, cfg.Precache,
		precache.WithID(engineID),
		precache.WithLogger(logger),
		precache.WithRecorder(recorders),
		precache.WithTracer(providers.Tracer(instrumentationName)),
	)
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}
	app.Engine = engine

	if app.Redis != nil {
		app.Publisher = cache.NewPublisher(app.Redis, engine, cache.PublisherConfig{
			Key:      cfg.Redis.StatsKey,
			TTL:      cfg.Redis.StatsTTL,
			Interval: cfg.Redis.PublishInterval,
		}, logger)
	}

	return app, nil
}

func (a *App) openJournal(ctx context.Context, engineID string) error {
	db, err := database.Open(a.cfg.Database, a.logger)
	if err != nil {
		return err
	}
	driver := a.cfg.Database.Driver
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(a.cfg.Database), a.logger,
		database.WithStatsObserver(func(s database.PoolStats) {
			a.Metrics.RecordDBPool(driver, s.Open, s.InUse, s.Idle, s.WaitCount)
		}),
	)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return err
	}
	j, err := journal.New(ctx, pool, journal.Options{
		EngineID: engineID,
		Buffer:   a.cfg.Database.JournalBuffer,
	}, a.logger)
	if err != nil {
		_ = pool.Close()
		return err
	}
	a.Pool = pool
	a.Journal = j
	return nil
}

// newGenerator 按配置创建生成器；RateLimitRPS > 0 时外包一层限流
func newGenerator(cfg config.GeneratorConfig, logger *zap.Logger) (precache.Generator, func(context.Context) error, error) {
	var (
		gen    precache.Generator
		health func(context.Context) error
	)

	switch cfg.Provider {
	case "", "offline":
		gen = generator.NewOffline(generator.OfflineConfig{
			Latency: cfg.OfflineLatency,
			Tone:    cfg.Tone,
		}, logger)
	case "openai":
		remote := openaicompat.New(openaicompat.Config{
			Name:        cfg.Name,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		}, logger)
		gen, health = remote, remote.HealthCheck
	default:
		return nil, nil, fmt.Errorf("unknown generator provider: %s", cfg.Provider)
	}

	if cfg.RateLimitRPS > 0 {
		gen = generator.NewRateLimited(gen, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	return gen, health, nil
}

// =============================================================================
// 🚀 后台任务
// =============================================================================

// Start 启动预生成 Worker、前瞻节拍与统计发布
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.Engine.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.tickLoop(ctx)
	}()

	if a.Publisher != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Publisher.Run(ctx)
		}()
	}
}

// tickLoop 按固定节奏调用 LookAhead，代替游戏主循环的每帧回调
func (a *App) tickLoop(ctx context.Context) {
	interval := a.cfg.Simulation.TickInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := a.Engine.LookAhead(ctx)
			if res.Invalidated || res.Enqueued > 0 {
				a.logger.Debug("lookahead tick",
					zap.Bool("invalidated", res.Invalidated),
					zap.Int("targets", res.Targets),
					zap.Int("enqueued", res.Enqueued),
				)
			}
		}
	}
}

// Close 停止后台任务并按依赖逆序释放资源（幂等）
func (a *App) Close(ctx context.Context) {
	a.once.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		if a.Engine != nil {
			a.Engine.Stop()
		}
		a.wg.Wait()

		if a.Journal != nil {
			if err := a.Journal.Close(ctx); err != nil {
				a.logger.Warn("journal close failed", zap.Error(err))
			}
		}
		if a.Pool != nil {
			if err := a.Pool.Close(); err != nil {
				a.logger.Warn("database close failed", zap.Error(err))
			}
		}
		if a.Redis != nil {
			if err := a.Redis.Close(); err != nil {
				a.logger.Warn("redis close failed", zap.Error(err))
			}
		}
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	})
}
