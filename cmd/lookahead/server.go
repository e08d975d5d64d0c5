package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/lookahead/api/handlers"
	"github.com/BaSui01/lookahead/config"
	"github.com/BaSui01/lookahead/internal/server"
)

// =============================================================================
// 🖥️ Server：HTTP API 与 Metrics 双端口
// =============================================================================

// Server 管理 API 与 Metrics 两个 HTTP 服务
type Server struct {
	app    *App
	cfg    *config.Config
	logger *zap.Logger

	api     *server.Manager
	metrics *server.Manager // MetricsPort 为 0 时为 nil，/metrics 挂在 API 端口
}

// NewServer 创建服务器（不监听端口）
func NewServer(app *App, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{app: app, cfg: cfg, logger: logger}

	metricsHandler := promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry})

	mux := s.routes()
	if cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", metricsHandler)
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metricsHandler)
		s.metrics = server.NewManager("metrics", metricsMux, s.serverConfig(cfg.Server.MetricsPort), logger)
	}

	handler := Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(app.Telemetry.Tracer(instrumentationName+"/http")),
		MetricsMiddleware(app.Metrics),
		RequestLogger(logger),
	)
	s.api = server.NewManager("api", handler, s.serverConfig(cfg.Server.HTTPPort), logger)
	return s
}

func (s *Server) serverConfig(port int) server.Config {
	c := server.DefaultConfig()
	c.Addr = fmt.Sprintf(":%d", port)
	if s.cfg.Server.ReadTimeout > 0 {
		c.ReadTimeout = s.cfg.Server.ReadTimeout
	}
	if s.cfg.Server.WriteTimeout > 0 {
		c.WriteTimeout = s.cfg.Server.WriteTimeout
	}
	if s.cfg.Server.ShutdownTimeout > 0 {
		c.ShutdownTimeout = s.cfg.Server.ShutdownTimeout
	}
	return c
}

// routes 注册全部 API 路由
func (s *Server) routes() *http.ServeMux {
	app := s.app
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(Version, s.logger)
	health.RegisterCheck(handlers.NewEngineCheck(app.Engine.Running))
	if app.Journal != nil {
		health.RegisterCheck(handlers.NewPingCheck("database", app.Journal.Ping))
	}
	if app.Redis != nil {
		health.RegisterOptionalCheck(handlers.NewPingCheck("redis", app.Redis.Ping))
	}
	if app.generatorHealth != nil {
		health.RegisterOptionalCheck(handlers.NewPingCheck("generator", app.generatorHealth))
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(BuildTime, GitCommit))

	var reader handlers.JournalReader
	if app.Journal != nil {
		reader = app.Journal
	}
	engine := handlers.NewEngineHandler(app.Engine, reader, s.logger)
	mux.HandleFunc("GET /api/v1/stats", engine.HandleStats)
	mux.HandleFunc("GET /api/v1/queue", engine.HandleQueue)
	mux.HandleFunc("POST /api/v1/resolve", engine.HandleResolve)
	mux.HandleFunc("POST /api/v1/lookahead", engine.HandleLookAhead)
	mux.HandleFunc("POST /api/v1/invalidate", engine.HandleInvalidate)
	mux.HandleFunc("GET /api/v1/journal", engine.HandleJournal)

	world := handlers.NewWorldHandler(app.World, s.logger)
	mux.HandleFunc("GET /api/v1/world", world.HandleGet)
	mux.HandleFunc("POST /api/v1/world/move", world.HandleMove)
	mux.HandleFunc("POST /api/v1/world/step", world.HandleStep)
	mux.HandleFunc("POST /api/v1/world/targets", world.HandlePutTarget)
	mux.HandleFunc("DELETE /api/v1/world/targets/{id}", world.HandleDeleteTarget)

	return mux
}

// Handler 返回带中间件的 API Handler（测试使用）
func (s *Server) Handler() http.Handler {
	return s.api.Handler()
}

// Run 启动后台任务与两个 HTTP 服务，阻塞到 ctx 取消或任一服务异常退出
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.app.Start(ctx)

	g.Go(func() error { return s.api.Run(ctx) })
	if s.metrics != nil {
		g.Go(func() error { return s.metrics.Run(ctx) })
	}

	s.logger.Info("Lookahead ready",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("engine_id", s.app.Engine.ID()),
	)

	return g.Wait()
}
