package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/api/handlers"
	"github.com/BaSui01/lookahead/config"
	"github.com/BaSui01/lookahead/generator"
	"github.com/BaSui01/lookahead/generator/openaicompat"
	"github.com/BaSui01/lookahead/internal/cache"
	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/testutil"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Precache = testutil.FastConfig()
	cfg.Precache.MaxCacheEntries = 200
	cfg.Generator.OfflineLatency = 0
	cfg.Simulation.TickInterval = 0
	cfg.Simulation.Radius = 0
	cfg.Server.MetricsPort = 0
	cfg.Telemetry.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	resp := handlers.Response{Data: dst}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success, "response: %+v", resp.Error)
}

// =============================================================================
// 🧪 newGenerator
// =============================================================================

func TestNewGenerator(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		gen, health, err := newGenerator(config.DefaultGeneratorConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &generator.Offline{}, gen)
		assert.Nil(t, health)
	})

	t.Run("empty provider defaults to offline", func(t *testing.T) {
		cfg := config.DefaultGeneratorConfig()
		cfg.Provider = ""
		gen, _, err := newGenerator(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &generator.Offline{}, gen)
	})

	t.Run("openai", func(t *testing.T) {
		cfg := config.DefaultGeneratorConfig()
		cfg.Provider = "openai"
		cfg.BaseURL = "http://localhost:11434"
		cfg.Model = "llama3"
		gen, health, err := newGenerator(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &openaicompat.Generator{}, gen)
		assert.NotNil(t, health)
	})

	t.Run("rate limited", func(t *testing.T) {
		cfg := config.DefaultGeneratorConfig()
		cfg.RateLimitRPS = 5
		cfg.RateLimitBurst = 2
		gen, _, err := newGenerator(cfg, zap.NewNop())
		require.NoError(t, err)
		limited, ok := gen.(*generator.RateLimited)
		require.True(t, ok)
		assert.Equal(t, 2, limited.Limiter().Burst())
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultGeneratorConfig()
		cfg.Provider = "carrier-pigeon"
		_, _, err := newGenerator(cfg, zap.NewNop())
		assert.ErrorContains(t, err, "unknown generator provider")
	})
}

// =============================================================================
// 🧪 App + Server
// =============================================================================

func TestNewApp_MinimalDegradesOptionalComponents(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	app := newTestApp(t, cfg)

	assert.Nil(t, app.Redis)
	assert.Nil(t, app.Publisher)
	assert.Nil(t, app.Journal)
	assert.NotNil(t, app.Engine)
	assert.Len(t, app.World.Targets(), 3)
}

func TestNewApp_InvalidPrecacheConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Precache.MaxCacheEntries = 0

	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)
	srv := NewServer(app, cfg, zap.NewNop())
	h := srv.Handler()

	// Worker 未启动时 /ready 失败
	w := doRequest(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app.Start(ctx)

	testutil.AssertEventuallyTrue(t, app.Engine.Running, time.Second)
	w = doRequest(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// 前瞻 + 等待 Worker 消化
	w = doRequest(t, h, http.MethodPost, "/api/v1/lookahead", "")
	require.Equal(t, http.StatusOK, w.Code)
	testutil.AssertEventuallyTrue(t, func() bool {
		s := app.Engine.Stats()
		return s.QueueDepth == 0 && s.InFlightCount == 0 && s.CacheSize > 0
	}, 5*time.Second)

	w = doRequest(t, h, http.MethodPost, "/api/v1/resolve",
		`{"action_id":"talk","input_text":"I talk to Guard","target_id":"guard"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resolved handlers.ResolveResponse
	decodeData(t, w, &resolved)
	assert.True(t, resolved.Cached)
	require.NotNil(t, resolved.Outcome)
	assert.NotEmpty(t, resolved.Outcome.Text)

	w = doRequest(t, h, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hit_count":1`)

	w = doRequest(t, h, http.MethodPost, "/api/v1/invalidate", `{"reason":"test"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var inv handlers.InvalidateResponse
	decodeData(t, w, &inv)
	assert.Positive(t, inv.Cleared)

	w = doRequest(t, h, http.MethodGet, "/api/v1/journal", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, http.MethodPost, "/api/v1/world/move", `{"x":5,"y":5,"heading":90}`)
	require.Equal(t, http.StatusOK, w.Code)
	x, y, heading := app.World.Position()
	assert.Equal(t, [3]float64{5, 5, 90}, [3]float64{x, y, heading})

	w = doRequest(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "lookahead_precache_lookups_total")
	assert.Contains(t, string(body), `path="/api/v1/resolve"`)
	assert.Contains(t, string(body), "go_goroutines")

	w = doRequest(t, h, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SeparateMetricsPort(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MetricsPort = 9191
	app := newTestApp(t, cfg)
	srv := NewServer(app, cfg, zap.NewNop())

	require.NotNil(t, srv.metrics)
	assert.Equal(t, ":9191", srv.metrics.Addr())

	w := doRequest(t, srv.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv.metrics.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_JournalAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Database.Enabled = true
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "journal.db")
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.StatsKey = "lookahead:test:stats"
	cfg.Redis.PublishInterval = time.Hour

	app := newTestApp(t, cfg)
	require.NotNil(t, app.Journal)
	require.NotNil(t, app.Redis)
	require.NotNil(t, app.Publisher)

	// 连接池快照在启动时即写入 gauge：open / in_use / idle
	n, err := promtestutil.GatherAndCount(app.Registry, "lookahead_journal_db_connections")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	srv := NewServer(app, cfg, zap.NewNop())
	h := srv.Handler()

	// 同步生成（未命中）写入日志
	w := doRequest(t, h, http.MethodPost, "/api/v1/resolve",
		`{"action_id":"examine","input_text":"I examine Thief","target_id":"thief"}`)
	require.Equal(t, http.StatusOK, w.Code)

	ctx := testutil.TestContext(t)
	require.NoError(t, app.Journal.Flush(ctx))

	w = doRequest(t, h, http.MethodGet, "/api/v1/journal?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var jr handlers.JournalResponse
	decodeData(t, w, &jr)
	require.Len(t, jr.Recent, 1)
	assert.Equal(t, "thief", jr.Recent[0].TargetID)
	assert.Equal(t, app.Engine.ID(), jr.Recent[0].EngineID)
	assert.True(t, jr.Recent[0].Success)

	// 统计快照
	require.NoError(t, app.Publisher.PublishOnce(ctx))
	snap, err := cache.LoadSnapshot(ctx, app.Redis, cfg.Redis.StatsKey)
	require.NoError(t, err)
	assert.Equal(t, app.Engine.ID(), snap.EngineID)
	assert.Equal(t, int64(1), snap.MissCount)

	// /ready 同时检查数据库与 Redis
	app.Start(context.Background())
	testutil.AssertEventuallyTrue(t, app.Engine.Running, time.Second)
	w = doRequest(t, h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Contains(t, status.Checks, "database")
	assert.Contains(t, status.Checks, "redis")
	assert.Contains(t, status.Checks, "engine")

	// Redis 故障只导致降级
	mr.Close()
	w = doRequest(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "degraded", status.Status)
}

func TestApp_CloseIdempotent(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.Start(context.Background())

	app.Close(context.Background())
	app.Close(context.Background())
	assert.False(t, app.Engine.Running())
}

func TestApp_TickLoopDrivesLookAhead(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.TickInterval = 5 * time.Millisecond
	app := newTestApp(t, cfg)

	app.Start(context.Background())

	testutil.AssertEventuallyTrue(t, func() bool {
		return app.Engine.Stats().Generated > 0
	}, 5*time.Second)
}

// =============================================================================
// 🧪 simulate
// =============================================================================

func TestSimulate(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var out bytes.Buffer
	report, err := simulate(testutil.TestContext(t), app, simulateOptions{
		Steps:     4,
		Stride:    1,
		TurnEvery: 2,
		Settle:    5 * time.Second,
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Steps)
	assert.Equal(t, 4, report.Hits, out.String())
	assert.Zero(t, report.Misses)
	assert.Positive(t, report.Stats.Generated)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "STEP"))
	assert.Contains(t, lines[1], "hit")
}

func TestSimulate_NoTargets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Targets = nil
	app := newTestApp(t, cfg)

	var out bytes.Buffer
	report, err := simulate(testutil.TestContext(t), app, simulateOptions{Steps: 2, Settle: time.Second}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Zero(t, report.Hits+report.Misses)
}

func TestNearest(t *testing.T) {
	_, ok := nearest(nil, 0, 0)
	assert.False(t, ok)

	targets := []precache.Target{
		{ID: "far", X: 10, Y: 0},
		{ID: "near", X: 1, Y: 1},
	}
	got, ok := nearest(targets, 0, 0)
	require.True(t, ok)
	assert.Equal(t, "near", got.ID)
}
