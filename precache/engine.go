package precache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/lookahead/trajectory"
	"github.com/BaSui01/lookahead/types"
)

const instrumentationName = "github.com/BaSui01/lookahead/precache"

// ErrEmptyOutcome 生成器既未返回结果也未返回错误
var ErrEmptyOutcome = errors.New("generator returned no outcome")

// =============================================================================
// 🧠 预测缓存引擎
// =============================================================================

// Engine 预测缓存引擎（门面）
//
// 持有轨迹跟踪器、结果缓存与请求队列，并管理唯一的后台 Worker。
type Engine struct {
	id       string
	gen      Generator
	world    WorldModel
	config   Config
	actions  []ActionKind
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time

	tracker *trajectory.Tracker
	cache   *ResultCache
	queue   *RequestQueue
	flight  singleflight.Group

	// stateMu 使整体失效、Worker 写回与 LookAhead 入队互斥；
	// epoch 每次失效递增，失效前出队的请求结果将被丢弃
	stateMu sync.Mutex
	epoch   uint64

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	running     atomic.Bool

	invalidations atomic.Int64
	generated     atomic.Int64
	failed        atomic.Int64
	discarded     atomic.Int64
}

// Option 引擎可选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder 设置事件记录器
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithID 指定引擎实例 ID，默认随机生成
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithClock 替换时钟（测试使用）
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTracer 设置 OpenTelemetry Tracer，默认使用全局 TracerProvider
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New 创建预测缓存引擎
func New(gen Generator, world WorldModel, config Config, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "generator is required")
	}
	if world == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "world model is required")
	}
	if err := config.Validate(); err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "invalid precache config").WithCause(err)
	}
	actions, err := parseActions(config.Actions)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidConfig, "invalid actions").WithCause(err)
	}

	e := &Engine{
		id:       uuid.NewString(),
		gen:      gen,
		world:    world,
		config:   config,
		actions:  actions,
		logger:   zap.NewNop(),
		recorder: NopRecorder{},
		tracer:   otel.Tracer(instrumentationName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "precache"), zap.String("engine_id", e.id))

	e.tracker = trajectory.NewTracker(config.thresholds()).WithClock(e.now)
	e.cache = NewResultCache(config.cacheConfig(), e.logger)
	e.cache.now = e.now
	e.queue = NewRequestQueue(e.cache, e.logger)

	e.logger.Info("predictive cache engine initialized",
		zap.Int("max_cache_entries", config.MaxCacheEntries),
		zap.Duration("max_result_age", config.MaxResultAge),
		zap.Duration("max_result_idle", config.MaxResultIdle),
		zap.Int("actions", len(actions)),
	)
	return e, nil
}

// ID 返回引擎实例 ID
func (e *Engine) ID() string { return e.id }

// Config 返回引擎配置
func (e *Engine) Config() Config { return e.config }

// =============================================================================
// 🚀 生命周期
// =============================================================================

// Start 启动后台 Worker（幂等）。ctx 被取消时 Worker 同样退出。
func (e *Engine) Start(ctx context.Context) {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.done != nil {
		select {
		case <-e.done:
		default:
			return
		}
	}

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.running.Store(true)

	w := newWorker(e)
	go func() {
		defer close(done)
		defer e.running.Store(false)
		w.run(workerCtx)
	}()

	e.logger.Info("narrative pre-caching started")
}

// Stop 停止后台 Worker（幂等），等待进行中的生成调用完成后返回
func (e *Engine) Stop() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.done == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil

	e.logger.Info("narrative pre-caching stopped")
}

// Running 返回 Worker 是否在运行
func (e *Engine) Running() bool {
	return e.running.Load()
}

// =============================================================================
// 🎯 Resolve：缓存优先，未命中时同步生成
// =============================================================================

// Resolve 返回 (targetID, actionID, inputText) 的生成结果。
//
// 命中时立即返回；未命中时同步调用生成器并写回缓存。同一键的并发未命中
// 只会触发一次生成。生成器错误原样返回。targetID 为空时不走缓存。
func (e *Engine) Resolve(ctx context.Context, actionID, inputText, genContext, targetID string) (*Outcome, error) {
	if actionID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "action id is required")
	}

	if targetID == "" {
		key := RequestKey{ActionID: actionID, InputHash: HashInput(inputText)}
		out, dur, err := e.generate(ctx, SourceFallback, key, PriorityHigh, actionID, inputText, genContext)
		e.recordGeneration(key, SourceFallback, PriorityHigh, dur, err, false)
		return out, err
	}

	key := KeyOf(targetID, actionID, inputText)
	if out, ok := e.cache.Get(key); ok {
		e.recorder.RecordLookup(true)
		e.logger.Info("instant outcome",
			zap.String("target", targetID),
			zap.String("action", actionID))
		return out, nil
	}
	e.recorder.RecordLookup(false)

	// 共享生成不随任何单个调用方取消；各调用方只按自己的 ctx 放弃等待
	genCtx := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key.String(), func() (any, error) {
		out, dur, err := e.generate(genCtx, SourceFallback, key, PriorityHigh, actionID, inputText, genContext)
		e.recordGeneration(key, SourceFallback, PriorityHigh, dur, err, false)
		if err != nil {
			return nil, err
		}

		e.stateMu.Lock()
		evicted := e.cache.Put(key, out, PriorityHigh)
		e.stateMu.Unlock()
		if evicted > 0 {
			e.recorder.RecordEviction(evicted)
		}
		return out, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		e.logger.Debug("shared synchronous generation", zap.Stringer("key", key))
	}
	return res.Val.(*Outcome), nil
}

// generate 调用生成器：带 span、耗时统计与 panic 恢复。
// 事件由调用方在确定结果去向后上报。
func (e *Engine) generate(ctx context.Context, source Source, key RequestKey, priority Priority,
	actionID, inputText, genContext string) (out *Outcome, dur time.Duration, err error) {

	ctx, span := e.tracer.Start(ctx, "precache.generate", trace.WithAttributes(
		attribute.String("precache.source", string(source)),
		attribute.String("precache.target", key.TargetID),
		attribute.String("precache.action", actionID),
		attribute.String("precache.priority", priority.String()),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("generator panicked: %v", r)
		}
		if err == nil && out == nil {
			err = ErrEmptyOutcome
		}
		dur = time.Since(start)

		if err != nil {
			e.failed.Add(1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			e.generated.Add(1)
		}
		span.End()
	}()

	out, err = e.gen.Generate(ctx, actionID, inputText, genContext)
	return out, 0, err
}

func (e *Engine) recordGeneration(key RequestKey, source Source, priority Priority,
	dur time.Duration, err error, discarded bool) {
	e.recorder.RecordGeneration(GenerationEvent{
		Key:       key,
		Source:    source,
		Priority:  priority,
		Duration:  dur,
		Err:       err,
		Discarded: discarded,
		At:        e.now(),
	})
}

// =============================================================================
// 🗑️ 失效
// =============================================================================

// Invalidate 手动整体失效，并将轨迹基线移动到当前位置
func (e *Engine) Invalidate(reason string) int {
	e.tracker.Rebase()
	return e.invalidate(reason)
}

// invalidate 原子地清空缓存、队列与 in-flight 集合
func (e *Engine) invalidate(reason string) int {
	e.stateMu.Lock()
	cleared := e.cache.Clear()
	pending, inFlight := e.queue.Clear()
	e.epoch++
	e.stateMu.Unlock()

	count := e.invalidations.Add(1)
	e.recorder.RecordInvalidation(cleared)
	e.recorder.RecordQueueState(0, 0)

	e.logger.Info("cache invalidated",
		zap.String("reason", reason),
		zap.Int("entries_cleared", cleared),
		zap.Int("pending_dropped", pending),
		zap.Int("in_flight_dropped", inFlight),
		zap.Int64("invalidation_count", count),
	)
	return cleared
}

// =============================================================================
// 🔄 Worker 与引擎之间的状态交接
// =============================================================================

// nextRequest 出队并记录当时的 epoch
func (e *Engine) nextRequest() (*Request, uint64, bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	req, ok := e.queue.DequeueNext()
	return req, e.epoch, ok
}

// commit 写回结果；若期间发生过失效则丢弃
func (e *Engine) commit(req *Request, epoch uint64, out *Outcome) (stored bool, evicted int) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if epoch != e.epoch {
		return false, 0
	}
	key := req.Key()
	evicted = e.cache.Put(key, out, req.Priority)
	e.queue.MarkDone(key)
	return true, evicted
}

// release 失败后释放 in-flight 标记；失效后该标记已被清除，不再处理
func (e *Engine) release(req *Request, epoch uint64) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if epoch == e.epoch {
		e.queue.MarkDone(req.Key())
	}
}

// =============================================================================
// 📊 统计
// =============================================================================

// Stats 引擎统计信息
type Stats struct {
	EngineID          string  `json:"engine_id"`
	CacheSize         int     `json:"cache_size"`
	CacheCapacity     int     `json:"cache_capacity"`
	QueueDepth        int     `json:"queue_depth"`
	InFlightCount     int     `json:"in_flight_count"`
	HitCount          int64   `json:"hit_count"`
	MissCount         int64   `json:"miss_count"`
	HitRate           float64 `json:"hit_rate"`
	InvalidationCount int64   `json:"invalidation_count"`
	EvictionCount     int64   `json:"eviction_count"`
	Generated         int64   `json:"generated"`
	Failed            int64   `json:"failed"`
	Discarded         int64   `json:"discarded"`
	Running           bool    `json:"running"`
	TrajectoryTracked bool    `json:"trajectory_tracked"`
}

// Stats 汇总缓存、队列与失效统计
func (e *Engine) Stats() Stats {
	cs := e.cache.Stats()
	return Stats{
		EngineID:          e.id,
		CacheSize:         cs.Size,
		CacheCapacity:     cs.Capacity,
		QueueDepth:        e.queue.Len(),
		InFlightCount:     e.queue.InFlight(),
		HitCount:          cs.Hits,
		MissCount:         cs.Misses,
		HitRate:           cs.HitRate,
		InvalidationCount: e.invalidations.Load(),
		EvictionCount:     cs.Evictions,
		Generated:         e.generated.Load(),
		Failed:            e.failed.Load(),
		Discarded:         e.discarded.Load(),
		Running:           e.Running(),
		TrajectoryTracked: e.tracker.HasBaseline(),
	}
}

// Pending 按出队顺序返回待处理请求快照
func (e *Engine) Pending() []Request {
	return e.queue.Snapshot()
}

// Cached 报告结果是否已在缓存中，不计入命中统计也不刷新访问时间
func (e *Engine) Cached(targetID, actionID, inputText string) bool {
	return e.cache.Contains(KeyOf(targetID, actionID, inputText))
}
