package precache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/testutil"
	"github.com/BaSui01/lookahead/testutil/mocks"
	"github.com/BaSui01/lookahead/types"
)

// =============================================================================
// 🧪 Engine 测试
// =============================================================================

var guard = precache.Target{ID: "guard", Name: "Guard", X: 2, Y: 0}

func newEngine(t *testing.T, gen precache.Generator, world precache.WorldModel, opts ...precache.Option) *precache.Engine {
	t.Helper()
	return newEngineWithConfig(t, gen, world, testutil.FastConfig(), opts...)
}

func newEngineWithConfig(t *testing.T, gen precache.Generator, world precache.WorldModel, cfg precache.Config, opts ...precache.Option) *precache.Engine {
	t.Helper()
	opts = append([]precache.Option{precache.WithLogger(zap.NewNop())}, opts...)
	e, err := precache.New(gen, world, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e
}

func waitIdle(t *testing.T, e *precache.Engine) {
	t.Helper()
	testutil.AssertEventuallyTrue(t, func() bool {
		s := e.Stats()
		return s.QueueDepth == 0 && s.InFlightCount == 0
	}, 5*time.Second)
}

func TestNew_Validation(t *testing.T) {
	world := mocks.NewMockWorld(0, 0, 0)
	gen := mocks.NewMockGenerator()

	_, err := precache.New(nil, world, precache.DefaultConfig())
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))

	_, err = precache.New(gen, nil, precache.DefaultConfig())
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))

	cfg := precache.DefaultConfig()
	cfg.MaxCacheEntries = 0
	_, err = precache.New(gen, world, cfg)
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
}

func TestEngine_ResolveCachesResult(t *testing.T) {
	ctx := testutil.TestContext(t)
	gen := mocks.NewMockGenerator().WithText("The guard nods.")
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	out, err := e.Resolve(ctx, "talk", "Hello Guard", "", "guard")
	require.NoError(t, err)
	testutil.AssertOutcomeText(t, "The guard nods.", out)

	out, err = e.Resolve(ctx, "talk", "hello guard", "", "guard")
	require.NoError(t, err)
	testutil.AssertOutcomeText(t, "The guard nods.", out)

	assert.Equal(t, 1, gen.CallCount(), "second resolve is served from cache")
	stats := e.Stats()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 1, stats.CacheSize)
}

func TestEngine_ResolveExpiry(t *testing.T) {
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(time.Unix(1_700_000_000, 0))
	gen := mocks.NewMockGenerator()
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0), precache.WithClock(clock.Now))

	_, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)

	clock.Advance(301 * time.Second)
	_, err = e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.CallCount(), "expired entry is regenerated")

	clock.Advance(61 * time.Second)
	_, err = e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)
	assert.Equal(t, 3, gen.CallCount(), "idle entry is regenerated")
}

func TestEngine_ResolveError(t *testing.T) {
	ctx := testutil.TestContext(t)
	boom := errors.New("boom")
	gen := mocks.NewMockGenerator().WithError(boom)
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	out, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	assert.Nil(t, out)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, e.Stats().CacheSize, "failures are not cached")
	assert.Equal(t, int64(1), e.Stats().Failed)
}

func TestEngine_ResolvePanicBecomesError(t *testing.T) {
	ctx := testutil.TestContext(t)
	gen := mocks.NewMockGenerator().WithFunc(func(context.Context, string, string, string) (*precache.Outcome, error) {
		panic("generator exploded")
	})
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	_, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator exploded")
}

func TestEngine_ResolveWithoutTarget(t *testing.T) {
	ctx := testutil.TestContext(t)
	gen := mocks.NewMockGenerator()
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	for i := 0; i < 2; i++ {
		_, err := e.Resolve(ctx, "examine", "I look around", "", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, gen.CallCount(), "untargeted actions bypass the cache")

	_, err := e.Resolve(ctx, "", "hello", "", "guard")
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestEngine_ResolveSingleFlight(t *testing.T) {
	ctx := testutil.TestContext(t)
	gate := make(chan struct{})
	gen := mocks.NewMockGenerator().WithGate(gate)
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Resolve(ctx, "talk", "hello", "", "guard")
		}(i)
	}

	testutil.AssertEventuallyTrue(t, func() bool { return gen.CallCount() == 1 }, time.Second)
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, gen.CallCount())
}

func TestEngine_ResolveSharedMissSurvivesCallerCancel(t *testing.T) {
	gate := make(chan struct{})
	gen := mocks.NewMockGenerator().WithFunc(func(ctx context.Context, _, _, _ string) (*precache.Outcome, error) {
		select {
		case <-gate:
			return &precache.Outcome{Text: "the guard nods", Success: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	e := newEngine(t, gen, mocks.NewMockWorld(0, 0, 0))

	first, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	var (
		wg                sync.WaitGroup
		firstErr, lastErr error
		lastOut           *precache.Outcome
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = e.Resolve(first, "talk", "hello", "", "guard")
	}()
	testutil.AssertEventuallyTrue(t, func() bool { return gen.CallCount() == 1 }, time.Second)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lastOut, lastErr = e.Resolve(context.Background(), "talk", "hello", "", "guard")
	}()
	time.Sleep(50 * time.Millisecond)

	// 先发起的调用方离开，共享生成继续
	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.ErrorIs(t, firstErr, context.Canceled)
	require.NoError(t, lastErr)
	testutil.AssertOutcomeText(t, "the guard nods", lastOut)
	assert.Equal(t, 1, gen.CallCount())
	assert.True(t, e.Cached("guard", "talk", "hello"), "shared result is stored")
}

func TestEngine_Prioritize(t *testing.T) {
	world := mocks.NewMockWorld(0, 0, 0)
	e := newEngine(t, mocks.NewMockGenerator(), world)

	tests := []struct {
		name   string
		target precache.Target
		want   precache.Priority
		dist   float64
	}{
		{"adjacent ahead", precache.Target{ID: "a", X: 2, Y: 0}, precache.PriorityCritical, 2},
		{"near ahead", precache.Target{ID: "b", X: 4, Y: 1}, precache.PriorityHigh, 5},
		{"mid ahead", precache.Target{ID: "c", X: 7, Y: 0}, precache.PriorityMedium, 7},
		{"far ahead", precache.Target{ID: "d", X: 10, Y: 0}, precache.PriorityLow, 10},
		{"close behind", precache.Target{ID: "e", X: -4, Y: 0}, precache.PriorityLow, 4},
		{"close to the side", precache.Target{ID: "f", X: 0, Y: 2}, precache.PriorityLow, 2},
		{"on top of agent", precache.Target{ID: "g", X: 0, Y: 0}, precache.PriorityCritical, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, d := e.Prioritize(tt.target)
			assert.Equal(t, tt.want, p)
			assert.InDelta(t, tt.dist, d, 1e-9)
		})
	}
}

func TestEngine_LookAheadEnqueues(t *testing.T) {
	ctx := testutil.TestContext(t)
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(
		precache.Target{ID: "behind", Name: "Thief", X: -4, Y: 0},
		guard,
	)
	e := newEngine(t, mocks.NewMockGenerator(), world)

	res := e.LookAhead(ctx)
	assert.False(t, res.Invalidated)
	assert.Equal(t, 2, res.Targets)
	assert.Equal(t, 28, res.Enqueued, "14 sample inputs per target")

	pending := e.Pending()
	require.Len(t, pending, 28)
	assert.Equal(t, "guard", pending[0].TargetID, "critical target first")
	assert.Equal(t, precache.PriorityCritical, pending[0].Priority)
	assert.Equal(t, precache.PriorityLow, pending[len(pending)-1].Priority)

	again := e.LookAhead(ctx)
	assert.Zero(t, again.Enqueued, "already queued keys are skipped")
	assert.Equal(t, 28, again.Skipped)
}

func TestEngine_LookAheadActionFilter(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testutil.FastConfig()
	cfg.Actions = []string{"talk"}
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngineWithConfig(t, mocks.NewMockGenerator(), world, cfg)

	res := e.LookAhead(ctx)
	assert.Equal(t, 3, res.Enqueued)
	testutil.AssertPriorities(t, []precache.Priority{
		precache.PriorityCritical, precache.PriorityCritical, precache.PriorityCritical,
	}, e.Pending())
	for _, r := range e.Pending() {
		assert.Equal(t, "talk", r.ActionID)
	}
}

func TestEngine_TrajectoryInvalidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngine(t, mocks.NewMockGenerator(), world)

	_, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)
	e.LookAhead(ctx)

	// 小幅抖动不失效
	world.SetTrajectory(1, 1, 20)
	assert.False(t, e.LookAhead(ctx).Invalidated)
	assert.Equal(t, 1, e.Stats().CacheSize)

	// 掉头失效
	world.SetTrajectory(1, 1, 200)
	res := e.LookAhead(ctx)
	assert.True(t, res.Invalidated)

	stats := e.Stats()
	assert.Zero(t, stats.CacheSize)
	assert.Equal(t, int64(1), stats.InvalidationCount)
	assert.Equal(t, res.Enqueued, stats.QueueDepth, "queue is rebuilt from the new trajectory")
	for _, r := range e.Pending() {
		assert.Equal(t, precache.PriorityLow, r.Priority, "guard is now behind the agent")
	}
}

func TestEngine_ManualInvalidate(t *testing.T) {
	ctx := testutil.TestContext(t)
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngine(t, mocks.NewMockGenerator(), world)

	e.LookAhead(ctx)
	_, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)

	assert.Equal(t, 1, e.Invalidate("test"))
	stats := e.Stats()
	assert.Zero(t, stats.CacheSize)
	assert.Zero(t, stats.QueueDepth)
	assert.Zero(t, stats.InFlightCount)
	assert.Equal(t, int64(1), stats.InvalidationCount)
}

// ===== 🧪 Worker 测试 =====

func TestEngine_EndToEnd(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testutil.FastConfig()
	cfg.Actions = []string{"talk"}
	gen := mocks.NewMockGenerator().WithText("The guard salutes.")
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngineWithConfig(t, gen, world, cfg)

	e.Start(ctx)
	assert.True(t, e.Running())
	e.LookAhead(ctx)
	waitIdle(t, e)

	calls := gen.CallCount()
	assert.Equal(t, 3, calls)
	for _, c := range gen.Calls() {
		assert.Equal(t, "Agent is near guard (distance: 2.0)", c.GenContext)
	}

	out, err := e.Resolve(ctx, "talk", "I talk to Guard", "", "guard")
	require.NoError(t, err)
	testutil.AssertOutcomeText(t, "The guard salutes.", out)
	assert.Equal(t, calls, gen.CallCount(), "pre-cached outcome needs no generator call")
	assert.Equal(t, int64(1), e.Stats().HitCount)

	e.Stop()
	assert.False(t, e.Running())
}

func TestEngine_WorkerFailureReleasesKey(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testutil.FastConfig()
	cfg.Actions = []string{"distract"}
	gen := mocks.NewMockGenerator().WithError(errors.New("upstream down"))
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngineWithConfig(t, gen, world, cfg)

	e.Start(ctx)
	e.LookAhead(ctx)
	waitIdle(t, e)

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Zero(t, stats.CacheSize)

	// 失败的键可以再次入队
	assert.Equal(t, 2, e.LookAhead(ctx).Enqueued)
}

func TestEngine_DiscardsResultsFromBeforeInvalidation(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testutil.FastConfig()
	cfg.Actions = []string{"talk"}
	gate := make(chan struct{})
	gen := mocks.NewMockGenerator().WithGate(gate)
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngineWithConfig(t, gen, world, cfg)

	e.Start(ctx)
	e.LookAhead(ctx)
	testutil.AssertEventuallyTrue(t, func() bool { return gen.CallCount() == 1 }, time.Second)

	world.SetTrajectory(0, 0, 180)
	require.True(t, e.LookAhead(ctx).Invalidated)
	close(gate)

	testutil.AssertEventuallyTrue(t, func() bool { return e.Stats().Discarded == 1 }, 5*time.Second)
	waitIdle(t, e)

	assert.Empty(t, e.Pending())
	assert.Equal(t, 4, gen.CallCount())
	assert.Equal(t, 3, e.Stats().CacheSize, "only post-invalidation results are cached")
}

func TestEngine_StopWaitsForInFlightGeneration(t *testing.T) {
	ctx := testutil.TestContext(t)
	cfg := testutil.FastConfig()
	cfg.Actions = []string{"talk"}
	gate := make(chan struct{})
	gen := mocks.NewMockGenerator().WithGate(gate)
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngineWithConfig(t, gen, world, cfg)

	e.Start(ctx)
	e.LookAhead(ctx)
	testutil.AssertEventuallyTrue(t, func() bool { return gen.CallCount() == 1 }, time.Second)

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a generation was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.False(t, e.Running())
	assert.Equal(t, 1, e.Stats().CacheSize, "in-flight result is still stored")
	assert.Equal(t, 1, gen.CallCount(), "no new generations after stop")
}

func TestEngine_StartStopIdempotent(t *testing.T) {
	ctx := testutil.TestContext(t)
	e := newEngine(t, mocks.NewMockGenerator(), mocks.NewMockWorld(0, 0, 0))

	e.Stop()
	e.Start(ctx)
	e.Start(ctx)
	assert.True(t, e.Running())
	e.Stop()
	e.Stop()
	assert.False(t, e.Running())

	e.Start(ctx)
	assert.True(t, e.Running())
}

func TestEngine_RecorderEvents(t *testing.T) {
	ctx := testutil.TestContext(t)
	rec := &recordingRecorder{}
	world := mocks.NewMockWorld(0, 0, 0).WithTargets(guard)
	e := newEngine(t, mocks.NewMockGenerator(), world, precache.WithRecorder(rec))

	_, err := e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)
	_, err = e.Resolve(ctx, "talk", "hello", "", "guard")
	require.NoError(t, err)
	e.LookAhead(ctx)
	e.Invalidate("test")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []bool{false, true}, rec.lookups)
	require.Len(t, rec.generations, 1)
	assert.Equal(t, precache.SourceFallback, rec.generations[0].Source)
	assert.Equal(t, 14, rec.enqueued)
	assert.Equal(t, []int{1}, rec.invalidations)
}

type recordingRecorder struct {
	precache.NopRecorder

	mu            sync.Mutex
	lookups       []bool
	generations   []precache.GenerationEvent
	enqueued      int
	invalidations []int
}

func (r *recordingRecorder) RecordLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, hit)
}

func (r *recordingRecorder) RecordEnqueue(_ precache.Priority, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if accepted {
		r.enqueued++
	}
}

func (r *recordingRecorder) RecordGeneration(ev precache.GenerationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, ev)
}

func (r *recordingRecorder) RecordInvalidation(cleared int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations = append(r.invalidations, cleared)
}

func TestEngine_WithID(t *testing.T) {
	e := newEngine(t, mocks.NewMockGenerator(), mocks.NewMockWorld(0, 0, 0), precache.WithID("engine-7"))
	assert.Equal(t, "engine-7", e.ID())
	assert.Equal(t, "engine-7", e.Stats().EngineID)

	other := newEngine(t, mocks.NewMockGenerator(), mocks.NewMockWorld(0, 0, 0), precache.WithID(""))
	assert.NotEmpty(t, other.ID())
}
