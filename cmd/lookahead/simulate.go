package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/precache"
)

// =============================================================================
// 🎮 simulate 命令
// =============================================================================

// simulateOptions 演示参数
type simulateOptions struct {
	Steps     int
	Stride    float64
	TurnEvery int
	Settle    time.Duration // 每步等待 Worker 消化队列的上限
}

// simulateReport 演示汇总
type simulateReport struct {
	Steps   int
	Hits    int
	Misses  int
	Skipped int // 附近无目标的步数
	Stats   precache.Stats
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	steps := fs.Int("steps", 20, "Number of ticks to simulate")
	stride := fs.Float64("stride", 1, "Distance walked per tick")
	turnEvery := fs.Int("turn-every", 0, "Turn 90 degrees every n ticks (0 disables)")
	settle := fs.Duration("settle", 2*time.Second, "Max wait per tick for the worker to drain the queue")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer app.Close(context.Background())

	report, err := simulate(ctx, app, simulateOptions{
		Steps:     *steps,
		Stride:    *stride,
		TurnEvery: *turnEvery,
		Settle:    *settle,
	}, os.Stdout)
	if err != nil {
		logger.Error("Simulation failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("\nhits=%d misses=%d hit_rate=%.2f generated=%d discarded=%d invalidations=%d\n",
		report.Hits, report.Misses, report.Stats.HitRate,
		report.Stats.Generated, report.Stats.Discarded, report.Stats.InvalidationCount)
}

// simulate 驱动智能体沿朝向行走；每步执行一次前瞻，等待 Worker 预生成，
// 然后对最近目标执行第一个配置动作，记录是否命中预生成结果。
func simulate(ctx context.Context, app *App, opts simulateOptions, out io.Writer) (simulateReport, error) {
	var report simulateReport
	if opts.Stride == 0 {
		opts.Stride = 1
	}

	app.Engine.Start(ctx)
	defer app.Engine.Stop()

	// 空列表表示全部动作
	action := precache.AllActions()[0]
	if actions := app.Engine.Config().Actions; len(actions) > 0 {
		kind, err := precache.ParseActionKind(actions[0])
		if err != nil {
			return report, err
		}
		action = kind
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tX\tY\tHEADING\tNEARBY\tENQUEUED\tINVALIDATED\tTARGET\tRESULT")

	for i := 1; i <= opts.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if opts.TurnEvery > 0 && i%opts.TurnEvery == 0 {
			app.World.Turn(90)
		}
		app.World.Step(opts.Stride)

		la := app.Engine.LookAhead(ctx)
		waitDrained(ctx, app.Engine, opts.Settle)

		x, y, heading := app.World.Position()
		target, ok := nearest(app.World.NearbyTargets(), x, y)
		result := "-"
		name := "-"
		if ok {
			name = target.ID
			label := target.Name
			if label == "" {
				label = target.ID
			}
			input := action.SampleInputs(label)[0]
			hit := app.Engine.Cached(target.ID, action.String(), input)
			if _, err := app.Engine.Resolve(ctx, action.String(), input, "", target.ID); err != nil {
				return report, fmt.Errorf("resolve %s on %s: %w", action, target.ID, err)
			}
			if hit {
				report.Hits++
				result = "hit"
			} else {
				report.Misses++
				result = "miss"
			}
		} else {
			report.Skipped++
		}
		report.Steps++

		fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%.0f\t%d\t%d\t%t\t%s\t%s\n",
			i, x, y, heading, la.Targets, la.Enqueued, la.Invalidated, name, result)
	}

	report.Stats = app.Engine.Stats()
	return report, tw.Flush()
}

// waitDrained 轮询直到队列与在途生成都为空，或超过 limit
func waitDrained(ctx context.Context, engine *precache.Engine, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		s := engine.Stats()
		if s.QueueDepth == 0 && s.InFlightCount == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// nearest 返回曼哈顿距离最近的目标
func nearest(targets []precache.Target, x, y float64) (precache.Target, bool) {
	var (
		best  precache.Target
		found bool
		bestD = math.Inf(1)
	)
	for _, t := range targets {
		d := math.Abs(t.X-x) + math.Abs(t.Y-y)
		if d < bestD {
			best, bestD, found = t, d, true
		}
	}
	return best, found
}
