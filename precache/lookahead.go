package precache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/lookahead/trajectory"
)

// LookAheadResult 一次前瞻的结果
type LookAheadResult struct {
	Invalidated bool `json:"invalidated"` // 本次是否因轨迹变化触发整体失效
	Targets     int  `json:"targets"`     // 附近目标数
	Enqueued    int  `json:"enqueued"`    // 新入队的请求数
	Skipped     int  `json:"skipped"`     // 已缓存或已在队列中的请求数
}

// LookAhead 执行一次前瞻：检测轨迹变化，然后为附近目标的每个动作样例入队。
//
// 由调用方按自己的节奏（例如每帧）调用，本身不会阻塞在生成器上。
func (e *Engine) LookAhead(ctx context.Context) LookAheadResult {
	_, span := e.tracer.Start(ctx, "precache.lookahead")
	defer span.End()

	x, y, heading := e.world.CurrentTrajectory()
	var res LookAheadResult

	if e.tracker.Update(x, y, heading) {
		e.invalidate("trajectory changed")
		res.Invalidated = true
	}

	agent := trajectory.NewVector(x, y, heading, e.now())
	targets := e.world.NearbyTargets()
	res.Targets = len(targets)
	now := e.now()

	e.stateMu.Lock()
	for _, t := range targets {
		priority, distance := e.classify(agent, t)
		name := t.Name
		if name == "" {
			name = t.ID
		}
		for _, action := range e.actions {
			for _, input := range action.SampleInputs(name) {
				req := NewRequest(t.ID, action.String(), input, priority, distance, now)
				accepted := e.queue.Enqueue(req)
				e.recorder.RecordEnqueue(priority, accepted)
				if accepted {
					res.Enqueued++
				} else {
					res.Skipped++
				}
			}
		}
	}
	depth, inFlight := e.queue.Len(), e.queue.InFlight()
	e.stateMu.Unlock()

	e.recorder.RecordQueueState(depth, inFlight)
	span.SetAttributes(
		attribute.Bool("precache.invalidated", res.Invalidated),
		attribute.Int("precache.targets", res.Targets),
		attribute.Int("precache.enqueued", res.Enqueued),
	)
	if res.Enqueued > 0 {
		e.logger.Debug("look-ahead queued requests",
			zap.Int("targets", res.Targets),
			zap.Int("enqueued", res.Enqueued),
			zap.Int("queue_depth", depth))
	}
	return res
}

// classify 按距离分档，前向锥外的目标降级为 LOW
func (e *Engine) classify(agent trajectory.Vector, t Target) (Priority, float64) {
	distance := agent.DistanceToPoint(t.X, t.Y)
	priority := e.config.PriorityBands.Classify(distance)
	if !agent.InForwardCone(t.X, t.Y, e.config.ForwardConeHalfAngle) {
		priority = PriorityLow
	}
	return priority, distance
}

// Prioritize 返回目标相对智能体当前轨迹的优先级与曼哈顿距离
func (e *Engine) Prioritize(t Target) (Priority, float64) {
	x, y, heading := e.world.CurrentTrajectory()
	return e.classify(trajectory.NewVector(x, y, heading, e.now()), t)
}

