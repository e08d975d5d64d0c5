package precache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// worker 后台预缓存循环。每个引擎同一时刻只有一个 worker，
// 生成请求严格串行。
type worker struct {
	engine *Engine
	logger *zap.Logger
}

func newWorker(e *Engine) *worker {
	return &worker{
		engine: e,
		logger: e.logger.With(zap.String("component", "precache_worker")),
	}
}

// run 循环直到 ctx 被取消；进行中的生成调用不受取消影响，会完整结束
func (w *worker) run(ctx context.Context) {
	cfg := w.engine.config
	w.logger.Info("pre-cache worker started")
	defer w.logger.Info("pre-cache worker stopped")

	for ctx.Err() == nil {
		req, epoch, ok := w.engine.nextRequest()
		if !ok {
			if !sleepCtx(ctx, cfg.WorkerPollInterval) {
				return
			}
			continue
		}

		if err := w.process(ctx, req, epoch); err != nil {
			w.logger.Warn("pre-cache generation failed",
				zap.String("request_id", req.ID),
				zap.String("target", req.TargetID),
				zap.String("action", req.ActionID),
				zap.Error(err))

			stopped := !sleepCtx(ctx, cfg.WorkerErrorBackoff)
			w.engine.release(req, epoch)
			if stopped {
				return
			}
			continue
		}

		if !sleepCtx(ctx, cfg.WorkerInterRequestDelay) {
			return
		}
	}
}

// process 生成一条请求并写回缓存
func (w *worker) process(ctx context.Context, req *Request, epoch uint64) error {
	e := w.engine
	key := req.Key()

	out, dur, err := e.generate(context.WithoutCancel(ctx), SourceSpeculative, key, req.Priority,
		req.ActionID, req.InputText, req.GenerationContext())
	if err != nil {
		e.recordGeneration(key, SourceSpeculative, req.Priority, dur, err, false)
		return err
	}

	stored, evicted := e.commit(req, epoch, out)
	e.recordGeneration(key, SourceSpeculative, req.Priority, dur, nil, !stored)
	if !stored {
		e.discarded.Add(1)
		w.logger.Debug("discarded result generated before invalidation",
			zap.Stringer("key", key))
		return nil
	}
	if evicted > 0 {
		e.recorder.RecordEviction(evicted)
	}
	e.recorder.RecordQueueState(e.queue.Len(), e.queue.InFlight())

	w.logger.Info("pre-cached outcome",
		zap.String("target", req.TargetID),
		zap.String("action", req.ActionID),
		zap.Stringer("priority", req.Priority),
		zap.Duration("duration", dur))
	return nil
}

// sleepCtx 等待 d 或 ctx 取消；被取消时返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
