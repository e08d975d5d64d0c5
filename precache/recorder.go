package precache

import "time"

// Source 生成调用来源
type Source string

const (
	SourceSpeculative Source = "speculative" // Worker 预缓存
	SourceFallback    Source = "fallback"    // Resolve 未命中时的同步生成
)

// GenerationEvent 一次生成器调用的结果
type GenerationEvent struct {
	Key       RequestKey
	Source    Source
	Priority  Priority
	Duration  time.Duration
	Err       error
	Discarded bool // 轨迹失效后产出、未写入缓存
	At        time.Time
}

// Recorder 接收引擎事件，用于指标、审计日志等旁路观测
type Recorder interface {
	RecordLookup(hit bool)
	RecordEnqueue(priority Priority, accepted bool)
	RecordGeneration(ev GenerationEvent)
	RecordEviction(n int)
	RecordInvalidation(cleared int)
	RecordQueueState(depth, inFlight int)
}

// NopRecorder 丢弃全部事件
type NopRecorder struct{}

func (NopRecorder) RecordLookup(bool) {}
func (NopRecorder) RecordEnqueue(Priority, bool) {}
func (NopRecorder) RecordGeneration(GenerationEvent) {}
func (NopRecorder) RecordEviction(int) {}
func (NopRecorder) RecordInvalidation(int) {}
func (NopRecorder) RecordQueueState(int, int) {}

// MultiRecorder 将事件扇出到多个 Recorder
type MultiRecorder []Recorder

func (m MultiRecorder) RecordLookup(hit bool) {
	for _, r := range m {
		r.RecordLookup(hit)
	}
}

func (m MultiRecorder) RecordEnqueue(priority Priority, accepted bool) {
	for _, r := range m {
		r.RecordEnqueue(priority, accepted)
	}
}

func (m MultiRecorder) RecordGeneration(ev GenerationEvent) {
	for _, r := range m {
		r.RecordGeneration(ev)
	}
}

func (m MultiRecorder) RecordEviction(n int) {
	for _, r := range m {
		r.RecordEviction(n)
	}
}

func (m MultiRecorder) RecordInvalidation(cleared int) {
	for _, r := range m {
		r.RecordInvalidation(cleared)
	}
}

func (m MultiRecorder) RecordQueueState(depth, inFlight int) {
	for _, r := range m {
		r.RecordQueueState(depth, inFlight)
	}
}
