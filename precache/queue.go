package precache

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Presence 判断键是否已有有效的缓存结果
type Presence interface {
	Contains(key RequestKey) bool
}

// RequestQueue 按优先级排序的待处理队列，带 in-flight 去重集合。
//
// 键一经入队即被标记为 in-flight，直到 Worker 调用 MarkDone 才释放；
// 同一级别内保持 FIFO。
type RequestQueue struct {
	mu       sync.Mutex
	pending  []*Request
	inFlight map[RequestKey]struct{}
	presence Presence
	logger   *zap.Logger
}

// NewRequestQueue 创建请求队列；presence 为 nil 时不检查缓存
func NewRequestQueue(presence Presence, logger *zap.Logger) *RequestQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestQueue{
		inFlight: make(map[RequestKey]struct{}),
		presence: presence,
		logger:   logger,
	}
}

// Enqueue 入队请求。键已缓存、已排队或正在生成时返回 false 且无副作用。
func (q *RequestQueue) Enqueue(req *Request) bool {
	if req == nil {
		return false
	}
	key := req.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, busy := q.inFlight[key]; busy {
		return false
	}
	if q.presence != nil && q.presence.Contains(key) {
		return false
	}

	// 插入到第一个优先级更低的请求之前，等价于稳定排序
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].Priority > req.Priority
	})
	q.pending = slices.Insert(q.pending, idx, req)
	q.inFlight[key] = struct{}{}

	q.logger.Debug("queued pre-cache request",
		zap.String("target", req.TargetID),
		zap.String("action", req.ActionID),
		zap.Stringer("priority", req.Priority))
	return true
}

// DequeueNext 弹出最紧急的请求；不会清除 in-flight 标记
func (q *RequestQueue) DequeueNext() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}
	req := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return req, true
}

// MarkDone 释放键的 in-flight 标记
func (q *RequestQueue) MarkDone(key RequestKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, key)
}

// IsInFlight 判断键是否已排队或正在生成
func (q *RequestQueue) IsInFlight(key RequestKey) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inFlight[key]
	return ok
}

// Clear 清空待处理列表与 in-flight 集合
func (q *RequestQueue) Clear() (pending, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, inFlight = len(q.pending), len(q.inFlight)
	q.pending = nil
	q.inFlight = make(map[RequestKey]struct{})
	return pending, inFlight
}

// Len 待处理请求数
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight in-flight 键数量（包含仍在排队的键）
func (q *RequestQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Snapshot 按出队顺序返回待处理请求的副本
func (q *RequestQueue) Snapshot() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Request, len(q.pending))
	for i, r := range q.pending {
		out[i] = *r
	}
	return out
}
