package generator

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/BaSui01/lookahead/precache"
	"github.com/BaSui01/lookahead/types"
)

// RateLimited 为下游生成器加上令牌桶限流
type RateLimited struct {
	next    precache.Generator
	limiter *rate.Limiter
}

// NewRateLimited 创建限流装饰器；rps <= 0 时不限流
func NewRateLimited(next precache.Generator, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Generate 等待令牌后调用下游生成器
func (r *RateLimited) Generate(ctx context.Context, actionID, inputText, genContext string) (*precache.Outcome, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrRateLimited, "generator rate limit wait aborted").
			WithCause(err).
			WithRetryable(true)
	}
	return r.next.Generate(ctx, actionID, inputText, genContext)
}

// Limiter 返回底层限流器
func (r *RateLimited) Limiter() *rate.Limiter {
	return r.limiter
}

var _ precache.Generator = (*RateLimited)(nil)
