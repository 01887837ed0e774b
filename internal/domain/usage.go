package domain

import (
	"context"
	"sync/atomic"
)

// TokenUsage accumulates provider token consumption for a single request.
// Safe for concurrent use; a nil receiver is a no-op sink.
type TokenUsage struct {
	tokens int64
}

// AddTokens records consumed tokens.
func (u *TokenUsage) AddTokens(n int) {
	if u == nil || n <= 0 {
		return
	}
	atomic.AddInt64(&u.tokens, int64(n))
}

// Tokens returns the accumulated token count.
func (u *TokenUsage) Tokens() int {
	if u == nil {
		return 0
	}
	return int(atomic.LoadInt64(&u.tokens))
}

type usageCtxKey struct{}

// NewContextWithUsage attaches a fresh usage accumulator to the context.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, usageCtxKey{}, u), u
}

// UsageFromContext returns the accumulator from the context, or nil when the
// caller did not ask for usage tracking. All TokenUsage methods accept nil.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(usageCtxKey{}).(*TokenUsage)
	return u
}
