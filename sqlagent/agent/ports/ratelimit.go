package agentports

import "context"

// RateLimiter coordinates model-call throughput across sessions.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
