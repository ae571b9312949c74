package agent

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/nagyist/agentscope/sqlagent/agent/adapters"
	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
	"github.com/nagyist/agentscope/sqlagent/config"
)

// Factory creates and wires loop components from configuration.
type Factory struct {
	cfg    *config.AgentConfig
	db     *sql.DB // optional, for the conversation store
	logger zerolog.Logger
}

func NewFactory(cfg *config.AgentConfig, conn *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, db: conn, logger: logger}
}

// CreateOrchestrator builds a fully wired orchestrator around the given
// provider and registry.
func (f *Factory) CreateOrchestrator(provider ports.Provider, registry *Registry) *Orchestrator {
	return NewOrchestrator(
		provider,
		registry,
		NewPromptBuilder(),
		NewParser(),
		f.createStore(),
		f.createCache(),
		f.createRateLimiter(),
		f.CreateTracer(),
		f.CreatePolicy(),
	)
}

// CreateRegistry builds an empty registry with the configured dispatch
// bounds; callers register tool descriptors on it.
func (f *Factory) CreateRegistry() *Registry {
	return NewRegistry(
		WithToolTimeout(f.cfg.ToolTimeout),
		WithConcurrency(f.cfg.ToolConcurrency),
		WithTracer(f.CreateTracer()),
	)
}

// CreatePolicy maps config onto a loop policy, clamping unusable values.
func (f *Factory) CreatePolicy() *Policy {
	policy := &Policy{
		MaxIterations:   f.cfg.MaxIterations,
		MaxParseRetries: f.cfg.MaxParseRetries,
		ModelTimeout:    f.cfg.ModelTimeout,
		CacheTTLSeconds: f.cfg.CacheTTLSeconds,
	}

	if policy.MaxIterations < 1 {
		policy.MaxIterations = 1
		f.logger.Warn().Int("max_iterations", f.cfg.MaxIterations).Msg("MaxIterations clamped to minimum of 1")
	}
	if policy.MaxIterations > 50 {
		policy.MaxIterations = 50
		f.logger.Warn().Int("max_iterations", f.cfg.MaxIterations).Msg("MaxIterations clamped to maximum of 50")
	}
	if policy.MaxParseRetries < 1 {
		policy.MaxParseRetries = 1
		f.logger.Warn().Int("max_parse_retries", f.cfg.MaxParseRetries).Msg("MaxParseRetries clamped to minimum of 1")
	}
	return policy
}

// CreateTracer returns the zerolog tracer, or a no-op when disabled.
func (f *Factory) CreateTracer() ports.Tracer {
	if !f.cfg.EnableTracing {
		return NoopTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) createCache() ports.Cache {
	if !f.cfg.CacheEnabled {
		return noopCache{}
	}
	return adapters.NewLRUCache(f.cfg.CacheCapacity)
}

func (f *Factory) createRateLimiter() ports.RateLimiter {
	if !f.cfg.RateLimitEnabled {
		return noopRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.RateLimitCapacity, f.cfg.RateLimitRefillRate)
}

func (f *Factory) createStore() ports.ConversationStore {
	if !f.cfg.StoreEnabled || f.db == nil {
		return NoopStore{}
	}
	return adapters.NewLibSQLConversationStore(f.db)
}

// NoopTracer discards all spans and events.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(error) {}
}
func (NoopTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// NoopStore discards all turns; used when audit persistence is disabled.
type NoopStore struct{}

func (NoopStore) SaveTurn(ctx context.Context, conversationID string, turn ports.Turn) error {
	return nil
}

func (NoopStore) LoadContext(ctx context.Context, conversationID string, k int) ([]ports.Turn, error) {
	return nil, nil
}

func (NoopStore) AppendToolArtifact(ctx context.Context, conversationID, name string, payload []byte) error {
	return nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (noopCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (noopCache) Delete(ctx context.Context, key string) error { return nil }

type noopRateLimiter struct{}

func (noopRateLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

var (
	_ ports.Tracer            = NoopTracer{}
	_ ports.ConversationStore = NoopStore{}
	_ ports.Cache             = noopCache{}
	_ ports.RateLimiter       = noopRateLimiter{}
)
