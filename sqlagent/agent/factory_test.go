package agent

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagyist/agentscope/sqlagent/config"
)

func TestFactory_CreatePolicyClamps(t *testing.T) {
	cases := []struct {
		name            string
		cfg             config.AgentConfig
		wantIterations  int
		wantParseRetrie int
	}{
		{
			name:            "in range",
			cfg:             config.AgentConfig{MaxIterations: 10, MaxParseRetries: 3},
			wantIterations:  10,
			wantParseRetrie: 3,
		},
		{
			name:            "below minimum",
			cfg:             config.AgentConfig{MaxIterations: 0, MaxParseRetries: 0},
			wantIterations:  1,
			wantParseRetrie: 1,
		},
		{
			name:            "above maximum",
			cfg:             config.AgentConfig{MaxIterations: 500, MaxParseRetries: 3},
			wantIterations:  50,
			wantParseRetrie: 3,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFactory(&tc.cfg, nil, zerolog.Nop())
			policy := f.CreatePolicy()
			assert.Equal(t, tc.wantIterations, policy.MaxIterations)
			assert.Equal(t, tc.wantParseRetrie, policy.MaxParseRetries)
		})
	}
}

func TestFactory_DisabledFeaturesUseNoops(t *testing.T) {
	cfg := config.AgentConfig{
		MaxIterations:    10,
		MaxParseRetries:  3,
		CacheEnabled:     false,
		RateLimitEnabled: false,
		EnableTracing:    false,
		StoreEnabled:     false,
	}
	f := NewFactory(&cfg, nil, zerolog.Nop())

	assert.IsType(t, NoopTracer{}, f.CreateTracer())
	assert.IsType(t, noopCache{}, f.createCache())
	assert.IsType(t, noopRateLimiter{}, f.createRateLimiter())
	assert.IsType(t, NoopStore{}, f.createStore())
}

func TestFactory_CreateOrchestrator(t *testing.T) {
	cfg := config.AgentConfig{
		MaxIterations:   5,
		MaxParseRetries: 2,
		ModelTimeout:    10 * time.Second,
		ToolTimeout:     5 * time.Second,
		ToolConcurrency: 2,
	}
	f := NewFactory(&cfg, nil, zerolog.Nop())

	reg := f.CreateRegistry()
	require.NotNil(t, reg)

	orch := f.CreateOrchestrator(hangingProvider{}, reg)
	require.NotNil(t, orch)
	assert.Equal(t, 5, orch.policy.MaxIterations)
	assert.Equal(t, 2, orch.policy.MaxParseRetries)
	assert.Equal(t, 10*time.Second, orch.policy.ModelTimeout)
}
