package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// Loop states. Reasoning and Action alternate until a terminal state.
type State string

const (
	StateReasoning  State = "reasoning"
	StateAction     State = "action"
	StateTerminated State = "terminated"
	StateFailed     State = "failed"
)

// Policy controls loop budgets and timeouts.
type Policy struct {
	MaxIterations   int           // reasoning phases per turn
	MaxParseRetries int           // corrective retries for malformed output
	ModelTimeout    time.Duration // per model call
	CacheTTLSeconds int           // completion cache TTL
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxIterations:   10,
		MaxParseRetries: 3,
		ModelTimeout:    60 * time.Second,
		CacheTTLSeconds: 3600,
	}
}

// TurnResult is the outcome of one full reasoning-action loop invocation.
type TurnResult struct {
	State      State
	Final      string // assistant-visible answer when State == StateTerminated
	Iterations int
}

// Orchestrator drives a single conversational turn: alternate REASONING
// and ACTION until a decision with no further calls is reached or a
// budget is exhausted. One orchestrator may serve many conversations; it
// holds no per-conversation state itself.
type Orchestrator struct {
	provider ports.Provider
	registry *Registry
	builder  *PromptBuilder
	parser   *Parser
	store    ports.ConversationStore
	cache    ports.Cache
	limiter  ports.RateLimiter
	tracer   ports.Tracer
	policy   *Policy
	system   string
}

// NewOrchestrator wires the loop with its collaborators. Store, cache,
// limiter and tracer may be the no-op implementations from the factory.
func NewOrchestrator(
	provider ports.Provider,
	registry *Registry,
	builder *PromptBuilder,
	parser *Parser,
	store ports.ConversationStore,
	cache ports.Cache,
	limiter ports.RateLimiter,
	tracer ports.Tracer,
	policy *Policy,
) *Orchestrator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if store == nil {
		store = NoopStore{}
	}
	if cache == nil {
		cache = noopCache{}
	}
	if limiter == nil {
		limiter = noopRateLimiter{}
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	return &Orchestrator{
		provider: provider,
		registry: registry,
		builder:  builder,
		parser:   parser,
		store:    store,
		cache:    cache,
		limiter:  limiter,
		tracer:   tracer,
		policy:   policy,
		system:   SystemPrompt,
	}
}

// SetSystemPrompt overrides the default decision-format contract.
func (o *Orchestrator) SetSystemPrompt(s string) { o.system = s }

// Turn appends the user message and runs the loop to a terminal state.
// The conversation is updated in place and preserved for inspection on
// failure. Only budget exhaustion and infrastructure faults return an
// error without an assistant-visible answer.
func (o *Orchestrator) Turn(ctx context.Context, conv *Conversation, userMessage string) (TurnResult, error) {
	ctx, finish := o.tracer.StartSpan(ctx, "turn", map[string]any{
		"conversation_id": conv.ID,
	})

	conv.Append(RoleUser, "", userMessage)
	o.saveTurn(ctx, conv.ID, ports.Turn{Role: RoleUser, Content: userMessage, CreatedAt: time.Now()})

	res, err := o.run(ctx, conv)
	finish(err)
	return res, err
}

// run is the state machine. Budgets are explicit counters carried through
// each transition rather than implicit recursion.
func (o *Orchestrator) run(ctx context.Context, conv *Conversation) (TurnResult, error) {
	state := StateReasoning
	iterations := 0
	parseRetries := 0
	var pending []ports.ToolCall

	for {
		if err := ctx.Err(); err != nil {
			return TurnResult{State: StateFailed, Iterations: iterations}, err
		}

		switch state {
		case StateReasoning:
			iterations++
			if iterations > o.policy.MaxIterations {
				budget := &BudgetError{Budget: "iterations", Limit: o.policy.MaxIterations}
				return TurnResult{State: StateFailed, Iterations: iterations - 1}, budget
			}

			text, err := o.reason(ctx, conv, iterations)
			if err != nil {
				return TurnResult{State: StateFailed, Iterations: iterations}, err
			}

			decision, perr := o.parser.Parse(text)
			if perr != nil {
				parseRetries++
				o.tracer.Event(ctx, "parse_retry", map[string]any{
					"attempt": parseRetries,
					"error":   perr.Error(),
				})
				if parseRetries >= o.policy.MaxParseRetries {
					budget := &BudgetError{Budget: "parse_retries", Limit: o.policy.MaxParseRetries}
					return TurnResult{State: StateFailed, Iterations: iterations}, budget
				}
				conv.Append(RoleSystem, "parser", correctiveObservation)
				continue
			}
			parseRetries = 0

			conv.Append(RoleAssistant, "", decision.Encode())
			o.saveTurn(ctx, conv.ID, ports.Turn{Role: RoleAssistant, Content: decision.Encode(), CreatedAt: time.Now()})

			if len(decision.Calls) == 0 {
				return TurnResult{State: StateTerminated, Final: decision.Speak, Iterations: iterations}, nil
			}
			pending = decision.Calls
			state = StateAction

		case StateAction:
			results := o.registry.DispatchAll(ctx, pending)
			// Observations re-enter the conversation in request order
			// regardless of dispatch concurrency.
			for i, result := range results {
				label := fmt.Sprintf("%s#%d", pending[i].Name, i)
				rendered := result.Render()
				conv.Append(RoleSystem, label, rendered)
				if err := o.store.AppendToolArtifact(ctx, conv.ID, label, []byte(rendered)); err != nil {
					o.tracer.Event(ctx, "store_error", map[string]any{"error": err.Error()})
				}
			}
			pending = nil
			state = StateReasoning
		}
	}
}

// reason performs one model call: rate limit, cache lookup, provider
// invocation under the model timeout.
func (o *Orchestrator) reason(ctx context.Context, conv *Conversation, iteration int) (string, error) {
	release, err := o.limiter.Acquire(ctx, conv.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	defer release()

	prompt := o.builder.Build(o.system, conv.PromptMessages(), o.registry.DescribeAll(), map[string]string{
		"conversation_id": conv.ID,
		"iteration":       fmt.Sprintf("%d", iteration),
	})

	key := o.cacheKey(prompt)
	if cached, ok := o.cache.Get(ctx, key); ok {
		o.tracer.Event(ctx, "cache_hit", map[string]any{"key": key})
		return string(cached), nil
	}

	callCtx := ctx
	if o.policy.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.policy.ModelTimeout)
		defer cancel()
	}

	completion, err := o.provider.Complete(callCtx, prompt, ports.Options{})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", ErrModelCall, o.policy.ModelTimeout)
		}
		return "", fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	if err := o.cache.Set(ctx, key, []byte(completion.Text), o.policy.CacheTTLSeconds); err != nil {
		o.tracer.Event(ctx, "cache_error", map[string]any{"error": err.Error()})
	}
	return completion.Text, nil
}

// saveTurn persists to the audit store best-effort; the in-memory
// conversation stays authoritative.
func (o *Orchestrator) saveTurn(ctx context.Context, conversationID string, turn ports.Turn) {
	if err := o.store.SaveTurn(ctx, conversationID, turn); err != nil {
		o.tracer.Event(ctx, "store_error", map[string]any{"error": err.Error()})
	}
}

// cacheKey digests the full prompt so identical conversation prefixes map
// to the same completion.
func (o *Orchestrator) cacheKey(in ports.PromptInput) string {
	h := sha256.New()
	h.Write([]byte(in.System))
	for _, m := range in.Messages {
		fmt.Fprintf(h, "|%s/%s:%s", m.Role, m.Name, m.Content)
	}
	for _, t := range in.Tools {
		fmt.Fprintf(h, "|tool:%s", t.Name)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
