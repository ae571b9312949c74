package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/xeipuuv/gojsonschema"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// Param describes one variable tool parameter. Order within a descriptor
// is preserved in the generated schema summary.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string" | "integer" | "number" | "boolean"
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Handler executes a tool with fully validated and merged arguments.
// A handler may return a ports.ExecutionResult to control the envelope
// (e.g. to report a policy violation); any other value is wrapped as a
// SUCCESS payload and any error as an execution fault.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor is a named, strongly-typed tool definition. Bound arguments
// are fixed at registration: they are never exposed to the model and take
// precedence over model-supplied values of the same name.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Bound       map[string]any
	Handler     Handler
}

type registeredTool struct {
	desc   Descriptor
	schema []byte // derived JSON schema for model-supplied args only
}

// Registry holds tool descriptors for the lifetime of an agent instance
// and validates/dispatches calls against them. Dispatch never propagates
// a fault past its boundary; only duplicate registration is fatal.
type Registry struct {
	mu          sync.RWMutex
	order       []string
	tools       map[string]*registeredTool
	toolTimeout time.Duration
	concurrency int
	tracer      ports.Tracer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithToolTimeout bounds each handler invocation. Zero disables the bound.
func WithToolTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.toolTimeout = d }
}

// WithConcurrency enables concurrent dispatch of a call batch with up to n
// goroutines. Results are still delivered in request order.
func WithConcurrency(n int) RegistryOption {
	return func(r *Registry) { r.concurrency = n }
}

// WithTracer attaches a tracer for dispatch events.
func WithTracer(t ports.Tracer) RegistryOption {
	return func(r *Registry) { r.tracer = t }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: make(map[string]*registeredTool), concurrency: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a descriptor. Names are unique within a registry; a
// duplicate is a programming error and fails loudly.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}

	schema, err := deriveSchema(d)
	if err != nil {
		return fmt.Errorf("tool %s: %w", d.Name, err)
	}

	r.tools[d.Name] = &registeredTool{desc: d, schema: schema}
	r.order = append(r.order, d.Name)
	return nil
}

// DescribeAll returns schema summaries in registration order. This is the
// only surface through which the model learns what it may call.
func (r *Registry) DescribeAll() []ports.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ports.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, ports.ToolSpec{
			Name:        t.desc.Name,
			Description: t.desc.Description,
			JSONSchema:  t.schema,
		})
	}
	return specs
}

// Dispatch validates and executes a single call, normalizing every outcome
// into an ExecutionResult so control always returns to the loop.
func (r *Registry) Dispatch(ctx context.Context, call ports.ToolCall) ports.ExecutionResult {
	r.mu.RLock()
	t, exists := r.tools[call.Name]
	r.mu.RUnlock()

	if !exists {
		return ports.Failuref(ports.ErrKindUnknownTool, "tool %q is not registered", call.Name)
	}

	supplied, result, ok := r.validateArgs(t, call)
	if !ok {
		return result
	}

	// Merge with fixed-argument precedence: bound values can never be
	// overridden by model-supplied ones.
	merged := make(map[string]any, len(supplied)+len(t.desc.Bound))
	for k, v := range supplied {
		merged[k] = v
	}
	for k, v := range t.desc.Bound {
		merged[k] = v
	}

	if r.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.toolTimeout)
		defer cancel()
	}

	res := r.invoke(ctx, t, merged)
	if r.tracer != nil {
		r.tracer.Event(ctx, "dispatch", map[string]any{
			"tool":   call.Name,
			"status": string(res.Status),
			"kind":   string(res.ErrorKind),
		})
	}
	return res
}

// DispatchAll executes a batch of calls and returns results in request
// order. Sequential by default; with concurrency enabled the ordering
// guarantee is preserved via positional result slots.
func (r *Registry) DispatchAll(ctx context.Context, calls []ports.ToolCall) []ports.ExecutionResult {
	results := make([]ports.ExecutionResult, len(calls))
	if r.concurrency > 1 {
		p := pool.New().WithMaxGoroutines(r.concurrency)
		for i, call := range calls {
			p.Go(func() {
				results[i] = r.Dispatch(ctx, call)
			})
		}
		p.Wait()
		return results
	}
	for i, call := range calls {
		results[i] = r.Dispatch(ctx, call)
	}
	return results
}

// validateArgs checks supplied args against the derived schema and maps
// schema violations onto the failure taxonomy.
func (r *Registry) validateArgs(t *registeredTool, call ports.ToolCall) (map[string]any, ports.ExecutionResult, bool) {
	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var supplied map[string]any
	if err := json.Unmarshal(args, &supplied); err != nil {
		return nil, ports.Failuref(ports.ErrKindTypeMismatch, "tool %s: arguments are not a JSON object: %v", call.Name, err), false
	}

	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(t.schema), gojsonschema.NewBytesLoader(args))
	if err != nil {
		return nil, ports.Failuref(ports.ErrKindTypeMismatch, "tool %s: argument validation failed: %v", call.Name, err), false
	}
	if !res.Valid() {
		return nil, classifySchemaError(call.Name, res.Errors()), false
	}
	return supplied, ports.ExecutionResult{}, true
}

// classifySchemaError maps the first schema violation onto the taxonomy,
// preferring the most specific category present.
func classifySchemaError(tool string, errs []gojsonschema.ResultError) ports.ExecutionResult {
	kindOf := func(e gojsonschema.ResultError) ports.ErrorKind {
		switch e.Type() {
		case "required":
			return ports.ErrKindMissingArgument
		case "additional_property_not_allowed":
			return ports.ErrKindUnexpectedArgument
		default:
			return ports.ErrKindTypeMismatch
		}
	}

	for _, want := range []ports.ErrorKind{ports.ErrKindMissingArgument, ports.ErrKindUnexpectedArgument} {
		for _, e := range errs {
			if kindOf(e) == want {
				return ports.Failuref(want, "tool %s: %s", tool, e.String())
			}
		}
	}
	return ports.Failuref(ports.ErrKindTypeMismatch, "tool %s: %s", tool, errs[0].String())
}

// invoke runs the handler under a panic guard and normalizes the outcome.
func (r *Registry) invoke(ctx context.Context, t *registeredTool, args map[string]any) (result ports.ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ports.Failuref(ports.ErrKindExecutionFault, "tool %s panicked: %v", t.desc.Name, rec)
		}
	}()

	out, err := t.desc.Handler(ctx, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ports.Failuref(ports.ErrKindTimeout, "tool %s timed out: %v", t.desc.Name, err)
		}
		return ports.Failuref(ports.ErrKindExecutionFault, "tool %s: %v", t.desc.Name, err)
	}

	// Handlers that already speak the envelope pass through untouched.
	if res, ok := out.(ports.ExecutionResult); ok {
		return res
	}
	return ports.Success(out)
}

// deriveSchema builds the model-facing JSON schema from the ordered
// parameter list, excluding bound parameters entirely.
func deriveSchema(d Descriptor) ([]byte, error) {
	properties := make(map[string]any, len(d.Params))
	var required []string

	for _, p := range d.Params {
		if _, bound := d.Bound[p.Name]; bound {
			continue
		}
		switch p.Type {
		case "string", "integer", "number", "boolean":
		default:
			return nil, fmt.Errorf("parameter %s has unsupported type %q", p.Name, p.Type)
		}
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.Marshal(schema)
}
