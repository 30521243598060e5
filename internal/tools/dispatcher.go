package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/liurenhao/stagegate/internal/domain"
	"github.com/liurenhao/stagegate/policy"
)

// CallContext carries the identity of the caller into a tool handler.
type CallContext struct {
	Project     string
	Role        domain.Role
	Gate        domain.Gate
	ExecutionID string
}

// Handler is a tool's business logic. Handlers are unaware of the circuit
// breaker and timeout wrapping around them.
type Handler func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error)

// Result is the outcome of a tool execution. It is always produced, even on
// failure; failures are data, never a raised fault.
type Result struct {
	Success  bool
	TimedOut bool
	Error    string
	Payload  json.RawMessage
}

// Body renders the result as the JSON object handed back to the model.
func (r *Result) Body() string {
	merged := map[string]interface{}{"success": r.Success}
	if len(r.Payload) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(r.Payload, &payload); err == nil {
			for k, v := range payload {
				merged[k] = v
			}
		}
	}
	if r.Error != "" {
		merged["error"] = r.Error
	}
	if r.TimedOut {
		merged["timed_out"] = true
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return `{"success":false,"error":"failed to encode result"}`
	}
	return string(data)
}

// Dispatcher routes tool invocations to registered handlers with policy
// enforcement, a per-tool circuit breaker, and per-tool timeouts.
type Dispatcher struct {
	catalog        *Catalog
	breaker        *Breaker
	policyEngine   *policy.Engine
	handlers       map[string]Handler
	defaultTimeout time.Duration
}

// NewDispatcher creates a dispatcher. Handlers are registered once at
// startup; adding a tool means registering a new entry.
func NewDispatcher(catalog *Catalog, breaker *Breaker, policyEngine *policy.Engine, defaultTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		catalog:        catalog,
		breaker:        breaker,
		policyEngine:   policyEngine,
		handlers:       make(map[string]Handler),
		defaultTimeout: defaultTimeout,
	}
}

// Register adds a handler for a tool name.
func (d *Dispatcher) Register(toolName string, h Handler) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	if _, exists := d.handlers[toolName]; exists {
		return fmt.Errorf("handler already registered for %s", toolName)
	}
	d.handlers[toolName] = h
	return nil
}

// MustRegister adds a handler or panics.
func (d *Dispatcher) MustRegister(toolName string, h Handler) {
	if err := d.Register(toolName, h); err != nil {
		panic(err)
	}
}

// Execute runs a tool invocation. It never returns an error to the caller;
// every failure mode is encoded in the Result.
func (d *Dispatcher) Execute(ctx context.Context, toolName string, args json.RawMessage, cc CallContext) *Result {
	handler, ok := d.handlers[toolName]
	if !ok {
		return &Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", toolName)}
	}

	// Policy check: allowed-callers enforcement. A denial is not a tool
	// fault, so it does not count against the breaker.
	if d.policyEngine != nil {
		spec, _ := d.catalog.Get(toolName)
		allowed := make([]string, 0, len(spec.AllowedRoles))
		for _, r := range spec.AllowedRoles {
			allowed = append(allowed, string(r))
		}
		decision, err := d.policyEngine.Evaluate(ctx, map[string]interface{}{
			"tool_name":     toolName,
			"role":          string(cc.Role),
			"allowed_roles": allowed,
		})
		if err != nil {
			return &Result{Success: false, Error: fmt.Sprintf("policy evaluation failed: %v", err)}
		}
		if decision != "allow" {
			return &Result{Success: false, Error: fmt.Sprintf("tool %s not permitted for role %s", toolName, cc.Role)}
		}
	}

	// Circuit breaker: short-circuit before starting any timer.
	if !d.breaker.Allow(toolName) {
		return &Result{Success: false, Error: fmt.Sprintf("tool %s temporarily unavailable", toolName)}
	}

	timeout := d.catalog.Timeout(toolName, d.defaultTimeout)

	type handlerOutcome struct {
		payload json.RawMessage
		err     error
	}
	done := make(chan handlerOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		payload, err := handler(ctx, cc, args)
		done <- handlerOutcome{payload: payload, err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			d.breaker.RecordFailure(toolName)
			log.Printf("WARN: tool %s failed: %v", toolName, outcome.err)
			return &Result{Success: false, Error: outcome.err.Error()}
		}
		d.breaker.RecordSuccess(toolName)
		return &Result{Success: true, Payload: outcome.payload}
	case <-time.After(timeout):
		d.breaker.RecordFailure(toolName)
		log.Printf("WARN: tool %s timed out after %s", toolName, timeout)
		return &Result{Success: false, TimedOut: true, Error: fmt.Sprintf("tool %s timed out", toolName)}
	case <-ctx.Done():
		d.breaker.RecordFailure(toolName)
		return &Result{Success: false, Error: ctx.Err().Error()}
	}
}
