// Package policy evaluates which worker roles may invoke which tools.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_access.decision"),
		rego.Module("tool_access.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks whether a role may call a tool.
// Input keys: tool_name, role, allowed_roles.
// Returns: decision ("allow" or "deny"), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy always yields a decision; treat silence as deny.
		return "deny", nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		return s, nil
	}

	return "deny", nil
}

// DefaultPolicy is the default tool access policy: a tool with an
// allowed-callers list admits only those roles; an empty list admits all.
const DefaultPolicy = `
package tool_access

default decision = "deny"

decision = "allow" {
	count(input.allowed_roles) == 0
}

decision = "allow" {
	input.allowed_roles[_] == input.role
}
`
