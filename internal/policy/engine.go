// Package policy evaluates the rego rules that gate task creation.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the creation policy is evaluated against.
type Input struct {
	Action         string `json:"action"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind,omitempty"`
	OpenTasks      int    `json:"open_tasks"`
	MaxOpenTasks   int    `json:"max_open_tasks"`
	TitleMaxLength int    `json:"title_max_length,omitempty"`
}

// Decision is the evaluated outcome.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.task_policy.result"),
		rego.Module("task_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the policy for input. An empty result set means allow.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow, Reason: "default"}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	d := Decision{Decision: DecisionAllow}
	if s, ok := obj["decision"].(string); ok {
		d.Decision = s
	}
	if s, ok := obj["reason"].(string); ok {
		d.Reason = s
	}
	return d, nil
}

// DefaultPolicy limits how many open tasks one user may keep.
const DefaultPolicy = `
package task_policy

default decision = "allow"

decision = "block" {
	input.action == "create"
	input.max_open_tasks > 0
	input.open_tasks >= input.max_open_tasks
}

reason = msg {
	decision == "block"
	msg := sprintf("You already have %d upcoming tasks (limit %d). Delete one with /delete first.", [input.open_tasks, input.max_open_tasks])
}

default reason = ""

result = {"decision": decision, "reason": reason}
`
