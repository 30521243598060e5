// Package engine implements the completion loop: repeated model rounds with
// tool execution in between, until the model stops requesting tools or the
// iteration cap is reached.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/liurenhao/stagegate/internal/adapter/llm"
	"github.com/liurenhao/stagegate/internal/tools"
)

// Termination reasons reported in an Outcome.
const (
	TerminationNatural      = "natural"
	TerminationIterationCap = "iteration_cap"
)

// Outcome is the immutable result of one completion-loop run.
type Outcome struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Termination  string
	Iterations   int
}

// RunSpec describes one completion-loop run.
type RunSpec struct {
	System       string
	Instruction  string
	Schemas      []llm.ToolSchema
	CallContext  tools.CallContext
	IterationCap int
}

// Engine drives completion rounds against the model and routes tool
// invocations through the dispatcher.
type Engine struct {
	client     llm.CompletionClient
	dispatcher *tools.Dispatcher
	model      string
	maxTokens  int
}

// New creates a completion loop engine.
func New(client llm.CompletionClient, dispatcher *tools.Dispatcher, model string, maxTokens int) *Engine {
	return &Engine{
		client:     client,
		dispatcher: dispatcher,
		model:      model,
		maxTokens:  maxTokens,
	}
}

// Run executes the loop in blocking mode and returns the final outcome.
func (e *Engine) Run(ctx context.Context, spec RunSpec) (*Outcome, error) {
	if err := e.client.Configured(); err != nil {
		return nil, fmt.Errorf("completion endpoint not configured: %w", err)
	}

	history := []llm.Message{{
		Role:    "user",
		Content: []llm.ContentBlock{{Type: llm.BlockTypeText, Text: spec.Instruction}},
	}}

	outcome := &Outcome{Termination: TerminationIterationCap}
	var texts []string

	for i := 0; i < spec.IterationCap; i++ {
		outcome.Iterations = i + 1

		resp, err := e.client.CreateMessage(ctx, &llm.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    spec.System,
			Messages:  history,
			Tools:     spec.Schemas,
		})
		if err != nil {
			return nil, fmt.Errorf("completion round %d failed: %w", i+1, err)
		}
		outcome.InputTokens += resp.Usage.InputTokens
		outcome.OutputTokens += resp.Usage.OutputTokens

		var invocations []llm.ContentBlock
		for _, block := range resp.Content {
			switch block.Type {
			case llm.BlockTypeText:
				if block.Text != "" {
					texts = append(texts, block.Text)
				}
			case llm.BlockTypeToolUse:
				invocations = append(invocations, block)
			}
		}

		if len(invocations) == 0 || resp.StopReason == llm.StopReasonEndTurn {
			outcome.Termination = TerminationNatural
			break
		}

		// The model's own tool-call record must be preserved verbatim so
		// the next round can correlate results.
		history = append(history, llm.Message{Role: "assistant", Content: resp.Content})
		history = append(history, llm.Message{Role: "user", Content: e.executeRound(ctx, spec.CallContext, invocations, nil)})
	}

	if outcome.Termination == TerminationIterationCap {
		log.Printf("WARN: completion loop hit iteration cap %d for project %s", spec.IterationCap, spec.CallContext.Project)
	}

	outcome.Text = strings.Join(texts, "\n\n")
	return outcome, nil
}

// executeRound runs every tool invocation of one round and returns the
// tool_result blocks for the paired user turn: exactly one result per
// invocation, correlated by invocation id. notify, when non-nil, observes
// each tool call's start and finish.
func (e *Engine) executeRound(ctx context.Context, cc tools.CallContext, invocations []llm.ContentBlock, notify func(Event)) []llm.ContentBlock {
	results := make([]llm.ContentBlock, 0, len(invocations))
	for _, inv := range invocations {
		if notify != nil {
			notify(Event{Type: EventToolStarted, InvocationID: inv.ID, ToolName: inv.Name})
		}

		args := inv.Input
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		started := time.Now()
		result := e.dispatcher.Execute(ctx, inv.Name, args, cc)

		if notify != nil {
			notify(Event{
				Type:           EventToolCompleted,
				InvocationID:   inv.ID,
				ToolName:       inv.Name,
				ToolSuccess:    result.Success,
				ToolTimedOut:   result.TimedOut,
				ToolDurationMs: time.Since(started).Milliseconds(),
			})
		}

		results = append(results, llm.ContentBlock{
			Type:      llm.BlockTypeToolResult,
			ToolUseID: inv.ID,
			Content:   result.Body(),
			IsError:   !result.Success,
		})
	}
	return results
}
