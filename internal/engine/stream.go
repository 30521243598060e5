package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/liurenhao/stagegate/internal/adapter/llm"
)

// EventType tags events on the stream returned by RunStream.
type EventType string

const (
	EventText          EventType = "text"
	EventToolStarted   EventType = "tool_started"
	EventToolCompleted EventType = "tool_completed"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Event is one tagged item on the run's event stream. Exactly one terminal
// event (done or error) is emitted, after which the channel closes.
type Event struct {
	Type EventType

	// text
	Text string

	// tool_started / tool_completed
	InvocationID   string
	ToolName       string
	ToolSuccess    bool
	ToolTimedOut   bool
	ToolDurationMs int64

	// done
	Outcome *Outcome

	// error
	Err error
}

// RunStream executes the loop in streaming mode. It returns immediately; the
// run proceeds in a goroutine and reports through the returned channel, which
// is closed after the terminal event.
func (e *Engine) RunStream(ctx context.Context, spec RunSpec) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)

		emit := func(ev Event) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		if err := e.client.Configured(); err != nil {
			emit(Event{Type: EventError, Err: fmt.Errorf("completion endpoint not configured: %w", err)})
			return
		}

		outcome, err := e.runStreaming(ctx, spec, emit)
		if err != nil {
			emit(Event{Type: EventError, Err: err})
			return
		}
		emit(Event{Type: EventDone, Outcome: outcome})
	}()
	return out
}

// roundBlock accumulates one content block across its delta events.
type roundBlock struct {
	index   int
	block   llm.ContentBlock
	text    strings.Builder
	jsonBuf strings.Builder
	dropped bool
}

func (e *Engine) runStreaming(ctx context.Context, spec RunSpec, emit func(Event)) (*Outcome, error) {
	history := []llm.Message{{
		Role:    "user",
		Content: []llm.ContentBlock{{Type: llm.BlockTypeText, Text: spec.Instruction}},
	}}

	outcome := &Outcome{Termination: TerminationIterationCap}
	// A logical turn can span several rounds when the model pads a tool
	// call with filler text. The most substantial single round's text is
	// reported as the final content, not a concatenation.
	longest := ""

	for i := 0; i < spec.IterationCap; i++ {
		outcome.Iterations = i + 1

		blocks := make(map[int]*roundBlock)
		stopReason := ""

		result, err := e.client.CreateMessageStream(ctx, &llm.MessageRequest{
			Model:     e.model,
			MaxTokens: e.maxTokens,
			System:    spec.System,
			Messages:  history,
			Tools:     spec.Schemas,
			Stream:    true,
		}, func(event *llm.StreamEvent) error {
			switch event.Type {
			case llm.EventContentBlockStart:
				if event.ContentBlock != nil {
					blocks[event.Index] = &roundBlock{index: event.Index, block: *event.ContentBlock}
				}
			case llm.EventContentBlockDelta:
				rb, ok := blocks[event.Index]
				if !ok || event.Delta == nil {
					return nil
				}
				switch event.Delta.Type {
				case llm.DeltaTypeText:
					rb.text.WriteString(event.Delta.Text)
					emit(Event{Type: EventText, Text: event.Delta.Text})
				case llm.DeltaTypeInputJSON:
					rb.jsonBuf.WriteString(event.Delta.PartialJSON)
				}
			case llm.EventContentBlockStop:
				rb, ok := blocks[event.Index]
				if !ok {
					return nil
				}
				if rb.block.Type == llm.BlockTypeToolUse {
					raw := rb.jsonBuf.String()
					if raw == "" {
						raw = "{}"
					}
					if !json.Valid([]byte(raw)) {
						log.Printf("WARN: dropping tool invocation %s (%s): malformed arguments", rb.block.ID, rb.block.Name)
						rb.dropped = true
						return nil
					}
					rb.block.Input = json.RawMessage(raw)
				}
			case llm.EventMessageDelta:
				if event.Delta != nil && event.Delta.StopReason != "" {
					stopReason = event.Delta.StopReason
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("completion round %d failed: %w", i+1, err)
		}
		outcome.InputTokens += result.Usage.InputTokens
		outcome.OutputTokens += result.Usage.OutputTokens
		if result.StopReason != "" {
			stopReason = result.StopReason
		}

		assembled, roundText, invocations := assembleRound(blocks)
		if len(roundText) > len(longest) {
			longest = roundText
		}

		if len(invocations) == 0 || stopReason == llm.StopReasonEndTurn {
			outcome.Termination = TerminationNatural
			break
		}

		history = append(history, llm.Message{Role: "assistant", Content: assembled})
		history = append(history, llm.Message{Role: "user", Content: e.executeRound(ctx, spec.CallContext, invocations, emit)})
	}

	if outcome.Termination == TerminationIterationCap {
		log.Printf("WARN: completion loop hit iteration cap %d for project %s", spec.IterationCap, spec.CallContext.Project)
	}

	outcome.Text = longest
	return outcome, nil
}

// assembleRound flattens the accumulated blocks in stream order, returning
// the turn's content, its concatenated text, and its surviving tool
// invocations. Dropped invocations are excluded from the recorded turn so
// every recorded tool_use still gets a paired result.
func assembleRound(blocks map[int]*roundBlock) ([]llm.ContentBlock, string, []llm.ContentBlock) {
	ordered := make([]*roundBlock, 0, len(blocks))
	for _, rb := range blocks {
		ordered = append(ordered, rb)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	var content []llm.ContentBlock
	var invocations []llm.ContentBlock
	var texts []string
	for _, rb := range ordered {
		if rb.dropped {
			continue
		}
		switch rb.block.Type {
		case llm.BlockTypeText:
			rb.block.Text = rb.text.String()
			if rb.block.Text != "" {
				texts = append(texts, rb.block.Text)
			}
			content = append(content, rb.block)
		case llm.BlockTypeToolUse:
			content = append(content, rb.block)
			invocations = append(invocations, rb.block)
		}
	}
	return content, strings.Join(texts, "\n\n"), invocations
}
