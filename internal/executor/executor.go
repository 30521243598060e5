// Package executor coordinates worker runs at pipeline gates: it assembles
// the prompt, drives the completion loop, tracks deliverables, applies the
// transient-error retry policy, and emits lifecycle events.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/liurenhao/stagegate/internal/adapter/llm"
	"github.com/liurenhao/stagegate/internal/domain"
	"github.com/liurenhao/stagegate/internal/engine"
	"github.com/liurenhao/stagegate/internal/gate"
	"github.com/liurenhao/stagegate/internal/hub"
	"github.com/liurenhao/stagegate/internal/store"
	"github.com/liurenhao/stagegate/internal/tools"
	"github.com/liurenhao/stagegate/internal/workspace"
)

// Options tunes the executor's retry and deliverable policies.
type Options struct {
	IterationCap     int
	MaxRetries       int
	RetryBackoff     time.Duration
	ExpectedConcepts int
}

// Executor runs gate workers.
type Executor struct {
	store       store.Store
	engine      *engine.Engine
	catalog     *tools.Catalog
	taxonomy    *gate.Taxonomy
	prioritizer *gate.Prioritizer
	workspace   *workspace.Manager
	hub         *hub.Hub
	scheduler   Scheduler
	opts        Options
}

// New creates an executor.
func New(st store.Store, eng *engine.Engine, catalog *tools.Catalog, taxonomy *gate.Taxonomy,
	prioritizer *gate.Prioritizer, ws *workspace.Manager, h *hub.Hub, scheduler Scheduler, opts Options) *Executor {
	return &Executor{
		store:       st,
		engine:      eng,
		catalog:     catalog,
		taxonomy:    taxonomy,
		prioritizer: prioritizer,
		workspace:   ws,
		hub:         h,
		scheduler:   scheduler,
		opts:        opts,
	}
}

// run holds the fixed inputs of one worker run. The handoff context is built
// once and reused verbatim across retries.
type run struct {
	exec        *domain.Execution
	gateName    string
	task        string
	system      string
	instruction string
	schemas     []llm.ToolSchema
}

// StartRun validates the request, records the execution, and launches the
// worker asynchronously. The run outlives the caller's request context.
func (x *Executor) StartRun(ctx context.Context, project string, role domain.Role, g domain.Gate, task string) (*domain.Execution, error) {
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}
	entry, ok := x.taxonomy.Entry(g)
	if !ok {
		return nil, fmt.Errorf("unknown gate: %s", g)
	}
	if !x.taxonomy.Eligible(g, role) {
		return nil, fmt.Errorf("role %s is not eligible at gate %s", role, g)
	}

	instruction, err := x.buildHandoffContext(ctx, project, role, g, task)
	if err != nil {
		return nil, err
	}

	exec := &domain.Execution{
		ExecutionID: domain.NewID("exe"),
		Project:     project,
		Role:        role,
		Gate:        g,
		Status:      domain.ExecutionStatusPending,
		StartedAt:   time.Now(),
	}
	if err := x.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to record execution: %w", err)
	}

	r := &run{
		exec:        exec,
		gateName:    entry.Name,
		task:        task,
		system:      systemPrompt(role, entry.Name),
		instruction: instruction,
		schemas:     x.catalog.SchemasFor(role),
	}
	go x.runAttempt(r, 0)
	return exec, nil
}

// buildHandoffContext assembles the prompt body from prioritized documents,
// recent handoffs, assigned tasks, and the workspace layout.
func (x *Executor) buildHandoffContext(ctx context.Context, project string, role domain.Role, g domain.Gate, task string) (string, error) {
	docs, err := x.store.ListDocuments(ctx, project)
	if err != nil {
		return "", fmt.Errorf("failed to load documents: %w", err)
	}
	docs = x.prioritizer.Prioritize(docs, g)

	handoffs, err := x.store.ListRecentHandoffs(ctx, project, maxHandoffs)
	if err != nil {
		return "", fmt.Errorf("failed to load handoffs: %w", err)
	}
	openTasks, err := x.store.ListOpenTasks(ctx, project, role)
	if err != nil {
		return "", fmt.Errorf("failed to load tasks: %w", err)
	}
	tree, err := x.workspace.Tree(project)
	if err != nil {
		log.Printf("WARN: failed to snapshot workspace for %s: %v", project, err)
		tree = nil
	}

	return buildPrompt(task, docs, handoffs, openTasks, tree), nil
}

func (x *Executor) runAttempt(r *run, attempt int) {
	ctx := context.Background()
	exec := r.exec

	if err := x.store.UpdateExecutionStatus(ctx, exec.ExecutionID, domain.ExecutionStatusRunning); err != nil {
		log.Printf("WARN: failed to mark execution running: %v", err)
	}
	x.emit(r, domain.EventTypeExecutionStarted, domain.ExecutionStartedPayload{
		Role:    exec.Role,
		Gate:    exec.Gate,
		Attempt: attempt,
		Task:    r.task,
	})

	if err := x.store.UpsertDeliverable(ctx, &domain.Deliverable{
		Project: exec.Project,
		Role:    exec.Role,
		Name:    r.gateName,
		Status:  domain.DeliverableStatusInProgress,
	}); err != nil {
		log.Printf("WARN: failed to upsert deliverable: %v", err)
	}

	events := x.engine.RunStream(ctx, engine.RunSpec{
		System:      r.system,
		Instruction: r.instruction,
		Schemas:     r.schemas,
		CallContext: tools.CallContext{
			Project:     exec.Project,
			Role:        exec.Role,
			Gate:        exec.Gate,
			ExecutionID: exec.ExecutionID,
		},
		IterationCap: x.opts.IterationCap,
	})

	working := false
	for ev := range events {
		switch ev.Type {
		case engine.EventText:
			if !working {
				working = true
				x.emit(r, domain.EventTypeExecutionWorking, nil)
			}
			x.emit(r, domain.EventTypeExecutionDelta, domain.DeltaPayload{Text: ev.Text})
		case engine.EventToolStarted:
			x.emit(r, domain.EventTypeToolStarted, domain.ToolStartedPayload{
				InvocationID: ev.InvocationID,
				ToolName:     ev.ToolName,
			})
		case engine.EventToolCompleted:
			x.emit(r, domain.EventTypeToolCompleted, domain.ToolCompletedPayload{
				InvocationID: ev.InvocationID,
				ToolName:     ev.ToolName,
				Success:      ev.ToolSuccess,
				TimedOut:     ev.ToolTimedOut,
				DurationMs:   ev.ToolDurationMs,
			})
		case engine.EventDone:
			x.finish(ctx, r, attempt, ev.Outcome)
		case engine.EventError:
			x.fail(ctx, r, attempt, ev.Err, false)
		}
	}
}

// finish completes a run, first verifying fixed-cardinality deliverables.
// The model's natural-completion signal does not guarantee the tool side
// effects it claimed actually landed, so the persisted count is checked.
func (x *Executor) finish(ctx context.Context, r *run, attempt int, outcome *engine.Outcome) {
	exec := r.exec

	if exec.Role == domain.RoleDesigner && x.opts.ExpectedConcepts > 0 {
		count, err := x.store.CountConcepts(ctx, exec.Project)
		if err != nil {
			x.fail(ctx, r, attempt, fmt.Errorf("failed to count concepts: %w", err), false)
			return
		}
		if count < x.opts.ExpectedConcepts {
			x.fail(ctx, r, attempt, fmt.Errorf("expected %d design concepts, found %d persisted", x.opts.ExpectedConcepts, count), true)
			return
		}
	}

	if err := x.store.SetDeliverableStatus(ctx, exec.Project, exec.Role, domain.DeliverableStatusComplete); err != nil {
		log.Printf("WARN: failed to complete deliverables: %v", err)
	}
	if err := x.store.UpdateExecutionCompleted(ctx, exec.ExecutionID, domain.ExecutionStatusCompleted, nil); err != nil {
		log.Printf("WARN: failed to complete execution: %v", err)
	}
	x.emit(r, domain.EventTypeExecutionCompleted, domain.ExecutionCompletedPayload{
		InputTokens:  outcome.InputTokens,
		OutputTokens: outcome.OutputTokens,
		Iterations:   outcome.Iterations,
		Termination:  outcome.Termination,
	})
}

// fail either schedules a retry or surfaces the failure terminally.
// forceRetry marks failures that are retry-eligible regardless of their
// message, such as a short persisted-concept count.
func (x *Executor) fail(ctx context.Context, r *run, attempt int, runErr error, forceRetry bool) {
	exec := r.exec
	msg := runErr.Error()

	if (forceRetry || isTransient(msg)) && attempt < x.opts.MaxRetries {
		next := attempt + 1
		if err := x.store.UpdateExecutionAttempt(ctx, exec.ExecutionID, next); err != nil {
			log.Printf("WARN: failed to record retry attempt: %v", err)
		}
		if err := x.store.UpdateExecutionStatus(ctx, exec.ExecutionID, domain.ExecutionStatusPending); err != nil {
			log.Printf("WARN: failed to reset execution status: %v", err)
		}
		x.emit(r, domain.EventTypeRetryScheduled, domain.RetryScheduledPayload{
			Attempt:   next,
			BackoffMs: x.opts.RetryBackoff.Milliseconds(),
			Reason:    msg,
		})
		log.Printf("WARN: retrying execution %s (attempt %d/%d): %v", exec.ExecutionID, next, x.opts.MaxRetries, runErr)
		x.scheduler.Schedule(x.opts.RetryBackoff, func() { x.runAttempt(r, next) })
		return
	}

	payload := domain.ExecutionFailedPayload{Code: "execution_failed", Message: msg, Attempt: attempt}
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	if err := x.store.UpdateExecutionCompleted(ctx, exec.ExecutionID, domain.ExecutionStatusFailed, data); err != nil {
		log.Printf("WARN: failed to record execution failure: %v", err)
	}
	x.emit(r, domain.EventTypeExecutionFailed, payload)
	log.Printf("ERROR: execution %s failed terminally after attempt %d: %v", exec.ExecutionID, attempt, runErr)
}

// emit persists an event and fans it out to progress subscribers. Event
// delivery is best effort; persistence failures are logged, not fatal.
func (x *Executor) emit(r *run, eventType domain.EventType, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("WARN: failed to encode %s payload: %v", eventType, err)
		} else {
			raw = data
		}
	}

	event := domain.Event{
		EventID:     domain.NewID("evt"),
		Project:     r.exec.Project,
		ExecutionID: r.exec.ExecutionID,
		Ts:          time.Now().UnixMilli(),
		Type:        eventType,
		Payload:     raw,
	}
	if err := x.store.CreateEvent(context.Background(), &event); err != nil {
		log.Printf("WARN: failed to persist event %s: %v", eventType, err)
	}
	x.hub.Publish(event)
}
