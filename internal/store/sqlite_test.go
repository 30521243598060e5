package store

import (
	"context"
	"testing"
	"time"

	"github.com/liurenhao/stagegate/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveDocumentBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveDocument(ctx, &domain.Document{
		DocumentID: "doc_1", Project: "proj-1",
		Category: domain.CategoryRequirements, Title: "reqs", Body: "v1 body",
	})
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("expected version 1, got %d", first.Version)
	}

	second, err := s.SaveDocument(ctx, &domain.Document{
		DocumentID: "doc_2", Project: "proj-1",
		Category: domain.CategoryRequirements, Title: "reqs", Body: "v2 body",
	})
	if err != nil {
		t.Fatalf("failed to re-save: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("expected version 2, got %d", second.Version)
	}
	if second.DocumentID != "doc_1" {
		t.Fatalf("re-save should keep the original id, got %s", second.DocumentID)
	}
	if second.Body != "v2 body" {
		t.Fatalf("body should be replaced, got %q", second.Body)
	}

	docs, err := s.ListDocuments(ctx, "proj-1")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("re-save should not duplicate, got %d documents", len(docs))
	}
}

func TestUpsertDeliverableIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &domain.Deliverable{
		Project: "proj-1", Role: domain.RoleEngineer,
		Name: "implementation", Status: domain.DeliverableStatusInProgress,
	}
	if err := s.UpsertDeliverable(ctx, d); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := s.UpsertDeliverable(ctx, d); err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}

	list, err := s.ListDeliverables(ctx, "proj-1", domain.RoleEngineer)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("re-upsert should not duplicate, got %d", len(list))
	}

	if err := s.SetDeliverableStatus(ctx, "proj-1", domain.RoleEngineer, domain.DeliverableStatusComplete); err != nil {
		t.Fatalf("failed to set status: %v", err)
	}
	list, _ = s.ListDeliverables(ctx, "proj-1", domain.RoleEngineer)
	if list[0].Status != domain.DeliverableStatusComplete {
		t.Fatalf("expected COMPLETE, got %s", list[0].Status)
	}
}

func TestExecutionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exec := &domain.Execution{
		ExecutionID: "exe_1", Project: "proj-1",
		Role: domain.RoleEngineer, Gate: domain.GateG6,
		Status: domain.ExecutionStatusPending, StartedAt: time.Now(),
	}
	if err := s.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	if err := s.UpdateExecutionStatus(ctx, "exe_1", domain.ExecutionStatusRunning); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	if err := s.UpdateExecutionAttempt(ctx, "exe_1", 1); err != nil {
		t.Fatalf("failed to update attempt: %v", err)
	}
	if err := s.UpdateExecutionCompleted(ctx, "exe_1", domain.ExecutionStatusFailed, []byte(`{"code":"execution_failed"}`)); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}

	got, err := s.GetExecution(ctx, "exe_1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Status != domain.ExecutionStatusFailed || got.Attempt != 1 {
		t.Fatalf("unexpected execution: %+v", got)
	}
	if got.EndedAt == nil {
		t.Fatal("ended_at should be set")
	}
	if len(got.Error) == 0 {
		t.Fatal("error payload should be set")
	}

	if missing, err := s.GetExecution(ctx, "exe_missing"); err != nil || missing != nil {
		t.Fatalf("missing execution should be nil, got %+v (%v)", missing, err)
	}
}

func TestEventsFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exec := &domain.Execution{
		ExecutionID: "exe_1", Project: "proj-1",
		Role: domain.RoleEngineer, Gate: domain.GateG6,
		Status: domain.ExecutionStatusRunning, StartedAt: time.Now(),
	}
	if err := s.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("failed to create execution: %v", err)
	}

	for i, ts := range []int64{300, 100, 200} {
		event := &domain.Event{
			EventID: domain.NewID("evt"), Project: "proj-1", ExecutionID: "exe_1",
			Ts: ts, Type: domain.EventTypeExecutionDelta,
		}
		if err := s.CreateEvent(ctx, event); err != nil {
			t.Fatalf("failed to create event %d: %v", i, err)
		}
	}

	events, err := s.GetEvents(ctx, "exe_1", 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Ts != 100 || events[2].Ts != 300 {
		t.Fatalf("events should be ordered by ts: %v", []int64{events[0].Ts, events[1].Ts, events[2].Ts})
	}

	events, err = s.GetEvents(ctx, "exe_1", 100, 0)
	if err != nil {
		t.Fatalf("failed to get filtered events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("after_ts should exclude earlier events, got %d", len(events))
	}
}

func TestTasksAndHandoffs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &domain.Task{
		TaskID: "tsk_1", Project: "proj-1", Role: domain.RoleEngineer,
		Gate: domain.GateG6, Description: "wire the API",
		Status: domain.TaskStatusOpen, CreatedAt: time.Now(),
	}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	open, err := s.ListOpenTasks(ctx, "proj-1", domain.RoleEngineer)
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open task, got %d", len(open))
	}

	if err := s.CloseTask(ctx, "tsk_1"); err != nil {
		t.Fatalf("failed to close task: %v", err)
	}
	open, _ = s.ListOpenTasks(ctx, "proj-1", domain.RoleEngineer)
	if len(open) != 0 {
		t.Fatalf("closed task should not list as open, got %d", len(open))
	}

	h := &domain.Handoff{
		HandoffID: "hnd_1", Project: "proj-1",
		FromRole: domain.RoleArchitect, ToRole: domain.RoleEngineer,
		Gate: domain.GateG5, Note: "schema is final", CreatedAt: time.Now(),
	}
	if err := s.CreateHandoff(ctx, h); err != nil {
		t.Fatalf("failed to create handoff: %v", err)
	}
	handoffs, err := s.ListRecentHandoffs(ctx, "proj-1", 5)
	if err != nil {
		t.Fatalf("failed to list handoffs: %v", err)
	}
	if len(handoffs) != 1 || handoffs[0].Note != "schema is final" {
		t.Fatalf("unexpected handoffs: %+v", handoffs)
	}
}

func TestConcepts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		c := &domain.Concept{
			ConceptID: domain.NewID("cpt"), Project: "proj-1",
			Name: name, Summary: "a concept", CreatedAt: time.Now(),
		}
		if err := s.CreateConcept(ctx, c); err != nil {
			t.Fatalf("failed to create concept %s: %v", name, err)
		}
	}

	count, err := s.CountConcepts(ctx, "proj-1")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 concepts, got %d", count)
	}
	if count, _ := s.CountConcepts(ctx, "proj-2"); count != 0 {
		t.Fatalf("other projects should have 0 concepts, got %d", count)
	}

	list, err := s.ListConcepts(ctx, "proj-1")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 concepts, got %d", len(list))
	}
}
