package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/liurenhao/stagegate/internal/domain"
	"github.com/liurenhao/stagegate/internal/store"
	"github.com/liurenhao/stagegate/internal/workspace"
	"github.com/liurenhao/stagegate/policy"
	"github.com/liurenhao/stagegate/tests/helpers"
)

func newBuiltinDispatcher(t *testing.T) (*Dispatcher, store.Store, *workspace.Manager) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	ws, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	pe, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	d := NewDispatcher(catalog, NewBreaker(3, time.Minute), pe, 30*time.Second)
	RegisterBuiltins(d, st, ws)
	return d, st, ws
}

func engineerContext() CallContext {
	return CallContext{Project: "proj-1", Role: domain.RoleEngineer, Gate: domain.GateG6, ExecutionID: "exe_1"}
}

func TestDocumentSaveAndRead(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(t)
	ctx := context.Background()
	cc := engineerContext()

	result := d.Execute(ctx, "document.save",
		json.RawMessage(`{"category":"requirements","title":"reqs","body":"the requirements"}`), cc)
	if !result.Success {
		t.Fatalf("save failed: %s", result.Error)
	}

	var saved struct {
		DocumentID string `json:"document_id"`
		Category   string `json:"category"`
		Version    int    `json:"version"`
	}
	if err := json.Unmarshal(result.Payload, &saved); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	// Lowercase categories normalize onto the taxonomy.
	if saved.Category != string(domain.CategoryRequirements) {
		t.Fatalf("expected REQUIREMENTS, got %s", saved.Category)
	}
	if saved.Version != 1 {
		t.Fatalf("expected version 1, got %d", saved.Version)
	}

	read := d.Execute(ctx, "document.read",
		json.RawMessage(`{"document_id":"`+saved.DocumentID+`"}`), cc)
	if !read.Success {
		t.Fatalf("read failed: %s", read.Error)
	}
	if !strings.Contains(string(read.Payload), "the requirements") {
		t.Fatalf("read should return the body, got %s", read.Payload)
	}

	// Documents are scoped to the calling project.
	other := cc
	other.Project = "proj-2"
	read = d.Execute(ctx, "document.read",
		json.RawMessage(`{"document_id":"`+saved.DocumentID+`"}`), other)
	if read.Success {
		t.Fatal("another project should not read the document")
	}
}

func TestUnknownCategoryFallsBackToOther(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(t)

	result := d.Execute(context.Background(), "document.save",
		json.RawMessage(`{"category":"SOMETHING_ELSE","title":"t","body":"b"}`), engineerContext())
	if !result.Success {
		t.Fatalf("save failed: %s", result.Error)
	}
	if !strings.Contains(string(result.Payload), string(domain.CategoryOther)) {
		t.Fatalf("unknown category should map to OTHER, got %s", result.Payload)
	}
}

func TestWorkspaceTools(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(t)
	ctx := context.Background()
	cc := engineerContext()

	write := d.Execute(ctx, "workspace.write_file",
		json.RawMessage(`{"path":"src/main.go","content":"package main"}`), cc)
	if !write.Success {
		t.Fatalf("write failed: %s", write.Error)
	}

	read := d.Execute(ctx, "workspace.read_file",
		json.RawMessage(`{"path":"src/main.go"}`), cc)
	if !read.Success {
		t.Fatalf("read failed: %s", read.Error)
	}
	if !strings.Contains(string(read.Payload), "package main") {
		t.Fatalf("unexpected read payload: %s", read.Payload)
	}

	tree := d.Execute(ctx, "workspace.tree", json.RawMessage(`{}`), cc)
	if !tree.Success {
		t.Fatalf("tree failed: %s", tree.Error)
	}
	if !strings.Contains(string(tree.Payload), "src/main.go") {
		t.Fatalf("tree should list the file, got %s", tree.Payload)
	}
}

func TestWorkspaceWriteRestrictedToEngineer(t *testing.T) {
	d, _, _ := newBuiltinDispatcher(t)

	cc := engineerContext()
	cc.Role = domain.RoleReviewer
	result := d.Execute(context.Background(), "workspace.write_file",
		json.RawMessage(`{"path":"a.txt","content":"x"}`), cc)
	if result.Success {
		t.Fatal("reviewer should not write workspace files")
	}
	if !strings.Contains(result.Error, "not permitted") {
		t.Fatalf("unexpected error: %s", result.Error)
	}
}

func TestConceptSaveCountsPerProject(t *testing.T) {
	d, st, _ := newBuiltinDispatcher(t)
	ctx := context.Background()
	cc := CallContext{Project: "proj-1", Role: domain.RoleDesigner, Gate: domain.GateG4, ExecutionID: "exe_1"}

	for i, name := range []string{"alpha", "beta"} {
		result := d.Execute(ctx, "concept.save",
			json.RawMessage(`{"name":"`+name+`","summary":"a concept"}`), cc)
		if !result.Success {
			t.Fatalf("save %d failed: %s", i, result.Error)
		}
	}

	count, err := st.CountConcepts(ctx, "proj-1")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 concepts, got %d", count)
	}

	last := d.Execute(ctx, "concept.save",
		json.RawMessage(`{"name":"gamma","summary":"a concept"}`), cc)
	if !strings.Contains(string(last.Payload), `"saved":3`) {
		t.Fatalf("payload should report the running count, got %s", last.Payload)
	}
}

func TestTaskAndHandoffTools(t *testing.T) {
	d, st, _ := newBuiltinDispatcher(t)
	ctx := context.Background()
	cc := engineerContext()

	created := d.Execute(ctx, "task.create",
		json.RawMessage(`{"role":"reviewer","description":"review the API"}`), cc)
	if !created.Success {
		t.Fatalf("task.create failed: %s", created.Error)
	}
	var taskResp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(created.Payload, &taskResp); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}

	open, err := st.ListOpenTasks(ctx, "proj-1", domain.RoleReviewer)
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(open) != 1 || open[0].Gate != domain.GateG6 {
		t.Fatalf("task should default to the caller's gate, got %+v", open)
	}

	completed := d.Execute(ctx, "task.complete",
		json.RawMessage(`{"task_id":"`+taskResp.TaskID+`"}`), cc)
	if !completed.Success {
		t.Fatalf("task.complete failed: %s", completed.Error)
	}
	open, _ = st.ListOpenTasks(ctx, "proj-1", domain.RoleReviewer)
	if len(open) != 0 {
		t.Fatal("completed task should not list as open")
	}

	handoff := d.Execute(ctx, "handoff.record",
		json.RawMessage(`{"to_role":"reviewer","note":"implementation is ready"}`), cc)
	if !handoff.Success {
		t.Fatalf("handoff.record failed: %s", handoff.Error)
	}
	handoffs, err := st.ListRecentHandoffs(ctx, "proj-1", 5)
	if err != nil {
		t.Fatalf("failed to list handoffs: %v", err)
	}
	if len(handoffs) != 1 || handoffs[0].FromRole != domain.RoleEngineer {
		t.Fatalf("unexpected handoffs: %+v", handoffs)
	}
}
