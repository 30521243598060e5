package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/liurenhao/stagegate/internal/domain"
	"github.com/liurenhao/stagegate/internal/store"
	"github.com/liurenhao/stagegate/internal/workspace"
)

var knownCategories = map[domain.DocumentCategory]bool{
	domain.CategoryProjectBrief:       true,
	domain.CategoryRequirements:       true,
	domain.CategoryArchitecture:       true,
	domain.CategoryAPISpec:            true,
	domain.CategoryDatabaseSchema:     true,
	domain.CategoryDesign:             true,
	domain.CategoryImplementationPlan: true,
	domain.CategoryTestPlan:           true,
	domain.CategoryReviewNotes:        true,
	domain.CategoryDeploymentPlan:     true,
	domain.CategoryOther:              true,
}

// normalizeCategory maps free-form category strings from the model onto the
// known taxonomy, falling back to OTHER.
func normalizeCategory(raw string) domain.DocumentCategory {
	cat := domain.DocumentCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if knownCategories[cat] {
		return cat
	}
	return domain.CategoryOther
}

// RegisterBuiltins wires the built-in tool handlers backed by the store and
// the workspace manager.
func RegisterBuiltins(d *Dispatcher, st store.Store, ws *workspace.Manager) {
	d.MustRegister("document.save", documentSaveHandler(st))
	d.MustRegister("document.read", documentReadHandler(st))
	d.MustRegister("document.list", documentListHandler(st))
	d.MustRegister("workspace.read_file", workspaceReadHandler(ws))
	d.MustRegister("workspace.write_file", workspaceWriteHandler(ws))
	d.MustRegister("workspace.tree", workspaceTreeHandler(ws))
	d.MustRegister("concept.save", conceptSaveHandler(st))
	d.MustRegister("task.create", taskCreateHandler(st))
	d.MustRegister("task.complete", taskCompleteHandler(st))
	d.MustRegister("handoff.record", handoffRecordHandler(st))
}

func documentSaveHandler(st store.Store) Handler {
	type input struct {
		Category string `json:"category"`
		Title    string `json:"title"`
		Body     string `json:"body"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Title == "" || in.Body == "" {
			return nil, fmt.Errorf("title and body are required")
		}
		doc, err := st.SaveDocument(ctx, &domain.Document{
			DocumentID: domain.NewID("doc"),
			Project:    cc.Project,
			Category:   normalizeCategory(in.Category),
			Title:      in.Title,
			Body:       in.Body,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{
			"document_id": doc.DocumentID,
			"category":    doc.Category,
			"version":     doc.Version,
		})
	}
}

func documentReadHandler(st store.Store) Handler {
	type input struct {
		DocumentID string `json:"document_id"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		doc, err := st.GetDocument(ctx, in.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("document not found: %s", in.DocumentID)
		}
		if doc.Project != cc.Project {
			return nil, fmt.Errorf("document not found: %s", in.DocumentID)
		}
		return json.Marshal(map[string]interface{}{
			"document_id": doc.DocumentID,
			"category":    doc.Category,
			"title":       doc.Title,
			"body":        doc.Body,
			"version":     doc.Version,
		})
	}
}

func documentListHandler(st store.Store) Handler {
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		docs, err := st.ListDocuments(ctx, cc.Project)
		if err != nil {
			return nil, err
		}
		summaries := make([]map[string]interface{}, 0, len(docs))
		for _, doc := range docs {
			summaries = append(summaries, map[string]interface{}{
				"document_id": doc.DocumentID,
				"category":    doc.Category,
				"title":       doc.Title,
				"version":     doc.Version,
			})
		}
		return json.Marshal(map[string]interface{}{"documents": summaries})
	}
}

func workspaceReadHandler(ws *workspace.Manager) Handler {
	type input struct {
		Path string `json:"path"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		content, err := ws.ReadFile(cc.Project, in.Path)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"path": in.Path, "content": content})
	}
}

func workspaceWriteHandler(ws *workspace.Manager) Handler {
	type input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if err := ws.WriteFile(cc.Project, in.Path, in.Content); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"path": in.Path, "bytes": len(in.Content)})
	}
}

func workspaceTreeHandler(ws *workspace.Manager) Handler {
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		paths, err := ws.Tree(cc.Project)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"files": paths})
	}
}

func conceptSaveHandler(st store.Store) Handler {
	type input struct {
		Name    string `json:"name"`
		Summary string `json:"summary"`
		Body    string `json:"body"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Name == "" || in.Summary == "" {
			return nil, fmt.Errorf("name and summary are required")
		}
		concept := &domain.Concept{
			ConceptID: domain.NewID("cpt"),
			Project:   cc.Project,
			Name:      in.Name,
			Summary:   in.Summary,
			Body:      in.Body,
			CreatedAt: time.Now(),
		}
		if err := st.CreateConcept(ctx, concept); err != nil {
			return nil, err
		}
		count, err := st.CountConcepts(ctx, cc.Project)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{
			"concept_id": concept.ConceptID,
			"saved":      count,
		})
	}
}

func taskCreateHandler(st store.Store) Handler {
	type input struct {
		Role        string `json:"role"`
		Gate        string `json:"gate"`
		Description string `json:"description"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Role == "" || in.Description == "" {
			return nil, fmt.Errorf("role and description are required")
		}
		gate := cc.Gate
		if in.Gate != "" {
			gate = domain.Gate(in.Gate)
			if !gate.Valid() {
				return nil, fmt.Errorf("unknown gate: %s", in.Gate)
			}
		}
		task := &domain.Task{
			TaskID:      domain.NewID("tsk"),
			Project:     cc.Project,
			Role:        domain.Role(in.Role),
			Gate:        gate,
			Description: in.Description,
			Status:      domain.TaskStatusOpen,
			CreatedAt:   time.Now(),
		}
		if err := st.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"task_id": task.TaskID})
	}
}

func taskCompleteHandler(st store.Store) Handler {
	type input struct {
		TaskID string `json:"task_id"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.TaskID == "" {
			return nil, fmt.Errorf("task_id is required")
		}
		if err := st.CloseTask(ctx, in.TaskID); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"task_id": in.TaskID, "status": domain.TaskStatusDone})
	}
}

func handoffRecordHandler(st store.Store) Handler {
	type input struct {
		ToRole string `json:"to_role"`
		Note   string `json:"note"`
	}
	return func(ctx context.Context, cc CallContext, args json.RawMessage) (json.RawMessage, error) {
		var in input
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.ToRole == "" || in.Note == "" {
			return nil, fmt.Errorf("to_role and note are required")
		}
		h := &domain.Handoff{
			HandoffID: domain.NewID("hnd"),
			Project:   cc.Project,
			FromRole:  cc.Role,
			ToRole:    domain.Role(in.ToRole),
			Gate:      cc.Gate,
			Note:      in.Note,
			CreatedAt: time.Now(),
		}
		if err := st.CreateHandoff(ctx, h); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{"handoff_id": h.HandoffID})
	}
}
