// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/liurenhao/stagegate/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Document operations
	SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	ListDocuments(ctx context.Context, project string) ([]domain.Document, error)

	// Deliverable operations
	UpsertDeliverable(ctx context.Context, d *domain.Deliverable) error
	SetDeliverableStatus(ctx context.Context, project string, role domain.Role, status domain.DeliverableStatus) error
	ListDeliverables(ctx context.Context, project string, role domain.Role) ([]domain.Deliverable, error)

	// Concept operations
	CreateConcept(ctx context.Context, c *domain.Concept) error
	CountConcepts(ctx context.Context, project string) (int, error)
	ListConcepts(ctx context.Context, project string) ([]domain.Concept, error)

	// Handoff operations
	CreateHandoff(ctx context.Context, h *domain.Handoff) error
	ListRecentHandoffs(ctx context.Context, project string, limit int) ([]domain.Handoff, error)

	// Task operations
	CreateTask(ctx context.Context, t *domain.Task) error
	ListOpenTasks(ctx context.Context, project string, role domain.Role) ([]domain.Task, error)
	CloseTask(ctx context.Context, taskID string) error

	// Execution operations
	CreateExecution(ctx context.Context, e *domain.Execution) error
	GetExecution(ctx context.Context, executionID string) (*domain.Execution, error)
	UpdateExecutionStatus(ctx context.Context, executionID string, status domain.ExecutionStatus) error
	UpdateExecutionCompleted(ctx context.Context, executionID string, status domain.ExecutionStatus, errData []byte) error
	UpdateExecutionAttempt(ctx context.Context, executionID string, attempt int) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, executionID string, afterTs int64, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
