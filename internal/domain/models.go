package domain

import (
	"encoding/json"
	"time"
)

// Document is a project artifact produced by a worker.
type Document struct {
	DocumentID string           `json:"document_id"`
	Project    string           `json:"project"`
	Category   DocumentCategory `json:"category"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Version    int              `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Deliverable is a tracked unit of expected output owned by one role.
type Deliverable struct {
	Project   string            `json:"project"`
	Role      Role              `json:"role"`
	Name      string            `json:"name"`
	Status    DeliverableStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Concept is one structured design concept saved via tool calls.
type Concept struct {
	ConceptID string    `json:"concept_id"`
	Project   string    `json:"project"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Handoff is a cross-role note recorded when one gate passes work to the next.
type Handoff struct {
	HandoffID string    `json:"handoff_id"`
	Project   string    `json:"project"`
	FromRole  Role      `json:"from_role"`
	ToRole    Role      `json:"to_role"`
	Gate      Gate      `json:"gate"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a unit of work assigned to a role within a gate.
type Task struct {
	TaskID      string     `json:"task_id"`
	Project     string     `json:"project"`
	Role        Role       `json:"role"`
	Gate        Gate       `json:"gate"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Execution is a single worker run at one gate.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	Project     string          `json:"project"`
	Role        Role            `json:"role"`
	Gate        Gate            `json:"gate"`
	Status      ExecutionStatus `json:"status"`
	Attempt     int             `json:"attempt"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// Event is an append-only trace event keyed by project and execution.
type Event struct {
	EventID     string          `json:"event_id"`
	Project     string          `json:"project"`
	ExecutionID string          `json:"execution_id"`
	Ts          int64           `json:"ts"` // Unix milliseconds
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}
