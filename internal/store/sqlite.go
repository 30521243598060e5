package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liurenhao/stagegate/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project, category, title)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project, category)`,
		`CREATE TABLE IF NOT EXISTS deliverables (
			project TEXT NOT NULL,
			role TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (project, role, name)
		)`,
		`CREATE TABLE IF NOT EXISTS concepts (
			concept_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			name TEXT NOT NULL,
			summary TEXT,
			body TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_project ON concepts(project)`,
		`CREATE TABLE IF NOT EXISTS handoffs (
			handoff_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			from_role TEXT NOT NULL,
			to_role TEXT NOT NULL,
			gate TEXT NOT NULL,
			note TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_handoffs_project ON handoffs(project, created_at)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			role TEXT NOT NULL,
			gate TEXT NOT NULL,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project_role ON tasks(project, role, status)`,
		`CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			role TEXT NOT NULL,
			gate TEXT NOT NULL,
			status TEXT NOT NULL,
			attempt INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_project ON executions(project, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			execution_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (execution_id) REFERENCES executions(execution_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_execution ON events(execution_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDocument inserts a document or bumps the version of an existing one
// with the same (project, category, title). Returns the stored row.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, project, category, title, body, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(project, category, title) DO UPDATE SET
			body = excluded.body,
			version = documents.version + 1,
			updated_at = excluded.updated_at`,
		doc.DocumentID, doc.Project, string(doc.Category), doc.Title, doc.Body, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, project, category, title, body, version, created_at, updated_at
		FROM documents WHERE project = ? AND category = ? AND title = ?`,
		doc.Project, string(doc.Category), doc.Title)
	return scanDocument(row)
}

// GetDocument retrieves a document by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, project, category, title, body, version, created_at, updated_at
		FROM documents WHERE document_id = ?`, documentID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// ListDocuments lists all documents of a project, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, project string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, project, category, title, body, version, created_at, updated_at
		FROM documents WHERE project = ? ORDER BY updated_at DESC`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var category string
	if err := row.Scan(&doc.DocumentID, &doc.Project, &category, &doc.Title, &doc.Body, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.Category = domain.DocumentCategory(category)
	return &doc, nil
}

// UpsertDeliverable creates a deliverable record or resets its status.
// Re-running does not duplicate.
func (s *SQLiteStore) UpsertDeliverable(ctx context.Context, d *domain.Deliverable) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliverables (project, role, name, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, role, name) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		d.Project, string(d.Role), d.Name, string(d.Status), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert deliverable: %w", err)
	}
	return nil
}

// SetDeliverableStatus updates all deliverables owned by a role in a project.
func (s *SQLiteStore) SetDeliverableStatus(ctx context.Context, project string, role domain.Role, status domain.DeliverableStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE deliverables SET status = ?, updated_at = ? WHERE project = ? AND role = ?`,
		string(status), time.Now(), project, string(role))
	if err != nil {
		return fmt.Errorf("failed to update deliverables: %w", err)
	}
	return nil
}

// ListDeliverables lists deliverables for a project and role.
func (s *SQLiteStore) ListDeliverables(ctx context.Context, project string, role domain.Role) ([]domain.Deliverable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project, role, name, status, updated_at
		FROM deliverables WHERE project = ? AND role = ? ORDER BY name`, project, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list deliverables: %w", err)
	}
	defer rows.Close()

	var out []domain.Deliverable
	for rows.Next() {
		var d domain.Deliverable
		var role, status string
		if err := rows.Scan(&d.Project, &role, &d.Name, &status, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deliverable: %w", err)
		}
		d.Role = domain.Role(role)
		d.Status = domain.DeliverableStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateConcept stores a design concept.
func (s *SQLiteStore) CreateConcept(ctx context.Context, c *domain.Concept) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO concepts (concept_id, project, name, summary, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ConceptID, c.Project, c.Name, c.Summary, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create concept: %w", err)
	}
	return nil
}

// CountConcepts counts the design concepts saved for a project.
func (s *SQLiteStore) CountConcepts(ctx context.Context, project string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts WHERE project = ?`, project).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count concepts: %w", err)
	}
	return count, nil
}

// ListConcepts lists the design concepts for a project.
func (s *SQLiteStore) ListConcepts(ctx context.Context, project string) ([]domain.Concept, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT concept_id, project, name, summary, body, created_at
		FROM concepts WHERE project = ? ORDER BY created_at`, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	var out []domain.Concept
	for rows.Next() {
		var c domain.Concept
		if err := rows.Scan(&c.ConceptID, &c.Project, &c.Name, &c.Summary, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateHandoff stores a cross-role handoff note.
func (s *SQLiteStore) CreateHandoff(ctx context.Context, h *domain.Handoff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs (handoff_id, project, from_role, to_role, gate, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.HandoffID, h.Project, string(h.FromRole), string(h.ToRole), string(h.Gate), h.Note, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create handoff: %w", err)
	}
	return nil
}

// ListRecentHandoffs lists the most recent handoffs for a project.
func (s *SQLiteStore) ListRecentHandoffs(ctx context.Context, project string, limit int) ([]domain.Handoff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handoff_id, project, from_role, to_role, gate, note, created_at
		FROM handoffs WHERE project = ? ORDER BY created_at DESC LIMIT ?`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}
	defer rows.Close()

	var out []domain.Handoff
	for rows.Next() {
		var h domain.Handoff
		var from, to, gate string
		if err := rows.Scan(&h.HandoffID, &h.Project, &from, &to, &gate, &h.Note, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan handoff: %w", err)
		}
		h.FromRole = domain.Role(from)
		h.ToRole = domain.Role(to)
		h.Gate = domain.Gate(gate)
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateTask stores an assigned task.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *domain.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, project, role, gate, description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.Project, string(t.Role), string(t.Gate), t.Description, string(t.Status), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ListOpenTasks lists open tasks for a project and role.
func (s *SQLiteStore) ListOpenTasks(ctx context.Context, project string, role domain.Role) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, project, role, gate, description, status, created_at
		FROM tasks WHERE project = ? AND role = ? AND status = 'OPEN' ORDER BY created_at`, project, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		var role, gate, status string
		if err := rows.Scan(&t.TaskID, &t.Project, &role, &gate, &t.Description, &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Role = domain.Role(role)
		t.Gate = domain.Gate(gate)
		t.Status = domain.TaskStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CloseTask marks a task as done.
func (s *SQLiteStore) CloseTask(ctx context.Context, taskID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = 'DONE' WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to close task: %w", err)
	}
	return nil
}

// CreateExecution stores a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *domain.Execution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (execution_id, project, role, gate, status, attempt, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ExecutionID, e.Project, string(e.Role), string(e.Gate), string(e.Status), e.Attempt, e.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, project, role, gate, status, attempt, started_at, ended_at, error
		FROM executions WHERE execution_id = ?`, executionID)

	var e domain.Execution
	var role, gate, status string
	var endedAt sql.NullTime
	var errData sql.NullString
	if err := row.Scan(&e.ExecutionID, &e.Project, &role, &gate, &status, &e.Attempt, &e.StartedAt, &endedAt, &errData); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}
	e.Role = domain.Role(role)
	e.Gate = domain.Gate(gate)
	e.Status = domain.ExecutionStatus(status)
	if endedAt.Valid {
		e.EndedAt = &endedAt.Time
	}
	if errData.Valid && errData.String != "" {
		e.Error = []byte(errData.String)
	}
	return &e, nil
}

// UpdateExecutionStatus updates the status of an execution.
func (s *SQLiteStore) UpdateExecutionStatus(ctx context.Context, executionID string, status domain.ExecutionStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET status = ? WHERE execution_id = ?`,
		string(status), executionID)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}
	return nil
}

// UpdateExecutionCompleted marks an execution terminal with an optional error payload.
func (s *SQLiteStore) UpdateExecutionCompleted(ctx context.Context, executionID string, status domain.ExecutionStatus, errData []byte) error {
	var errStr interface{}
	if len(errData) > 0 {
		errStr = string(errData)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE executions SET status = ?, ended_at = ?, error = ? WHERE execution_id = ?`,
		string(status), time.Now(), errStr, executionID)
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	return nil
}

// UpdateExecutionAttempt records the retry attempt counter.
func (s *SQLiteStore) UpdateExecutionAttempt(ctx context.Context, executionID string, attempt int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET attempt = ? WHERE execution_id = ?`,
		attempt, executionID)
	if err != nil {
		return fmt.Errorf("failed to update execution attempt: %w", err)
	}
	return nil
}

// CreateEvent appends an event to the log.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, project, execution_id, ts, type, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.EventID, event.Project, event.ExecutionID, event.Ts, string(event.Type), string(event.Payload))
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEvents lists events for an execution after a timestamp.
func (s *SQLiteStore) GetEvents(ctx context.Context, executionID string, afterTs int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, project, execution_id, ts, type, payload
		FROM events WHERE execution_id = ? AND ts > ? ORDER BY ts LIMIT ?`,
		executionID, afterTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ string
		var payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.Project, &e.ExecutionID, &e.Ts, &typ, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.EventType(typ)
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
