// Package domain defines the core domain models for the stage-gate engine.
package domain

// ExecutionStatus represents the status of a worker execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "PENDING"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
)

// DeliverableStatus represents the status of a tracked deliverable.
type DeliverableStatus string

const (
	DeliverableStatusInProgress DeliverableStatus = "IN_PROGRESS"
	DeliverableStatusComplete   DeliverableStatus = "COMPLETE"
)

// EventType represents the type of an execution event.
type EventType string

const (
	EventTypeExecutionStarted   EventType = "execution_started"
	EventTypeExecutionWorking   EventType = "execution_working"
	EventTypeExecutionDelta     EventType = "execution_delta"
	EventTypeExecutionCompleted EventType = "execution_completed"
	EventTypeExecutionFailed    EventType = "execution_failed"
	EventTypeRetryScheduled     EventType = "retry_scheduled"

	// Tool events
	EventTypeToolStarted   EventType = "tool_started"
	EventTypeToolCompleted EventType = "tool_completed"
)

// Role is a named class of automated worker with a fixed tool catalog.
type Role string

const (
	RoleAnalyst        Role = "analyst"
	RoleArchitect      Role = "architect"
	RoleDesigner       Role = "designer"
	RoleEngineer       Role = "engineer"
	RoleReviewer       Role = "reviewer"
	RoleTester         Role = "tester"
	RoleReleaseManager Role = "release_manager"
)

// DocumentCategory classifies project documents for prioritization.
type DocumentCategory string

const (
	CategoryProjectBrief       DocumentCategory = "PROJECT_BRIEF"
	CategoryRequirements       DocumentCategory = "REQUIREMENTS"
	CategoryArchitecture       DocumentCategory = "ARCHITECTURE"
	CategoryAPISpec            DocumentCategory = "API_SPEC"
	CategoryDatabaseSchema     DocumentCategory = "DATABASE_SCHEMA"
	CategoryDesign             DocumentCategory = "DESIGN"
	CategoryImplementationPlan DocumentCategory = "IMPLEMENTATION_PLAN"
	CategoryTestPlan           DocumentCategory = "TEST_PLAN"
	CategoryReviewNotes        DocumentCategory = "REVIEW_NOTES"
	CategoryDeploymentPlan     DocumentCategory = "DEPLOYMENT_PLAN"
	CategoryOther              DocumentCategory = "OTHER"
)

// TaskStatus represents the status of an assigned task.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "OPEN"
	TaskStatusDone TaskStatus = "DONE"
)
