package domain

// ExecutionStartedPayload is the payload for execution_started events.
type ExecutionStartedPayload struct {
	Role    Role   `json:"role"`
	Gate    Gate   `json:"gate"`
	Attempt int    `json:"attempt"`
	Task    string `json:"task,omitempty"`
}

// DeltaPayload is the payload for execution_delta events.
type DeltaPayload struct {
	Text string `json:"text"`
}

// ExecutionCompletedPayload is the payload for execution_completed events.
type ExecutionCompletedPayload struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Iterations   int    `json:"iterations"`
	Termination  string `json:"termination"`
}

// ExecutionFailedPayload is the payload for execution_failed events.
type ExecutionFailedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Attempt int    `json:"attempt"`
}

// RetryScheduledPayload is the payload for retry_scheduled events.
type RetryScheduledPayload struct {
	Attempt   int    `json:"attempt"`
	BackoffMs int64  `json:"backoff_ms"`
	Reason    string `json:"reason"`
}

// ToolStartedPayload is the payload for tool_started events.
type ToolStartedPayload struct {
	InvocationID string `json:"invocation_id"`
	ToolName     string `json:"tool_name"`
}

// ToolCompletedPayload is the payload for tool_completed events.
type ToolCompletedPayload struct {
	InvocationID string `json:"invocation_id"`
	ToolName     string `json:"tool_name"`
	Success      bool   `json:"success"`
	TimedOut     bool   `json:"timed_out,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}
