package domain

// RunGateRequest is the request to launch a worker at a gate.
type RunGateRequest struct {
	Project string `json:"project"`
	Gate    Gate   `json:"gate"`
	Role    Role   `json:"role"`
	Task    string `json:"task"`
}

// RunGateResponse is returned after a worker execution is launched.
type RunGateResponse struct {
	ExecutionID string `json:"execution_id"`
	Project     string `json:"project"`
	Role        Role   `json:"role"`
	Gate        Gate   `json:"gate"`
}

// SaveDocumentRequest is the request to save a document directly.
type SaveDocumentRequest struct {
	Project  string           `json:"project"`
	Category DocumentCategory `json:"category"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`
}
