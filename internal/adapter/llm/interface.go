// Package llm provides an abstraction for the completion endpoint.
package llm

import "context"

// CompletionClient defines the interface for completion endpoint operations.
type CompletionClient interface {
	// Configured reports whether the client has a usable credential.
	Configured() error

	// CreateMessage sends a completion request (non-streaming).
	CreateMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error)

	// CreateMessageStream sends a streaming completion request.
	// The callback is called for each stream event received.
	CreateMessageStream(ctx context.Context, req *MessageRequest, callback StreamCallback) (*StreamResult, error)
}

// StreamCallback is called for each event in a streaming response.
type StreamCallback func(event *StreamEvent) error

// Ensure Client implements CompletionClient interface.
var _ CompletionClient = (*Client)(nil)
