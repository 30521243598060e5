package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockRound is one scripted completion round returned by MockClient.
type MockRound struct {
	Blocks     []ContentBlock
	StopReason string
	Usage      Usage
	Err        error
}

// MockClient is a scriptable implementation of CompletionClient for testing.
// Rounds are consumed in order; when the script is exhausted the client
// returns a canned text response with stop reason end_turn.
type MockClient struct {
	mu     sync.Mutex
	rounds []MockRound
	calls  int
}

// NewMockClient creates a new mock completion client.
func NewMockClient(rounds ...MockRound) *MockClient {
	return &MockClient{rounds: rounds}
}

// Ensure MockClient implements CompletionClient interface.
var _ CompletionClient = (*MockClient)(nil)

// Configured always reports a usable credential.
func (m *MockClient) Configured() error {
	return nil
}

// Calls returns the number of completion round trips served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) next() MockRound {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.rounds) == 0 {
		return MockRound{
			Blocks:     []ContentBlock{{Type: BlockTypeText, Text: "[MOCK] done."}},
			StopReason: StopReasonEndTurn,
			Usage:      Usage{InputTokens: 10, OutputTokens: 5},
		}
	}
	round := m.rounds[0]
	m.rounds = m.rounds[1:]
	return round
}

// CreateMessage returns the next scripted round as a full response.
func (m *MockClient) CreateMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	round := m.next()
	if round.Err != nil {
		return nil, round.Err
	}

	return &MessageResponse{
		ID:         fmt.Sprintf("mock-msg-%d", time.Now().UnixNano()),
		Model:      req.Model,
		Content:    round.Blocks,
		StopReason: round.StopReason,
		Usage:      round.Usage,
	}, nil
}

// CreateMessageStream replays the next scripted round as a stream of events.
// Text blocks are split into small deltas; tool_use inputs are delivered as
// input_json_delta fragments, mirroring the wire behavior.
func (m *MockClient) CreateMessageStream(ctx context.Context, req *MessageRequest, callback StreamCallback) (*StreamResult, error) {
	round := m.next()
	if round.Err != nil {
		return nil, round.Err
	}

	start := &StreamEvent{Type: EventMessageStart}
	start.Message = &struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage Usage  `json:"usage"`
	}{ID: fmt.Sprintf("mock-msg-%d", time.Now().UnixNano()), Model: req.Model, Usage: Usage{InputTokens: round.Usage.InputTokens}}
	if err := callback(start); err != nil {
		return nil, err
	}

	for i, block := range round.Blocks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch block.Type {
		case BlockTypeText:
			if err := callback(&StreamEvent{Type: EventContentBlockStart, Index: i, ContentBlock: &ContentBlock{Type: BlockTypeText}}); err != nil {
				return nil, err
			}
			for _, chunk := range splitIntoChunks(block.Text, 10) {
				if err := callback(&StreamEvent{Type: EventContentBlockDelta, Index: i, Delta: &StreamDelta{Type: DeltaTypeText, Text: chunk}}); err != nil {
					return nil, err
				}
			}
		case BlockTypeToolUse:
			if err := callback(&StreamEvent{Type: EventContentBlockStart, Index: i, ContentBlock: &ContentBlock{Type: BlockTypeToolUse, ID: block.ID, Name: block.Name}}); err != nil {
				return nil, err
			}
			for _, chunk := range splitIntoChunks(string(block.Input), 16) {
				if err := callback(&StreamEvent{Type: EventContentBlockDelta, Index: i, Delta: &StreamDelta{Type: DeltaTypeInputJSON, PartialJSON: chunk}}); err != nil {
					return nil, err
				}
			}
		}

		if err := callback(&StreamEvent{Type: EventContentBlockStop, Index: i}); err != nil {
			return nil, err
		}
	}

	if err := callback(&StreamEvent{
		Type:  EventMessageDelta,
		Delta: &StreamDelta{StopReason: round.StopReason},
		Usage: &Usage{OutputTokens: round.Usage.OutputTokens},
	}); err != nil {
		return nil, err
	}
	if err := callback(&StreamEvent{Type: EventMessageStop}); err != nil {
		return nil, err
	}

	return &StreamResult{StopReason: round.StopReason, Usage: round.Usage}, nil
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return []string{""}
	}

	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}
