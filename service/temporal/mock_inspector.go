package temporal

import (
	"context"
	"fmt"
	"sync"
)

var _ BatchInspector = (*MockBatchInspector)(nil)

// MockBatchInspector is an in-memory BatchInspector for tests. Started
// batches complete immediately with every signature marked as decoded unless
// a result is set with SetResult.
type MockBatchInspector struct {
	mu         sync.Mutex
	started    map[string]InspectBatchInput
	results    map[string]*InspectBatchResult
	startError error
	next       int
}

// NewMockBatchInspector creates a new mock inspector.
func NewMockBatchInspector() *MockBatchInspector {
	return &MockBatchInspector{
		started: make(map[string]InspectBatchInput),
		results: make(map[string]*InspectBatchResult),
	}
}

// StartInspectBatch records the batch and returns a sequential workflow ID.
func (m *MockBatchInspector) StartInspectBatch(ctx context.Context, input InspectBatchInput) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startError != nil {
		return "", "", m.startError
	}

	m.next++
	id := fmt.Sprintf("inspect-batch-%s-%d", input.Network, m.next)
	m.started[id] = input
	return id, "run-" + id, nil
}

// GetInspectBatchResult returns the configured result or a synthesized one.
func (m *MockBatchInspector) GetInspectBatchResult(ctx context.Context, workflowID, runID string) (*InspectBatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.results[workflowID]; ok {
		return r, nil
	}
	input, ok := m.started[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found", workflowID)
	}

	result := &InspectBatchResult{
		Network:   input.Network,
		Requested: len(input.Signatures),
		Succeeded: len(input.Signatures),
		Results:   make([]InspectionResult, len(input.Signatures)),
	}
	for i, sig := range input.Signatures {
		result.Results[i] = InspectionResult{
			Signature: sig,
			Network:   input.Network,
			Decoded:   true,
			Persisted: input.Persist,
			Published: input.Publish,
		}
	}
	return result, nil
}

// SetResult fixes the result returned for a workflow ID.
func (m *MockBatchInspector) SetResult(workflowID string, result *InspectBatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[workflowID] = result
}

// SetStartError makes StartInspectBatch fail with err.
func (m *MockBatchInspector) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startError = err
}

// Started returns the input of a started batch.
func (m *MockBatchInspector) Started(workflowID string) (InspectBatchInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[workflowID]
	return input, ok
}

// StartedCount returns how many batches were started.
func (m *MockBatchInspector) StartedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}
