package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/coregraph/taskgraph/contracts"
)

// ScriptedAdapter is a deterministic, canned Adapter for tests: it returns a
// fixed sequence of AdapterResult values (or a configured error) regardless
// of input, and records every call it receives for assertions.
type ScriptedAdapter struct {
	mu        sync.Mutex
	Responses []contracts.AdapterResult
	Err       error
	index     int
	Calls     []ScriptedCall
}

// ScriptedCall is one recorded invocation of a ScriptedAdapter.
type ScriptedCall struct {
	TaskID contracts.TaskID
	Input  contracts.Mapping
	Budget contracts.Budget
}

// NewScriptedAdapter returns a ScriptedAdapter that replays responses in order.
func NewScriptedAdapter(responses ...contracts.AdapterResult) *ScriptedAdapter {
	return &ScriptedAdapter{Responses: responses}
}

// SetError makes every subsequent call fail with err.
func (s *ScriptedAdapter) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// Reset clears call history and rewinds to the first scripted response.
func (s *ScriptedAdapter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
	s.Calls = nil
	s.Err = nil
}

func (s *ScriptedAdapter) Run(ctx context.Context, taskID contracts.TaskID, input contracts.Mapping, budget contracts.Budget, outputSchema contracts.JSONSchema) (*contracts.AdapterResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, ScriptedCall{TaskID: taskID, Input: input, Budget: budget})

	if s.Err != nil {
		return nil, s.Err
	}
	if s.index >= len(s.Responses) {
		return nil, errors.New("scripted adapter: no more responses")
	}
	resp := s.Responses[s.index]
	s.index++
	return &resp, nil
}

var _ contracts.Adapter = (*ScriptedAdapter)(nil)
