// Package workflow runs the action-extraction workflow: one model turn
// over a meeting transcript, dispatching the resulting tool calls with
// per-call failure isolation and checkpointed resumability.
package workflow

import (
	"time"

	"github.com/Welshcorki/Genminute/pkg/model"
)

// Item statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ItemResult is the settled outcome of one tool call. Failures are
// recorded here, never escalated past the run.
type ItemResult struct {
	ToolCallID string `json:"tool_call_id"`
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Detail     string `json:"detail,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// State is the checkpointed workflow state. Values are treated as
// immutable; transitions go through the With* reducers, which copy.
type State struct {
	RunID       string             `json:"run_id"`
	UserID      string             `json:"user_id"`
	Transcript  string             `json:"transcript"`
	CurrentDate time.Time          `json:"current_date"`
	Messages    []model.Message    `json:"messages"`
	Pending     []model.ToolCall   `json:"pending,omitempty"`
	Processed   []ItemResult       `json:"processed,omitempty"`
	Completed   bool               `json:"completed"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewState builds the initial state for a run.
func NewState(runID, userID, transcript string, currentDate time.Time) State {
	return State{
		RunID:       runID,
		UserID:      userID,
		Transcript:  transcript,
		CurrentDate: currentDate,
		CreatedAt:   time.Now(),
	}
}

// WithMessages returns a copy with the messages appended. History is
// append-only.
func (s State) WithMessages(msgs ...model.Message) State {
	out := s
	out.Messages = append(append([]model.Message{}, s.Messages...), msgs...)
	return out
}

// WithPending returns a copy with the model's tool calls recorded.
func (s State) WithPending(calls []model.ToolCall) State {
	out := s
	out.Pending = append([]model.ToolCall{}, calls...)
	return out
}

// WithProcessed returns a copy with one settled item appended.
func (s State) WithProcessed(item ItemResult) State {
	out := s
	out.Processed = append(append([]ItemResult{}, s.Processed...), item)
	return out
}

// WithCompleted returns a copy marked complete.
func (s State) WithCompleted() State {
	out := s
	out.Completed = true
	return out
}

// IsProcessed reports whether the tool call has already settled. Used on
// resume to skip work a previous invocation finished.
func (s State) IsProcessed(toolCallID string) bool {
	for _, item := range s.Processed {
		if item.ToolCallID == toolCallID {
			return true
		}
	}
	return false
}
