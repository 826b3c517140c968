package workflow

import (
	"context"
	"fmt"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
	"github.com/Welshcorki/Genminute/pkg/model"
)

const systemPrompt = `You are a meeting assistant. You are given a meeting transcript and today's date.
Identify every concrete follow-up the participants agreed on (meetings, deadlines, reviews) and schedule each one with the create_calendar_event tool.
Resolve relative dates ("next Tuesday", "in two weeks") against today's date.
If the transcript contains no schedulable follow-ups, reply briefly and call no tools.`

// Input starts or resumes a workflow run.
type Input struct {
	// RunID identifies the run for checkpointing. Callers typically use
	// the meeting ID.
	RunID string

	// UserID is the identity all tool calls act as. Injected here, never
	// taken from model output.
	UserID string

	// Transcript is the full meeting transcript text.
	Transcript string

	// CurrentDate anchors relative date resolution.
	CurrentDate time.Time
}

// Result is the settled outcome of a workflow run.
type Result struct {
	RunID    string       `json:"run_id"`
	Response string       `json:"response,omitempty"`
	Items    []ItemResult `json:"items"`
	Resumed  bool         `json:"resumed,omitempty"`
}

// Errored returns the items that settled with an error.
func (r *Result) Errored() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if item.Status == StatusError {
			out = append(out, item)
		}
	}
	return out
}

// Engine runs the action-extraction workflow. All collaborators are
// injected.
type Engine struct {
	provider    model.Provider
	registry    *Registry
	checkpoints CheckpointStore
	logger      logging.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(provider model.Provider, registry *Registry, checkpoints CheckpointStore, logger logging.Logger) *Engine {
	if checkpoints == nil {
		checkpoints = NewMemoryStore()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		provider:    provider,
		registry:    registry,
		checkpoints: checkpoints,
		logger:      logger.With(logging.F("component", "workflow_engine")),
	}
}

// Process runs one workflow invocation. A fresh run makes a single model
// turn and dispatches the resulting tool calls; a resumed run skips
// already-settled calls and dispatches only the remainder. The returned
// result carries the union of all settled items for the run.
func (e *Engine) Process(ctx context.Context, input Input) (*Result, error) {
	if input.RunID == "" {
		return nil, fmt.Errorf("workflow run id is required: %w", gmerrors.ErrValidation)
	}
	if input.UserID == "" {
		return nil, fmt.Errorf("no user in workflow context: %w", gmerrors.ErrNoIdentity)
	}
	if input.Transcript == "" {
		return nil, fmt.Errorf("workflow transcript: %w", gmerrors.ErrEmptyTranscript)
	}

	state, resumed, err := e.loadOrStart(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: state.RunID, Resumed: resumed}

	if !state.Completed {
		state, err = e.dispatchPending(ctx, state)
		if err != nil {
			return nil, err
		}

		state = state.WithCompleted()
		if err := e.checkpoints.Save(ctx, state); err != nil {
			e.logger.Warn("checkpoint save failed", logging.Err(err), logging.F("run_id", state.RunID))
		}
	}

	result.Items = state.Processed
	if len(state.Messages) > 0 {
		last := state.Messages[len(state.Messages)-1]
		if last.Role == "assistant" && len(last.ToolCalls) == 0 {
			result.Response = last.Content
		}
	}

	e.logger.Info("workflow run settled",
		logging.F("run_id", state.RunID),
		logging.F("items", len(result.Items)),
		logging.F("errors", len(result.Errored())),
		logging.F("resumed", resumed))
	return result, nil
}

// loadOrStart resumes from a checkpoint when one exists, otherwise makes
// the model turn that opens a fresh run.
func (e *Engine) loadOrStart(ctx context.Context, input Input) (State, bool, error) {
	saved, err := e.checkpoints.Load(ctx, input.RunID)
	if err != nil {
		e.logger.Warn("checkpoint load failed, starting fresh", logging.Err(err), logging.F("run_id", input.RunID))
	}
	if saved != nil {
		e.logger.Info("resuming from checkpoint",
			logging.F("run_id", saved.RunID),
			logging.F("settled", len(saved.Processed)),
			logging.F("pending", len(saved.Pending)))
		return *saved, true, nil
	}

	currentDate := input.CurrentDate
	if currentDate.IsZero() {
		currentDate = time.Now()
	}

	state := NewState(input.RunID, input.UserID, input.Transcript, currentDate)
	state = state.WithMessages(
		model.Message{Role: "system", Content: systemPrompt},
		model.Message{Role: "user", Content: fmt.Sprintf("Today is %s.\n\nTranscript:\n%s",
			currentDate.Format("Monday, 2006-01-02"), input.Transcript)},
	)

	resp, err := e.provider.Chat(ctx, model.ChatRequest{
		Messages: state.Messages,
		Tools:    e.registry.Definitions(),
	})
	if err != nil {
		return State{}, false, fmt.Errorf("model turn: %w", err)
	}

	state = state.WithMessages(model.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})
	state = state.WithPending(resp.ToolCalls)

	if err := e.checkpoints.Save(ctx, state); err != nil {
		e.logger.Warn("checkpoint save failed", logging.Err(err), logging.F("run_id", state.RunID))
	}
	return state, false, nil
}

// dispatchPending settles each pending tool call in order. A failing
// call is recorded and its siblings still run; the checkpoint advances
// after every call so a crash loses at most the in-flight one.
func (e *Engine) dispatchPending(ctx context.Context, state State) (State, error) {
	for _, call := range state.Pending {
		if state.IsProcessed(call.ID) {
			continue
		}

		item := e.dispatch(ctx, call, state.UserID)
		state = state.WithProcessed(item)
		state = state.WithMessages(model.Message{
			Role:       "tool",
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    toolMessageContent(item),
		})

		if err := e.checkpoints.Save(ctx, state); err != nil {
			e.logger.Warn("checkpoint save failed", logging.Err(err), logging.F("run_id", state.RunID))
		}
	}
	return state, nil
}

// dispatch settles one tool call. Every failure becomes an ItemResult;
// nothing escalates.
func (e *Engine) dispatch(ctx context.Context, call model.ToolCall, userID string) ItemResult {
	item := ItemResult{ToolCallID: call.ID, Tool: call.Name}

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		item.Status = StatusError
		item.ErrorCode = string(gmerrors.ErrArgumentValidation)
		item.Detail = fmt.Sprintf("unknown tool %q", call.Name)
		e.logger.Warn("model called unknown tool", logging.F("tool", call.Name))
		return item
	}

	out, err := tool.Invoke(ctx, call.Arguments, userID)
	if err != nil {
		classified := gmerrors.Classify(err, "workflow")
		item.Status = StatusError
		item.ErrorCode = string(classified.Code)
		item.Detail = err.Error()
		e.logger.Warn("tool call failed",
			logging.F("tool", call.Name),
			logging.F("code", string(classified.Code)),
			logging.Err(err))
		return item
	}

	item.Status = StatusOK
	item.Detail = out
	return item
}

func toolMessageContent(item ItemResult) string {
	if item.Status == StatusOK {
		return item.Detail
	}
	return fmt.Sprintf(`{"error": %q}`, item.Detail)
}
