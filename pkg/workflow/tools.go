package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Welshcorki/Genminute/pkg/calendar"
	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/model"
)

// Tool is one capability the model may invoke. The user identity is
// supplied by the engine, never by the model.
type Tool interface {
	Name() string
	Definition() model.ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage, userID string) (string, error)
}

// Registry is the closed set of tools available to the model. Unknown
// tool names settle as errors instead of dispatching anywhere.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool definitions in registration order, for
// the model request.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// eventTimeLayout is the wall-clock layout the model is instructed to
// emit. No zone; events land in the user's local time.
const eventTimeLayout = "2006-01-02T15:04:05"

// calendarEventArgs are the model-provided arguments for the calendar
// tool, validated before any external call.
type calendarEventArgs struct {
	Summary     string `json:"summary"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// CalendarTool schedules extracted follow-ups through the calendar
// adapter.
type CalendarTool struct {
	adapter *calendar.Adapter
}

// NewCalendarTool creates the calendar scheduling tool.
func NewCalendarTool(adapter *calendar.Adapter) *CalendarTool {
	return &CalendarTool{adapter: adapter}
}

// Name returns the tool name the model calls.
func (t *CalendarTool) Name() string {
	return "create_calendar_event"
}

// Definition returns the tool schema advertised to the model.
func (t *CalendarTool) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Name: t.Name(),
		Description: "Create a calendar event for an action item agreed in the meeting. " +
			"Times are local wall-clock in YYYY-MM-DDTHH:MM:SS format. " +
			"Omit end_time for a one-hour event.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"summary": {"type": "string", "description": "Short event title"},
				"start_time": {"type": "string", "description": "Event start, YYYY-MM-DDTHH:MM:SS"},
				"end_time": {"type": "string", "description": "Event end, YYYY-MM-DDTHH:MM:SS"},
				"location": {"type": "string"},
				"description": {"type": "string"}
			},
			"required": ["summary", "start_time"]
		}`),
	}
}

// Invoke parses and validates the arguments, then schedules the event as
// the given user.
func (t *CalendarTool) Invoke(ctx context.Context, args json.RawMessage, userID string) (string, error) {
	var in calendarEventArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("unparseable tool arguments: %v: %w", err, gmerrors.ErrValidation)
	}

	if in.StartTime == "" {
		return "", fmt.Errorf("start_time is required: %w", gmerrors.ErrValidation)
	}
	start, err := time.ParseInLocation(eventTimeLayout, in.StartTime, time.Local)
	if err != nil {
		return "", fmt.Errorf("invalid start_time %q: %w", in.StartTime, gmerrors.ErrValidation)
	}

	req := calendar.EventRequest{
		Summary:     in.Summary,
		StartTime:   start,
		Location:    in.Location,
		Description: in.Description,
	}
	if in.EndTime != "" {
		end, err := time.ParseInLocation(eventTimeLayout, in.EndTime, time.Local)
		if err != nil {
			return "", fmt.Errorf("invalid end_time %q: %w", in.EndTime, gmerrors.ErrValidation)
		}
		req.EndTime = &end
	}

	conf, err := t.adapter.Schedule(ctx, req, userID)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(conf)
	if err != nil {
		return "", fmt.Errorf("marshal confirmation: %w", err)
	}
	return string(out), nil
}
