package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Welshcorki/Genminute/pkg/calendar"
	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
)

type allowAllAuth struct{}

func (allowAllAuth) Token(context.Context, string) (string, error) { return "tok", nil }

func newCalendarTool() (*CalendarTool, *calendar.SimulatedClient) {
	sim := calendar.NewSimulatedClient(nil)
	adapter := calendar.NewAdapter(sim, allowAllAuth{}, nil)
	return NewCalendarTool(adapter), sim
}

func TestCalendarToolSchedulesEvent(t *testing.T) {
	tool, sim := newCalendarTool()

	out, err := tool.Invoke(context.Background(), json.RawMessage(`{
		"summary": "Budget review",
		"start_time": "2026-09-08T10:00:00",
		"location": "Room 4"
	}`), "alice")
	require.NoError(t, err)

	var conf calendar.Confirmation
	require.NoError(t, json.Unmarshal([]byte(out), &conf))
	assert.Equal(t, "Budget review", conf.Summary)
	assert.Equal(t, conf.StartTime.Add(time.Hour), conf.EndTime)
	assert.Len(t, sim.Events(), 1)
}

func TestCalendarToolRejectsBadArguments(t *testing.T) {
	tool, sim := newCalendarTool()

	_, err := tool.Invoke(context.Background(), json.RawMessage(`not json`), "alice")
	assert.True(t, gmerrors.IsValidation(err))

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{"summary":"x"}`), "alice")
	assert.True(t, gmerrors.IsValidation(err))

	_, err = tool.Invoke(context.Background(), json.RawMessage(`{"summary":"x","start_time":"tomorrow"}`), "alice")
	assert.True(t, gmerrors.IsValidation(err))

	assert.Empty(t, sim.Events())
}

func TestRegistryIsClosed(t *testing.T) {
	tool, _ := newCalendarTool()
	r := NewRegistry(tool)

	_, ok := r.Get("create_calendar_event")
	assert.True(t, ok)
	_, ok = r.Get("delete_all_events")
	assert.False(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "create_calendar_event", defs[0].Name)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	loaded, err := store.Load(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	state := NewState("run-1", "alice", "transcript", time.Now())
	require.NoError(t, store.Save(ctx, state))

	loaded, err = store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "alice", loaded.UserID)

	require.NoError(t, store.Delete(ctx, "run-1"))
	loaded, err = store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStateReducersCopy(t *testing.T) {
	s1 := NewState("run-1", "alice", "t", time.Now())
	s2 := s1.WithProcessed(ItemResult{ToolCallID: "c1", Status: StatusOK})

	assert.Empty(t, s1.Processed)
	require.Len(t, s2.Processed, 1)
	assert.True(t, s2.IsProcessed("c1"))
	assert.False(t, s2.IsProcessed("c2"))
}
