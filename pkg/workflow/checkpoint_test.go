package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Welshcorki/Genminute/pkg/model"
)

// Exercises the same marshal/unmarshal path RedisStore.Save and Load use,
// with every State field populated.
func TestCheckpointStateJSONRoundTrip(t *testing.T) {
	date := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	state := NewState("run-1", "alice", "we agreed to meet tuesday", date).
		WithMessages(
			model.Message{Role: "system", Content: "prompt"},
			model.Message{Role: "assistant", ToolCalls: []model.ToolCall{
				{ID: "c1", Name: "create_calendar_event"},
			}},
		).
		WithPending([]model.ToolCall{
			{ID: "c1", Name: "create_calendar_event", Arguments: json.RawMessage(`{"summary":"sync","start_time":"2026-09-08T10:00:00"}`)},
			{ID: "c2", Name: "create_calendar_event", Arguments: json.RawMessage(`{"summary":"retro"}`)},
		}).
		WithProcessed(ItemResult{ToolCallID: "c1", Tool: "create_calendar_event", Status: StatusOK, Detail: `{"event_id":"sim-1"}`}).
		WithCompleted()

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var loaded State
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "alice", loaded.UserID)
	assert.Equal(t, "we agreed to meet tuesday", loaded.Transcript)
	assert.True(t, loaded.CurrentDate.Equal(date))
	assert.True(t, loaded.Completed)

	require.Len(t, loaded.Messages, 2)
	require.Len(t, loaded.Messages[1].ToolCalls, 1)
	assert.Equal(t, "c1", loaded.Messages[1].ToolCalls[0].ID)

	require.Len(t, loaded.Pending, 2)
	assert.JSONEq(t, `{"summary":"sync","start_time":"2026-09-08T10:00:00"}`, string(loaded.Pending[0].Arguments))
	assert.JSONEq(t, `{"summary":"retro"}`, string(loaded.Pending[1].Arguments))

	require.Len(t, loaded.Processed, 1)
	assert.Equal(t, StatusOK, loaded.Processed[0].Status)
	assert.True(t, loaded.IsProcessed("c1"))
	assert.False(t, loaded.IsProcessed("c2"))
}

func TestCheckpointKey(t *testing.T) {
	assert.Equal(t, "genminute:workflow:run-1", checkpointKey("run-1"))
}
