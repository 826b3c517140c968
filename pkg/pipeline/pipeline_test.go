package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/media"
	"github.com/Welshcorki/Genminute/pkg/model"
	"github.com/Welshcorki/Genminute/pkg/transcript"
	"github.com/Welshcorki/Genminute/pkg/workflow"
)

type fakeStore struct {
	saved     map[string][]transcript.Segment
	summaries map[string]string
	mindmaps  map[string]string
	saveErr   error
	readErr   error
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:     map[string][]transcript.Segment{},
		summaries: map[string]string{},
		mindmaps:  map[string]string{},
	}
}

func (s *fakeStore) SaveSegments(_ context.Context, _ transcript.Meta, segments []transcript.Segment) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if len(segments) == 0 {
		return "", gmerrors.ErrEmptyTranscript
	}
	s.nextID++
	id := fmt.Sprintf("meeting-%d", s.nextID)
	s.saved[id] = segments
	return id, nil
}

func (s *fakeStore) GetSegmentsByMeetingID(_ context.Context, meetingID string) ([]transcript.Segment, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	segments, ok := s.saved[meetingID]
	if !ok {
		return nil, gmerrors.ErrNotFound
	}
	return segments, nil
}

func (s *fakeStore) GetMeeting(_ context.Context, meetingID string) (*transcript.Meeting, error) {
	if _, ok := s.saved[meetingID]; !ok {
		return nil, gmerrors.ErrNotFound
	}
	return &transcript.Meeting{ID: meetingID}, nil
}

func (s *fakeStore) SaveSummary(_ context.Context, meetingID, summary string) error {
	s.summaries[meetingID] = summary
	return nil
}

func (s *fakeStore) SaveMindmap(_ context.Context, meetingID, mindmap string) error {
	s.mindmaps[meetingID] = mindmap
	return nil
}

type fakeTranscriber struct {
	segments []transcript.Segment
	err      error
	gotPath  string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) ([]transcript.Segment, error) {
	f.gotPath = audioPath
	return f.segments, f.err
}

type fakeIndexer struct {
	indexed map[string]int
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, meetingID string, segments []transcript.Segment) error {
	if f.err != nil {
		return f.err
	}
	if f.indexed == nil {
		f.indexed = map[string]int{}
	}
	f.indexed[meetingID] = len(segments)
	return nil
}

type fakeProvider struct {
	chatResp    *model.ChatResponse
	chatErr     error
	completions []string
	completeErr []error
	calls       int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Chat(context.Context, model.ChatRequest) (*model.ChatResponse, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatResp != nil {
		return f.chatResp, nil
	}
	return &model.ChatResponse{Content: "no follow-ups"}, nil
}

func (f *fakeProvider) Complete(context.Context, string, string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.completeErr) && f.completeErr[i] != nil {
		return "", f.completeErr[i]
	}
	if i < len(f.completions) {
		return f.completions[i], nil
	}
	return "", errors.New("unexpected completion call")
}

func (f *fakeProvider) Embed(context.Context, []string) ([][]float64, error) { return nil, nil }
func (f *fakeProvider) IsAvailable(context.Context) bool                    { return true }
func (f *fakeProvider) Close() error                                        { return nil }

func testSegments() []transcript.Segment {
	return []transcript.Segment{
		{Order: 0, StartMs: 0, Text: "let us start"},
		{Order: 1, StartMs: 3000, Text: "budget review next tuesday"},
	}
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("riff"), 0o600))
	return path
}

type testPipeline struct {
	orch        *Orchestrator
	store       *fakeStore
	transcriber *fakeTranscriber
	indexer     *fakeIndexer
	provider    *fakeProvider
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	store := newFakeStore()
	transcriber := &fakeTranscriber{segments: testSegments()}
	indexer := &fakeIndexer{}
	provider := &fakeProvider{}
	engine := workflow.NewEngine(provider, workflow.NewRegistry(), workflow.NewMemoryStore(), nil)
	orch := NewOrchestrator(
		media.NewNormalizer("ffmpeg", time.Minute, nil),
		transcriber, store, indexer, provider, engine, NewMetrics(nil), nil)
	return &testPipeline{orch: orch, store: store, transcriber: transcriber, indexer: indexer, provider: provider}
}

func ingestReq(path string) IngestRequest {
	return IngestRequest{
		MediaPath: path,
		Meta: transcript.Meta{
			Title:   "Weekly sync",
			OwnerID: "alice",
			Date:    time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestIngestHappyPath(t *testing.T) {
	p := newTestPipeline(t)

	result, err := p.orch.Ingest(context.Background(), ingestReq(writeAudio(t)))
	require.NoError(t, err)

	assert.Equal(t, "meeting-1", result.MeetingID)
	assert.Equal(t, 2, result.Segments)
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Workflow)
	assert.Equal(t, "meeting-1", result.Workflow.RunID)
	assert.Equal(t, 2, p.indexer.indexed["meeting-1"])
}

func TestIngestRejectsUnsupportedInput(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.orch.Ingest(context.Background(), ingestReq("/nonexistent/notes.txt"))
	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrInput, se.Code)
	assert.Empty(t, p.store.saved)
}

func TestIngestEmptyTranscriptIsFatal(t *testing.T) {
	p := newTestPipeline(t)
	p.transcriber.segments = nil

	_, err := p.orch.Ingest(context.Background(), ingestReq(writeAudio(t)))
	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrNoTranscript, se.Code)
	assert.Empty(t, p.store.saved)
}

func TestIngestPersistFailureIsFatal(t *testing.T) {
	p := newTestPipeline(t)
	p.store.saveErr = errors.New("connection refused")

	_, err := p.orch.Ingest(context.Background(), ingestReq(writeAudio(t)))
	require.Error(t, err)
}

func TestIndexFailureDegradesToWarning(t *testing.T) {
	p := newTestPipeline(t)
	p.indexer.err = errors.New("embedding service unavailable")

	result, err := p.orch.Ingest(context.Background(), ingestReq(writeAudio(t)))
	require.NoError(t, err)

	assert.Equal(t, "meeting-1", result.MeetingID)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "index", result.Warnings[0].Stage)
	assert.Equal(t, string(gmerrors.ErrExternalService), result.Warnings[0].Code)
	// The workflow still ran.
	assert.NotNil(t, result.Workflow)
}

func TestWorkflowFailureDegradesToWarning(t *testing.T) {
	p := newTestPipeline(t)
	p.provider.chatErr = errors.New("model unavailable")

	result, err := p.orch.Ingest(context.Background(), ingestReq(writeAudio(t)))
	require.NoError(t, err)

	assert.Equal(t, "meeting-1", result.MeetingID)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "actions", result.Warnings[0].Stage)
	assert.Nil(t, result.Workflow)
	// Indexing still happened.
	assert.Equal(t, 2, p.indexer.indexed["meeting-1"])
}

func TestIngestSkipActions(t *testing.T) {
	p := newTestPipeline(t)
	p.provider.chatErr = errors.New("model must not be called")

	req := ingestReq(writeAudio(t))
	req.SkipActions = true
	result, err := p.orch.Ingest(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, result.Workflow)
	assert.Empty(t, result.Warnings)
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	p := newTestPipeline(t)

	good := writeAudio(t)
	results, errs := p.orch.IngestBatch(context.Background(), []IngestRequest{
		ingestReq("/nonexistent/bad.wav"),
		ingestReq(good),
	})

	require.Len(t, errs, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "meeting-1", results[0].MeetingID)
}

func TestSummarizeStoresSummaryAndMindmap(t *testing.T) {
	p := newTestPipeline(t)
	p.store.saved["meeting-1"] = testSegments()
	p.provider.completions = []string{
		"The team reviewed the budget.",
		"```mermaid\nmindmap\n  root((meeting))\n```",
	}

	result, err := p.orch.Summarize(context.Background(), "meeting-1")
	require.NoError(t, err)

	assert.Equal(t, "The team reviewed the budget.", result.Summary)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "The team reviewed the budget.", p.store.summaries["meeting-1"])
	assert.Equal(t, "mindmap\n  root((meeting))", p.store.mindmaps["meeting-1"])
}

func TestSummarizeMindmapFailureIsWarning(t *testing.T) {
	p := newTestPipeline(t)
	p.store.saved["meeting-1"] = testSegments()
	p.provider.completions = []string{"Summary text", ""}
	p.provider.completeErr = []error{nil, errors.New("model unavailable")}

	result, err := p.orch.Summarize(context.Background(), "meeting-1")
	require.NoError(t, err)

	assert.Equal(t, "Summary text", result.Summary)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "mindmap", result.Warnings[0].Stage)
	assert.Equal(t, "Summary text", p.store.summaries["meeting-1"])
	assert.Empty(t, p.store.mindmaps)
}

func TestSummarizeUnknownMeeting(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.orch.Summarize(context.Background(), "missing")
	assert.True(t, gmerrors.IsNotFound(err))
}

func TestSummarizeSummaryFailureIsFatal(t *testing.T) {
	p := newTestPipeline(t)
	p.store.saved["meeting-1"] = testSegments()
	p.provider.completeErr = []error{errors.New("model unavailable")}

	_, err := p.orch.Summarize(context.Background(), "meeting-1")
	require.Error(t, err)
	assert.Empty(t, p.store.summaries)
}
