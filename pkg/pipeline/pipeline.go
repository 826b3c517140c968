// Package pipeline sequences the meeting processing stages: validate,
// normalize, transcribe, persist, index, and extract actions. Persistence
// is the point of no return; the stages after it are best effort and
// degrade to warnings.
package pipeline

import (
	"context"
	"fmt"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/index"
	"github.com/Welshcorki/Genminute/pkg/logging"
	"github.com/Welshcorki/Genminute/pkg/media"
	"github.com/Welshcorki/Genminute/pkg/model"
	"github.com/Welshcorki/Genminute/pkg/transcribe"
	"github.com/Welshcorki/Genminute/pkg/transcript"
	"github.com/Welshcorki/Genminute/pkg/workflow"
)

// StageWarning records a best-effort stage that failed without failing
// the ingestion.
type StageWarning struct {
	Stage string `json:"stage"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// IngestRequest describes one recording to process.
type IngestRequest struct {
	// MediaPath is the recording to ingest.
	MediaPath string

	// Meta is the caller-supplied meeting metadata. Meta.OwnerID is the
	// identity the workflow acts as.
	Meta transcript.Meta

	// SkipActions skips the action-extraction workflow.
	SkipActions bool
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	MeetingID string           `json:"meeting_id"`
	Segments  int              `json:"segments"`
	Warnings  []StageWarning   `json:"warnings,omitempty"`
	Workflow  *workflow.Result `json:"workflow,omitempty"`
}

// SummarizeResult reports a summary operation.
type SummarizeResult struct {
	MeetingID string         `json:"meeting_id"`
	Summary   string         `json:"summary"`
	Warnings  []StageWarning `json:"warnings,omitempty"`
}

// Orchestrator wires the stages together. All collaborators are
// injected; there are no package-level singletons.
type Orchestrator struct {
	normalizer  *media.Normalizer
	transcriber transcribe.Transcriber
	store       transcript.Store
	indexer     index.Indexer
	provider    model.Provider
	engine      *workflow.Engine
	metrics     *Metrics
	logger      logging.Logger
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(
	normalizer *media.Normalizer,
	transcriber transcribe.Transcriber,
	store transcript.Store,
	indexer index.Indexer,
	provider model.Provider,
	engine *workflow.Engine,
	metrics *Metrics,
	logger logging.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		normalizer:  normalizer,
		transcriber: transcriber,
		store:       store,
		indexer:     indexer,
		provider:    provider,
		engine:      engine,
		metrics:     metrics,
		logger:      logger.With(logging.F("component", "pipeline")),
	}
}

// Ingest processes one recording end to end. Failures before persistence
// abort the run; failures after it are returned as warnings on a
// successful result. Temp derivatives are removed on every path.
func (o *Orchestrator) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	kind, err := media.ValidateInput(req.MediaPath)
	if err != nil {
		o.metrics.ingestDone("rejected")
		return nil, err
	}

	o.logger.Info("ingestion started",
		logging.F("media", req.MediaPath),
		logging.F("kind", string(kind)),
		logging.F("owner", req.Meta.OwnerID))

	audioPath := req.MediaPath
	var tempPath string
	defer func() {
		o.normalizer.Cleanup(tempPath)
	}()

	if kind == media.KindVideo {
		start := time.Now()
		converted, err := o.normalizer.Normalize(ctx, req.MediaPath)
		o.metrics.observeStage("normalize", start)
		if err != nil {
			o.failStage("normalize", err)
			return nil, err
		}
		audioPath = converted
		tempPath = converted
	}

	start := time.Now()
	segments, err := o.transcriber.Transcribe(ctx, audioPath)
	o.metrics.observeStage("transcribe", start)
	if err != nil {
		o.failStage("transcribe", err)
		return nil, err
	}
	if len(segments) == 0 {
		o.failStage("transcribe", gmerrors.ErrEmptyTranscript)
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrNoTranscript,
			Stage:   "transcribe",
			Message: "no speech recognized in recording",
		}
	}

	meta := req.Meta
	if meta.AudioFile == "" {
		meta.AudioFile = req.MediaPath
	}

	start = time.Now()
	meetingID, err := o.store.SaveSegments(ctx, meta, segments)
	o.metrics.observeStage("persist", start)
	if err != nil {
		o.failStage("persist", err)
		return nil, fmt.Errorf("persist transcript: %w", err)
	}
	o.metrics.segmentsSaved.Add(float64(len(segments)))

	result := &IngestResult{MeetingID: meetingID, Segments: len(segments)}

	// Downstream stages read the persisted rows, not the in-memory
	// segments, so they see exactly what later readers will see.
	persisted, err := o.store.GetSegmentsByMeetingID(ctx, meetingID)
	if err != nil {
		result.Warnings = append(result.Warnings, o.warn("reread", err))
		o.metrics.ingestDone("degraded")
		return result, nil
	}

	start = time.Now()
	if err := o.indexer.Index(ctx, meetingID, persisted); err != nil {
		result.Warnings = append(result.Warnings, o.warn("index", err))
	}
	o.metrics.observeStage("index", start)

	if !req.SkipActions {
		start = time.Now()
		wfResult, err := o.engine.Process(ctx, workflow.Input{
			RunID:       meetingID,
			UserID:      meta.OwnerID,
			Transcript:  transcript.FullText(persisted),
			CurrentDate: meta.Date,
		})
		o.metrics.observeStage("actions", start)
		if err != nil {
			result.Warnings = append(result.Warnings, o.warn("actions", err))
		} else {
			result.Workflow = wfResult
		}
	}

	if len(result.Warnings) > 0 {
		o.metrics.ingestDone("degraded")
	} else {
		o.metrics.ingestDone("ok")
	}

	o.logger.Info("ingestion complete",
		logging.F("meeting_id", meetingID),
		logging.F("segments", len(segments)),
		logging.F("warnings", len(result.Warnings)))
	return result, nil
}

// IngestBatch processes recordings sequentially. A failing recording is
// reported and does not stop the rest.
func (o *Orchestrator) IngestBatch(ctx context.Context, reqs []IngestRequest) ([]*IngestResult, []error) {
	results := make([]*IngestResult, 0, len(reqs))
	var errs []error
	for _, req := range reqs {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.MediaPath, ctx.Err()))
			continue
		}
		result, err := o.Ingest(ctx, req)
		if err != nil {
			o.logger.Warn("batch item failed", logging.F("media", req.MediaPath), logging.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", req.MediaPath, err))
			continue
		}
		results = append(results, result)
	}
	return results, errs
}

const summaryPrompt = `Summarize this meeting transcript. Cover the topics discussed, the decisions made, and the agreed follow-ups. Write in the transcript's language.`

const mindmapPrompt = `Convert this meeting summary into a Mermaid mindmap. Output only the Mermaid code, starting with the word "mindmap".`

// Summarize generates and stores a summary for a persisted meeting, then
// derives a mindmap from it. The mindmap is best effort; its failure is
// a warning on a successful result.
func (o *Orchestrator) Summarize(ctx context.Context, meetingID string) (*SummarizeResult, error) {
	segments, err := o.store.GetSegmentsByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	text := transcript.FullText(segments)
	if text == "" {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, gmerrors.ErrEmptyTranscript)
	}

	start := time.Now()
	summary, err := o.provider.Complete(ctx, summaryPrompt, text)
	o.metrics.observeStage("summarize", start)
	if err != nil {
		o.failStage("summarize", err)
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	if err := o.store.SaveSummary(ctx, meetingID, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	result := &SummarizeResult{MeetingID: meetingID, Summary: summary}

	start = time.Now()
	mindmap, err := o.provider.Complete(ctx, mindmapPrompt, summary)
	o.metrics.observeStage("mindmap", start)
	if err != nil {
		result.Warnings = append(result.Warnings, o.warn("mindmap", err))
		return result, nil
	}
	if err := o.store.SaveMindmap(ctx, meetingID, model.StripFences(mindmap)); err != nil {
		result.Warnings = append(result.Warnings, o.warn("mindmap", err))
	}

	o.logger.Info("summary complete",
		logging.F("meeting_id", meetingID),
		logging.F("warnings", len(result.Warnings)))
	return result, nil
}

func (o *Orchestrator) failStage(stage string, err error) {
	classified := gmerrors.Classify(err, stage)
	o.metrics.stageFailed(stage, string(classified.Code))
	o.logger.Error("stage failed",
		logging.F("stage", stage),
		logging.F("code", string(classified.Code)),
		logging.Err(err))
}

func (o *Orchestrator) warn(stage string, err error) StageWarning {
	classified := gmerrors.Classify(err, stage)
	o.metrics.stageFailed(stage, string(classified.Code))
	o.logger.Warn("best-effort stage failed",
		logging.F("stage", stage),
		logging.F("code", string(classified.Code)),
		logging.Err(err))
	return StageWarning{
		Stage: stage,
		Code:  string(classified.Code),
		Error: err.Error(),
	}
}
