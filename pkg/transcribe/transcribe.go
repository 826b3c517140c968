// Package transcribe calls the speech-to-text service that turns
// normalized audio into transcript segments.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
	"github.com/Welshcorki/Genminute/pkg/transcript"
)

// Transcriber converts an audio file into ordered transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// Config holds HTTP transcriber settings.
type Config struct {
	// Addr is the base URL of the speech-to-text service.
	Addr string

	// Language hints the recognizer; empty lets the service auto-detect.
	Language string

	// Timeout bounds the whole transcription request.
	Timeout time.Duration
}

// HTTPTranscriber calls a whisper-style speech-to-text HTTP service.
type HTTPTranscriber struct {
	config Config
	client *http.Client
	logger logging.Logger
}

// NewHTTPTranscriber creates a transcriber against the configured service.
func NewHTTPTranscriber(config Config, logger logging.Logger) *HTTPTranscriber {
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HTTPTranscriber{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(logging.F("component", "transcriber")),
	}
}

// wire types for the speech-to-text service response.
type sttSegment struct {
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type sttResponse struct {
	Segments []sttSegment `json:"segments"`
	Error    string       `json:"error,omitempty"`
}

// Transcribe uploads the audio file and returns the recognized segments
// ordered by start offset. A run that recognizes nothing returns an
// empty slice and no error; the caller decides whether that is fatal.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if t.config.Language != "" {
		if err := writer.WriteField("language", t.config.Language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.Addr+"/transcribe", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	t.logger.Info("transcribing audio", logging.F("file", filepath.Base(audioPath)))
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, &gmerrors.StageError{
				Code:     gmerrors.ErrStageTimeout,
				Stage:    "transcribe",
				Duration: time.Since(start),
				Timeout:  t.config.Timeout,
				Cause:    err,
			}
		}
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "transcribe",
			Message: fmt.Sprintf("speech-to-text request failed: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "transcribe",
			Message: fmt.Sprintf("speech-to-text returned %d: %s", resp.StatusCode, truncate(data, 300)),
		}
	}

	var out sttResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "transcribe",
			Message: fmt.Sprintf("unparseable speech-to-text response: %v", err),
			Cause:   err,
		}
	}
	if out.Error != "" {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "transcribe",
			Message: out.Error,
		}
	}

	segments := make([]transcript.Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segments = append(segments, transcript.Segment{
			Speaker:    s.Speaker,
			StartMs:    int64(s.Start * 1000),
			EndMs:      int64(s.End * 1000),
			Text:       s.Text,
			Confidence: s.Confidence,
		})
	}
	transcript.SortByStart(segments)

	t.logger.Info("transcription complete",
		logging.F("segments", len(segments)),
		logging.F("duration", time.Since(start)))

	return segments, nil
}

func truncate(b []byte, limit int) string {
	s := string(b)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
