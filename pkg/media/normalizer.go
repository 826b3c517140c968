// Package media handles media-file validation and ffmpeg-based
// normalization of recordings into transcriber-ready audio.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
)

// Kind classifies a media file by extension.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// DetectKind classifies a path by its extension.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExtensions[ext]:
		return KindVideo
	case audioExtensions[ext]:
		return KindAudio
	default:
		return KindUnknown
	}
}

// ValidateInput rejects missing files and unsupported media kinds before
// any stage runs.
func ValidateInput(path string) (Kind, error) {
	if path == "" {
		return KindUnknown, gmerrors.NewStageError(gmerrors.ErrInput, "validate", "no media file given")
	}
	if _, err := os.Stat(path); err != nil {
		return KindUnknown, &gmerrors.StageError{
			Code:    gmerrors.ErrInput,
			Stage:   "validate",
			Message: fmt.Sprintf("media file not readable: %v", err),
			Cause:   err,
		}
	}
	kind := DetectKind(path)
	if kind == KindUnknown {
		return kind, gmerrors.NewStageError(gmerrors.ErrInput, "validate",
			fmt.Sprintf("unsupported media extension %q", filepath.Ext(path)))
	}
	return kind, nil
}

// Normalizer converts recordings to mono 16 kHz PCM WAV via ffmpeg.
type Normalizer struct {
	ffmpegPath string
	timeout    time.Duration
	logger     logging.Logger

	// runCommand is swappable in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewNormalizer creates a Normalizer. timeout bounds each ffmpeg
// invocation; it is the single configurable ceiling for external tools.
func NewNormalizer(ffmpegPath string, timeout time.Duration, logger logging.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	n := &Normalizer{
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		logger:     logger.With(logging.F("component", "media_normalizer")),
	}
	n.runCommand = n.execCommand
	return n
}

// CheckFFmpeg verifies the ffmpeg binary is available.
func (n *Normalizer) CheckFFmpeg() error {
	if _, err := exec.LookPath(n.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", n.ffmpegPath, err)
	}
	return nil
}

// normalizeArgs builds the ffmpeg arguments for audio extraction:
// strip video, 16-bit PCM, 16 kHz, mono.
func normalizeArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	}
}

// Normalize extracts a mono 16 kHz PCM WAV derivative from the input
// recording. The derivative is a temp artifact scoped to the pipeline
// run; the caller removes it via Cleanup on all paths.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_converted.wav"

	n.logger.Info("normalizing media",
		logging.F("input", inputPath),
		logging.F("output", outputPath))

	start := time.Now()
	out, err := n.runCommand(ctx, n.ffmpegPath, normalizeArgs(inputPath, outputPath)...)
	if err != nil {
		// Remove any partial derivative so it is never promoted.
		_ = os.Remove(outputPath)

		if errors.Is(err, context.DeadlineExceeded) {
			return "", &gmerrors.StageError{
				Code:     gmerrors.ErrStageTimeout,
				Stage:    "normalize",
				Duration: time.Since(start),
				Timeout:  n.timeout,
				Cause:    err,
			}
		}
		return "", &gmerrors.StageError{
			Code:    gmerrors.ErrInput,
			Stage:   "normalize",
			Message: fmt.Sprintf("ffmpeg failed: %v: %s", err, truncate(out, 500)),
			Cause:   err,
		}
	}

	n.logger.Info("normalization complete",
		logging.F("output", outputPath),
		logging.F("duration", time.Since(start)))

	return outputPath, nil
}

// recompressArgs builds the ffmpeg arguments for re-encoding live WebM
// recordings into broadly compatible formats. Video recordings become
// H.264/AAC MP4; microphone-only recordings become AAC M4A.
func recompressArgs(inputPath string, video bool) ([]string, string) {
	if video {
		outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp4"
		return []string{
			"-y",
			"-i", inputPath,
			"-c:v", "libx264",
			"-preset", "fast",
			"-c:a", "aac",
			outputPath,
		}, outputPath
	}
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".m4a"
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-c:a", "aac",
		outputPath,
	}, outputPath
}

// Recompress re-encodes a live WebM recording into a compatible container
// and removes the original on success. Whether the recording carries video
// is inferred from the filename prefix used by the live recorder
// ("video_" vs "mic_").
func (n *Normalizer) Recompress(ctx context.Context, webmPath string) (string, error) {
	video := strings.Contains(filepath.Base(webmPath), "video_")
	args, outputPath := recompressArgs(webmPath, video)

	n.logger.Info("recompressing live recording",
		logging.F("input", webmPath),
		logging.F("video", video))

	out, err := n.runCommand(ctx, n.ffmpegPath, args...)
	if err != nil {
		_ = os.Remove(outputPath)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &gmerrors.StageError{
				Code:    gmerrors.ErrStageTimeout,
				Stage:   "recompress",
				Timeout: n.timeout,
				Cause:   err,
			}
		}
		return "", &gmerrors.StageError{
			Code:    gmerrors.ErrInput,
			Stage:   "recompress",
			Message: fmt.Sprintf("ffmpeg failed: %v: %s", err, truncate(out, 500)),
			Cause:   err,
		}
	}

	if err := os.Remove(webmPath); err != nil {
		n.logger.Warn("could not remove original webm", logging.Err(err))
	}
	return outputPath, nil
}

// Cleanup removes temp files, logging failures without returning them.
// Used on both success and failure paths.
func (n *Normalizer) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			n.logger.Warn("temp file cleanup failed",
				logging.F("path", path),
				logging.Err(err))
			continue
		}
		n.logger.Debug("temp file removed", logging.F("path", path))
	}
}

// execCommand runs the external tool under the configured timeout.
func (n *Normalizer) execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return buf.Bytes(), context.DeadlineExceeded
	}
	return buf.Bytes(), err
}

func truncate(b []byte, limit int) string {
	s := string(b)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
