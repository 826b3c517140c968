package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
)

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindVideo, DetectKind("/tmp/standup.mp4"))
	assert.Equal(t, KindVideo, DetectKind("/tmp/video_live.WEBM"))
	assert.Equal(t, KindAudio, DetectKind("/tmp/standup.wav"))
	assert.Equal(t, KindAudio, DetectKind("recording.M4A"))
	assert.Equal(t, KindUnknown, DetectKind("notes.txt"))
	assert.Equal(t, KindUnknown, DetectKind("noextension"))
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "meeting.wav")
	require.NoError(t, os.WriteFile(audio, []byte("riff"), 0o600))

	kind, err := ValidateInput(audio)
	require.NoError(t, err)
	assert.Equal(t, KindAudio, kind)

	_, err = ValidateInput("")
	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrInput, se.Code)

	_, err = ValidateInput(filepath.Join(dir, "missing.wav"))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrInput, se.Code)

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o600))
	_, err = ValidateInput(bad)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrInput, se.Code)
}

func TestNormalizeArgs(t *testing.T) {
	args := normalizeArgs("/tmp/call.mp4", "/tmp/call_converted.wav")
	assert.Equal(t, []string{
		"-y", "-i", "/tmp/call.mp4", "-vn",
		"-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
		"/tmp/call_converted.wav",
	}, args)
}

func TestNormalizeInvokesFFmpeg(t *testing.T) {
	n := NewNormalizer("ffmpeg", 0, nil)

	var gotName string
	var gotArgs []string
	n.runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil
	}

	out, err := n.Normalize(context.Background(), "/tmp/call.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/call_converted.wav", out)
	assert.Equal(t, "ffmpeg", gotName)
	assert.Contains(t, gotArgs, "/tmp/call.mp4")
	assert.Contains(t, gotArgs, "/tmp/call_converted.wav")
}

func TestNormalizeMapsTimeout(t *testing.T) {
	n := NewNormalizer("ffmpeg", 0, nil)
	n.runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := n.Normalize(context.Background(), "/tmp/call.mp4")
	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrStageTimeout, se.Code)
	assert.Equal(t, "normalize", se.Stage)
	assert.True(t, gmerrors.IsStageTimeout(err))
}

func TestNormalizeSurfacesFFmpegOutput(t *testing.T) {
	n := NewNormalizer("ffmpeg", 0, nil)
	n.runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}

	_, err := n.Normalize(context.Background(), "/tmp/call.mp4")
	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrInput, se.Code)
	assert.Contains(t, se.Message, "Invalid data found")
}

func TestRecompressArgs(t *testing.T) {
	args, out := recompressArgs("/tmp/video_live.webm", true)
	assert.Equal(t, "/tmp/video_live.mp4", out)
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "aac")

	args, out = recompressArgs("/tmp/mic_live.webm", false)
	assert.Equal(t, "/tmp/mic_live.m4a", out)
	assert.Contains(t, args, "-vn")
	assert.NotContains(t, args, "libx264")
}

func TestRecompressRemovesOriginal(t *testing.T) {
	dir := t.TempDir()
	webm := filepath.Join(dir, "mic_live.webm")
	require.NoError(t, os.WriteFile(webm, []byte("webm"), 0o600))

	n := NewNormalizer("ffmpeg", 0, nil)
	n.runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	}

	out, err := n.Recompress(context.Background(), webm)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mic_live.m4a"), out)
	_, statErr := os.Stat(webm)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupIgnoresMissingAndEmptyPaths(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "tmp.wav")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

	n := NewNormalizer("ffmpeg", 0, nil)
	n.Cleanup("", filepath.Join(dir, "missing.wav"), existing)

	_, err := os.Stat(existing)
	assert.True(t, os.IsNotExist(err))
}
