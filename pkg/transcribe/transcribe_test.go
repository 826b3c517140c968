package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/transcript"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("riff-data"), 0o600))
	return path
}

func TestTranscribeParsesSegments(t *testing.T) {
	var gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotLanguage = r.FormValue("language")
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"segments":[
			{"speaker":"SPEAKER_01","start":4.2,"end":6.0,"text":"budget is approved","confidence":0.91},
			{"speaker":"SPEAKER_00","start":0.0,"end":3.5,"text":"let us start","confidence":0.88}
		]}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{Addr: srv.URL, Language: "en"}, nil)
	segments, err := tr.Transcribe(context.Background(), writeTempAudio(t))
	require.NoError(t, err)

	assert.Equal(t, "en", gotLanguage)
	require.Len(t, segments, 2)
	assert.True(t, transcript.IsOrdered(segments))
	assert.Equal(t, "let us start", segments[0].Text)
	assert.Equal(t, int64(0), segments[0].StartMs)
	assert.Equal(t, int64(3500), segments[0].EndMs)
	assert.Equal(t, 0, segments[0].Order)
	assert.Equal(t, "budget is approved", segments[1].Text)
	assert.Equal(t, int64(4200), segments[1].StartMs)
}

func TestTranscribeEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"segments":[]}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{Addr: srv.URL}, nil)
	segments, err := tr.Transcribe(context.Background(), writeTempAudio(t))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestTranscribeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{Addr: srv.URL}, nil)
	_, err := tr.Transcribe(context.Background(), writeTempAudio(t))

	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrExternalService, se.Code)
	assert.Contains(t, se.Message, "503")
}

func TestTranscribeEmbeddedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"segments":[],"error":"decoder crashed"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(Config{Addr: srv.URL}, nil)
	_, err := tr.Transcribe(context.Background(), writeTempAudio(t))

	var se *gmerrors.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gmerrors.ErrExternalService, se.Code)
	assert.Contains(t, se.Message, "decoder crashed")
}

func TestTranscribeMissingFile(t *testing.T) {
	tr := NewHTTPTranscriber(Config{Addr: "http://localhost:1"}, nil)
	_, err := tr.Transcribe(context.Background(), "/nonexistent/audio.wav")
	require.Error(t, err)
}
