// Package transcript provides the meeting transcript data model and its
// PostgreSQL persistence.
package transcript

import (
	"sort"
	"strings"
	"time"
)

// Segment is one recognized utterance of a meeting transcript.
// Segments are immutable once persisted and ordered by start offset.
type Segment struct {
	Order      int     `json:"order"`
	Speaker    string  `json:"speaker,omitempty"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms,omitempty"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	MeetingID  string  `json:"meeting_id,omitempty"`
}

// Meta carries the caller-supplied metadata for a meeting ingestion.
type Meta struct {
	Title     string
	Date      time.Time
	OwnerID   string
	AudioFile string
}

// Meeting is the persisted aggregate for one ingested recording.
type Meeting struct {
	ID        string
	Title     string
	Date      time.Time
	OwnerID   string
	AudioFile string
	CreatedAt time.Time
}

// FullText concatenates segment texts in order, separated by spaces.
// This is the transcript view handed to the summarizer and the
// action-extraction workflow.
func FullText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// SortByStart orders segments by start offset (stable, in place) and
// renumbers Order to match.
func SortByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartMs < segments[j].StartMs
	})
	for i := range segments {
		segments[i].Order = i
	}
}

// IsOrdered reports whether segments are in non-decreasing start-offset
// order.
func IsOrdered(segments []Segment) bool {
	for i := 1; i < len(segments); i++ {
		if segments[i].StartMs < segments[i-1].StartMs {
			return false
		}
	}
	return true
}
