package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
)

// Store is the narrow persistence contract the pipeline and workflow
// consume. Implemented by Repository; test fakes implement it directly.
type Store interface {
	// SaveSegments persists a meeting and all its segments atomically and
	// returns the newly assigned meeting identifier.
	SaveSegments(ctx context.Context, meta Meta, segments []Segment) (string, error)

	// GetSegmentsByMeetingID returns a meeting's segments ordered by start
	// offset. Returns ErrNotFound if the meeting does not exist.
	GetSegmentsByMeetingID(ctx context.Context, meetingID string) ([]Segment, error)

	// GetMeeting returns the meeting aggregate.
	GetMeeting(ctx context.Context, meetingID string) (*Meeting, error)

	// SaveSummary stores the derived summary, overwriting any previous one.
	SaveSummary(ctx context.Context, meetingID, summary string) error

	// SaveMindmap stores the derived mindmap, overwriting any previous one.
	SaveMindmap(ctx context.Context, meetingID, mindmap string) error
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new transcript repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "transcript_repository")),
	}
}

// SaveSegments persists the meeting row and all segment rows in one
// transaction. The meeting identifier becomes authoritative only when the
// transaction commits; a failure leaves no partial meeting behind.
func (r *Repository) SaveSegments(ctx context.Context, meta Meta, segments []Segment) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("save segments: %w", gmerrors.ErrEmptyTranscript)
	}

	SortByStart(segments)
	meetingID := uuid.New().String()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	date := meta.Date
	if date.IsZero() {
		date = time.Now()
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO meetings (meeting_id, title, meeting_date, owner_id, audio_file)
		 VALUES ($1, $2, $3, $4, $5)`,
		meetingID, meta.Title, date, meta.OwnerID, meta.AudioFile)
	if err != nil {
		return "", fmt.Errorf("insert meeting: %w", err)
	}

	rows := make([][]interface{}, 0, len(segments))
	for _, s := range segments {
		rows = append(rows, []interface{}{
			meetingID, s.Order, s.Speaker, s.StartMs, s.EndMs, s.Text, s.Confidence,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"meeting_segments"},
		[]string{"meeting_id", "segment_order", "speaker_label", "start_ms", "end_ms", "segment", "confidence"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return "", fmt.Errorf("insert segments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("segments persisted",
		logging.F("meeting_id", meetingID),
		logging.F("count", len(segments)))

	return meetingID, nil
}

// GetSegmentsByMeetingID returns all segments of a meeting ordered by
// start offset.
func (r *Repository) GetSegmentsByMeetingID(ctx context.Context, meetingID string) ([]Segment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT segment_order, speaker_label, start_ms, end_ms, segment, confidence
		 FROM meeting_segments
		 WHERE meeting_id = $1
		 ORDER BY start_ms, segment_order`,
		meetingID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var s Segment
		var speaker *string
		var endMs *int64
		var confidence *float64
		if err := rows.Scan(&s.Order, &speaker, &s.StartMs, &endMs, &s.Text, &confidence); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if speaker != nil {
			s.Speaker = *speaker
		}
		if endMs != nil {
			s.EndMs = *endMs
		}
		if confidence != nil {
			s.Confidence = *confidence
		}
		s.MeetingID = meetingID
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, gmerrors.ErrNotFound)
	}
	return segments, nil
}

// GetMeeting returns the meeting aggregate row.
func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	var m Meeting
	var audioFile *string
	err := r.pool.QueryRow(ctx,
		`SELECT meeting_id, title, meeting_date, owner_id, audio_file, created_at
		 FROM meetings WHERE meeting_id = $1`,
		meetingID).Scan(&m.ID, &m.Title, &m.Date, &m.OwnerID, &audioFile, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("meeting %s: %w", meetingID, gmerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("query meeting: %w", err)
	}
	if audioFile != nil {
		m.AudioFile = *audioFile
	}
	return &m, nil
}

// SaveSummary upserts the meeting summary. At most one summary exists per
// meeting; regeneration overwrites.
func (r *Repository) SaveSummary(ctx context.Context, meetingID, summary string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO meeting_summaries (meeting_id, summary)
		 VALUES ($1, $2)
		 ON CONFLICT (meeting_id)
		 DO UPDATE SET summary = EXCLUDED.summary, updated_at = NOW()`,
		meetingID, summary)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// GetSummary returns the stored summary for a meeting.
func (r *Repository) GetSummary(ctx context.Context, meetingID string) (string, error) {
	var summary string
	err := r.pool.QueryRow(ctx,
		`SELECT summary FROM meeting_summaries WHERE meeting_id = $1`,
		meetingID).Scan(&summary)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("summary for meeting %s: %w", meetingID, gmerrors.ErrNotFound)
		}
		return "", fmt.Errorf("query summary: %w", err)
	}
	return summary, nil
}

// SaveMindmap upserts the meeting mindmap. At most one mindmap exists per
// meeting; regeneration overwrites.
func (r *Repository) SaveMindmap(ctx context.Context, meetingID, mindmap string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO meeting_mindmaps (meeting_id, mindmap)
		 VALUES ($1, $2)
		 ON CONFLICT (meeting_id)
		 DO UPDATE SET mindmap = EXCLUDED.mindmap, updated_at = NOW()`,
		meetingID, mindmap)
	if err != nil {
		return fmt.Errorf("save mindmap: %w", err)
	}
	return nil
}
