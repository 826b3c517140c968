// Package index builds the searchable vector representation of a meeting
// transcript: overlapping text chunks embedded and stored alongside the
// relational rows.
package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Welshcorki/Genminute/pkg/logging"
	"github.com/Welshcorki/Genminute/pkg/model"
	"github.com/Welshcorki/Genminute/pkg/transcript"
)

// Indexer makes a persisted meeting transcript searchable. Indexing is a
// best-effort stage; failures degrade search, not the persisted record.
type Indexer interface {
	Index(ctx context.Context, meetingID string, segments []transcript.Segment) error
}

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits text into overlapping windows. Overlap keeps sentences
// that straddle a boundary retrievable from both sides.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkIndexer embeds transcript chunks and stores them in PostgreSQL.
type ChunkIndexer struct {
	pool     *pgxpool.Pool
	provider model.Provider
	logger   logging.Logger

	chunkSize    int
	chunkOverlap int
}

// NewChunkIndexer creates an indexer writing to the given pool.
func NewChunkIndexer(pool *pgxpool.Pool, provider model.Provider, logger logging.Logger) *ChunkIndexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ChunkIndexer{
		pool:         pool,
		provider:     provider,
		logger:       logger.With(logging.F("component", "chunk_indexer")),
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
}

// Index chunks the transcript, embeds each chunk, and replaces any
// previous chunks for the meeting. Re-indexing is idempotent.
func (ix *ChunkIndexer) Index(ctx context.Context, meetingID string, segments []transcript.Segment) error {
	text := transcript.FullText(segments)
	chunks := Chunk(text, ix.chunkSize, ix.chunkOverlap)
	if len(chunks) == 0 {
		ix.logger.Warn("nothing to index", logging.F("meeting_id", meetingID))
		return nil
	}

	vectors, err := ix.provider.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM meeting_chunks WHERE meeting_id = $1`, meetingID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}

	rows := make([][]interface{}, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(rows, []interface{}{meetingID, i, chunk, vectors[i]})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"meeting_chunks"},
		[]string{"meeting_id", "chunk_order", "chunk_text", "embedding"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	ix.logger.Info("transcript indexed",
		logging.F("meeting_id", meetingID),
		logging.F("chunks", len(chunks)))
	return nil
}
