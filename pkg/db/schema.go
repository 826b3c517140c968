package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are the idempotent DDL statements for the Genminute
// schema, applied in order by InitSchema.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meetings (
		meeting_id   UUID PRIMARY KEY,
		title        TEXT NOT NULL,
		meeting_date DATE NOT NULL,
		owner_id     TEXT NOT NULL,
		audio_file   TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS meeting_segments (
		segment_id    BIGSERIAL PRIMARY KEY,
		meeting_id    UUID NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
		segment_order INT NOT NULL,
		speaker_label TEXT,
		start_ms      BIGINT NOT NULL,
		end_ms        BIGINT,
		segment       TEXT NOT NULL,
		confidence    DOUBLE PRECISION,
		UNIQUE (meeting_id, segment_order)
	)`,

	`CREATE TABLE IF NOT EXISTS meeting_summaries (
		meeting_id UUID PRIMARY KEY REFERENCES meetings(meeting_id) ON DELETE CASCADE,
		summary    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS meeting_mindmaps (
		meeting_id UUID PRIMARY KEY REFERENCES meetings(meeting_id) ON DELETE CASCADE,
		mindmap    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS meeting_chunks (
		chunk_id    BIGSERIAL PRIMARY KEY,
		meeting_id  UUID NOT NULL REFERENCES meetings(meeting_id) ON DELETE CASCADE,
		chunk_order INT NOT NULL,
		chunk_text  TEXT NOT NULL,
		embedding   DOUBLE PRECISION[],
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (meeting_id, chunk_order)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_segments_meeting ON meeting_segments(meeting_id)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_start ON meeting_segments(meeting_id, start_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_meeting ON meeting_chunks(meeting_id)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_owner ON meetings(owner_id)`,
}

// InitSchema creates all Genminute tables and indexes if they do not
// exist. Safe to run repeatedly; existing data is preserved.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}
