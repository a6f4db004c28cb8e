package leadstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists the transcript log and the current-lead row in
// PostgreSQL. The lead lives in a single-row table overwritten on every turn,
// mirroring the fixed spreadsheet row it stands in for.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresSink{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lead_transcript (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			message TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			latency_ms BIGINT NOT NULL DEFAULT 0,
			page TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lead_transcript_conv_created ON lead_transcript (conversation_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS lead_current (
			slot SMALLINT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			parent_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			student_name TEXT NOT NULL DEFAULT '',
			grade TEXT NOT NULL DEFAULT '',
			subjects TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			area TEXT NOT NULL DEFAULT '',
			schedule TEXT NOT NULL DEFAULT '',
			budget TEXT NOT NULL DEFAULT '',
			demo_consent TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresSink) AppendTranscript(ctx context.Context, entry TranscriptEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_transcript (id, conversation_id, role, message, phone, latency_ms, page, user_agent, language, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(),
		entry.ConversationID,
		entry.Role,
		entry.Message,
		entry.Phone,
		entry.LatencyMS,
		entry.Page,
		entry.UserAgent,
		entry.Language,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (s *PostgresSink) UpsertLead(ctx context.Context, conversationID string, answers map[string]string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_current (slot, conversation_id, parent_name, phone, student_name, grade, subjects, mode, area, schedule, budget, demo_consent, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		 ON CONFLICT (slot) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			parent_name = EXCLUDED.parent_name,
			phone = EXCLUDED.phone,
			student_name = EXCLUDED.student_name,
			grade = EXCLUDED.grade,
			subjects = EXCLUDED.subjects,
			mode = EXCLUDED.mode,
			area = EXCLUDED.area,
			schedule = EXCLUDED.schedule,
			budget = EXCLUDED.budget,
			demo_consent = EXCLUDED.demo_consent,
			updated_at = now()`,
		conversationID,
		answers["parent_name"],
		answers["phone"],
		answers["student_name"],
		answers["grade"],
		answers["subjects"],
		answers["mode"],
		answers["area"],
		answers["schedule"],
		answers["budget"],
		answers["demo_consent"],
	)
	if err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
