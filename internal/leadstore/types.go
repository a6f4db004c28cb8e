package leadstore

import (
	"context"
	"time"
)

// TranscriptEntry is one append-only chat log row.
type TranscriptEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Message        string    `json:"message"`
	Phone          string    `json:"phone"`
	LatencyMS      int64     `json:"latency_ms"`
	Page           string    `json:"page"`
	UserAgent      string    `json:"user_agent"`
	Language       string    `json:"language"`
}

// leadColumns is the fixed, ordered column set of the current-lead row.
var leadColumns = []string{
	"parent_name",
	"phone",
	"student_name",
	"grade",
	"subjects",
	"mode",
	"area",
	"schedule",
	"budget",
	"demo_consent",
}

// LeadRow renders the full answer set as the fixed-row shape: timestamp,
// conversation id, then the lead columns in order. Missing answers stay as
// empty cells so the column count never varies.
func LeadRow(ts time.Time, conversationID string, answers map[string]string) []string {
	row := make([]string, 0, len(leadColumns)+2)
	row = append(row, ts.Format(time.RFC3339), conversationID)
	for _, col := range leadColumns {
		row = append(row, answers[col])
	}
	return row
}

// Sink persists chat transcripts and the single mutable current-lead row.
// Both operations are best-effort from the caller's point of view: the turn
// pipeline reports failures to observability and moves on.
type Sink interface {
	AppendTranscript(ctx context.Context, entry TranscriptEntry) error
	UpsertLead(ctx context.Context, conversationID string, answers map[string]string) error
	Close() error
}
