package leadstore

import (
	"context"
	"sync"
	"time"
)

// MemorySink is a simple in-process sink for local/dev use and tests.
type MemorySink struct {
	mu         sync.RWMutex
	transcript []TranscriptEntry
	lead       []string
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) AppendTranscript(_ context.Context, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.transcript = append(s.transcript, entry)
	return nil
}

func (s *MemorySink) UpsertLead(_ context.Context, conversationID string, answers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = LeadRow(time.Now().UTC(), conversationID, answers)
	return nil
}

// Transcript returns a copy of the logged entries.
func (s *MemorySink) Transcript() []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// CurrentLead returns the last written fixed-row snapshot, or nil.
func (s *MemorySink) CurrentLead() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lead == nil {
		return nil
	}
	out := make([]string, len(s.lead))
	copy(out, s.lead)
	return out
}

func (s *MemorySink) Close() error { return nil }
