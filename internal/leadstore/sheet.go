package leadstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikmehra/tutorlead/internal/reliability"
)

// SheetSink forwards rows to a spreadsheet webhook (an Apps Script style
// bridge). The webhook owns the spreadsheet mechanics; this client only posts
// row arrays and retries once on transient failure.
type SheetSink struct {
	url    string
	client *http.Client
}

func NewSheetSink(url string) *SheetSink {
	return &SheetSink{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sheetPayload struct {
	Action string   `json:"action"`
	Sheet  string   `json:"sheet"`
	Row    []string `json:"row"`
}

func (s *SheetSink) AppendTranscript(ctx context.Context, entry TranscriptEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	row := []string{
		entry.Timestamp.Format(time.RFC3339),
		entry.ConversationID,
		entry.Role,
		entry.Message,
		entry.Phone,
		fmt.Sprintf("%d", entry.LatencyMS),
		entry.Page,
		entry.UserAgent,
		entry.Language,
	}
	return s.post(ctx, sheetPayload{Action: "append", Sheet: "transcript", Row: row})
}

func (s *SheetSink) UpsertLead(ctx context.Context, conversationID string, answers map[string]string) error {
	row := LeadRow(time.Now().UTC(), conversationID, answers)
	return s.post(ctx, sheetPayload{Action: "upsert", Sheet: "lead", Row: row})
}

func (s *SheetSink) post(ctx context.Context, payload sheetPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sheet payload: %w", err)
	}

	var lastErr error
	// One bounded retry on transient failure; the caller already treats the
	// whole write as best-effort.
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create sheet request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send sheet request: %w", err)
			continue
		}
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		res.Body.Close()

		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sheet webhook status %d: %s", res.StatusCode, string(snippet))
		if !reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}

func (s *SheetSink) Close() error { return nil }
