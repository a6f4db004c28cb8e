package leadstore

import (
	"context"
	"strings"
)

// NewSink picks the configured sink: sheet webhook when set, then postgres,
// otherwise in-memory for local runs.
func NewSink(ctx context.Context, sheetWebhookURL, databaseURL string) (Sink, error) {
	if strings.TrimSpace(sheetWebhookURL) != "" {
		return NewSheetSink(sheetWebhookURL), nil
	}
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresSink(ctx, databaseURL)
	}
	return NewMemorySink(), nil
}
