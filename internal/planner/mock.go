package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikmehra/tutorlead/internal/schema"
)

// MockPlanner produces deterministic plans when no model endpoint is
// available. It proposes the user's last message as the value for the first
// unfilled field and asks about the next one, which is enough to exercise the
// full validate/merge pipeline locally.
type MockPlanner struct{}

func NewMockPlanner() *MockPlanner { return &MockPlanner{} }

func (p *MockPlanner) Plan(ctx context.Context, req Request) (Plan, error) {
	select {
	case <-ctx.Done():
		return Plan{}, ctx.Err()
	default:
	}

	var pending []schema.Field
	for _, f := range req.Fields {
		if _, ok := req.Answers[f.Key]; !ok {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return Normalize(Plan{
			AssistantText: "Thanks, we have everything we need. Our team will reach out shortly.",
			Done:          true,
		}), nil
	}

	plan := Plan{}
	ask := pending[0]
	if input := lastUserMessage(req.History); input != "" && len(req.History) > 1 {
		plan.Updates = map[string]string{pending[0].Key: input}
		if len(pending) > 1 {
			ask = pending[1]
		} else {
			return Normalize(Plan{
				Updates:       plan.Updates,
				AssistantText: "Thanks, that's everything. Our team will reach out shortly.",
				Done:          true,
			}), nil
		}
	}
	plan.NextField = ask.Key
	plan.AssistantText = fmt.Sprintf("Could you share this: %s?", ask.Description)
	return Normalize(plan), nil
}

func lastUserMessage(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return strings.TrimSpace(history[i].Content)
		}
	}
	return ""
}
