package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nikmehra/tutorlead/internal/schema"
)

// Message is one turn of widget chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything the planner may consult for one turn.
type Request struct {
	ConversationID string            `json:"conversation_id"`
	History        []Message         `json:"history"`
	Answers        map[string]string `json:"answers"`
	Language       string            `json:"language"`
	Fields         []schema.Field    `json:"fields"`
}

// Plan is the model's untrusted proposal for the current turn. Every update
// in it must pass validation before it is trusted.
type Plan struct {
	Updates       map[string]string `json:"updates"`
	AssistantText string            `json:"assistant_text"`
	NextField     string            `json:"next_field"`
	Done          bool              `json:"done"`
}

// DefaultAssistantText is the reply used when the planner fails or returns an
// empty message.
const DefaultAssistantText = "Okay."

// Planner proposes field updates and an assistant message for a turn.
type Planner interface {
	Plan(ctx context.Context, req Request) (Plan, error)
}

// Config controls planner construction.
type Config struct {
	Mode    string
	HTTPURL string
	APIKey  string
	Model   string
}

// New builds a planner for the configured mode. Auto prefers the HTTP
// endpoint when one is configured and falls back to the deterministic mock so
// a turn always produces a reply.
func New(cfg Config) (Planner, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackPlanner(NewHTTPPlanner(cfg.HTTPURL, cfg.APIKey, cfg.Model), NewMockPlanner()), nil
		}
		return NewMockPlanner(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, fmt.Errorf("planner HTTP url is required for http mode")
		}
		return NewHTTPPlanner(cfg.HTTPURL, cfg.APIKey, cfg.Model), nil
	case "mock":
		return NewMockPlanner(), nil
	default:
		return nil, fmt.Errorf("unsupported planner mode %q", cfg.Mode)
	}
}

// Normalize forces a plan into a safe shape: non-nil updates, a non-empty
// assistant message, trimmed next-field hint. Malformed planner output must
// never travel further down the pipeline.
func Normalize(p Plan) Plan {
	if p.Updates == nil {
		p.Updates = map[string]string{}
	}
	p.AssistantText = strings.TrimSpace(p.AssistantText)
	if p.AssistantText == "" {
		p.AssistantText = DefaultAssistantText
	}
	p.NextField = strings.TrimSpace(p.NextField)
	return p
}

// DecodePlan extracts a plan from free-form model output. Anything that is
// not a well-shaped JSON object degrades to the safe default plan.
func DecodePlan(text string) Plan {
	var obj map[string]any
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &obj); err != nil {
		return Normalize(Plan{})
	}

	p := Plan{Updates: map[string]string{}}
	if updates, ok := obj["updates"].(map[string]any); ok {
		for k, v := range updates {
			if s := coerceString(v); s != "" {
				p.Updates[strings.TrimSpace(k)] = s
			}
		}
	}
	if s, ok := obj["assistant_text"].(string); ok {
		p.AssistantText = s
	}
	if s, ok := obj["next_field"].(string); ok {
		p.NextField = s
	}
	if b, ok := obj["done"].(bool); ok {
		p.Done = b
	}
	return Normalize(p)
}

// extractJSONObject trims any prose the model wrapped around its JSON.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
