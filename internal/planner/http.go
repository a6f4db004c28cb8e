package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPPlanner asks an OpenAI-compatible chat-completions endpoint to plan the
// next turn. The model is instructed to answer with a single JSON object; the
// response is decoded defensively because the model is untrusted.
type HTTPPlanner struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewHTTPPlanner(url, apiKey, model string) *HTTPPlanner {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPPlanner{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *HTTPPlanner) Plan(ctx context.Context, req Request) (Plan, error) {
	messages := make([]chatMessage, 0, len(req.History)+1)
	messages = append(messages, chatMessage{Role: "system", Content: buildSystemPrompt(req)})
	for _, m := range req.History {
		role := m.Role
		if role != "user" && role != "assistant" {
			continue
		}
		messages = append(messages, chatMessage{Role: role, Content: m.Content})
	}

	payload, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: 0.2,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return Plan{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(httpReq)
	if err != nil {
		return Plan{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Plan{}, fmt.Errorf("planner http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Plan{}, fmt.Errorf("read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Plan{}, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Plan{}, fmt.Errorf("planner response has no choices")
	}
	return DecodePlan(cr.Choices[0].Message.Content), nil
}

func buildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a friendly assistant for a tutoring service. ")
	b.WriteString("Collect the lead details below, one question at a time, in the user's language (" + languageOrDefault(req.Language) + "). ")
	b.WriteString("Reply ONLY with a JSON object of the shape ")
	b.WriteString(`{"updates": {"<field>": "<value extracted from the user's last message>"}, "assistant_text": "<your next message>", "next_field": "<field to ask next>", "done": <true when all fields are filled>}.`)
	b.WriteString("\n\nFields, in ask order:\n")
	for _, f := range req.Fields {
		b.WriteString("- ")
		b.WriteString(f.Key)
		b.WriteString(": ")
		b.WriteString(f.Description)
		if v, ok := req.Answers[f.Key]; ok {
			b.WriteString(" (already answered: ")
			b.WriteString(v)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func languageOrDefault(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}
	return lang
}
