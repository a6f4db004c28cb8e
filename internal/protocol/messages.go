package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTurn     MessageType = "client_turn"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClientTurn is one inbound widget turn carrying the full visible history.
type ClientTurn struct {
	Type           MessageType   `json:"type"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []ChatMessage `json:"messages"`
	Language       string        `json:"language,omitempty"`
	Page           string        `json:"page,omitempty"`
	UserAgent      string        `json:"user_agent,omitempty"`
}

// AssistantReply is the single terminal event emitted per client turn.
type AssistantReply struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Reply          string      `json:"reply"`
	Done           bool        `json:"done"`
}

type ErrorEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Code           string      `json:"code"`
	Detail         string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound websocket frame.
func ParseClientMessage(raw []byte) (ClientTurn, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientTurn{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTurn:
		var msg ClientTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return ClientTurn{}, err
		}
		if len(msg.Messages) == 0 {
			return ClientTurn{}, errors.New("client_turn requires messages")
		}
		for _, m := range msg.Messages {
			if m.Role != "user" && m.Role != "assistant" {
				return ClientTurn{}, fmt.Errorf("invalid message role %q", m.Role)
			}
		}
		return msg, nil
	default:
		return ClientTurn{}, ErrUnsupportedType
	}
}
