package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/nikmehra/tutorlead/internal/chat"
	"github.com/nikmehra/tutorlead/internal/config"
	"github.com/nikmehra/tutorlead/internal/observability"
	"github.com/nikmehra/tutorlead/internal/planner"
	"github.com/nikmehra/tutorlead/internal/protocol"
)

type Orchestrator interface {
	HandleTurn(ctx context.Context, req chat.TurnRequest) (chat.TurnResult, error)
}

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
	static       http.Handler
}

func New(cfg config.Config, orchestrator Orchestrator, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		metrics:      metrics,
		static:       newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the same origin.
				// The widget is meant to be served from our own /ui/ pages; other sites
				// must not be able to drive a visitor's conversation.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChatTurn)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"planner_mode": s.cfg.PlannerMode,
		"store_mode":   s.storeMode(),
	})
}

type turnRequest struct {
	ConversationID string                 `json:"conversation_id,omitempty"`
	Messages       []protocol.ChatMessage `json:"messages"`
	Language       string                 `json:"language,omitempty"`
	Page           string                 `json:"page,omitempty"`
}

type turnResponse struct {
	ConversationID string            `json:"conversation_id"`
	Reply          string            `json:"reply"`
	Answers        map[string]string `json:"answers"`
	Done           bool              `json:"done"`
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "messages must not be empty")
		return
	}
	for _, m := range req.Messages {
		if m.Role != "user" && m.Role != "assistant" {
			respondError(w, http.StatusBadRequest, "invalid_request", "message roles must be user or assistant")
			return
		}
	}

	res, err := s.orchestrator.HandleTurn(r.Context(), chat.TurnRequest{
		ConversationID: req.ConversationID,
		Messages:       toPlannerMessages(req.Messages),
		Language:       req.Language,
		Page:           req.Page,
		UserAgent:      r.UserAgent(),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "turn_failed", "could not process turn")
		return
	}

	respondJSON(w, http.StatusOK, turnResponse{
		ConversationID: res.ConversationID,
		Reply:          res.Reply,
		Answers:        res.Answers,
		Done:           res.Done,
	})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		turn, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		res, err := s.orchestrator.HandleTurn(r.Context(), chat.TurnRequest{
			ConversationID: turn.ConversationID,
			Messages:       toPlannerMessages(turn.Messages),
			Language:       turn.Language,
			Page:           turn.Page,
			UserAgent:      turn.UserAgent,
		})
		if err != nil {
			s.writeWS(conn, protocol.ErrorEvent{
				Type:           protocol.TypeErrorEvent,
				ConversationID: turn.ConversationID,
				Code:           "turn_failed",
				Detail:         "could not process turn",
			})
			continue
		}

		s.writeWS(conn, protocol.AssistantReply{
			Type:           protocol.TypeAssistantReply,
			ConversationID: res.ConversationID,
			Reply:          res.Reply,
			Done:           res.Done,
		})
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(msg)
}

func (s *Server) storeMode() string {
	switch {
	case s.cfg.SheetWebhookURL != "":
		return "sheet"
	case s.cfg.DatabaseURL != "":
		return "postgres"
	default:
		return "in-memory"
	}
}

func toPlannerMessages(in []protocol.ChatMessage) []planner.Message {
	out := make([]planner.Message, 0, len(in))
	for _, m := range in {
		out = append(out, planner.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
