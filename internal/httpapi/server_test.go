package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/nikmehra/tutorlead/internal/chat"
	"github.com/nikmehra/tutorlead/internal/config"
	"github.com/nikmehra/tutorlead/internal/observability"
	"github.com/nikmehra/tutorlead/internal/protocol"
)

type stubOrchestrator struct {
	res chat.TurnResult
	err error
}

func (s stubOrchestrator) HandleTurn(context.Context, chat.TurnRequest) (chat.TurnResult, error) {
	return s.res, s.err
}

var testMetricsSeq atomic.Int64

func testMetricsNamespace(prefix string) string {
	return prefix + strconv.FormatInt(testMetricsSeq.Add(1), 10)
}

func newTestServer(t *testing.T, orchestrator Orchestrator) *Server {
	t.Helper()
	metrics := observability.NewMetrics(testMetricsNamespace("test_httpapi_"))
	return New(config.Config{PlannerMode: "mock"}, orchestrator, metrics)
}

func TestChatTurn(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{res: chat.TurnResult{
		ConversationID: "conv-1",
		Reply:          "What's the student's grade?",
		Answers:        map[string]string{"parent_name": "Asha"},
	}})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{
		"conversation_id": "conv-1",
		"messages":        []map[string]string{{"role": "user", "content": "I'm Asha"}},
		"language":        "en",
	})
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload turnResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if payload.ConversationID != "conv-1" {
		t.Fatalf("conversation_id = %q, want %q", payload.ConversationID, "conv-1")
	}
	if payload.Reply != "What's the student's grade?" {
		t.Fatalf("reply = %q", payload.Reply)
	}
	if payload.Answers["parent_name"] != "Asha" {
		t.Fatalf("answers = %v", payload.Answers)
	}
}

func TestChatTurnRejectsEmptyMessages(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"messages": []map[string]string{}})
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatTurnPipelineError(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{err: errors.New("boom")})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("chat status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if payload.Code != "turn_failed" {
		t.Fatalf("code = %q, want %q", payload.Code, "turn_failed")
	}
	if strings.Contains(payload.Error, "boom") {
		t.Fatalf("internal error detail leaked: %q", payload.Error)
	}
}

func TestChatWS(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{res: chat.TurnResult{
		ConversationID: "conv-ws",
		Reply:          "And which area are you in?",
	}})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	turn := protocol.ClientTurn{
		Type:           protocol.TypeClientTurn,
		ConversationID: "conv-ws",
		Messages:       []protocol.ChatMessage{{Role: "user", Content: "HSR Layout"}},
	}
	if err := conn.WriteJSON(turn); err != nil {
		t.Fatalf("ws write error = %v", err)
	}

	var reply protocol.AssistantReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ws read error = %v", err)
	}
	if reply.Type != protocol.TypeAssistantReply {
		t.Fatalf("reply type = %q, want %q", reply.Type, protocol.TypeAssistantReply)
	}
	if reply.Reply != "And which area are you in?" {
		t.Fatalf("reply = %q", reply.Reply)
	}
}

func TestChatWSInvalidFrame(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("ws write error = %v", err)
	}

	var event protocol.ErrorEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ws read error = %v", err)
	}
	if event.Type != protocol.TypeErrorEvent || event.Code != "invalid_client_message" {
		t.Fatalf("unexpected error event: %+v", event)
	}
}

func TestUIRoutes(t *testing.T) {
	srv := newTestServer(t, stubOrchestrator{})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rootRes, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(uiRes.Body); err != nil {
		t.Fatalf("reading /ui/ body failed: %v", err)
	}
	if !strings.Contains(body.String(), "id=\"chat-log\"") {
		t.Fatalf("GET /ui/ body missing expected content")
	}
}

func TestReadyReportsModes(t *testing.T) {
	metrics := observability.NewMetrics(testMetricsNamespace("test_httpapi_ready_"))
	srv := New(config.Config{PlannerMode: "mock", SheetWebhookURL: "https://example.com/hook"}, stubOrchestrator{}, metrics)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["planner_mode"] != "mock" {
		t.Fatalf("planner_mode = %v, want %v", payload["planner_mode"], "mock")
	}
	if payload["store_mode"] != "sheet" {
		t.Fatalf("store_mode = %v, want %v", payload["store_mode"], "sheet")
	}
}
