package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nikmehra/tutorlead/internal/leadstore"
	"github.com/nikmehra/tutorlead/internal/observability"
	"github.com/nikmehra/tutorlead/internal/planner"
	"github.com/nikmehra/tutorlead/internal/schema"
	"github.com/nikmehra/tutorlead/internal/session"
	"github.com/nikmehra/tutorlead/internal/validate"
)

type stubPlanner struct {
	plan planner.Plan
	err  error
}

func (s stubPlanner) Plan(context.Context, planner.Request) (planner.Plan, error) {
	return s.plan, s.err
}

func newTestOrchestrator(t *testing.T, pl planner.Planner) (*Orchestrator, *session.Store, *leadstore.MemorySink) {
	t.Helper()
	sessions := session.NewStore()
	sink := leadstore.NewMemorySink()
	metrics := observability.NewMetrics(fmt.Sprintf("test_chat_%d", time.Now().UnixNano()))
	o := NewOrchestrator(sessions, pl, sink, metrics, schema.Default(), time.Second, time.Second)
	return o, sessions, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestHandleTurnAcceptsValidPhone(t *testing.T) {
	pl := stubPlanner{plan: planner.Plan{
		Updates:       map[string]string{"phone": "+91 98765 43210"},
		AssistantText: "Got it, what's the student's name?",
		NextField:     "student_name",
	}}
	o, sessions, sink := newTestOrchestrator(t, pl)

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "my number is +91 98765 43210"}},
		Language:       "en",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if res.Reply != "Got it, what's the student's name?" {
		t.Fatalf("Reply = %q, want planner text verbatim", res.Reply)
	}
	if res.Answers["phone"] != "9876543210" {
		t.Fatalf("Answers = %v, want normalized phone", res.Answers)
	}
	if sessions.Answers("conv-1")["phone"] != "9876543210" {
		t.Fatalf("session answers = %v", sessions.Answers("conv-1"))
	}

	waitFor(t, func() bool { return len(sink.Transcript()) == 2 })
	entries := sink.Transcript()
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Fatalf("transcript roles = %q, %q", entries[0].Role, entries[1].Role)
	}
	if entries[1].Phone != "9876543210" {
		t.Fatalf("assistant entry phone = %q", entries[1].Phone)
	}

	waitFor(t, func() bool { return sink.CurrentLead() != nil })
	lead := sink.CurrentLead()
	if lead[1] != "conv-1" || lead[3] != "9876543210" {
		t.Fatalf("lead row = %v", lead)
	}
}

func TestHandleTurnRejectionOverridesPlannerText(t *testing.T) {
	pl := stubPlanner{plan: planner.Plan{
		Updates:       map[string]string{"area": "NEET"},
		AssistantText: "Great, noted your area!",
	}}
	o, sessions, _ := newTestOrchestrator(t, pl)

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "NEET"}},
		Language:       "en",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	wantPrompt := validate.Check("area", "NEET", "en").Prompt
	if res.Reply != wantPrompt {
		t.Fatalf("Reply = %q, want corrective prompt %q", res.Reply, wantPrompt)
	}
	if _, ok := sessions.Answers("conv-1")["area"]; ok {
		t.Fatalf("rejected value leaked into session: %v", sessions.Answers("conv-1"))
	}
}

func TestHandleTurnMixedUpdatesMergesAcceptedOnly(t *testing.T) {
	pl := stubPlanner{plan: planner.Plan{
		Updates: map[string]string{
			"grade": "grade 7",
			"phone": "12345",
		},
		AssistantText: "Noted!",
	}}
	o, sessions, _ := newTestOrchestrator(t, pl)

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "class 7, 12345"}},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	answers := sessions.Answers("conv-1")
	if answers["grade"] != "7" {
		t.Fatalf("grade = %q, want 7", answers["grade"])
	}
	if _, ok := answers["phone"]; ok {
		t.Fatalf("invalid phone merged: %v", answers)
	}
	if res.Reply != validate.Check("phone", "12345", "en").Prompt {
		t.Fatalf("Reply = %q, want phone corrective prompt", res.Reply)
	}
}

func TestHandleTurnPlannerFailureStillReplies(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, stubPlanner{err: errors.New("upstream down")})

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if res.Reply != planner.DefaultAssistantText {
		t.Fatalf("Reply = %q, want %q", res.Reply, planner.DefaultAssistantText)
	}
	if res.Done {
		t.Fatalf("Done = true, want false after planner failure")
	}
}

func TestHandleTurnGeneratesConversationID(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, stubPlanner{plan: planner.Plan{AssistantText: "Hi!"}})

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		Messages: []planner.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if res.ConversationID == "" {
		t.Fatalf("ConversationID should be generated when absent")
	}
}

func TestHandleTurnEmptyPlannerTextFallsBack(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, stubPlanner{plan: planner.Plan{AssistantText: "   "}})

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if res.Reply != planner.DefaultAssistantText {
		t.Fatalf("Reply = %q, want %q", res.Reply, planner.DefaultAssistantText)
	}
}

func TestHandleTurnCancelledContext(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, stubPlanner{plan: planner.Plan{AssistantText: "Hi!"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.HandleTurn(ctx, TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "hi"}},
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("HandleTurn() error = %v, want context.Canceled", err)
	}
}

func TestHandleTurnLocalizedCorrectivePrompt(t *testing.T) {
	pl := stubPlanner{plan: planner.Plan{
		Updates:       map[string]string{"phone": "nope"},
		AssistantText: "ok",
	}}
	o, _, _ := newTestOrchestrator(t, pl)

	res, err := o.HandleTurn(context.Background(), TurnRequest{
		ConversationID: "conv-1",
		Messages:       []planner.Message{{Role: "user", Content: "nope"}},
		Language:       "hi-IN",
	})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if res.Reply != validate.Check("phone", "nope", "hi").Prompt {
		t.Fatalf("Reply = %q, want Hindi corrective prompt", res.Reply)
	}
}
