package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/nikmehra/tutorlead/internal/leadstore"
	"github.com/nikmehra/tutorlead/internal/observability"
	"github.com/nikmehra/tutorlead/internal/planner"
	"github.com/nikmehra/tutorlead/internal/policy"
	"github.com/nikmehra/tutorlead/internal/schema"
	"github.com/nikmehra/tutorlead/internal/session"
	"github.com/nikmehra/tutorlead/internal/validate"
)

// TurnRequest is one inbound widget turn, transport-agnostic.
type TurnRequest struct {
	ConversationID string
	Messages       []planner.Message
	Language       string
	Page           string
	UserAgent      string
}

// TurnResult is what both delivery paths (sync JSON and websocket) send back.
type TurnResult struct {
	ConversationID string
	Reply          string
	Answers        map[string]string
	Done           bool
}

const (
	defaultPlannerTimeout = 20 * time.Second
	defaultPersistTimeout = 10 * time.Second
	defaultLanguage       = "en"
)

var supportedLanguages = map[string]bool{
	"en": true,
	"hi": true,
	"te": true,
}

// Orchestrator runs the turn pipeline: plan, validate, merge, compose the
// reply, persist. The planner is untrusted; every proposed update passes
// through validation before touching session state.
type Orchestrator struct {
	sessions       *session.Store
	planner        planner.Planner
	sink           leadstore.Sink
	metrics        *observability.Metrics
	fields         []schema.Field
	plannerTimeout time.Duration
	persistTimeout time.Duration
}

func NewOrchestrator(
	sessions *session.Store,
	pl planner.Planner,
	sink leadstore.Sink,
	metrics *observability.Metrics,
	fields []schema.Field,
	plannerTimeout time.Duration,
	persistTimeout time.Duration,
) *Orchestrator {
	if plannerTimeout <= 0 {
		plannerTimeout = defaultPlannerTimeout
	}
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Orchestrator{
		sessions:       sessions,
		planner:        pl,
		sink:           sink,
		metrics:        metrics,
		fields:         fields,
		plannerTimeout: plannerTimeout,
		persistTimeout: persistTimeout,
	}
}

// HandleTurn processes one chat turn end to end and returns the reply plus an
// answers snapshot. Planner failures degrade to a default plan and
// persistence failures are swallowed after being counted; the only error this
// returns is caller cancellation.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	turnStart := time.Now()
	lang := normalizeLanguage(req.Language)

	sess := o.sessions.Ensure(req.ConversationID)
	conversationID := sess.ConversationID

	// Turns for the same conversation are serialized across the whole
	// pipeline so two in-flight turns cannot both merge against stale
	// answers.
	release := o.sessions.Acquire(conversationID)
	defer release()

	answers := o.sessions.Answers(conversationID)
	userMessage := lastUserMessage(req.Messages)

	plan := o.runPlanner(ctx, planner.Request{
		ConversationID: conversationID,
		History:        req.Messages,
		Answers:        answers,
		Language:       lang,
		Fields:         o.fields,
	})
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	validateStart := time.Now()
	accepted := make(map[string]string, len(plan.Updates))
	correctivePrompt := ""
	for field, raw := range plan.Updates {
		res := validate.Check(field, raw, lang)
		if res.OK {
			accepted[field] = res.Value
			continue
		}
		// Last rejection wins; we only ever show one corrective prompt.
		correctivePrompt = res.Prompt
		o.metrics.ValidationRejections.WithLabelValues(field).Inc()
	}

	answers = o.sessions.Merge(conversationID, accepted)
	o.metrics.ObserveTurnStage("validate_merge", time.Since(validateStart))

	reply := plan.AssistantText
	outcome := "ok"
	if correctivePrompt != "" {
		// The validation guard always overrides the model's own phrasing.
		reply = correctivePrompt
		outcome = "corrective"
		o.metrics.ObserveIndicator("corrective_prompt")
	}

	latencyMS := time.Since(turnStart).Milliseconds()
	go o.persistTurn(conversationID, userMessage, reply, answers, latencyMS, lang, req.Page, req.UserAgent)

	o.metrics.Turns.WithLabelValues(outcome).Inc()
	o.metrics.ActiveConversations.Set(float64(o.sessions.Count()))
	o.metrics.ObserveTurnStage("turn_total", time.Since(turnStart))

	return TurnResult{
		ConversationID: conversationID,
		Reply:          reply,
		Answers:        answers,
		Done:           plan.Done,
	}, nil
}

// runPlanner invokes the planner with a bounded deadline and defensively
// normalizes whatever comes back. Any failure degrades to the default plan so
// the turn still produces a reply.
func (o *Orchestrator) runPlanner(ctx context.Context, req planner.Request) planner.Plan {
	planCtx, cancel := context.WithTimeout(ctx, o.plannerTimeout)
	defer cancel()

	start := time.Now()
	plan, err := o.planner.Plan(planCtx, req)
	o.metrics.ObservePlannerLatency(time.Since(start))
	o.metrics.ObserveTurnStage("plan", time.Since(start))

	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.metrics.PlannerFailures.WithLabelValues(reason).Inc()
		o.metrics.ObserveIndicator("planner_fallback")
		log.Printf("planner failed for %s: %s", req.ConversationID, policy.RedactForLog(err.Error()))
		return planner.Normalize(planner.Plan{})
	}
	return planner.Normalize(plan)
}

// persistTurn logs the exchanged messages and overwrites the current-lead
// row. Both writes are best-effort: failures are counted and logged, never
// surfaced to the turn's caller.
func (o *Orchestrator) persistTurn(conversationID, userMessage, reply string, answers map[string]string, latencyMS int64, lang, page, userAgent string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.persistTimeout)
	defer cancel()

	phone := answers["phone"]
	now := time.Now().UTC()

	if userMessage != "" {
		err := o.sink.AppendTranscript(ctx, leadstore.TranscriptEntry{
			Timestamp:      now,
			ConversationID: conversationID,
			Role:           "user",
			Message:        userMessage,
			Phone:          phone,
			Page:           page,
			UserAgent:      userAgent,
			Language:       lang,
		})
		if err != nil {
			o.metrics.PersistenceErrors.WithLabelValues("append_user").Inc()
			log.Printf("transcript append failed for %s: %s", conversationID, policy.RedactForLog(err.Error()))
		}
	}

	err := o.sink.AppendTranscript(ctx, leadstore.TranscriptEntry{
		Timestamp:      now,
		ConversationID: conversationID,
		Role:           "assistant",
		Message:        reply,
		Phone:          phone,
		LatencyMS:      latencyMS,
		Page:           page,
		UserAgent:      userAgent,
		Language:       lang,
	})
	if err != nil {
		o.metrics.PersistenceErrors.WithLabelValues("append_assistant").Inc()
		log.Printf("transcript append failed for %s: %s", conversationID, policy.RedactForLog(err.Error()))
	}

	if err := o.sink.UpsertLead(ctx, conversationID, answers); err != nil {
		o.metrics.PersistenceErrors.WithLabelValues("upsert_lead").Inc()
		log.Printf("lead upsert failed for %s: %s", conversationID, policy.RedactForLog(err.Error()))
	}
}

func lastUserMessage(messages []planner.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if !supportedLanguages[lang] {
		return defaultLanguage
	}
	return lang
}
