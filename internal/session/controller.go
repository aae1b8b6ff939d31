// Package session implements the conversational coaching session: the thread
// tracker, the append-only transcript and the Controller that turns user input
// into backend calls and transcript entries, including the yes/no gate for
// plan proposals.
//
// The Controller never returns errors to its caller. Every failure becomes a
// transcript entry or a silent no-op, because the transcript is the only
// channel the presentation layer has for showing them.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-session/internal/coach"
	"github.com/tbourn/go-coach-session/internal/domain"
)

// Fixed assistant texts.
const (
	PlanPrompt            = "Would you like me to apply this plan? Reply with 'yes' or 'no'."
	ClarifyPrompt         = "Please reply with 'yes' or 'no' so I know whether to apply the plan."
	DefaultReply          = "How can I help you further?"
	DefaultFeedbackReply  = "Plan updated."
	ChatUnavailableNotice = "I couldn't reach the coach service. Please verify that the backend is running and send your message again."
	FeedbackFailedNotice  = "Sorry, I couldn't submit your decision. Please try the conversation again."
)

// Backend is the coaching endpoint consumed by the Controller.
// *coach.Client satisfies it.
type Backend interface {
	Chat(ctx context.Context, req coach.ChatRequest) (*coach.ChatResponse, error)
	Feedback(ctx context.Context, req coach.FeedbackRequest) (*coach.FeedbackResponse, error)
}

// State is a point-in-time snapshot of a session.
type State struct {
	Thread           domain.ThreadRef
	AwaitingApproval bool
	// Seq is the sequence number of the latest Submit or Reset.
	Seq uint64
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger; the global zerolog logger is used otherwise.
func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithTurnHook registers fn to run when a non-ignored turn completes, before
// its Done channel closes. It runs outside the Controller's lock.
func WithTurnHook(fn func(*Turn)) Option { return func(c *Controller) { c.onTurn = fn } }

// Controller drives one coaching session for one persona. It is safe for
// concurrent use: tracker, sequence and transcript writes are serialized by an
// internal mutex, and backend calls run on their own goroutines.
type Controller struct {
	backend Backend
	persona domain.Persona
	log     zerolog.Logger
	now     func() time.Time
	onTurn  func(*Turn)

	mu         sync.Mutex
	tracker    Tracker
	seq        uint64
	closed     bool
	transcript *Transcript
}

// NewController creates a session in the Idle state with no thread and a
// transcript seeded with the persona's greeting.
func NewController(backend Backend, persona domain.Persona, opts ...Option) *Controller {
	c := &Controller{
		backend:    backend,
		persona:    persona,
		log:        log.Logger,
		now:        time.Now,
		transcript: newTranscript(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("persona_id", persona.ID).Logger()
	c.transcript.reset(c.assistant(persona.GreetingText()))
	return c
}

// Persona returns the coaching persona this session addresses.
func (c *Controller) Persona() domain.Persona { return c.persona }

// Transcript returns the session transcript for reading and subscribing.
func (c *Controller) Transcript() *Transcript { return c.transcript }

// State returns a snapshot of the thread and approval state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Thread:           c.tracker.Thread(),
		AwaitingApproval: c.tracker.AwaitingApproval(),
		Seq:              c.seq,
	}
}

// Submit handles one piece of user input.
//
// Whitespace-only input is ignored: no transcript entry, no backend call. Any
// other input is appended as a user message before Submit returns. While a
// plan approval is pending the input is read as a yes/no decision; otherwise
// it starts a chat turn. Backend work runs in the background, detached from
// ctx cancellation (ctx values such as trace spans are kept); the returned Turn
// reports completion.
func (c *Controller) Submit(ctx context.Context, text string, userID int64) *Turn {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ignoredTurn()
	}

	ctx, span := otel.Tracer("session/Controller").Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("persona.id", c.persona.ID),
			attribute.Int64("user.id", userID),
		),
	)
	defer span.End()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn().Msg("submit on closed session ignored")
		return ignoredTurn()
	}
	c.seq++
	turn := newTurn(c.seq)
	c.appendLocked(turn, domain.NewMessage(domain.OriginUser, text, c.now()))
	span.SetAttributes(attribute.Int64("turn.seq", int64(turn.seq)))

	if c.tracker.AwaitingApproval() {
		decision, ok := ParseDecision(trimmed)
		if !ok {
			turn.kind = TurnClarify
			c.appendLocked(turn, c.assistant(ClarifyPrompt))
			c.mu.Unlock()
			turnsTotal.WithLabelValues(string(TurnClarify), resultApplied).Inc()
			c.finish(turn)
			return turn
		}

		turn.kind = TurnDecision
		threadID, hasThread := c.tracker.Thread().ID()
		// The session leaves the approval state before the network call so a
		// concurrent Submit cannot be read as a second decision.
		c.tracker.ResolveApproval()
		if !hasThread {
			c.mu.Unlock()
			c.log.Warn().Uint64("seq", turn.seq).Msg("approval pending without thread; cleared")
			turnsTotal.WithLabelValues(string(TurnDecision), resultDropped).Inc()
			c.finish(turn)
			return turn
		}
		c.mu.Unlock()
		span.SetAttributes(attribute.String("plan.decision", decision.String()))
		c.dispatch(ctx, turn, func(ctx context.Context) {
			c.sendFeedback(ctx, turn, threadID, decision)
		})
		return turn
	}

	turn.kind = TurnChat
	thread := c.tracker.Thread()
	c.mu.Unlock()
	c.dispatch(ctx, turn, func(ctx context.Context) {
		c.sendChat(ctx, turn, trimmed, thread, userID)
	})
	return turn
}

// Reset returns the session to Idle with no thread and a fresh greeting.
// Responses of turns started before the reset are discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.tracker.Reset()
	c.transcript.reset(c.assistant(c.persona.GreetingText()))
	c.log.Debug().Uint64("seq", c.seq).Msg("session reset")
}

// Close discards in-flight turns and ends all transcript subscriptions.
// Later Submit calls are ignored. It does not wait for background calls.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.seq++
	c.transcript.close()
}

func (c *Controller) dispatch(ctx context.Context, turn *Turn, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		fn(ctx)
		c.finish(turn)
	}()
}

func (c *Controller) sendChat(ctx context.Context, turn *Turn, text string, thread domain.ThreadRef, userID int64) {
	ctx, span := otel.Tracer("session/Controller").Start(ctx, "chatTurn")
	defer span.End()

	resp, err := c.backend.Chat(ctx, coach.ChatRequest{
		Message:  text,
		UserID:   userID,
		ThreadID: thread.Ptr(),
		AgentID:  coach.AgentID(c.persona.ID),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(turn) {
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Uint64("seq", turn.seq).Msg("chat call failed")
		span.RecordError(err)
		c.appendLocked(turn, c.assistant(ChatUnavailableNotice))
		turnsTotal.WithLabelValues(string(TurnChat), resultFailed).Inc()
		return
	}

	if resp.ThreadID != "" {
		c.tracker.SetThread(resp.ThreadID)
	}
	c.appendLocked(turn, c.assistant(orDefault(resp.Reply, DefaultReply)))
	turnsTotal.WithLabelValues(string(TurnChat), resultApplied).Inc()

	if !resp.RequiresFeedback {
		return
	}
	switch {
	case c.tracker.AwaitingApproval():
		c.log.Warn().Uint64("seq", turn.seq).Msg("plan proposal while another is pending; ignored")
	case !c.tracker.Thread().Present():
		c.log.Warn().Uint64("seq", turn.seq).Msg("plan proposal without thread id; approval not requested")
		if plan := resp.Plan(); strings.TrimSpace(plan) != "" {
			c.appendLocked(turn, c.assistant(plan))
		}
	default:
		if plan := resp.Plan(); strings.TrimSpace(plan) != "" {
			c.appendLocked(turn, c.assistant(plan))
		}
		c.appendLocked(turn, c.assistant(PlanPrompt))
		c.tracker.BeginApproval()
		turn.setProposedPlan()
		span.SetAttributes(attribute.Bool("plan.proposed", true))
	}
}

func (c *Controller) sendFeedback(ctx context.Context, turn *Turn, threadID string, d Decision) {
	ctx, span := otel.Tracer("session/Controller").Start(ctx, "planFeedback",
		trace.WithAttributes(attribute.String("plan.decision", d.String())),
	)
	defer span.End()

	resp, err := c.backend.Feedback(ctx, coach.FeedbackRequest{
		ThreadID:    threadID,
		ApprovePlan: d == Approve,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(turn) {
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Uint64("seq", turn.seq).Str("decision", d.String()).Msg("feedback call failed")
		span.RecordError(err)
		c.appendLocked(turn, c.assistant(FeedbackFailedNotice))
		turnsTotal.WithLabelValues(string(TurnDecision), resultFailed).Inc()
		return
	}
	if resp.ThreadID != "" {
		c.tracker.SetThread(resp.ThreadID)
	}
	c.appendLocked(turn, c.assistant(orDefault(resp.Reply, DefaultFeedbackReply)))
	turnsTotal.WithLabelValues(string(TurnDecision), resultApplied).Inc()
}

// staleLocked reports (and records) whether a newer Submit or Reset has
// started since turn began.
func (c *Controller) staleLocked(turn *Turn) bool {
	if turn.seq == c.seq {
		return false
	}
	turn.setDiscarded()
	turnsTotal.WithLabelValues(string(turn.kind), resultDiscarded).Inc()
	c.log.Debug().Uint64("seq", turn.seq).Uint64("current_seq", c.seq).Msg("stale response discarded")
	return true
}

func (c *Controller) appendLocked(turn *Turn, m domain.ChatMessage) {
	c.transcript.append(m)
	turn.add(m)
}

func (c *Controller) finish(turn *Turn) {
	if c.onTurn != nil {
		c.onTurn(turn)
	}
	close(turn.done)
}

func (c *Controller) assistant(text string) domain.ChatMessage {
	return domain.NewMessage(domain.OriginAssistant, text, c.now())
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
