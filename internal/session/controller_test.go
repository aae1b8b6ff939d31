package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-coach-session/internal/coach"
	"github.com/tbourn/go-coach-session/internal/domain"
)

// fakeBackend records calls and answers from queued results. A call with no
// queued result blocks until one is pushed or the test ends.
type fakeBackend struct {
	mu        sync.Mutex
	chats     []coach.ChatRequest
	feedbacks []coach.FeedbackRequest

	chatResults     chan chatResult
	feedbackResults chan feedbackResult
}

type chatResult struct {
	resp *coach.ChatResponse
	err  error
}

type feedbackResult struct {
	resp *coach.FeedbackResponse
	err  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chatResults:     make(chan chatResult, 16),
		feedbackResults: make(chan feedbackResult, 16),
	}
}

func (f *fakeBackend) Chat(ctx context.Context, req coach.ChatRequest) (*coach.ChatResponse, error) {
	f.mu.Lock()
	f.chats = append(f.chats, req)
	f.mu.Unlock()
	select {
	case r := <-f.chatResults:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeBackend) Feedback(ctx context.Context, req coach.FeedbackRequest) (*coach.FeedbackResponse, error) {
	f.mu.Lock()
	f.feedbacks = append(f.feedbacks, req)
	f.mu.Unlock()
	select {
	case r := <-f.feedbackResults:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeBackend) chatCalls() []coach.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]coach.ChatRequest(nil), f.chats...)
}

func (f *fakeBackend) feedbackCalls() []coach.FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]coach.FeedbackRequest(nil), f.feedbacks...)
}

func strptr(s string) *string { return &s }

var testPersona = domain.Persona{ID: "7", Name: "Coach Kai"}

func newTestController(t *testing.T, b Backend) *Controller {
	t.Helper()
	c := NewController(b, testPersona)
	t.Cleanup(c.Close)
	return c
}

func waitTurn(t *testing.T, turn *Turn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := turn.Wait(ctx); err != nil {
		t.Fatalf("turn %d did not settle: %v", turn.Seq(), err)
	}
}

func texts(msgs []domain.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func assertTexts(t *testing.T, got []domain.ChatMessage, want ...string) {
	t.Helper()
	g := texts(got)
	if len(g) != len(want) {
		t.Fatalf("got %d messages %q; want %d %q", len(g), g, len(want), want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("message %d = %q; want %q (all: %q)", i, g[i], want[i], g)
		}
	}
}

// proposePlan drives c into AwaitingApproval on thread t1.
func proposePlan(t *testing.T, c *Controller, b *fakeBackend) {
	t.Helper()
	b.chatResults <- chatResult{resp: &coach.ChatResponse{
		Reply: "Here's a plan", ThreadID: "t1", RequiresFeedback: true, PlanText: strptr("3 days lifting, 4 days cardio"),
	}}
	waitTurn(t, c.Submit(context.Background(), "I want to lose 5kg", 42))
	if !c.State().AwaitingApproval {
		t.Fatal("expected AwaitingApproval after plan proposal")
	}
}

func TestNewController_SeedsGreeting(t *testing.T) {
	c := newTestController(t, newFakeBackend())
	assertTexts(t, c.Transcript().Messages(), "Hi, I'm Coach Kai. How can I help you today?")
	st := c.State()
	if st.Thread.Present() || st.AwaitingApproval {
		t.Fatalf("initial state must be Idle without thread, got %+v", st)
	}
}

func TestSubmit_BlankInputIgnored(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	before := c.Transcript().Len()

	for _, in := range []string{"", " ", "\t\n", "   \r\n "} {
		turn := c.Submit(context.Background(), in, 42)
		if !turn.Ignored() {
			t.Fatalf("input %q not ignored", in)
		}
		select {
		case <-turn.Done():
		default:
			t.Fatalf("ignored turn for %q must be settled", in)
		}
	}
	if c.Transcript().Len() != before {
		t.Fatal("blank input changed the transcript")
	}
	if len(b.chatCalls()) != 0 || len(b.feedbackCalls()) != 0 {
		t.Fatal("blank input reached the backend")
	}
	if c.State().Seq != 0 {
		t.Fatal("blank input must not advance the sequence")
	}
}

func TestSubmit_UserMessageAppendedBeforeBackendReplies(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	turn := c.Submit(context.Background(), "  hello  ", 42)

	// The backend has not answered yet; the user message must already be there.
	msgs := c.Transcript().Messages()
	last := msgs[len(msgs)-1]
	if last.Origin != domain.OriginUser || last.Text != "  hello  " {
		t.Fatalf("user message not appended synchronously: %+v", last)
	}
	select {
	case <-turn.Done():
		t.Fatal("turn settled before the backend replied")
	default:
	}

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "Hi there", ThreadID: "t9"}}
	waitTurn(t, turn)

	calls := b.chatCalls()
	if len(calls) != 1 {
		t.Fatalf("chat calls = %d; want 1", len(calls))
	}
	req := calls[0]
	if req.Message != "hello" || req.UserID != 42 || req.ThreadID != nil || req.AgentID != "7" {
		t.Fatalf("unexpected chat request: %+v", req)
	}
	assertTexts(t, turn.Messages(), "  hello  ", "Hi there")
	if id, _ := c.State().Thread.ID(); id != "t9" {
		t.Fatalf("thread = %q; want t9", id)
	}
}

func TestSubmit_ChatSendsCurrentThread(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "one", ThreadID: "t1"}}
	waitTurn(t, c.Submit(context.Background(), "first", 1))
	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "two", ThreadID: ""}}
	waitTurn(t, c.Submit(context.Background(), "second", 1))

	calls := b.chatCalls()
	if calls[1].ThreadID == nil || *calls[1].ThreadID != "t1" {
		t.Fatalf("second call must carry thread t1, got %v", calls[1].ThreadID)
	}
	if id, _ := c.State().Thread.ID(); id != "t1" {
		t.Fatalf("empty thread id in a reply must keep t1, got %q", id)
	}
}

func TestScenario_HappyPathThenApproval(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	start := c.Transcript().Len()

	b.chatResults <- chatResult{resp: &coach.ChatResponse{
		Reply: "Here's a plan", ThreadID: "t1", RequiresFeedback: true, PlanText: strptr("3 days lifting, 4 days cardio"),
	}}
	turn := c.Submit(context.Background(), "I want to lose 5kg", 42)
	waitTurn(t, turn)

	assertTexts(t, c.Transcript().Messages()[start:],
		"I want to lose 5kg",
		"Here's a plan",
		"3 days lifting, 4 days cardio",
		PlanPrompt,
	)
	st := c.State()
	if id, _ := st.Thread.ID(); !st.AwaitingApproval || id != "t1" {
		t.Fatalf("want AwaitingApproval on t1, got %+v", st)
	}
	if !turn.ProposedPlan() {
		t.Fatal("turn must report the plan proposal")
	}

	b.feedbackResults <- feedbackResult{resp: &coach.FeedbackResponse{Reply: "Plan applied!", ThreadID: "t1"}}
	turn = c.Submit(context.Background(), "yes", 42)
	waitTurn(t, turn)

	fb := b.feedbackCalls()
	if len(fb) != 1 || fb[0].ThreadID != "t1" || !fb[0].ApprovePlan {
		t.Fatalf("unexpected feedback calls: %+v", fb)
	}
	if len(b.chatCalls()) != 1 {
		t.Fatal("a decision must not issue a chat call")
	}
	assertTexts(t, turn.Messages(), "yes", "Plan applied!")
	if c.State().AwaitingApproval {
		t.Fatal("session must be Idle after the decision")
	}
}

func TestRoundTrip_PlanWithoutTextAddsPromptOnly(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "Plan ready", ThreadID: "t1", RequiresFeedback: true, PlanText: strptr("  ")}}
	turn := c.Submit(context.Background(), "plan please", 1)
	waitTurn(t, turn)

	assertTexts(t, turn.Messages(), "plan please", "Plan ready", PlanPrompt)
	if !c.State().AwaitingApproval {
		t.Fatal("want AwaitingApproval")
	}
}

func TestDecision_MatchesSetsCaseInsensitively(t *testing.T) {
	cases := []struct {
		in      string
		approve bool
	}{
		{"yes", true}, {"Y", true}, {"OK", true}, {"Okay", true}, {" sure ", true},
		{"no", false}, {"N", false}, {"Cancel", false}, {"nope", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			b := newFakeBackend()
			c := newTestController(t, b)
			proposePlan(t, c, b)

			b.feedbackResults <- feedbackResult{resp: &coach.FeedbackResponse{Reply: "done", ThreadID: "t1"}}
			waitTurn(t, c.Submit(context.Background(), tc.in, 42))

			fb := b.feedbackCalls()
			if len(fb) != 1 {
				t.Fatalf("feedback calls = %d; want 1", len(fb))
			}
			if fb[0].ApprovePlan != tc.approve || fb[0].ThreadID != "t1" {
				t.Fatalf("unexpected feedback: %+v", fb[0])
			}
		})
	}
}

func TestDecision_UnmatchedInputClarifiesAndStaysPending(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	proposePlan(t, c, b)

	for _, in := range []string{"maybe", "yes please", "yeah", "no way"} {
		turn := c.Submit(context.Background(), in, 42)
		select {
		case <-turn.Done():
		default:
			t.Fatal("clarification must settle synchronously")
		}
		if turn.Kind() != TurnClarify {
			t.Fatalf("kind = %s; want clarify", turn.Kind())
		}
		assertTexts(t, turn.Messages(), in, ClarifyPrompt)
		if !c.State().AwaitingApproval {
			t.Fatalf("%q must leave the approval pending", in)
		}
	}
	if len(b.feedbackCalls()) != 0 || len(b.chatCalls()) != 1 {
		t.Fatal("unmatched input must not reach the backend")
	}
}

func TestDecision_FeedbackFailureReturnsToIdle(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	proposePlan(t, c, b)

	b.feedbackResults <- feedbackResult{err: errors.New("boom")}
	turn := c.Submit(context.Background(), "no", 42)
	waitTurn(t, turn)

	assertTexts(t, turn.Messages(), "no", FeedbackFailedNotice)
	st := c.State()
	if st.AwaitingApproval {
		t.Fatal("failed feedback must still clear the approval")
	}
	if id, _ := st.Thread.ID(); id != "t1" {
		t.Fatalf("thread must be kept, got %q", id)
	}

	// Back in Idle: the next input is a chat turn.
	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "ok", ThreadID: "t1"}}
	waitTurn(t, c.Submit(context.Background(), "yes", 42))
	if len(b.chatCalls()) != 2 || len(b.feedbackCalls()) != 1 {
		t.Fatal("input after a failed decision must be sent as chat")
	}
}

func TestDecision_EmptyFeedbackReplyUsesDefault(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	proposePlan(t, c, b)

	b.feedbackResults <- feedbackResult{resp: &coach.FeedbackResponse{Reply: "", ThreadID: "t1"}}
	turn := c.Submit(context.Background(), "y", 42)
	waitTurn(t, turn)
	assertTexts(t, turn.Messages(), "y", DefaultFeedbackReply)
}

func TestDecision_PendingWithoutThreadClearsSilently(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	proposePlan(t, c, b)

	// Simulate drift: the thread disappears while approval is pending.
	c.mu.Lock()
	c.tracker.thread = domain.NoThread()
	c.mu.Unlock()

	turn := c.Submit(context.Background(), "yes", 42)
	waitTurn(t, turn)

	assertTexts(t, turn.Messages(), "yes")
	if len(b.feedbackCalls()) != 0 {
		t.Fatal("no feedback call may be made without a thread")
	}
	if c.State().AwaitingApproval {
		t.Fatal("inconsistent approval flag must be cleared")
	}
}

func TestScenario_ChatFailureKeepsState(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "hi", ThreadID: "t1"}}
	waitTurn(t, c.Submit(context.Background(), "hello", 42))

	b.chatResults <- chatResult{err: context.DeadlineExceeded}
	turn := c.Submit(context.Background(), "are you there?", 42)
	waitTurn(t, turn)

	assertTexts(t, turn.Messages(), "are you there?", ChatUnavailableNotice)
	st := c.State()
	if id, _ := st.Thread.ID(); id != "t1" || st.AwaitingApproval {
		t.Fatalf("failure must leave Idle on t1, got %+v", st)
	}
}

func TestScenario_EmptyReplySubstitution(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "", ThreadID: "t2"}}
	turn := c.Submit(context.Background(), "hello", 42)
	waitTurn(t, turn)

	msgs := turn.Messages()
	if got := msgs[len(msgs)-1]; got.Origin != domain.OriginAssistant || got.Text != "How can I help you further?" {
		t.Fatalf("unexpected reply: %+v", got)
	}
}

func TestPlanWithoutThread_NoApproval(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "Here's a plan", RequiresFeedback: true, PlanText: strptr("walk daily")}}
	turn := c.Submit(context.Background(), "plan", 42)
	waitTurn(t, turn)

	assertTexts(t, turn.Messages(), "plan", "Here's a plan", "walk daily")
	if c.State().AwaitingApproval {
		t.Fatal("approval requires a thread")
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	first := c.Submit(context.Background(), "first", 1)
	second := c.Submit(context.Background(), "second", 1)

	// Answer both; whichever call gets which result, only the newest turn
	// may write an assistant message.
	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "reply", ThreadID: "t1"}}
	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "reply", ThreadID: "t1"}}
	waitTurn(t, first)
	waitTurn(t, second)

	if !first.Discarded() || second.Discarded() {
		t.Fatalf("discarded: first=%v second=%v", first.Discarded(), second.Discarded())
	}
	assertTexts(t, first.Messages(), "first")
	assertTexts(t, second.Messages(), "second", "reply")
}

func TestReset_RestoresGreetingAndDiscardsInFlight(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)
	proposePlan(t, c, b)

	waitTurn(t, c.Submit(context.Background(), "maybe", 1))

	c.Reset()
	st := c.State()
	if st.Thread.Present() || st.AwaitingApproval {
		t.Fatalf("reset must clear state, got %+v", st)
	}
	assertTexts(t, c.Transcript().Messages(), "Hi, I'm Coach Kai. How can I help you today?")

	// An in-flight chat started before a reset must not write into the new transcript.
	turn := c.Submit(context.Background(), "hello", 1)
	c.Reset()
	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "late", ThreadID: "t5"}}
	waitTurn(t, turn)
	if !turn.Discarded() {
		t.Fatal("in-flight turn must be discarded by reset")
	}
	assertTexts(t, c.Transcript().Messages(), "Hi, I'm Coach Kai. How can I help you today?")
}

func TestSubmit_SurvivesCallerCancellation(t *testing.T) {
	b := newFakeBackend()
	c := newTestController(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	turn := c.Submit(ctx, "hello", 1)
	cancel()

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "still here", ThreadID: "t1"}}
	waitTurn(t, turn)
	assertTexts(t, turn.Messages(), "hello", "still here")
}

func TestTurnHookRunsBeforeDone(t *testing.T) {
	b := newFakeBackend()
	var mu sync.Mutex
	var seen []uint64
	c := NewController(b, testPersona, WithTurnHook(func(turn *Turn) {
		mu.Lock()
		seen = append(seen, turn.Seq())
		mu.Unlock()
	}))
	defer c.Close()

	b.chatResults <- chatResult{resp: &coach.ChatResponse{Reply: "hi", ThreadID: "t1"}}
	turn := c.Submit(context.Background(), "hello", 1)
	waitTurn(t, turn)
	c.Submit(context.Background(), " ", 1)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != turn.Seq() {
		t.Fatalf("hook calls = %v; want [%d]", seen, turn.Seq())
	}
}

func TestClose_IgnoresLaterSubmits(t *testing.T) {
	b := newFakeBackend()
	c := NewController(b, testPersona)
	ch, _ := c.Transcript().Subscribe()
	c.Close()
	c.Close()

	if _, ok := <-ch; ok {
		t.Fatal("subscription must be closed")
	}
	if turn := c.Submit(context.Background(), "hello", 1); !turn.Ignored() {
		t.Fatal("submit after close must be ignored")
	}
	if len(b.chatCalls()) != 0 {
		t.Fatal("closed session must not call the backend")
	}
}

func TestWithClockStampsMessages(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewController(newFakeBackend(), testPersona, WithClock(func() time.Time { return fixed }))
	defer c.Close()

	m, ok := c.Transcript().Last()
	if !ok || !m.CreatedAt.Equal(fixed) {
		t.Fatalf("greeting timestamp = %v; want %v", m.CreatedAt, fixed)
	}
}
