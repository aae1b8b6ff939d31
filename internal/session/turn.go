package session

import (
	"context"
	"sync"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// TurnKind classifies how a Submit was handled.
type TurnKind string

const (
	TurnIgnored  TurnKind = "ignored"
	TurnChat     TurnKind = "chat"
	TurnDecision TurnKind = "decision"
	TurnClarify  TurnKind = "clarify"
)

// Turn tracks one Submit until its backend work, if any, has settled.
type Turn struct {
	seq  uint64
	kind TurnKind
	done chan struct{}

	mu           sync.Mutex
	msgs         []domain.ChatMessage
	discarded    bool
	proposedPlan bool
}

func newTurn(seq uint64) *Turn {
	return &Turn{seq: seq, done: make(chan struct{})}
}

func ignoredTurn() *Turn {
	t := &Turn{kind: TurnIgnored, done: make(chan struct{})}
	close(t.done)
	return t
}

// Seq is the controller sequence number assigned to the turn; 0 if ignored.
func (t *Turn) Seq() uint64 { return t.seq }

// Kind reports how the input was interpreted.
func (t *Turn) Kind() TurnKind { return t.kind }

// Ignored reports whether the input was dropped without a transcript entry.
func (t *Turn) Ignored() bool { return t.kind == TurnIgnored }

// Done is closed once the turn has settled.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn settles or ctx ends.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the messages this turn appended so far, oldest first.
func (t *Turn) Messages() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Discarded reports whether the backend response arrived after a newer Submit
// or Reset and was dropped.
func (t *Turn) Discarded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.discarded
}

// ProposedPlan reports whether the turn put the session into the approval
// state.
func (t *Turn) ProposedPlan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proposedPlan
}

func (t *Turn) add(m domain.ChatMessage) {
	t.mu.Lock()
	t.msgs = append(t.msgs, m)
	t.mu.Unlock()
}

func (t *Turn) setDiscarded() {
	t.mu.Lock()
	t.discarded = true
	t.mu.Unlock()
}

func (t *Turn) setProposedPlan() {
	t.mu.Lock()
	t.proposedPlan = true
	t.mu.Unlock()
}
