package session

import (
	"sync"

	"github.com/tbourn/go-coach-session/internal/domain"
)

// EventKind distinguishes transcript notifications.
type EventKind string

const (
	// EventAppend carries one newly appended message.
	EventAppend EventKind = "append"
	// EventReset signals that the transcript was cleared and reseeded; the
	// carried message is the new greeting.
	EventReset EventKind = "reset"
)

// Event is delivered to transcript subscribers.
type Event struct {
	Kind    EventKind          `json:"kind"`
	Message domain.ChatMessage `json:"message"`
}

// subscriberBuffer is the per-subscriber queue length. A subscriber that falls
// this far behind is dropped and its channel closed.
const subscriberBuffer = 64

// Transcript is the ordered, append-only message log of one session. Reads are
// safe from any goroutine; writes come only from the owning Controller.
type Transcript struct {
	mu     sync.RWMutex
	msgs   []domain.ChatMessage
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newTranscript() *Transcript {
	return &Transcript{subs: make(map[int]chan Event)}
}

// Messages returns a copy of all messages, oldest first.
func (t *Transcript) Messages() []domain.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Page returns up to limit messages starting at offset, plus the total count.
func (t *Transcript) Page(offset, limit int) ([]domain.ChatMessage, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := len(t.msgs)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []domain.ChatMessage{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.ChatMessage, end-offset)
	copy(out, t.msgs[offset:end])
	return out, total
}

// Last returns the newest message, if any.
func (t *Transcript) Last() (domain.ChatMessage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.msgs) == 0 {
		return domain.ChatMessage{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// Subscribe registers for transcript events. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (t *Transcript) Subscribe() (<-chan Event, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
}

func (t *Transcript) append(msgs ...domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		t.msgs = append(t.msgs, m)
		t.publishLocked(Event{Kind: EventAppend, Message: m})
	}
}

func (t *Transcript) reset(greeting domain.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = []domain.ChatMessage{greeting}
	t.publishLocked(Event{Kind: EventReset, Message: greeting})
}

// close ends every subscription; later subscribers receive a closed channel.
func (t *Transcript) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, c := range t.subs {
		delete(t.subs, id)
		close(c)
	}
}

func (t *Transcript) publishLocked(ev Event) {
	for id, c := range t.subs {
		select {
		case c <- ev:
		default:
			delete(t.subs, id)
			close(c)
		}
	}
}
