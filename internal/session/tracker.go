package session

import "github.com/tbourn/go-coach-session/internal/domain"

// Tracker holds the backend thread a session is attached to and whether a
// plan approval is pending. It has no network or UI knowledge and cannot
// fail. It is not safe for concurrent use; the Controller serializes access.
type Tracker struct {
	thread   domain.ThreadRef
	awaiting bool
}

// SetThread overwrites the current thread id.
func (t *Tracker) SetThread(id string) { t.thread = domain.Thread(id) }

// BeginApproval marks a plan decision as pending. Calling it without a thread
// is a programming error and panics.
func (t *Tracker) BeginApproval() {
	if !t.thread.Present() {
		panic("session: BeginApproval called without a thread")
	}
	t.awaiting = true
}

// ResolveApproval clears the pending flag regardless of its previous value.
func (t *Tracker) ResolveApproval() { t.awaiting = false }

// Reset detaches from the thread and clears the pending flag.
func (t *Tracker) Reset() {
	t.thread = domain.NoThread()
	t.awaiting = false
}

// Thread returns the current thread reference.
func (t *Tracker) Thread() domain.ThreadRef { return t.thread }

// AwaitingApproval reports whether a plan decision is pending.
func (t *Tracker) AwaitingApproval() bool { return t.awaiting }
