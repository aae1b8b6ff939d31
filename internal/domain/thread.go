package domain

// ThreadRef is the server-side conversation a session is attached to. The
// zero value is NoThread: no conversation has been started yet.
type ThreadRef struct {
	id string
}

// NoThread returns the detached reference.
func NoThread() ThreadRef { return ThreadRef{} }

// Thread returns a reference to the backend thread id. An empty id yields
// NoThread.
func Thread(id string) ThreadRef { return ThreadRef{id: id} }

// ID returns the thread id and whether one is present.
func (t ThreadRef) ID() (string, bool) { return t.id, t.id != "" }

// Present reports whether the reference names a thread.
func (t ThreadRef) Present() bool { return t.id != "" }

// Ptr returns the id as a pointer, nil for NoThread. It is the shape used on
// the wire where the backend expects null.
func (t ThreadRef) Ptr() *string {
	if t.id == "" {
		return nil
	}
	id := t.id
	return &id
}

// String implements fmt.Stringer.
func (t ThreadRef) String() string {
	if t.id == "" {
		return "<none>"
	}
	return t.id
}
