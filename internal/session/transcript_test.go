package session

import (
	"testing"
	"time"

	"github.com/tbourn/go-coach-session/internal/domain"
)

func msg(text string) domain.ChatMessage {
	return domain.NewMessage(domain.OriginUser, text, time.Unix(0, 0))
}

func TestTranscript_PageAndLast(t *testing.T) {
	tr := newTranscript()
	if _, ok := tr.Last(); ok {
		t.Fatal("empty transcript has no last message")
	}
	tr.reset(msg("greeting"))
	tr.append(msg("a"), msg("b"), msg("c"))

	page, total := tr.Page(1, 2)
	if total != 4 {
		t.Fatalf("total = %d; want 4", total)
	}
	assertTexts(t, page, "a", "b")

	page, _ = tr.Page(3, 10)
	assertTexts(t, page, "c")

	page, _ = tr.Page(10, 10)
	if len(page) != 0 {
		t.Fatalf("out of range page must be empty, got %d", len(page))
	}
	page, _ = tr.Page(-5, 1)
	assertTexts(t, page, "greeting")

	if last, _ := tr.Last(); last.Text != "c" {
		t.Fatalf("last = %q", last.Text)
	}
}

func TestTranscript_MessagesIsACopy(t *testing.T) {
	tr := newTranscript()
	tr.reset(msg("greeting"))
	got := tr.Messages()
	got[0].Text = "changed"
	if m, _ := tr.Last(); m.Text != "greeting" {
		t.Fatal("Messages must return a copy")
	}
}

func TestTranscript_SubscribeReceivesEvents(t *testing.T) {
	tr := newTranscript()
	ch, cancel := tr.Subscribe()

	tr.append(msg("a"))
	tr.reset(msg("hello again"))

	ev := <-ch
	if ev.Kind != EventAppend || ev.Message.Text != "a" {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	ev = <-ch
	if ev.Kind != EventReset || ev.Message.Text != "hello again" {
		t.Fatalf("unexpected second event: %+v", ev)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after cancel")
	}
	tr.append(msg("b")) // no subscribers; must not panic
}

func TestTranscript_SlowSubscriberDropped(t *testing.T) {
	tr := newTranscript()
	ch, cancel := tr.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+1; i++ {
		tr.append(msg("x"))
	}
	n := 0
	for range ch {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("received %d events before close; want %d", n, subscriberBuffer)
	}
	if tr.Len() != subscriberBuffer+1 {
		t.Fatal("dropping a subscriber must not drop messages")
	}
}

func TestTranscript_SubscribeAfterClose(t *testing.T) {
	tr := newTranscript()
	tr.close()
	ch, cancel := tr.Subscribe()
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("subscribe after close must yield a closed channel")
	}
}
