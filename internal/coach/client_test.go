package coach

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestChat_SendsRequestAndDecodesReply(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/coach/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"reply":"Here's a plan","thread_id":"t1","requires_feedback":true,"plan_text":"3 days lifting"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/"})
	resp, err := c.Chat(context.Background(), ChatRequest{Message: "lose 5kg", UserID: 42, AgentID: "7"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Reply != "Here's a plan" || resp.ThreadID != "t1" || !resp.RequiresFeedback || resp.Plan() != "3 days lifting" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if got["message"] != "lose 5kg" || got["user_id"] != float64(42) {
		t.Fatalf("unexpected request body: %#v", got)
	}
	if v, ok := got["thread_id"]; !ok || v != nil {
		t.Fatalf("thread_id must be sent as null, got %#v (present=%v)", v, ok)
	}
	if got["agent_id"] != float64(7) {
		t.Fatalf("numeric agent id must be encoded as a number, got %#v", got["agent_id"])
	}
	if _, ok := got["image_base64"]; ok {
		t.Fatalf("image_base64 must be omitted when empty")
	}
}

func TestChat_StatusErrorAndDecodeError(t *testing.T) {
	status := http.StatusBadGateway
	body := `{"detail":"upstream down"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL})

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", UserID: 1})
	if !errors.Is(err, ErrStatus) || !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected ErrStatus with body snippet, got %v", err)
	}

	status, body = http.StatusOK, `<html>not json</html>`
	_, err = c.Chat(context.Background(), ChatRequest{Message: "hi", UserID: 1})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestChat_TimeoutIsDeadlineExceeded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Options{BaseURL: srv.URL, ChatTimeout: 50 * time.Millisecond})
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", UserID: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if outcome(err) != "timeout" {
		t.Fatalf("outcome = %q; want timeout", outcome(err))
	}
}

func TestFeedback_SendsDecision(t *testing.T) {
	var got FeedbackRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coach/feedback" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"reply":"Plan applied!","thread_id":"t1"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	resp, err := c.Feedback(context.Background(), FeedbackRequest{ThreadID: "t1", ApprovePlan: true})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if got.ThreadID != "t1" || !got.ApprovePlan {
		t.Fatalf("unexpected request: %+v", got)
	}
	if resp.Reply != "Plan applied!" || resp.ThreadID != "t1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFeedback_RequiresThread(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Feedback(context.Background(), FeedbackRequest{ThreadID: "  "}); !errors.Is(err, ErrMissingThread) {
		t.Fatalf("expected ErrMissingThread, got %v", err)
	}
}

func TestTransportErrorOutcome(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening any more

	c := NewClient(Options{BaseURL: url})
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", UserID: 1})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if outcome(err) != "transport" {
		t.Fatalf("outcome = %q; want transport", outcome(err))
	}
}

func TestAgentID_JSON(t *testing.T) {
	cases := map[AgentID]string{
		"12":    `12`,
		"coach": `"coach"`,
		"007":   `"007"`,
		"-3":    `-3`,
	}
	for in, want := range cases {
		b, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal %q: %v", in, err)
		}
		if string(b) != want {
			t.Errorf("marshal %q = %s; want %s", in, b, want)
		}
	}

	var a AgentID
	if err := json.Unmarshal([]byte(`15`), &a); err != nil || a != "15" {
		t.Fatalf("unmarshal number: %q %v", a, err)
	}
	if err := json.Unmarshal([]byte(`"zen"`), &a); err != nil || a != "zen" {
		t.Fatalf("unmarshal string: %q %v", a, err)
	}
	if err := json.Unmarshal([]byte(`{}`), &a); err == nil {
		t.Fatal("expected error for object")
	}
}

func TestPlan_NilSafe(t *testing.T) {
	var r *ChatResponse
	if r.Plan() != "" {
		t.Fatal("nil response must yield empty plan")
	}
	if (&ChatResponse{}).Plan() != "" {
		t.Fatal("missing plan must yield empty plan")
	}
}
