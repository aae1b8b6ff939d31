// Package coach is the HTTP client for the backend coaching endpoint. It
// exposes the two operations the session core needs, chat and feedback, as
// plain JSON-over-HTTP request/response calls with per-operation timeouts.
//
// The client carries no session state; thread continuity lives on the server
// and in the caller's session tracker.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	chatPath     = "/coach/chat"
	feedbackPath = "/coach/feedback"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 4 << 20
)

var (
	// ErrStatus is wrapped by errors for non-2xx backend responses.
	ErrStatus = errors.New("coach backend returned error status")
	// ErrDecode is wrapped by errors for response bodies that are not the
	// expected JSON document.
	ErrDecode = errors.New("coach backend response could not be decoded")
	// ErrMissingThread is returned by Feedback when no thread id is given.
	ErrMissingThread = errors.New("thread id is required")
)

// Options configures a Client.
type Options struct {
	// BaseURL is the scheme://host[:port] prefix of the backend.
	BaseURL string
	// ChatTimeout bounds a chat call. Values <= 0 default to 5 minutes.
	ChatTimeout time.Duration
	// FeedbackTimeout bounds a feedback call. Values <= 0 default to 60s.
	FeedbackTimeout time.Duration
	// HTTPClient overrides the underlying client. Its Transport is wrapped
	// with OpenTelemetry instrumentation.
	HTTPClient *http.Client
}

// Client talks to the coaching backend. It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	chatTimeout     time.Duration
	feedbackTimeout time.Duration
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = otelhttp.NewTransport(base)

	chatTO := opts.ChatTimeout
	if chatTO <= 0 {
		chatTO = 5 * time.Minute
	}
	fbTO := opts.FeedbackTimeout
	if fbTO <= 0 {
		fbTO = 60 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		http:            &wrapped,
		chatTimeout:     chatTO,
		feedbackTimeout: fbTO,
	}
}

// Chat sends one conversational turn.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	attrs := []attribute.KeyValue{
		attribute.Int64("user.id", req.UserID),
		attribute.String("agent.id", string(req.AgentID)),
		attribute.Bool("thread.present", req.ThreadID != nil),
	}
	if err := c.do(ctx, opChat, chatPath, c.chatTimeout, req, &out, attrs); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feedback approves or rejects the plan pending on threadID.
func (c *Client) Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackResponse, error) {
	if strings.TrimSpace(req.ThreadID) == "" {
		return nil, ErrMissingThread
	}
	var out FeedbackResponse
	attrs := []attribute.KeyValue{
		attribute.String("thread.id", req.ThreadID),
		attribute.Bool("plan.approve", req.ApprovePlan),
	}
	if err := c.do(ctx, opFeedback, feedbackPath, c.feedbackTimeout, req, &out, attrs); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one JSON POST, records metrics and decodes the response into out.
func (c *Client) do(ctx context.Context, op, path string, timeout time.Duration, in, out any, attrs []attribute.KeyValue) (err error) {
	tr := otel.Tracer("coach/Client")
	ctx, span := tr.Start(ctx, op, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	defer func() {
		observeCall(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %d: %s", ErrStatus, op, resp.StatusCode, snippet(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, op, err)
	}
	return nil
}

// snippet returns a short, single-line excerpt of a response body for errors.
func snippet(b []byte) string {
	const max = 200
	s := strings.Join(strings.Fields(string(b)), " ")
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
