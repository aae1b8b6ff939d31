package coach

import (
	"encoding/json"
	"strconv"
)

// AgentID is the persona id addressed on the backend. It is encoded as a JSON
// number when it is all digits and as a string otherwise, matching a backend
// that accepts both shapes.
type AgentID string

// MarshalJSON implements json.Marshaler.
func (a AgentID) MarshalJSON() ([]byte, error) {
	s := string(a)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// UnmarshalJSON implements json.Unmarshaler, accepting numbers and strings.
func (a *AgentID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*a = AgentID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*a = AgentID(s)
	return nil
}

// ChatRequest is the body of POST /coach/chat.
type ChatRequest struct {
	Message     string  `json:"message"`
	UserID      int64   `json:"user_id"`
	ThreadID    *string `json:"thread_id"`
	AgentID     AgentID `json:"agent_id,omitempty"`
	ImageBase64 string  `json:"image_base64,omitempty"`
}

// ChatResponse is the body returned by POST /coach/chat.
type ChatResponse struct {
	Reply            string  `json:"reply"`
	ThreadID         string  `json:"thread_id"`
	RequiresFeedback bool    `json:"requires_feedback"`
	PlanText         *string `json:"plan_text"`
}

// Plan returns the proposed plan text, or "" when none was sent.
func (r *ChatResponse) Plan() string {
	if r == nil || r.PlanText == nil {
		return ""
	}
	return *r.PlanText
}

// FeedbackRequest is the body of POST /coach/feedback.
type FeedbackRequest struct {
	ThreadID    string `json:"thread_id"`
	ApprovePlan bool   `json:"approve_plan"`
}

// FeedbackResponse is the body returned by POST /coach/feedback.
type FeedbackResponse struct {
	Reply    string `json:"reply"`
	ThreadID string `json:"thread_id"`
}
