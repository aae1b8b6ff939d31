// Package domain defines the value types shared by the coaching session core,
// the service layer and the persistence layer: transcript messages, coaching
// personas, cached session summaries and the key-value rows that back the
// transcript cache.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies who authored a ChatMessage.
type Origin string

const (
	// OriginUser marks text typed by the person being coached.
	OriginUser Origin = "user"
	// OriginAssistant marks replies, plan texts and notices produced on behalf
	// of the coach.
	OriginAssistant Origin = "assistant"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool { return o == OriginUser || o == OriginAssistant }

// ChatMessage is a single transcript entry. Values are immutable once created;
// transcripts order them by insertion.
//
// Fields:
//   - ID: random UUID assigned at creation.
//   - Text: display text (user text is stored untrimmed).
//   - Origin: "user" or "assistant".
//   - CreatedAt: UTC creation timestamp.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a ChatMessage with a fresh id stamped at now (UTC).
func NewMessage(origin Origin, text string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Origin:    origin,
		CreatedAt: now.UTC(),
	}
}

// Persona is a selectable AI coach identity. ID is the agent id addressed on
// the backend; switching personas resets the session.
type Persona struct {
	ID       string `json:"id"       yaml:"id"`
	Name     string `json:"name"     yaml:"name"`
	Greeting string `json:"greeting" yaml:"greeting"`
}

// GreetingText returns the message that seeds a fresh transcript.
func (p Persona) GreetingText() string {
	if p.Greeting != "" {
		return p.Greeting
	}
	if p.Name != "" {
		return "Hi, I'm " + p.Name + ". How can I help you today?"
	}
	return "Hi! How can I help you today?"
}

// SessionSummary is one row of a user's cached session list.
type SessionSummary struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"persona_id"`
	PersonaName  string    `json:"persona_name"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// KVEntry is a string-keyed blob in the local transcript cache.
type KVEntry struct {
	Key       string    `gorm:"type:varchar(255);primaryKey"`
	Value     []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for KVEntry.
func (KVEntry) TableName() string { return "kv_entries" }
