// Package handlers exposes the coaching session over HTTP.
//
// Endpoints (mounted under the API base path):
//   - GET    /personas                 (persona catalog)
//   - PUT    /session                  (select persona, starts or keeps a session)
//   - GET    /session                  (state + transcript page, weak ETag)
//   - DELETE /session                  (sign out)
//   - POST   /session/reset            (fresh transcript, same persona)
//   - POST   /session/messages         (submit text, idempotent with Idempotency-Key)
//   - GET    /session/messages         (transcript page)
//   - GET    /session/search           (keyword search over the transcript)
//   - GET    /session/stream           (WebSocket transcript events)
//   - GET    /history                  (cached sessions, weak ETag)
//   - GET    /history/{id}/messages    (cached transcript)
//
// Handlers are transport-thin: they validate input, call the session services
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/http/middleware"
	"github.com/tbourn/go-coach-session/internal/search"
	"github.com/tbourn/go-coach-session/internal/services"
	"github.com/tbourn/go-coach-session/internal/session"
)

//
// Service contracts (context-aware)
//

// SessionService drives the live session of each user.
type SessionService interface {
	SelectPersona(ctx context.Context, userID int64, personaID string) (*services.ActiveSession, bool, error)
	Active(userID int64) (*services.ActiveSession, error)
	Submit(ctx context.Context, userID int64, text string) (*services.TurnResult, error)
	SubmitOnce(ctx context.Context, userID int64, key, text string) (*services.TurnResult, error)
	ForgetPending(userID int64, sessionID, key string)
	Messages(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatMessage, int, *services.ActiveSession, error)
	Reset(ctx context.Context, userID int64) (*services.ActiveSession, error)
	SignOut(ctx context.Context, userID int64) error
	Search(ctx context.Context, userID int64, query string, k int) ([]search.Result, error)
}

// HistoryService reads the transcript cache and stores idempotent responses.
type HistoryService interface {
	History(ctx context.Context, userID int64, page, pageSize int) ([]domain.SessionSummary, int64, error)
	HistoryStats(ctx context.Context, userID int64) (int64, *time.Time, error)
	HistoryMessages(ctx context.Context, userID int64, sessionID string) ([]domain.ChatMessage, error)
	Replay(ctx context.Context, userID int64, sessionID, key string) ([]byte, int, bool)
	RememberResponse(ctx context.Context, userID int64, sessionID, key string, payload []byte, status int, ttl time.Duration) error
}

// PersonaCatalog lists selectable personas.
type PersonaCatalog interface {
	List() []domain.Persona
}

//
// Handler wiring
//

// Options tunes handler behavior. Zero values select defaults.
type Options struct {
	// IdempotencyTTL is how long a stored message response can be replayed.
	IdempotencyTTL time.Duration
	// StreamOrigins are the origin patterns accepted for WebSocket upgrades;
	// empty accepts same-origin requests only.
	StreamOrigins []string
	// StreamPing is the WebSocket keepalive interval.
	StreamPing time.Duration
}

// Handlers groups the HTTP endpoints of the coaching API.
type Handlers struct {
	sessions SessionService
	history  HistoryService
	personas PersonaCatalog
	opts     Options
}

// New constructs a Handlers instance bound to the given services.
func New(sessions SessionService, history HistoryService, personas PersonaCatalog, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.StreamPing <= 0 {
		opts.StreamPing = 30 * time.Second
	}
	return &Handlers{sessions: sessions, history: history, personas: personas, opts: opts}
}

// userID returns the id resolved by middleware.UserIdentity. Routes are
// mounted behind middleware.RequireUser, so ok is false only in misuse.
func userID(c *gin.Context) (int64, bool) {
	return middleware.UserIDFrom(c)
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// SessionState is the wire shape of session.State.
type SessionState struct {
	// ThreadID is null until the backend opened a conversation.
	ThreadID         *string `json:"thread_id" example:"thread-42"`
	AwaitingApproval bool    `json:"awaiting_approval"`
	Seq              uint64  `json:"seq"`
}

func stateDTO(s session.State) SessionState {
	return SessionState{ThreadID: s.Thread.Ptr(), AwaitingApproval: s.AwaitingApproval, Seq: s.Seq}
}
