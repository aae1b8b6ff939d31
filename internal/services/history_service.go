// Package services – session history
//
// Read side of the transcript cache written by SessionService, plus the
// idempotency records that let a retried message submission replay its first
// response.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/repo"
)

// History returns a page of the user's cached sessions, most recently
// updated first, and the total number of cached sessions.
func (s *SessionService) History(ctx context.Context, userID int64, page, pageSize int) ([]domain.SessionSummary, int64, error) {
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	prefix := summaryPrefix(userID)
	total, err := repo.CountKV(ctx, s.DB, prefix)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.SessionSummary{}, 0, nil
	}

	rows, err := repo.ListKVPage(ctx, s.DB, prefix, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.SessionSummary, 0, len(rows))
	for _, r := range rows {
		var sum domain.SessionSummary
		if err := json.Unmarshal(r.Value, &sum); err != nil {
			return nil, 0, fmt.Errorf("decode summary %s: %w", r.Key, err)
		}
		out = append(out, sum)
	}
	return out, total, nil
}

// HistoryStats returns the number of cached sessions and the latest update
// time, for conditional responses.
func (s *SessionService) HistoryStats(ctx context.Context, userID int64) (int64, *time.Time, error) {
	return repo.KVStats(ctx, s.DB, summaryPrefix(userID))
}

// HistoryMessages returns the cached transcript of one of the user's sessions.
func (s *SessionService) HistoryMessages(ctx context.Context, userID int64, sessionID string) ([]domain.ChatMessage, error) {
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "HistoryMessages",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	e, err := repo.GetKV(ctx, s.DB, transcriptKey(userID, sessionID))
	if isNotFound(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal(e.Value, &msgs); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return msgs, nil
}

// HasReplay reports whether a stored response exists for key.
func (s *SessionService) HasReplay(ctx context.Context, userID int64, sessionID, key string, now time.Time) (bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, sessionID, key, now)
	if isNotFound(err) {
		return false, nil
	}
	return rec != nil && err == nil, err
}

// Replay returns the stored response body and status for key.
func (s *SessionService) Replay(ctx context.Context, userID int64, sessionID, key string) ([]byte, int, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, sessionID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil, 0, false
	}
	return rec.Payload, rec.Status, true
}

// RememberResponse stores a response body for key. A concurrent duplicate is
// not an error: the first stored response wins.
func (s *SessionService) RememberResponse(ctx context.Context, userID int64, sessionID, key string, payload []byte, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, userID, sessionID, key, payload, status, ttl)
	if err == repo.ErrDuplicate {
		return nil
	}
	return err
}

// PurgeExpired removes idempotency records whose TTL has passed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, time.Now().UTC())
}
