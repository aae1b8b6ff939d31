// Package services – SessionService
//
// SessionService owns one coaching session per user: it creates the
// session.Controller for the selected persona, replaces it on persona switch,
// drops it on sign-out and caches every settled turn's transcript and summary
// in the key-value store so prior sessions can be listed and re-read.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user and session identifiers where applicable.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/repo"
	"github.com/tbourn/go-coach-session/internal/search"
	"github.com/tbourn/go-coach-session/internal/session"
)

const defaultPersistTimeout = 5 * time.Second

// ActiveSession is the live session of one user. A Reset produces a new
// ActiveSession (new ID) around the same Controller.
type ActiveSession struct {
	ID         string
	UserID     int64
	StartedAt  time.Time
	Controller *session.Controller
}

// Persona returns the persona of the session.
func (a *ActiveSession) Persona() domain.Persona { return a.Controller.Persona() }

// TurnResult describes a submitted message after its turn settled or the
// caller stopped waiting.
type TurnResult struct {
	SessionID string
	Kind      session.TurnKind
	Ignored   bool
	// Pending is true when the caller's context ended before the backend
	// answered; the turn keeps running and its reply lands in the transcript.
	Pending   bool
	Discarded bool
	// Joined is true when the result belongs to an earlier submission with
	// the same idempotency key.
	Joined   bool
	Messages []domain.ChatMessage
	State    session.State
}

// pendingKey identifies a keyed submission within one session.
type pendingKey struct {
	userID    int64
	sessionID string
	key       string
}

// SessionService coordinates active sessions and the transcript cache.
type SessionService struct {
	DB       *gorm.DB
	Backend  session.Backend
	Personas *PersonaCatalog

	// Optional guards
	MaxMessageRunes int
	PersistTimeout  time.Duration

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int

	mu     sync.Mutex
	active map[int64]*ActiveSession

	// Keyed turns not yet stored for replay. Lock order: pendingMu may be
	// held while the session hook takes mu, never the reverse.
	pendingMu sync.Mutex
	pending   map[pendingKey]*session.Turn
}

// NewSessionService constructs a SessionService with default title handling.
func NewSessionService(db *gorm.DB, backend session.Backend, personas *PersonaCatalog) *SessionService {
	return &SessionService{
		DB:          db,
		Backend:     backend,
		Personas:    personas,
		TitleLocale: language.English,
		TitleMaxLen: defaultTitleMaxLen,
		active:      make(map[int64]*ActiveSession),
		pending:     make(map[pendingKey]*session.Turn),
	}
}

// SelectPersona makes personaID the user's active persona. Selecting the
// persona that is already active keeps the session; any other persona closes
// the current session and starts a fresh one. switched reports which happened.
func (s *SessionService) SelectPersona(ctx context.Context, userID int64, personaID string) (as *ActiveSession, switched bool, err error) {
	_, span := otel.Tracer("services/SessionService").Start(ctx, "SelectPersona",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("persona.id", personaID),
		),
	)
	defer span.End()

	p, ok := s.Personas.Get(personaID)
	if !ok {
		return nil, false, ErrUnknownPersona
	}

	defer func() {
		if switched {
			s.dropPending(userID)
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[int64]*ActiveSession)
	}
	if cur, ok := s.active[userID]; ok {
		if cur.Persona().ID == p.ID {
			return cur, false, nil
		}
		cur.Controller.Close()
	}

	as = s.newSessionLocked(userID, p)
	span.SetAttributes(attribute.String("session.id", as.ID))
	return as, true, nil
}

// Active returns the user's live session or ErrNoActiveSession.
func (s *SessionService) Active(userID int64) (*ActiveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.active[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return as, nil
}

// Submit hands text to the user's session and waits for the turn to settle or
// ctx to end, whichever comes first. Blank input is reported as ignored, not
// as an error.
func (s *SessionService) Submit(ctx context.Context, userID int64, text string) (*TurnResult, error) {
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	as, err := s.Active(userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", as.ID))
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(strings.TrimSpace(text)) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	return s.await(ctx, as, as.Controller.Submit(ctx, text, userID), false), nil
}

// SubmitOnce is Submit for a request carrying an idempotency key. While a
// turn started under the same key in the same session has not been
// forgotten, later calls wait on that turn instead of submitting again.
// An empty key behaves like Submit.
func (s *SessionService) SubmitOnce(ctx context.Context, userID int64, key, text string) (*TurnResult, error) {
	if key == "" {
		return s.Submit(ctx, userID, text)
	}
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "SubmitOnce",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	as, err := s.Active(userID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", as.ID))

	pk := pendingKey{userID: userID, sessionID: as.ID, key: key}
	s.pendingMu.Lock()
	turn, joined := s.pending[pk]
	if !joined {
		if s.MaxMessageRunes > 0 && utf8.RuneCountInString(strings.TrimSpace(text)) > s.MaxMessageRunes {
			s.pendingMu.Unlock()
			return nil, ErrTooLong
		}
		turn = as.Controller.Submit(ctx, text, userID)
		if !turn.Ignored() {
			if s.pending == nil {
				s.pending = make(map[pendingKey]*session.Turn)
			}
			s.pending[pk] = turn
		}
	}
	s.pendingMu.Unlock()
	span.SetAttributes(attribute.Bool("idempotency.joined", joined))

	return s.await(ctx, as, turn, joined), nil
}

// ForgetPending releases the turn kept for key once its response is stored
// for replay.
func (s *SessionService) ForgetPending(userID int64, sessionID, key string) {
	s.pendingMu.Lock()
	delete(s.pending, pendingKey{userID: userID, sessionID: sessionID, key: key})
	s.pendingMu.Unlock()
}

func (s *SessionService) dropPending(userID int64) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for k := range s.pending {
		if k.userID == userID {
			delete(s.pending, k)
		}
	}
}

func (s *SessionService) await(ctx context.Context, as *ActiveSession, turn *session.Turn, joined bool) *TurnResult {
	pending := turn.Wait(ctx) != nil
	return &TurnResult{
		SessionID: as.ID,
		Kind:      turn.Kind(),
		Ignored:   turn.Ignored(),
		Pending:   pending,
		Discarded: turn.Discarded(),
		Joined:    joined,
		Messages:  turn.Messages(),
		State:     as.Controller.State(),
	}
}

// Messages returns a page of the active transcript (page is 1-based) and the
// total number of messages.
func (s *SessionService) Messages(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatMessage, int, *ActiveSession, error) {
	_, span := otel.Tracer("services/SessionService").Start(ctx, "Messages",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	as, err := s.Active(userID)
	if err != nil {
		return nil, 0, nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	items, total := as.Controller.Transcript().Page((page-1)*pageSize, pageSize)
	return items, total, as, nil
}

// Reset restarts the user's session with the same persona: fresh greeting,
// no thread, new session id. The previous transcript stays in history.
func (s *SessionService) Reset(ctx context.Context, userID int64) (*ActiveSession, error) {
	_, span := otel.Tracer("services/SessionService").Start(ctx, "Reset",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	defer s.dropPending(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.active[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	cur.Controller.Reset()
	next := &ActiveSession{
		ID:         uuid.NewString(),
		UserID:     userID,
		StartedAt:  time.Now().UTC(),
		Controller: cur.Controller,
	}
	s.active[userID] = next
	return next, nil
}

// SignOut closes and forgets the user's session.
func (s *SessionService) SignOut(ctx context.Context, userID int64) error {
	_, span := otel.Tracer("services/SessionService").Start(ctx, "SignOut",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	defer s.dropPending(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.active[userID]
	if !ok {
		return ErrNoActiveSession
	}
	cur.Controller.Close()
	delete(s.active, userID)
	return nil
}

// Close ends every active session. Used on shutdown.
func (s *SessionService) Close() {
	defer func() {
		s.pendingMu.Lock()
		clear(s.pending)
		s.pendingMu.Unlock()
	}()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, as := range s.active {
		as.Controller.Close()
		delete(s.active, id)
	}
}

// Search ranks facts of the active transcript against query.
func (s *SessionService) Search(ctx context.Context, userID int64, query string, k int) ([]search.Result, error) {
	_, span := otel.Tracer("services/SessionService").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("k", k),
		),
	)
	defer span.End()

	as, err := s.Active(userID)
	if err != nil {
		return nil, err
	}
	msgs := as.Controller.Transcript().Messages()
	docs := make([]search.Document, len(msgs))
	for i, m := range msgs {
		docs[i] = search.Document{ID: m.ID, Origin: string(m.Origin), Text: m.Text}
	}
	res := search.NewIndex(docs).TopK(query, k)
	if res == nil {
		res = []search.Result{}
	}
	return res, nil
}

func (s *SessionService) newSessionLocked(userID int64, p domain.Persona) *ActiveSession {
	var ctrl *session.Controller
	ctrl = session.NewController(s.Backend, p,
		session.WithLogger(log.Logger.With().Int64("user_id", userID).Logger()),
		session.WithTurnHook(func(t *session.Turn) { s.persistTurn(userID, ctrl, t) }),
	)
	as := &ActiveSession{
		ID:         uuid.NewString(),
		UserID:     userID,
		StartedAt:  time.Now().UTC(),
		Controller: ctrl,
	}
	s.active[userID] = as
	return as
}

// persistTurn caches the transcript and summary of the session ctrl currently
// backs. Failures are logged; the cache is best effort.
func (s *SessionService) persistTurn(userID int64, ctrl *session.Controller, t *session.Turn) {
	if s.DB == nil || t.Discarded() {
		return
	}
	s.mu.Lock()
	as, ok := s.active[userID]
	s.mu.Unlock()
	if !ok || as.Controller != ctrl {
		return
	}

	timeout := s.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.saveSnapshot(ctx, as); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Str("session_id", as.ID).Msg("transcript cache write failed")
	}
}

func (s *SessionService) saveSnapshot(ctx context.Context, as *ActiveSession) error {
	msgs := as.Controller.Transcript().Messages()
	var firstUser string
	for _, m := range msgs {
		if m.Origin == domain.OriginUser {
			firstUser = m.Text
			break
		}
	}
	if firstUser == "" {
		return nil
	}

	p := as.Persona()
	title := generateTitle(firstUser, s.TitleLocale, s.TitleMaxLen)
	if title == "" {
		title = "Session with " + p.Name
	}
	sum := domain.SessionSummary{
		ID:           as.ID,
		PersonaID:    p.ID,
		PersonaName:  p.Name,
		Title:        title,
		MessageCount: len(msgs),
		StartedAt:    as.StartedAt,
		UpdatedAt:    msgs[len(msgs)-1].CreatedAt,
	}
	sumJSON, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	msgJSON, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.PutKV(ctx, tx, transcriptKey(as.UserID, as.ID), msgJSON); err != nil {
			return err
		}
		return repo.PutKV(ctx, tx, summaryKey(as.UserID, as.ID), sumJSON)
	})
}

func summaryPrefix(userID int64) string { return fmt.Sprintf("summary/%d/", userID) }

func summaryKey(userID int64, sessionID string) string { return summaryPrefix(userID) + sessionID }

func transcriptKey(userID int64, sessionID string) string {
	return fmt.Sprintf("transcript/%d/%s", userID, sessionID)
}

// isNotFound reports whether err is the repository's not-found error.
func isNotFound(err error) bool { return errors.Is(err, repo.ErrNotFound) }
