// Session HTTP handlers.
//
// Idempotency:
// If the client supplies an Idempotency-Key header on POST /session/messages
// and a response for (user, session, key) was stored earlier, the handler
// returns that response verbatim and sets `Idempotency-Replayed: true`.
// Only settled turns are stored; a pending turn can be retried.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/http/middleware"
	"github.com/tbourn/go-coach-session/internal/search"
	"github.com/tbourn/go-coach-session/internal/services"
	"github.com/tbourn/go-coach-session/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultSearchK = 5
	maxSearchK     = 20
)

//
// DTOs
//

// SelectPersonaRequest is the JSON payload for PUT /session.
type SelectPersonaRequest struct {
	PersonaID string `json:"persona_id" binding:"required" example:"1"`
}

// SessionResponse describes the active session with one transcript page.
type SessionResponse struct {
	SessionID  string               `json:"session_id" example:"2f0c7a4e-1d8b-4c55-9a53-0b7f3c2a9d11"`
	Persona    domain.Persona       `json:"persona"`
	StartedAt  time.Time            `json:"started_at"`
	State      SessionState         `json:"state"`
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

// PostMessageRequest is the JSON payload for submitting text. Blank text is
// accepted and reported as ignored.
type PostMessageRequest struct {
	Text string `json:"text" example:"I want to run a 5k in two months"`
}

// PostMessageResponse reports what a submitted message produced.
//
// Kind is "chat", "decision", "clarify" or "ignored". Messages are the
// transcript entries the turn appended, including the echoed user message.
// Pending means the request stopped waiting before the coach answered; the
// reply will still land in the transcript.
type PostMessageResponse struct {
	SessionID string               `json:"session_id"`
	Kind      string               `json:"kind" example:"chat"`
	Ignored   bool                 `json:"ignored"`
	Pending   bool                 `json:"pending"`
	Discarded bool                 `json:"discarded"`
	Messages  []domain.ChatMessage `json:"messages"`
	State     SessionState         `json:"state"`
}

// ListMessagesResponse contains a page of transcript messages.
type ListMessagesResponse struct {
	SessionID  string               `json:"session_id"`
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

// SearchResponse lists ranked transcript snippets.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

//
// Helpers
//

// sessionFail maps service errors onto the error envelope.
func sessionFail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoActiveSession):
		fail(c, http.StatusConflict, ErrCodeNoActiveSession, "select a persona first")
	case errors.Is(err, services.ErrUnknownPersona):
		fail(c, http.StatusNotFound, ErrCodeUnknownPersona, "unknown persona")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLong, "message too long")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func pagination(page, pageSize int, total int64) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}

// normalizeText converts CRLF/CR line endings to LF. Surrounding whitespace is
// kept; the session decides what counts as blank.
func normalizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func (h *Handlers) sessionPage(c *gin.Context, uid int64) (*SessionResponse, error) {
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
	items, total, as, err := h.sessions.Messages(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &SessionResponse{
		SessionID:  as.ID,
		Persona:    as.Persona(),
		StartedAt:  as.StartedAt,
		State:      stateDTO(as.Controller.State()),
		Messages:   items,
		Pagination: pagination(page, pageSize, int64(total)),
	}, nil
}

//
// Handlers
//

// SelectPersona godoc
// @ID          selectPersona
// @Summary     Select a persona
// @Description Starts a session with the persona. Selecting the active persona keeps the session;
// @Description any other persona ends it and starts a fresh one (201).
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Effective user id"  example(42)
// @Param       body       body    handlers.SelectPersonaRequest  true  "Persona"
// @Success     200  {object}  handlers.SessionResponse  "Session kept"
// @Success     201  {object}  handlers.SessionResponse  "New session"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse    "Unknown persona"
// @Router      /session [put]
func (h *Handlers) SelectPersona(c *gin.Context) {
	uid, _ := userID(c)
	var req SelectPersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PersonaID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "persona_id required")
		return
	}

	_, switched, err := h.sessions.SelectPersona(c.Request.Context(), uid, strings.TrimSpace(req.PersonaID))
	if err != nil {
		sessionFail(c, err)
		return
	}
	resp, err := h.sessionPage(c, uid)
	if err != nil {
		sessionFail(c, err)
		return
	}
	status := http.StatusOK
	if switched {
		status = http.StatusCreated
	}
	ok(c, status, resp)
}

// GetSession godoc
// @ID          getSession
// @Summary     Get the active session
// @Description Returns session state and a transcript page. Supports weak ETag via If-None-Match.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID      header  int     true   "Effective user id"           example(42)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.SessionResponse
// @Header      200  {string}  ETag  "Weak ETag for the transcript"
// @Success     304  {string}  string  "Not Modified"
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	uid, _ := userID(c)
	as, err := h.sessions.Active(uid)
	if err != nil {
		sessionFail(c, err)
		return
	}
	st := as.Controller.State()
	etag := fmt.Sprintf(`W/"session:%s:%d:%d:%t"`, as.ID, as.Controller.Transcript().Len(), st.Seq, st.AwaitingApproval)
	if notModified(c, etag) {
		return
	}

	resp, err := h.sessionPage(c, uid)
	if err != nil {
		sessionFail(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Ends the active session. In-flight replies are discarded; cached history is kept.
// @Tags        Session
// @Param       X-User-ID  header  int  true  "Effective user id"  example(42)
// @Success     204  {string}  string  "No Content"
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session [delete]
func (h *Handlers) SignOut(c *gin.Context) {
	uid, _ := userID(c)
	if err := h.sessions.SignOut(c.Request.Context(), uid); err != nil {
		sessionFail(c, err)
		return
	}
	noContent(c)
}

// ResetSession godoc
// @ID          resetSession
// @Summary     Reset the session
// @Description Clears the transcript back to the persona greeting and detaches from the coach thread.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  int  true  "Effective user id"  example(42)
// @Success     200  {object}  handlers.SessionResponse
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session/reset [post]
func (h *Handlers) ResetSession(c *gin.Context) {
	uid, _ := userID(c)
	if _, err := h.sessions.Reset(c.Request.Context(), uid); err != nil {
		sessionFail(c, err)
		return
	}
	resp, err := h.sessionPage(c, uid)
	if err != nil {
		sessionFail(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Submits text to the active session and waits for the turn to settle.
// @Description While a plan awaits approval, "yes"/"no" answers it and anything else asks again.
// @Description Returns 202 with pending=true when the request stops waiting first.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  int     true   "Effective user id"  example(42)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       body             body    handlers.PostMessageRequest  true  "Message"
// @Success     200  {object}  handlers.PostMessageResponse  "Settled turn"
// @Success     202  {object}  handlers.PostMessageResponse  "Turn still running"
// @Header      200  {string}  Idempotency-Replayed  "true when served from the idempotency store or an earlier submission"
// @Header      202  {string}  Idempotency-Replayed  "true when joined to an earlier submission still running"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Failure     413  {object}  handlers.ErrorResponse  "Message too long"
// @Router      /session/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()
	uid, _ := userID(c)

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		as, err := h.sessions.Active(uid)
		if err != nil {
			sessionFail(c, err)
			return
		}
		if body, status, found := h.history.Replay(ctx, uid, as.ID, idemKey); found {
			c.Header("Idempotency-Replayed", "true")
			c.Data(status, "application/json; charset=utf-8", body)
			return
		}
	}

	res, err := h.sessions.SubmitOnce(ctx, uid, idemKey, normalizeText(req.Text))
	if err != nil {
		sessionFail(c, err)
		return
	}

	resp := PostMessageResponse{
		SessionID: res.SessionID,
		Kind:      string(res.Kind),
		Ignored:   res.Ignored,
		Pending:   res.Pending,
		Discarded: res.Discarded,
		Messages:  res.Messages,
		State:     stateDTO(res.State),
	}
	if resp.Messages == nil {
		resp.Messages = []domain.ChatMessage{}
	}
	status := http.StatusOK
	if res.Pending {
		status = http.StatusAccepted
	}
	if res.Joined {
		c.Header("Idempotency-Replayed", "true")
	}

	if idemKey == "" || res.Pending || res.Ignored {
		ok(c, status, resp)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "encode response")
		return
	}
	// Best effort: the turn already happened, a failed store only loses replay.
	if err := h.history.RememberResponse(ctx, uid, res.SessionID, idemKey, body, status, h.opts.IdempotencyTTL); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("session_id", res.SessionID).Msg("store idempotent response")
	} else {
		h.sessions.ForgetPending(uid, res.SessionID, idemKey)
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List transcript messages
// @Description Returns a page of the active transcript, oldest first.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  int  true   "Effective user id"  example(42)
// @Param       page       query   int  false  "Page number"        minimum(1) default(1)
// @Param       page_size  query   int  false  "Items per page"     minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, _ := userID(c)
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	items, total, as, err := h.sessions.Messages(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		sessionFail(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		SessionID:  as.ID,
		Messages:   items,
		Pagination: pagination(page, pageSize, int64(total)),
	})
}

// SearchMessages godoc
// @ID          searchMessages
// @Summary     Search the transcript
// @Description Ranks facts of the active transcript (plan rows, list items, lines) against the query.
// @Tags        Session
// @Produce     json
// @Param       X-User-ID  header  int     true   "Effective user id"  example(42)
// @Param       q          query   string  true   "Query"              example(squats)
// @Param       k          query   int     false  "Max results"        minimum(1) maximum(20) default(5)
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing query"
// @Failure     409  {object}  handlers.ErrorResponse  "No active session"
// @Router      /session/search [get]
func (h *Handlers) SearchMessages(c *gin.Context) {
	uid, _ := userID(c)
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	k := utils.AtoiDefault(c.Query("k"), defaultSearchK)
	if k < 1 {
		k = 1
	}
	if k > maxSearchK {
		k = maxSearchK
	}

	res, err := h.sessions.Search(c.Request.Context(), uid, q, k)
	if err != nil {
		sessionFail(c, err)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Results: res})
}
