package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/services"
	"github.com/tbourn/go-coach-session/internal/utils"
)

// ListHistoryResponse wraps a page of cached session summaries.
type ListHistoryResponse struct {
	Sessions   []domain.SessionSummary `json:"sessions"`
	Pagination Pagination              `json:"pagination"`
}

// HistoryMessagesResponse is the cached transcript of one session.
type HistoryMessagesResponse struct {
	SessionID string               `json:"session_id"`
	Messages  []domain.ChatMessage `json:"messages"`
}

// ListHistory godoc
// @ID          listHistory
// @Summary     List cached sessions
// @Description Returns the user's sessions, most recently active first. Supports weak ETag via If-None-Match.
// @Tags        History
// @Produce     json
// @Param       X-User-ID      header  int     true   "Effective user id"           example(42)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListHistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	ctx := c.Request.Context()
	uid, _ := userID(c)
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.history.HistoryStats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"history:%d:%d:%d:%d:%d"`, uid, count, ts, page, pageSize)
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.history.History(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListHistoryResponse{
		Sessions:   items,
		Pagination: pagination(page, pageSize, total),
	})
}

// HistoryMessages godoc
// @ID          historyMessages
// @Summary     Get a cached transcript
// @Description Returns the cached transcript of one of the user's sessions.
// @Tags        History
// @Produce     json
// @Param       X-User-ID  header  int     true  "Effective user id"  example(42)
// @Param       id         path    string  true  "Session ID"         format(uuid)
// @Success     200  {object}  handlers.HistoryMessagesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history/{id}/messages [get]
func (h *Handlers) HistoryMessages(c *gin.Context) {
	uid, _ := userID(c)
	sid := strings.TrimSpace(c.Param("id"))
	if sid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id required")
		return
	}

	msgs, err := h.history.HistoryMessages(c.Request.Context(), uid, sid)
	if errors.Is(err, services.ErrSessionNotFound) {
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound, "session not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, HistoryMessagesResponse{SessionID: sid, Messages: msgs})
}
