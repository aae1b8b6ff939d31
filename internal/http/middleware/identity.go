// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the effective user id. Authentication itself happens
// upstream (gateway or sign-in flow); this service only trusts the positive
// integer the gateway forwards in X-User-ID.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the effective user id.
const HeaderUserID = "X-User-ID"

// ctxKeyUserID is the Gin context key holding the int64 user id.
const ctxKeyUserID = "userID"

// UserIdentity parses X-User-ID when present and stores it in the context.
// A malformed or non-positive value is rejected with 400; an absent header is
// left for RequireUser to decide.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_user_id",
				"message":    "X-User-ID must be a positive integer",
			})
			return
		}
		c.Set(ctxKeyUserID, id)
		c.Next()
	}
}

// RequireUser rejects requests without a resolved user id with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserIDFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthenticated",
				"message":    "missing X-User-ID",
			})
			return
		}
		c.Next()
	}
}

// UserIDFrom returns the user id stored by UserIdentity.
func UserIDFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// SetUserID stores id as the effective user; used by tests and alternative
// identity sources.
func SetUserID(c *gin.Context, id int64) { c.Set(ctxKeyUserID, id) }
