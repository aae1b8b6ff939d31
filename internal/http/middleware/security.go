// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which attaches a conservative set of
// HTTP security headers for the JSON API: optional HSTS (only on HTTPS
// requests), optional no-store caching for transcripts, and browser feature
// policies. No CSP is set; the service serves no HTML besides Swagger UI.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures HTTP security headers emitted by SecurityHeaders.
//
// HSTSMaxAge defaults to 180 days when not positive. NoStore adds
// Cache-Control: no-store (plus legacy Pragma/Expires); transcripts are
// personal, so production keeps it on. Expose lists response headers browser
// clients may read in addition to X-Request-ID (e.g. ETag,
// Idempotency-Replayed).
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // e.g., 180 * 24h
	NoStore      bool          // add Cache-Control: no-store
	EnablePolicy bool          // include Permissions-Policy, etc.
	Expose       []string
}

// SecurityHeaders returns a Gin middleware that adds security headers to each
// response.
//
// Always sets X-Content-Type-Options: nosniff, X-Frame-Options: DENY and
// Referrer-Policy: no-referrer. EnablePolicy adds Permissions-Policy and
// X-Permitted-Cross-Domain-Policies. EnableHSTS adds Strict-Transport-Security
// on HTTPS requests only. Access-Control-Expose-Headers is extended, never
// clobbered, with X-Request-ID and opt.Expose.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	expose := append([]string{requestIDHeader}, opt.Expose...)

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		const hdr = "Access-Control-Expose-Headers"
		h.Set(hdr, mergeHeaderList(h.Get(hdr), expose))

		c.Next()
	}
}

// mergeHeaderList appends names missing from the comma-separated list cur,
// compared case-insensitively.
func mergeHeaderList(cur string, names []string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			seen[strings.ToLower(p)] = struct{}{}
			out = append(out, p)
		}
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(n)]; ok {
			continue
		}
		seen[strings.ToLower(n)] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// (r.TLS != nil) or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
