package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected optional headers: %#v", h)
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_ExposeMergesWithoutDuplicates(t *testing.T) {
	pre := func(c *gin.Context) {
		c.Header("Access-Control-Expose-Headers", "Foo, x-request-id")
		c.Next()
	}
	opt := SecurityOptions{Expose: []string{"ETag", "Idempotency-Replayed", "etag", " "}}
	h := serveSecurity(t, opt, pre, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if got := h.Get("Access-Control-Expose-Headers"); got != "Foo, x-request-id, ETag, Idempotency-Replayed" {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_WithPolicy_NoStore_HSTS_TLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, req)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("missing cache headers: %#v", h)
	}
	if want := "max-age=86400; includeSubDomains; preload"; h.Get("Strict-Transport-Security") != want {
		t.Fatalf("expected HSTS %q, got %q", want, h.Get("Strict-Transport-Security"))
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	t.Run("forwarded https with default max age", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		h := serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, req)
		if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000;") {
			t.Fatalf("expected 180d HSTS header, got %q", got)
		}
	})
	t.Run("plain http never gets HSTS", func(t *testing.T) {
		h := serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if got := h.Get("Strict-Transport-Security"); got != "" {
			t.Fatalf("unexpected HSTS on http: %q", got)
		}
	})
}
