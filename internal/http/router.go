// Package httpapi wires the HTTP transport (Gin) to the coaching session
// service, middleware and route handlers.
//
// Middleware order:
//  1. OpenTelemetry tracing
//  2. RequestID, then UserIdentity (X-User-ID)
//  3. RedactingLogger, then Recovery
//  4. Body size limit and Prometheus metrics
//  5. Idempotency validator (before the limiter so replays bypass it)
//  6. Rate limiter per user or IP
//  7. CORS, security headers and gzip
package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-coach-session/docs"
	"github.com/tbourn/go-coach-session/internal/config"
	"github.com/tbourn/go-coach-session/internal/http/handlers"
	"github.com/tbourn/go-coach-session/internal/http/middleware"
	"github.com/tbourn/go-coach-session/internal/services"
)

const maxBodyBytes = 1 << 20

var (
	corsMethods       = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	corsExposeHeaders = []string{"X-Request-ID", "ETag", "Idempotency-Replayed", "Content-Length"}
)

// RegisterRoutes attaches all middleware and endpoints to r and mounts the
// session API under cfg.APIBasePath.
func RegisterRoutes(r *gin.Engine, svc *services.SessionService, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	api := cfg.APIBasePath
	if api == "/" {
		api = ""
	}
	streamPath := api + "/session/stream"

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.UserIdentity())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics("/metrics"))

	// Replays are scoped to the active session, so a reset starts a fresh key space.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(c *gin.Context) string {
			uid, ok := middleware.UserIDFrom(c)
			if !ok || c.Request.Method != http.MethodPost {
				return ""
			}
			as, err := svc.Active(uid)
			if err != nil {
				return ""
			}
			return as.ID
		},
		svc.HasReplay,
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
		Expose:       []string{"ETag", "Idempotency-Replayed"},
	}))
	// The stream needs the raw connection for the upgrade.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{streamPath, "/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc, svc, svc.Personas, handlers.Options{
		IdempotencyTTL: cfg.IdempotencyTTL,
		StreamOrigins:  originHosts(cfg.CORS.AllowedOrigins),
	})

	g := r.Group(api, middleware.RequireUser())
	{
		g.GET("/personas", h.ListPersonas)

		g.PUT("/session", h.SelectPersona)
		g.GET("/session", h.GetSession)
		g.DELETE("/session", h.SignOut)
		g.POST("/session/reset", h.ResetSession)
		g.GET("/session/stream", h.Stream)

		g.GET("/session/messages", h.ListMessages)
		g.POST("/session/messages", h.PostMessage)
		g.GET("/session/search", h.SearchMessages)

		g.GET("/history", h.ListHistory)
		g.GET("/history/:id/messages", h.HistoryMessages)
	}
}

// corsMiddleware allows every origin when allowed is empty and otherwise
// echoes allowlisted origins.
func corsMiddleware(allowed []string) []gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     corsMethods,
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    corsExposeHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		cc.AllowAllOrigins = true
		// Set ACAO even without an Origin header so plain health checks see it.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cc),
		}
	}

	cc.AllowOrigins = allowed
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := set[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cc),
	}
}

// originHosts turns CORS origins into WebSocket origin patterns, which match
// on host only.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(strings.TrimSpace(o)); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}

// limitBody caps the request body at maxBytes; larger bodies fail to bind.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
