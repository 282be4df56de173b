package httpgin

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/auth"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/metrics"
	"github.com/kirinyoku/tixmarket/internal/service/users"
)

const (
	requestIDKey = "request_id"
	identityKey  = "identity"
	userKey      = "user"
)

const maxRequestIDLen = 64

// RequestIDMiddleware echoes a client X-Request-ID when it is short and
// printable and mints one otherwise.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}

		c.Header("X-Request-ID", reqID)
		c.Set(requestIDKey, reqID)

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Idempotency-Key",
			"Retry-After",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		reqID, _ := c.Get(requestIDKey)

		attrs := []any{
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.String("ua", c.Request.UserAgent()),
			slog.Any("request_id", reqID),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", c.Writer.Size()),
		}

		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			attrs = append(attrs, slog.String("error", errs.String()))
			logger.Error("http", slog.Group("http", attrs...))
			return
		}
		logger.Info("http", slog.Group("http", attrs...))
	}
}

// MetricsMiddleware records request counts and latency by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Authenticate resolves the bearer token, if any, into an identity. A bad
// token is ignored so that purchases can proceed as a guest; routes that
// need a user add RequireAuth.
func Authenticate(v *auth.Verifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.Next()
			return
		}

		id, err := v.Verify(raw)
		if err != nil {
			logger.DebugContext(c.Request.Context(), "ignoring bearer token", slog.String("error", err.Error()))
			c.Set(identityKey+"_error", err)
			c.Next()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func RequireAuth(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := identityFrom(c); ok {
			c.Next()
			return
		}

		err := auth.ErrMissingToken
		if v, ok := c.Get(identityKey + "_error"); ok {
			err = v.(error)
		}
		respondErr(c, logger, err)
	}
}

type adminAuthorizer interface {
	Authorize(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RequireAdmin loads the caller's account and requires its stored role to
// be admin. Must run after RequireAuth.
func RequireAdmin(authz adminAuthorizer, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok {
			respondErr(c, logger, auth.ErrMissingToken)
			return
		}

		u, err := authz.Authorize(c.Request.Context(), id.UserID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				err = users.ErrNotAdmin
			}
			respondErr(c, logger, err)
			return
		}

		c.Set(userKey, u)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// callerKey scopes rate limits and idempotency keys: the user when signed
// in, the client address otherwise.
func callerKey(c *gin.Context) string {
	if id, ok := identityFrom(c); ok {
		return "user:" + id.UserID.String()
	}
	return "ip:" + c.ClientIP()
}
