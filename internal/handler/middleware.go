package handler

import (
	"account_service/internal/models"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey    = "principal"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// AuthMiddleware resolves the bearer access token into a principal once per
// request. Handlers read it back with principalFrom.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.AuthMiddleware"

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "authentication credentials were not provided")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		principal, err := h.serviceLayer.ResolvePrincipal(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			respondWithMappedError(c, h.log.With(slog.String("op", op)), err, accessTokenErrorCases)

			return
		}

		c.Set(principalKey, principal)

		c.Next()
	}
}

func principalFrom(c *gin.Context) *models.Account {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil
	}

	principal, _ := value.(*models.Account)
	return principal
}

// RequestID propagates an incoming X-Request-ID when it is a UUID and
// assigns a fresh one otherwise.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if parsed, err := uuid.Parse(id); err == nil && len(id) == 36 {
			id = parsed.String()
		} else {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

// RequestLogger writes one access log line per request. Bodies are never
// logged since they carry passwords and tokens.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}

		if principal := principalFrom(c); principal != nil {
			attrs = append(attrs, slog.String("account_id", principal.ID.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request completed", attrs...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}
