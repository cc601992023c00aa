package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"storefront/internal/auth"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

type Mid struct {
	k        *auth.Keys
	sessions auth.SessionStore
}

func NewMid(k *auth.Keys, sessions auth.SessionStore) (*Mid, error) {
	if k == nil {
		return nil, errors.New("auth keys cannot be nil")
	}
	if sessions == nil {
		return nil, errors.New("session store cannot be nil")
	}
	return &Mid{k: k, sessions: sessions}, nil
}

// Authentication accepts a bearer token first and falls back to the session cookie.
// Successful requests carry auth.Claims under auth.ClaimsKey.
func (m *Mid) Authentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)
		ctx := c.Request.Context()

		claims, err := m.claimsFromRequest(ctx, c)
		if err != nil {
			if !isCredentialError(err) {
				slog.Error("session store unavailable", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
				return
			}
			slog.Error("authentication failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": authFailureMessage(err)})
			return
		}

		ctx = context.WithValue(ctx, auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

var (
	errNoCredentials = errors.New("no bearer token or session cookie")
	errAuthHeader    = errors.New("expected authorization header format: Bearer <token>")
	errTokenRevoked  = errors.New("token has been revoked")
)

// isCredentialError separates bad or missing credentials from session store failures.
func isCredentialError(err error) bool {
	return errors.Is(err, errNoCredentials) ||
		errors.Is(err, errAuthHeader) ||
		errors.Is(err, errTokenRevoked) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrSessionNotFound)
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, errNoCredentials):
		return "No token"
	case errors.Is(err, errAuthHeader):
		return "Invalid auth header"
	default:
		return "Invalid token"
	}
}

func (m *Mid) claimsFromRequest(ctx context.Context, c *gin.Context) (auth.Claims, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return auth.Claims{}, errAuthHeader
		}

		claims, err := m.k.ValidateToken(parts[1])
		if err != nil {
			return auth.Claims{}, err
		}
		revoked, err := m.sessions.IsTokenRevoked(ctx, claims.ID)
		if err != nil {
			return auth.Claims{}, err
		}
		if revoked {
			return auth.Claims{}, errTokenRevoked
		}
		return claims, nil
	}

	sessionID, err := c.Cookie(auth.SessionCookie)
	if err != nil || sessionID == "" {
		return auth.Claims{}, errNoCredentials
	}
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return auth.Claims{}, err
	}
	return session.Claims(), nil
}

// Authorize runs next only when the authenticated caller holds role.
func (m *Mid) Authorize(next gin.HandlerFunc, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := ctxmanage.GetTraceIdOfRequest(c)
		claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		if !ok {
			slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !claims.HasRole(role) {
			slog.Error("missing role", slog.String(logkey.TraceID, traceId), slog.String("role", role),
				slog.Int64(logkey.UserID, claims.UserID))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		next(c)
	}
}
