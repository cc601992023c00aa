package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/auth"
	"storefront/internal/metrics"
	"storefront/internal/stores/kafka"
	"storefront/internal/users"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Signup(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newUser users.NewUser
	if err := c.ShouldBindJSON(&newUser); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validate.Struct(newUser); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		metrics.AuthEvents.WithLabelValues("signup", "invalid").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "please provide a valid email, a password of at least 6 characters, name and surname"})
		return
	}

	user, err := h.u.InsertUser(c.Request.Context(), newUser)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			slog.Info("signup with existing email", slog.String(logkey.TraceID, traceId))
			metrics.AuthEvents.WithLabelValues("signup", "conflict").Inc()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "User already exists with this email! Please log in!"})
			return
		}
		slog.Error("error in inserting the user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error inserting values"})
		return
	}
	metrics.AuthEvents.WithLabelValues("signup", "created").Inc()

	go func() {
		data, err := json.Marshal(kafka.AccountCreatedEvent{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		})
		if err != nil {
			slog.Error("error in marshaling user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
		key := []byte(strconv.FormatInt(user.ID, 10))
		if err := h.k.ProduceMessage(context.Background(), kafka.TopicAccountCreated, key, data); err != nil {
			slog.Error("error in producing message", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			return
		}
	}()

	slog.Info("user registered", slog.String(logkey.TraceID, traceId), slog.Int64(logkey.UserID, user.ID))
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user_id": user.ID})
}

func (h *Handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var cred users.Credentials
	if err := c.ShouldBindJSON(&cred); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(cred); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.u.Authenticate(ctx, cred)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			slog.Info("login rejected", slog.String(logkey.TraceID, traceId))
			metrics.AuthEvents.WithLabelValues("login", "rejected").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"login": false, "message": "Invalid email or password"})
			return
		}
		slog.Error("login error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login error"})
		return
	}

	token, _, err := h.keys.GenerateToken(auth.NewClaims(user.ID, user.Name, user.IsAdmin))
	if err != nil {
		slog.Error("error generating token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login error"})
		return
	}

	sessionID, err := h.sessions.CreateSession(ctx, auth.Session{UserID: user.ID, Name: user.Name, IsAdmin: user.IsAdmin}, h.sessionTTL)
	if err != nil {
		slog.Error("error creating session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login error"})
		return
	}
	h.setSessionCookie(c, sessionID, int(h.sessionTTL.Seconds()))
	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()

	c.JSON(http.StatusOK, gin.H{
		"login": true,
		"token": token,
		"user":  gin.H{"id": user.ID, "name": user.Name},
	})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookie, value, maxAge, "/", "", h.secureCookie, true)
}

// Logout drops whatever credentials the request carries and always answers 200.
// Store failures are logged; the cookie is cleared regardless.
func (h *Handler) Logout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	ctx := c.Request.Context()
	result := "ok"

	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, err := h.keys.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err == nil && claims.ExpiresAt != nil {
			if err := h.sessions.RevokeToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
				slog.Error("error revoking token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
				result = "error"
			}
		}
	}

	if sessionID, err := c.Cookie(auth.SessionCookie); err == nil && sessionID != "" {
		if err := h.sessions.DeleteSession(ctx, sessionID); err != nil {
			slog.Error("error deleting session", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			result = "error"
		}
	}
	h.setSessionCookie(c, "", -1)
	metrics.AuthEvents.WithLabelValues("logout", result).Inc()

	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

func (h *Handler) Verify(c *gin.Context) {
	claims, ok := claimsOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"validUser": true,
		"user":      gin.H{"userId": claims.UserID, "name": claims.Name, "roles": claims.Roles},
		"username":  claims.Name,
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	list, err := h.u.ListUsers(c.Request.Context())
	if err != nil {
		slog.Error("error fetching users", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error fetching users"})
		return
	}
	c.JSON(http.StatusOK, list)
}
