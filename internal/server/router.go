package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/syncreset/internal/auth"
	"github.com/MarcoPoloResearchLab/syncreset/internal/resets"
	"github.com/MarcoPoloResearchLab/syncreset/internal/resetstore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	operatorContextKey  = "syncreset_operator"
	requestIDContextKey = "syncreset_request_id"
	requestIDHeader     = "X-Request-ID"
	accessTokenQuery    = "access_token"

	defaultHeartbeatInterval = 15 * time.Second
)

var (
	errMissingResetService   = errors.New("reset service dependency required")
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingRealtime       = errors.New("realtime dispatcher dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

type TokenValidator interface {
	ValidateToken(token string) (auth.OperatorClaims, error)
}

type ResetService interface {
	Track(ctx context.Context, request resets.TrackRequest) (resetstore.PendingReset, error)
	Clear(ctx context.Context) (*resetstore.PendingReset, error)
	Pending(ctx context.Context) (*resetstore.PendingReset, error)
}

type Dependencies struct {
	Resets            ResetService
	Tokens            TokenValidator
	Realtime          *RealtimeDispatcher
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

// NewHTTPHandler builds the admin API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Resets == nil {
		return nil, errMissingResetService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	corsConfig := newCORSConfig(deps.AllowedOrigins)
	if err := corsConfig.Validate(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(cors.New(corsConfig))

	handler := &httpHandler{
		resets:    deps.Resets,
		tokens:    deps.Tokens,
		realtime:  deps.Realtime,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/pending-reset", handler.handlePendingReset)
	protected.POST("/pending-reset", handler.handleTrackReset)
	protected.DELETE("/pending-reset", handler.handleClearReset)
	protected.GET("/pending-reset/events", handler.handleEvents)

	return router, nil
}

func newCORSConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	return config
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			if generated, err := uuid.NewV7(); err == nil {
				requestID = generated.String()
			}
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

type httpHandler struct {
	resets    ResetService
	tokens    TokenValidator
	realtime  *RealtimeDispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

type statusErrorPayload struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type resetPayload struct {
	Time   string              `json:"time"`
	Mode   string              `json:"mode"`
	Action string              `json:"action"`
	Error  *statusErrorPayload `json:"error,omitempty"`
}

type pendingResponsePayload struct {
	Pending bool          `json:"pending"`
	Reset   *resetPayload `json:"reset,omitempty"`
}

type trackRequestPayload struct {
	Mode         string  `json:"mode"`
	Action       string  `json:"action"`
	ErrorCode    *int64  `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

type eventPayload struct {
	Source    string       `json:"source"`
	Timestamp string       `json:"timestamp"`
	Reset     resetPayload `json:"reset"`
}

type heartbeatPayload struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

func newResetPayload(reset resetstore.PendingReset) resetPayload {
	payload := resetPayload{
		Time:   reset.Time.UTC().Format(time.RFC3339Nano),
		Mode:   string(reset.Mode),
		Action: string(reset.Action),
	}
	if reset.Error != nil {
		payload.Error = &statusErrorPayload{
			Code:    int64(reset.Error.Code),
			Message: reset.Error.Message,
		}
	}
	return payload
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePendingReset(c *gin.Context) {
	pending, err := h.resets.Pending(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "failed to read pending reset", err)
		return
	}
	if pending == nil {
		c.JSON(http.StatusOK, pendingResponsePayload{Pending: false})
		return
	}
	payload := newResetPayload(*pending)
	c.JSON(http.StatusOK, pendingResponsePayload{Pending: true, Reset: &payload})
}

func (h *httpHandler) handleTrackReset(c *gin.Context) {
	var request trackRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	mode, err := resetstore.ParseResyncMode(request.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_mode"})
		return
	}
	action, err := resetstore.ParseAction(request.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_action"})
		return
	}

	trackRequest := resets.TrackRequest{Mode: mode, Action: action}
	switch {
	case request.ErrorCode != nil:
		message := ""
		if request.ErrorMessage != nil {
			message = *request.ErrorMessage
		}
		trackRequest.Error = &resetstore.Status{
			Code:    resetstore.ErrorCode(*request.ErrorCode),
			Message: message,
		}
	case request.ErrorMessage != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_error"})
		return
	}

	tracked, err := h.resets.Track(c.Request.Context(), trackRequest)
	if err != nil {
		h.respondServiceError(c, "failed to track pending reset", err)
		return
	}
	c.JSON(http.StatusCreated, newResetPayload(tracked))
}

func (h *httpHandler) handleClearReset(c *gin.Context) {
	if _, err := h.resets.Clear(c.Request.Context()); err != nil {
		h.respondServiceError(c, "failed to clear pending reset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event := <-stream:
			c.SSEvent(event.Type, eventPayload{
				Source:    realtimeSource,
				Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
				Reset:     newResetPayload(event.Reset),
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, heartbeatPayload{
				Source:    realtimeSource,
				Timestamp: tick.UTC().Format(time.RFC3339Nano),
			})
			return true
		}
	})
}

func (h *httpHandler) respondServiceError(c *gin.Context, message string, err error) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("request_id", c.GetString(requestIDContextKey)),
		zap.String("operator", c.GetString(operatorContextKey)),
	}
	switch {
	case errors.Is(err, resetstore.ErrResetAlreadyTracked):
		c.JSON(http.StatusConflict, gin.H{"error": "already_tracked"})
	case errors.Is(err, resetstore.ErrInvalidReset):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case resetstore.IsStructural(err):
		h.logger.Error(message, fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_corrupted"})
	default:
		h.logger.Error(message, fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		fields := []zap.Field{zap.Error(err), zap.String("request_id", c.GetString(requestIDContextKey))}
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", fields...)
		} else {
			h.logger.Warn("token validation failed", fields...)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(operatorContextKey, claims.Subject)
	c.Next()
}

// bearerToken reads the Authorization header, falling back to the access_token
// query parameter because EventSource clients cannot set headers.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		return token, token != ""
	}
	token := strings.TrimSpace(c.Query(accessTokenQuery))
	return token, token != ""
}
