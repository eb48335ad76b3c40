package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zwubman/software-company-sub002/internal/domain"
	"github.com/Zwubman/software-company-sub002/internal/identity"
	"github.com/Zwubman/software-company-sub002/internal/registry"
	"github.com/Zwubman/software-company-sub002/internal/service"
	"github.com/Zwubman/software-company-sub002/pkg/log"
	"github.com/Zwubman/software-company-sub002/pkg/response"
)

const (
	defaultLimit = 50

	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "

	ctxIdentityKey = "chat_identity"
)

// HTTPHandler serves the request/response surface: message history for the
// initial page load, conversation presence for the agent console, and
// liveness.
type HTTPHandler struct {
	history   service.HistoryService
	validator identity.Validator
	registry  registry.Registry
	wsHandler *WSHandler
	maxLimit  int
}

func NewHTTPHandler(history service.HistoryService, validator identity.Validator, reg registry.Registry, ws *WSHandler, maxLimit int) *HTTPHandler {
	return &HTTPHandler{
		history:   history,
		validator: validator,
		registry:  reg,
		wsHandler: ws,
		maxLimit:  maxLimit,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.authRequired())
	{
		api.GET("/conversations/:conversation_id/messages", h.GetMessages)
		api.GET("/conversations/:conversation_id/presence", h.GetPresence)
	}

	r.GET("/chat/ws", func(c *gin.Context) {
		h.wsHandler.HandleWebSocket(c.Writer, c.Request)
	})

	r.GET("/health", h.HealthCheck)
}

// authRequired validates the bearer credential and stashes the identity.
func (h *HTTPHandler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if !strings.HasPrefix(header, bearerPrefix) {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		ident, err := h.validator.Validate(c.Request.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			response.Unauthorized(c, "invalid or expired credential")
			c.Abort()
			return
		}

		c.Set(ctxIdentityKey, ident)
		c.Set(log.FieldParticipantID, ident.ParticipantID)
		c.Set(log.FieldRole, string(ident.Role))
		c.Next()
	}
}

func (h *HTTPHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		response.BadRequest(c, "conversation_id is required")
		return
	}

	ident := c.MustGet(ctxIdentityKey).(*identity.Identity)

	conv, err := h.history.ConversationFor(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			response.NotFound(c, "conversation not found")
			return
		}
		response.InternalError(c, "failed to load conversation")
		return
	}

	// A user only reads their own conversation; agents read any.
	if ident.Role != domain.RoleAgent && conv.UserID != ident.ParticipantID {
		response.Forbidden(c, "not a participant of this conversation")
		return
	}

	var after int64
	if afterStr := c.Query("after"); afterStr != "" {
		parsed, err := strconv.ParseInt(afterStr, 10, 64)
		if err != nil || parsed < 0 {
			response.BadRequest(c, "after must be a non-negative integer")
			return
		}
		after = parsed
	}

	limit := defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > h.maxLimit {
			limit = h.maxLimit
		}
	}

	page, err := h.history.GetHistory(c.Request.Context(), conversationID, after, limit)
	if err != nil {
		response.InternalError(c, "failed to get message history")
		return
	}

	response.Success(c, page)
}

// GetPresence reports whether a conversation has live channels and which
// instance serves them. The agent console uses it to distinguish "customer is
// online" from "will see the reply on their next visit".
func (h *HTTPHandler) GetPresence(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		response.BadRequest(c, "conversation_id is required")
		return
	}

	ident := c.MustGet(ctxIdentityKey).(*identity.Identity)
	if ident.Role != domain.RoleAgent {
		response.Forbidden(c, "agent role required")
		return
	}

	addr, err := h.registry.Lookup(c.Request.Context(), conversationID)
	if err != nil {
		response.InternalError(c, "failed to look up presence")
		return
	}

	response.Success(c, gin.H{
		"conversation_id": conversationID,
		"online":          addr != "",
		"instance":        addr,
	})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "ok",
	})
}
