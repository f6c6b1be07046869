package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pilltick/backend/internal/friends"
	"go.uber.org/zap"
)

// FriendHandler implements the friend-request processing endpoint
type FriendHandler struct {
	service *friends.Service
	auth    *friends.Authenticator
	logger  *zap.Logger
}

// NewFriendHandler creates a new FriendHandler
func NewFriendHandler(service *friends.Service, auth *friends.Authenticator, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{
		service: service,
		auth:    auth,
		logger:  logger,
	}
}

// FriendRequestBody is the decision payload
type FriendRequestBody struct {
	Action       string `json:"action" binding:"required"`
	FriendshipID string `json:"friendship_id" binding:"required"`
}

// FriendResponse mirrors the serverless function contract:
// 200 {success:true, message} or 400 {success:false, error}
type FriendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProcessFriendRequest handles POST /process-friend-request
func (h *FriendHandler) ProcessFriendRequest(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, FriendResponse{
			Success: false,
			Error:   "missing bearer token",
		})
		return
	}

	user, err := h.auth.ValidateToken(token)
	if err != nil {
		h.logger.Warn("friend request with invalid token", zap.Error(err))
		c.JSON(http.StatusUnauthorized, FriendResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	var body FriendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, FriendResponse{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	message, err := h.service.Process(c.Request.Context(), user.UserID, friends.Action(body.Action), body.FriendshipID)
	if err != nil {
		h.logger.Error("failed to process friend request",
			zap.Error(err),
			zap.String("friendship_id", body.FriendshipID),
			zap.String("action", body.Action),
		)
		c.JSON(http.StatusBadRequest, FriendResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, FriendResponse{
		Success: true,
		Message: message,
	})
}

// bearerToken extracts the token from an Authorization header
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
