package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/TharinduDesh/chatAPP/internal/repo"
	"github.com/TharinduDesh/chatAPP/internal/service"

	"github.com/gin-gonic/gin"
)

// minPublicKeyLen guards against obviously truncated key uploads.
const minPublicKeyLen = 10

// ChatHandler exposes the REST read paths and E2EE key endpoints. Session
// authentication happens upstream; handlers trust the forwarded user id the
// same way the socket layer trusts its connection parameters.
type ChatHandler interface {
	GetConversationMessages(c *gin.Context)
	GetConversations(c *gin.Context)
	UploadPublicKey(c *gin.Context)
	GetPublicKey(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{service: service}
}

// GetConversationMessages returns one page of a conversation's history.
func (h *chatHandler) GetConversationMessages(c *gin.Context) {
	conversationID := c.Param("conversationId")
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}

	result, err := h.service.GetConversationHistory(c.Request.Context(), conversationID, page)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidConversationID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": result})
}

// GetConversations returns the requesting user's conversations, most
// recently updated first.
func (h *chatHandler) GetConversations(c *gin.Context) {
	userID := requestUserID(c)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conversations, err := h.service.GetConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

type uploadKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// UploadPublicKey stores the requesting user's E2EE public key.
func (h *chatHandler) UploadPublicKey(c *gin.Context) {
	userID := requestUserID(c)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	var req uploadKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.PublicKey) < minPublicKeyLen {
		c.JSON(http.StatusBadRequest, gin.H{"message": "A valid publicKey string is required."})
		return
	}

	if err := h.service.UploadPublicKey(c.Request.Context(), userID, req.PublicKey); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error uploading public key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Public key uploaded successfully"})
}

// GetPublicKey returns another user's E2EE public key.
func (h *chatHandler) GetPublicKey(c *gin.Context) {
	userID := c.Param("userId")

	publicKey, err := h.service.GetPublicKey(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) || errors.Is(err, repo.ErrPublicKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Public key for this user not found."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching public key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"publicKey": publicKey})
}

// requestUserID reads the pre-validated identity forwarded by the auth
// layer: header first, query parameter as a fallback.
func requestUserID(c *gin.Context) string {
	if id := c.GetHeader("X-User-Id"); id != "" {
		return id
	}
	return c.Query("userId")
}
