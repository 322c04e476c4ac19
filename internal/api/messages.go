package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookxchange/bookxchange/internal/chat"
	"github.com/bookxchange/bookxchange/internal/models"
)

// MessageHandler handles message and conversation routes
type MessageHandler struct {
	Chat *chat.Service
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(svc *chat.Service) *MessageHandler {
	return &MessageHandler{Chat: svc}
}

// SendMessage handles the creation of a new message. The sender is
// the authenticated caller.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.Chat.Send(senderID, req.ReceiverID, req.ListingID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// GetConversations returns the caller's conversations, newest
// activity first, enriched with counterpart, last message and listing.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summaries, err := h.Chat.Conversations(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetConversationMessages returns the messages of one conversation in
// creation order. Participants only.
func (h *MessageHandler) GetConversationMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conversationID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	messages, err := h.Chat.ConversationMessages(userID, conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkMessageAsRead marks a message as read. Receiver only.
func (h *MessageHandler) MarkMessageAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	messageID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	if err := h.Chat.MarkRead(userID, messageID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
