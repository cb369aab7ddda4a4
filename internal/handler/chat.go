package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/middleware"
	"delivery/internal/service"
)

// ChatHandler handles HTTP requests for order chat threads.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// MessageResponse is the HTTP response for a chat message.
type MessageResponse struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	SenderID string `json:"sender_id"`
	Role     string `json:"role"`
	Body     string `json:"body"`
	Read     bool   `json:"read"`
	SentAt   string `json:"sent_at"`
}

// List handles GET /v1/orders/:id/messages
func (h *ChatHandler) List(c *gin.Context) {
	msgs, err := h.chatService.List(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, MessageResponse{
			ID:       m.ID,
			OrderID:  m.OrderID,
			SenderID: m.SenderID,
			Role:     string(m.Role),
			Body:     m.Body,
			Read:     m.Read,
			SentAt:   m.SentAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	respondJSON(c, http.StatusOK, response)
}
