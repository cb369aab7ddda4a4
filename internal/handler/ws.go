package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"delivery/internal/auth"
	"delivery/internal/domain"
	"delivery/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients connect from app webviews with no stable Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades connections and hands them to the hub.
type WSHandler struct {
	hub    *hub.Hub
	tokens *auth.TokenService
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(h *hub.Hub, tokens *auth.TokenService) *WSHandler {
	return &WSHandler{hub: h, tokens: tokens}
}

// Handshake handles GET /ws. The token may arrive as a query parameter
// because browser WebSocket clients cannot set headers; a missing or
// bad token still connects, as Anonymous.
func (h *WSHandler) Handshake(c *gin.Context) {
	id := domain.Anonymous()
	if token := c.Query("token"); token != "" {
		id = h.tokens.Verify(token)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	h.hub.Serve(c.Request.Context(), conn, id)
}
