package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/repository"
)

const maxMessageLen = 2000

// ChatService appends messages and fans them out to the order's chat
// room. Messages are append-only; only the read flag ever changes.
type ChatService struct {
	chatRepo  repository.ChatRepository
	orderRepo repository.OrderRepository
	broadcast Broadcaster
}

// NewChatService creates a new ChatService.
func NewChatService(chatRepo repository.ChatRepository, orderRepo repository.OrderRepository, broadcast Broadcaster) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		orderRepo: orderRepo,
		broadcast: broadcast,
	}
}

// Send appends a message from one party of the order and fans it out.
func (s *ChatService) Send(ctx context.Context, id domain.Identity, orderID, body string) (*domain.ChatMessage, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if len(body) > maxMessageLen {
		body = body[:maxMessageLen]
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(id, order) {
		return nil, unauthorized(id, "chat on this order")
	}

	msg := &domain.ChatMessage{
		ID:       uuid.New().String(),
		OrderID:  orderID,
		SenderID: id.Subject,
		Role:     id.Role,
		Body:     body,
		SentAt:   time.Now(),
	}
	if err := s.chatRepo.Append(ctx, msg); err != nil {
		return nil, err
	}

	if s.broadcast != nil {
		s.broadcast.Broadcast(hub.ChatRoom(orderID), hub.NewEvent(hub.EventNewMessage, map[string]any{
			"id":        msg.ID,
			"order_id":  msg.OrderID,
			"sender_id": msg.SenderID,
			"role":      string(msg.Role),
			"body":      msg.Body,
			"sent_at":   msg.SentAt,
		}))
	}
	return msg, nil
}

// List returns the order's messages for one of its parties and marks
// the counterparty's messages read.
func (s *ChatService) List(ctx context.Context, id domain.Identity, orderID string) ([]*domain.ChatMessage, error) {
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.isParty(id, order) {
		return nil, unauthorized(id, "read this order's chat")
	}

	msgs, err := s.chatRepo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	_ = s.chatRepo.MarkRead(ctx, orderID, id.Subject)
	return msgs, nil
}

func (s *ChatService) isParty(id domain.Identity, order *domain.Order) bool {
	if id.IsCustomer(order.CustomerID) {
		return true
	}
	return order.DriverID != "" && id.IsDriver(order.DriverID)
}

// InboundRelay adapts the chat and driver services to the hub's inbound
// message contract.
type InboundRelay struct {
	Chat    *ChatService
	Drivers *DriverService
}

// ChatMessage implements hub.Inbound.
func (r *InboundRelay) ChatMessage(ctx context.Context, id domain.Identity, orderID, body string) error {
	_, err := r.Chat.Send(ctx, id, orderID, body)
	return err
}

// DriverLocation implements hub.Inbound.
func (r *InboundRelay) DriverLocation(ctx context.Context, id domain.Identity, orderID string, lat, lng float64) error {
	return r.Drivers.UpdateLocation(ctx, id, UpdateLocationRequest{Lat: lat, Lng: lng, OrderID: orderID})
}
