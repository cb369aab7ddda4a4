package tests

import (
	"context"
	"errors"
	"strings"
	"testing"

	"delivery/internal/domain"
	"delivery/internal/hub"
	"delivery/internal/service"
)

func newChatService(chatRepo *MockChatRepository, orderRepo *MockOrderRepository, broadcast *MockBroadcaster) *service.ChatService {
	return service.NewChatService(chatRepo, orderRepo, broadcast)
}

func TestChatSend_FansOutToChatRoom(t *testing.T) {
	ctx := context.Background()

	chatRepo := NewMockChatRepository()
	orderRepo := NewMockOrderRepository()
	broadcast := NewMockBroadcaster()
	svc := newChatService(chatRepo, orderRepo, broadcast)

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	msg, err := svc.Send(ctx, domain.CustomerIdentity("customer-1"), "order-1", "where are you?")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.Role != domain.RoleCustomer || msg.SenderID != "customer-1" {
		t.Errorf("message should carry the sender identity, got %s/%s", msg.Role, msg.SenderID)
	}

	events := broadcast.EventsIn(hub.ChatRoom("order-1"))
	if len(events) != 1 || events[0] != hub.EventNewMessage {
		t.Errorf("expected [newMessage] in chat room, got %v", events)
	}
	if chatRepo.CountMessages("order-1") != 1 {
		t.Error("expected message persisted")
	}
}

func TestChatSend_PartyOfOrderOnly(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newChatService(NewMockChatRepository(), orderRepo, NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	for _, id := range []domain.Identity{
		domain.CustomerIdentity("customer-2"),
		domain.DriverIdentity("driver-2"),
		domain.Anonymous(),
	} {
		if _, err := svc.Send(ctx, id, "order-1", "hi"); !errors.Is(err, service.ErrUnauthorized) {
			t.Errorf("%s/%s: expected ErrUnauthorized, got %v", id.Role, id.Subject, err)
		}
	}
}

func TestChatSend_RejectsEmptyBody(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newChatService(NewMockChatRepository(), orderRepo, NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Send(ctx, domain.CustomerIdentity("customer-1"), "order-1", body); !errors.Is(err, service.ErrEmptyMessage) {
			t.Errorf("body %q: expected ErrEmptyMessage, got %v", body, err)
		}
	}
}

func TestChatSend_TruncatesOversizedBody(t *testing.T) {
	ctx := context.Background()

	orderRepo := NewMockOrderRepository()
	svc := newChatService(NewMockChatRepository(), orderRepo, NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	msg, err := svc.Send(ctx, domain.CustomerIdentity("customer-1"), "order-1", strings.Repeat("x", 5000))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(msg.Body) != 2000 {
		t.Errorf("expected body truncated to 2000, got %d", len(msg.Body))
	}
}

func TestChatList_MarksCounterpartyRead(t *testing.T) {
	ctx := context.Background()

	chatRepo := NewMockChatRepository()
	orderRepo := NewMockOrderRepository()
	svc := newChatService(chatRepo, orderRepo, NewMockBroadcaster())

	orderRepo.AddOrder(assignedOrder("order-1", "driver-1"))

	customer := domain.CustomerIdentity("customer-1")
	driver := domain.DriverIdentity("driver-1")

	if _, err := svc.Send(ctx, customer, "order-1", "here?"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := svc.Send(ctx, driver, "order-1", "two minutes out"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msgs, err := svc.List(ctx, driver, "order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	// After the driver reads, the customer's message is flagged.
	msgs, _ = svc.List(ctx, customer, "order-1")
	for _, m := range msgs {
		if m.SenderID == "customer-1" && !m.Read {
			t.Error("expected customer's message marked read by the driver's list")
		}
	}
}
