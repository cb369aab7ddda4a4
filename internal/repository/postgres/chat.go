package postgres

import (
	"context"
	"database/sql"

	"delivery/internal/domain"
)

// ChatRepository is a PostgreSQL implementation of
// repository.ChatRepository.
type ChatRepository struct {
	q Querier
}

// NewChatRepository creates a new PostgreSQL chat repository.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{q: db}
}

// Append persists a new message.
func (r *ChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, order_id, sender_id, role, body, read, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		msg.ID, msg.OrderID, msg.SenderID, msg.Role, msg.Body, msg.Read, msg.SentAt)
	return err
}

// ListByOrder returns an order's messages, oldest first.
func (r *ChatRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.ChatMessage, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, sender_id, role, body, read, sent_at
		FROM chat_messages WHERE order_id = $1 ORDER BY sent_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Role, &m.Body, &m.Read, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// MarkRead flags the counterparty's messages on the order as read.
func (r *ChatRepository) MarkRead(ctx context.Context, orderID, readerID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE chat_messages SET read = TRUE
		WHERE order_id = $1 AND sender_id <> $2 AND NOT read
	`, orderID, readerID)
	return err
}
