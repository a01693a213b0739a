package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// ChatMessageRepository persists chat messages. Messages are append-only.
type ChatMessageRepository interface {
	Create(ctx context.Context, message *domain.SupportChatMessage) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.SupportChatMessage, error)
}

type chatMessageRepository struct {
	pool *pgxpool.Pool
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

func (r *chatMessageRepository) Create(ctx context.Context, message *domain.SupportChatMessage) error {
	const query = `
        INSERT INTO support_chat_messages (chat_session_id, sender_id, is_from_staff, content, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		message.ChatSessionID,
		message.SenderID,
		message.IsFromStaff,
		message.Content,
		message.CreatedAt,
	).Scan(&message.ID)
}

func (r *chatMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.SupportChatMessage, error) {
	const query = `
        SELECT id, chat_session_id, sender_id, is_from_staff, content, created_at
        FROM support_chat_messages WHERE chat_session_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportChatMessage
	for rows.Next() {
		var message domain.SupportChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ChatSessionID,
			&message.SenderID,
			&message.IsFromStaff,
			&message.Content,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, message)
	}
	return result, rows.Err()
}
