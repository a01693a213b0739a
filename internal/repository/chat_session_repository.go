package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// ChatSessionRepository persists support chat sessions.
type ChatSessionRepository interface {
	Create(ctx context.Context, session *domain.SupportChatSession) error
	Update(ctx context.Context, session *domain.SupportChatSession) error
	GetByID(ctx context.Context, id string) (*domain.SupportChatSession, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.SupportChatSession, error)
	// FindOpenByCustomer returns the most recently started non-closed session.
	FindOpenByCustomer(ctx context.Context, customerID string) (*domain.SupportChatSession, error)
	// FindLatestClosedByCustomer returns the most recently closed session.
	FindLatestClosedByCustomer(ctx context.Context, customerID string) (*domain.SupportChatSession, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.SupportChatSession, error)
	// ListQueue lists sessions in the given states, highest priority and oldest first.
	ListQueue(ctx context.Context, statuses []domain.SessionStatus, limit, offset int) ([]domain.SupportChatSession, error)
}

type chatSessionRepository struct {
	pool *pgxpool.Pool
}

// NewChatSessionRepository instantiates repository.
func NewChatSessionRepository(pool *pgxpool.Pool) ChatSessionRepository {
	return &chatSessionRepository{pool: pool}
}

const chatSessionColumns = `id, customer_id, staff_id, status, priority_level, started_at, closed_at,
               closed_staff_id, last_message_at, last_message_preview`

func (r *chatSessionRepository) Create(ctx context.Context, session *domain.SupportChatSession) error {
	const query = `
        INSERT INTO support_chat_sessions (customer_id, staff_id, status, priority_level, started_at, closed_at,
            closed_staff_id, last_message_at, last_message_preview)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		session.CustomerID,
		session.Assignment.Ptr(),
		session.Status,
		session.PriorityLevel,
		session.StartedAt,
		session.ClosedAt,
		session.ClosedStaffID,
		session.LastMessageAt,
		session.LastMessagePreview,
	).Scan(&session.ID)
}

func (r *chatSessionRepository) Update(ctx context.Context, session *domain.SupportChatSession) error {
	const query = `
        UPDATE support_chat_sessions SET staff_id=$1, status=$2, priority_level=$3, closed_at=$4,
            closed_staff_id=$5, last_message_at=$6, last_message_preview=$7
        WHERE id=$8`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		session.Assignment.Ptr(),
		session.Status,
		session.PriorityLevel,
		session.ClosedAt,
		session.ClosedStaffID,
		session.LastMessageAt,
		session.LastMessagePreview,
		session.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *chatSessionRepository) GetByID(ctx context.Context, id string) (*domain.SupportChatSession, error) {
	return r.fetchSingle(ctx, `SELECT `+chatSessionColumns+` FROM support_chat_sessions WHERE id=$1`, id)
}

func (r *chatSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.SupportChatSession, error) {
	return r.fetchSingle(ctx, `SELECT `+chatSessionColumns+` FROM support_chat_sessions WHERE id=$1 FOR UPDATE`, id)
}

func (r *chatSessionRepository) FindOpenByCustomer(ctx context.Context, customerID string) (*domain.SupportChatSession, error) {
	const query = `SELECT ` + chatSessionColumns + ` FROM support_chat_sessions
        WHERE customer_id=$1 AND status <> 'CLOSED'
        ORDER BY started_at DESC LIMIT 1 FOR UPDATE`
	return r.fetchSingle(ctx, query, customerID)
}

func (r *chatSessionRepository) FindLatestClosedByCustomer(ctx context.Context, customerID string) (*domain.SupportChatSession, error) {
	const query = `SELECT ` + chatSessionColumns + ` FROM support_chat_sessions
        WHERE customer_id=$1 AND status = 'CLOSED'
        ORDER BY closed_at DESC NULLS LAST LIMIT 1`
	return r.fetchSingle(ctx, query, customerID)
}

func (r *chatSessionRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.SupportChatSession, error) {
	limit, offset = normalizePage(limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM support_chat_sessions WHERE customer_id=$1
        ORDER BY started_at DESC LIMIT %d OFFSET %d`, chatSessionColumns, limit, offset)
	return r.fetchMany(ctx, query, customerID)
}

func (r *chatSessionRepository) ListQueue(ctx context.Context, statuses []domain.SessionStatus, limit, offset int) ([]domain.SupportChatSession, error) {
	limit, offset = normalizePage(limit, offset)
	if len(statuses) == 0 {
		statuses = []domain.SessionStatus{domain.SessionStatusWaiting, domain.SessionStatusActive}
	}
	args := make([]any, 0, len(statuses))
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM support_chat_sessions WHERE status IN (%s)
        ORDER BY priority_level DESC, started_at ASC LIMIT %d OFFSET %d`,
		chatSessionColumns, strings.Join(placeholders, ","), limit, offset)
	return r.fetchMany(ctx, query, args...)
}

func (r *chatSessionRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.SupportChatSession, error) {
	return scanChatSession(conn(ctx, r.pool).QueryRow(ctx, query, arg))
}

func (r *chatSessionRepository) fetchMany(ctx context.Context, query string, args ...any) ([]domain.SupportChatSession, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportChatSession
	for rows.Next() {
		session, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *session)
	}
	return result, rows.Err()
}

func scanChatSession(row pgx.Row) (*domain.SupportChatSession, error) {
	var (
		session domain.SupportChatSession
		staffID *string
		preview *string
	)
	if err := row.Scan(
		&session.ID,
		&session.CustomerID,
		&staffID,
		&session.Status,
		&session.PriorityLevel,
		&session.StartedAt,
		&session.ClosedAt,
		&session.ClosedStaffID,
		&session.LastMessageAt,
		&preview,
	); err != nil {
		return nil, err
	}
	session.Assignment = domain.SessionAssignmentFromPtr(staffID)
	if preview != nil {
		session.LastMessagePreview = *preview
	}
	return &session, nil
}
