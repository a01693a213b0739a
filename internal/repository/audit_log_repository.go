package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// AuditLogRepository stores committed transitions.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogRepository {
	return &auditLogRepository{pool: pool}
}

func (r *auditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
        INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, before_state, after_state, created_at)
        VALUES (NULLIF($1,'')::uuid,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Before,
		entry.After,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditLog, error) {
	const query = `
        SELECT id, COALESCE(actor_id::text, ''), action, entity_type, entity_id, before_state, after_state, created_at
        FROM audit_logs WHERE entity_type=$1 AND entity_id=$2 ORDER BY created_at ASC, id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Before,
			&entry.After,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
