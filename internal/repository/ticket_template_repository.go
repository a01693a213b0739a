package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// TicketTemplateRepository reads ticket subject templates.
type TicketTemplateRepository interface {
	Create(ctx context.Context, template *domain.TicketSubjectTemplate) error
	GetActiveByCode(ctx context.Context, code string) (*domain.TicketSubjectTemplate, error)
	ListActive(ctx context.Context) ([]domain.TicketSubjectTemplate, error)
}

type ticketTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewTicketTemplateRepository builds repository.
func NewTicketTemplateRepository(pool *pgxpool.Pool) TicketTemplateRepository {
	return &ticketTemplateRepository{pool: pool}
}

func (r *ticketTemplateRepository) Create(ctx context.Context, template *domain.TicketSubjectTemplate) error {
	const query = `
        INSERT INTO ticket_subject_templates (code, subject, category, severity, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		template.Code,
		template.Subject,
		template.Category,
		template.Severity,
		template.IsActive,
	).Scan(&template.CreatedAt)
}

func (r *ticketTemplateRepository) GetActiveByCode(ctx context.Context, code string) (*domain.TicketSubjectTemplate, error) {
	const query = `
        SELECT code, subject, category, severity, is_active, created_at
        FROM ticket_subject_templates WHERE code=$1 AND is_active`
	var template domain.TicketSubjectTemplate
	if err := conn(ctx, r.pool).QueryRow(ctx, query, code).Scan(
		&template.Code,
		&template.Subject,
		&template.Category,
		&template.Severity,
		&template.IsActive,
		&template.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *ticketTemplateRepository) ListActive(ctx context.Context) ([]domain.TicketSubjectTemplate, error) {
	const query = `
        SELECT code, subject, category, severity, is_active, created_at
        FROM ticket_subject_templates WHERE is_active ORDER BY code ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketSubjectTemplate
	for rows.Next() {
		var template domain.TicketSubjectTemplate
		if err := rows.Scan(
			&template.Code,
			&template.Subject,
			&template.Category,
			&template.Severity,
			&template.IsActive,
			&template.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, template)
	}
	return result, rows.Err()
}
