package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
)

// TicketFilter captures list parameters for customer and staff ticket views.
// Results are ordered by priority then age unless NewestFirst is set.
type TicketFilter struct {
	UserID          *string
	AssigneeID      *string
	Statuses        []domain.TicketStatus
	AssignmentState *domain.AssignmentState
	Severities      []domain.TicketSeverity
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	NewestFirst     bool
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_code, user_id, subject, description, category, status, assignment_state,
               assignee_id, severity, sla_status, sla_due_at, priority_level, template_code, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_code, user_id, subject, description, category, status, assignment_state,
            assignee_id, severity, sla_status, sla_due_at, priority_level, template_code, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NULLIF($13,''),$14,$15)
        RETURNING id`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.TicketCode,
		ticket.UserID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Assignment.State(),
		ticket.Assignment.AssigneePtr(),
		ticket.Severity,
		ticket.SLAStatus,
		ticket.SLADueAt,
		ticket.PriorityLevel,
		ticket.TemplateCode,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, category=$3, status=$4, assignment_state=$5,
            assignee_id=$6, severity=$7, sla_status=$8, sla_due_at=$9, priority_level=$10, updated_at=$11
        WHERE id=$12`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Assignment.State(),
		ticket.Assignment.AssigneePtr(),
		ticket.Severity,
		ticket.SLAStatus,
		ticket.SLADueAt,
		ticket.PriorityLevel,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id)
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_code=$1`, code)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	filter := TicketFilter{
		UserID:      &userID,
		NewestFirst: true,
		Limit:       limit,
		Offset:      offset,
	}
	return r.ListWithFilter(ctx, filter)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.AssignmentState != nil {
		args = append(args, *filter.AssignmentState)
		clauses = append(clauses, fmt.Sprintf("assignment_state=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, sev := range filter.Severities {
			args = append(args, sev)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(subject) LIKE %s OR LOWER(ticket_code) LIKE %s)", placeholder, placeholder))
	}

	order := "priority_level DESC, created_at DESC"
	if filter.NewestFirst {
		order = "created_at DESC"
	}
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), order, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket       domain.Ticket
		state        domain.AssignmentState
		assignee     *string
		templateCode *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketCode,
		&ticket.UserID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Status,
		&state,
		&assignee,
		&ticket.Severity,
		&ticket.SLAStatus,
		&ticket.SLADueAt,
		&ticket.PriorityLevel,
		&templateCode,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	assignment, err := domain.TicketAssignmentFrom(state, assignee)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticket.ID, err)
	}
	ticket.Assignment = assignment
	if templateCode != nil {
		ticket.TemplateCode = *templateCode
	}
	return &ticket, nil
}

// normalizePage applies the default page size of 20.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
