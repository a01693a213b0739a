package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketCodeSequence hands out monotonically increasing ticket numbers per prefix.
type TicketCodeSequence interface {
	Next(ctx context.Context, prefix string) (int64, error)
}

type ticketCodeSequence struct {
	pool *pgxpool.Pool
}

// NewTicketCodeSequence builds the counter-row backed sequence.
func NewTicketCodeSequence(pool *pgxpool.Pool) TicketCodeSequence {
	return &ticketCodeSequence{pool: pool}
}

// Next increments the counter row for prefix. The row stays locked until the
// caller's transaction ends.
func (s *ticketCodeSequence) Next(ctx context.Context, prefix string) (int64, error) {
	const query = `
        INSERT INTO ticket_code_sequences (prefix, last_value) VALUES ($1, 1)
        ON CONFLICT (prefix) DO UPDATE SET last_value = ticket_code_sequences.last_value + 1
        RETURNING last_value`
	var value int64
	if err := conn(ctx, s.pool).QueryRow(ctx, query, prefix).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
