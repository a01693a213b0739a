package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
)

type ticketRepo struct {
	store *Store
}

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.store.write(ctx, func(d *state) error {
		for _, existing := range d.tickets {
			if existing.TicketCode == ticket.TicketCode {
				return fmt.Errorf("tickets: duplicate ticket_code %q", ticket.TicketCode)
			}
		}
		if ticket.ID == "" {
			ticket.ID = newID()
		}
		d.tickets = append(d.tickets, *ticket)
		return nil
	})
}

func (r *ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.store.write(ctx, func(d *state) error {
		for i := range d.tickets {
			if d.tickets[i].ID == ticket.ID {
				d.tickets[i] = *ticket
				return nil
			}
		}
		return pgx.ErrNoRows
	})
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return r.find(func(t domain.Ticket) bool { return t.ID == id })
}

func (r *ticketRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepo) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	return r.find(func(t domain.Ticket) bool { return t.TicketCode == code })
}

func (r *ticketRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, repository.TicketFilter{UserID: &userID, NewestFirst: true, Limit: limit, Offset: offset})
}

func (r *ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	r.store.read(func(d *state) {
		for _, t := range d.tickets {
			if matchesTicket(t, filter) {
				result = append(result, t)
			}
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if !filter.NewestFirst && result[i].PriorityLevel != result[j].PriorityLevel {
			return result[i].PriorityLevel > result[j].PriorityLevel
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func matchesTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if f.UserID != nil && t.UserID != *f.UserID {
		return false
	}
	if f.AssigneeID != nil {
		if id, ok := t.Assignment.AssigneeID(); !ok || id != *f.AssigneeID {
			return false
		}
	}
	if f.AssignmentState != nil && t.Assignment.State() != *f.AssignmentState {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Severities) > 0 && !contains(f.Severities, t.Severity) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(t.Subject), term) &&
			!strings.Contains(strings.ToLower(t.TicketCode), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func (r *ticketRepo) find(match func(domain.Ticket) bool) (*domain.Ticket, error) {
	var found *domain.Ticket
	r.store.read(func(d *state) {
		for _, t := range d.tickets {
			if match(t) {
				ticket := t
				found = &ticket
				return
			}
		}
	})
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

type ticketTemplateRepo struct {
	store *Store
}

func (r *ticketTemplateRepo) Create(ctx context.Context, template *domain.TicketSubjectTemplate) error {
	return r.store.write(ctx, func(d *state) error {
		if _, exists := d.templates[template.Code]; exists {
			return fmt.Errorf("ticket_subject_templates: duplicate code %q", template.Code)
		}
		d.templates[template.Code] = *template
		return nil
	})
}

func (r *ticketTemplateRepo) GetActiveByCode(_ context.Context, code string) (*domain.TicketSubjectTemplate, error) {
	var (
		tpl domain.TicketSubjectTemplate
		ok  bool
	)
	r.store.read(func(d *state) {
		tpl, ok = d.templates[code]
	})
	if !ok || !tpl.IsActive {
		return nil, pgx.ErrNoRows
	}
	return &tpl, nil
}

func (r *ticketTemplateRepo) ListActive(_ context.Context) ([]domain.TicketSubjectTemplate, error) {
	var result []domain.TicketSubjectTemplate
	r.store.read(func(d *state) {
		for _, tpl := range d.templates {
			if tpl.IsActive {
				result = append(result, tpl)
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

type ticketCodeSequence struct {
	store *Store
}

func (s *ticketCodeSequence) Next(ctx context.Context, prefix string) (int64, error) {
	var next int64
	err := s.store.write(ctx, func(d *state) error {
		d.sequences[prefix]++
		next = d.sequences[prefix]
		return nil
	})
	return next, err
}

type ticketHistoryRepo struct {
	store *Store
}

func (r *ticketHistoryRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	return r.store.write(ctx, func(d *state) error {
		if history.ID == "" {
			history.ID = newID()
		}
		d.history = append(d.history, *history)
		return nil
	})
}

func (r *ticketHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var result []domain.TicketHistory
	r.store.read(func(d *state) {
		for _, h := range d.history {
			if h.TicketID == ticketID {
				result = append(result, h)
			}
		}
	})
	return result, nil
}
