package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-service/internal/domain"
)

type chatSessionRepo struct {
	store *Store
}

func (r *chatSessionRepo) Create(ctx context.Context, session *domain.SupportChatSession) error {
	return r.store.write(ctx, func(d *state) error {
		if session.ID == "" {
			session.ID = newID()
		}
		d.sessions = append(d.sessions, *session)
		return nil
	})
}

func (r *chatSessionRepo) Update(ctx context.Context, session *domain.SupportChatSession) error {
	return r.store.write(ctx, func(d *state) error {
		for i := range d.sessions {
			if d.sessions[i].ID == session.ID {
				d.sessions[i] = *session
				return nil
			}
		}
		return pgx.ErrNoRows
	})
}

func (r *chatSessionRepo) GetByID(_ context.Context, id string) (*domain.SupportChatSession, error) {
	return r.find(func(s domain.SupportChatSession) bool { return s.ID == id })
}

func (r *chatSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.SupportChatSession, error) {
	return r.GetByID(ctx, id)
}

func (r *chatSessionRepo) FindOpenByCustomer(_ context.Context, customerID string) (*domain.SupportChatSession, error) {
	return r.latest(func(s domain.SupportChatSession) bool {
		return s.CustomerID == customerID && !s.IsClosed()
	}, func(s domain.SupportChatSession) int64 { return s.StartedAt.UnixNano() })
}

func (r *chatSessionRepo) FindLatestClosedByCustomer(_ context.Context, customerID string) (*domain.SupportChatSession, error) {
	return r.latest(func(s domain.SupportChatSession) bool {
		return s.CustomerID == customerID && s.IsClosed()
	}, func(s domain.SupportChatSession) int64 {
		if s.ClosedAt == nil {
			return 0
		}
		return s.ClosedAt.UnixNano()
	})
}

func (r *chatSessionRepo) ListByCustomer(_ context.Context, customerID string, limit, offset int) ([]domain.SupportChatSession, error) {
	var result []domain.SupportChatSession
	r.store.read(func(d *state) {
		for _, s := range d.sessions {
			if s.CustomerID == customerID {
				result = append(result, s)
			}
		}
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return page(result, limit, offset), nil
}

func (r *chatSessionRepo) ListQueue(_ context.Context, statuses []domain.SessionStatus, limit, offset int) ([]domain.SupportChatSession, error) {
	if len(statuses) == 0 {
		statuses = []domain.SessionStatus{domain.SessionStatusWaiting, domain.SessionStatusActive}
	}
	wanted := make(map[domain.SessionStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}
	var result []domain.SupportChatSession
	r.store.read(func(d *state) {
		for _, s := range d.sessions {
			if wanted[s.Status] {
				result = append(result, s)
			}
		}
	})
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].PriorityLevel != result[j].PriorityLevel {
			return result[i].PriorityLevel > result[j].PriorityLevel
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return page(result, limit, offset), nil
}

func (r *chatSessionRepo) find(match func(domain.SupportChatSession) bool) (*domain.SupportChatSession, error) {
	var found *domain.SupportChatSession
	r.store.read(func(d *state) {
		for _, s := range d.sessions {
			if match(s) {
				session := s
				found = &session
				return
			}
		}
	})
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

// latest returns the matching session with the greatest key; later inserts win ties.
func (r *chatSessionRepo) latest(match func(domain.SupportChatSession) bool, key func(domain.SupportChatSession) int64) (*domain.SupportChatSession, error) {
	var found *domain.SupportChatSession
	r.store.read(func(d *state) {
		for _, s := range d.sessions {
			if !match(s) {
				continue
			}
			if found == nil || key(s) >= key(*found) {
				session := s
				found = &session
			}
		}
	})
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

type chatMessageRepo struct {
	store *Store
}

func (r *chatMessageRepo) Create(ctx context.Context, message *domain.SupportChatMessage) error {
	return r.store.write(ctx, func(d *state) error {
		if message.ID == "" {
			message.ID = newID()
		}
		d.messages = append(d.messages, *message)
		return nil
	})
}

func (r *chatMessageRepo) ListBySession(_ context.Context, sessionID string) ([]domain.SupportChatMessage, error) {
	var result []domain.SupportChatMessage
	r.store.read(func(d *state) {
		for _, m := range d.messages {
			if m.ChatSessionID == sessionID {
				result = append(result, m)
			}
		}
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
