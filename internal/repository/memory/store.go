// Package memory provides in-process implementations of the repository
// interfaces. Transactions are serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
)

type state struct {
	users     map[string]domain.User
	sessions  []domain.SupportChatSession
	messages  []domain.SupportChatMessage
	tickets   []domain.Ticket
	templates map[string]domain.TicketSubjectTemplate
	sequences map[string]int64
	history   []domain.TicketHistory
	tiers     map[domain.TierCatalog][]domain.PriorityTier
	audit     []domain.AuditLog
}

func newState() *state {
	return &state{
		users:     make(map[string]domain.User),
		templates: make(map[string]domain.TicketSubjectTemplate),
		sequences: make(map[string]int64),
		tiers:     make(map[domain.TierCatalog][]domain.PriorityTier),
	}
}

// clone copies every collection. Entities are stored by value; the only
// shared backing arrays are role slices, which are copied too.
func (s *state) clone() *state {
	out := newState()
	for id, user := range s.users {
		user.Roles = append([]domain.RoleCode(nil), user.Roles...)
		out.users[id] = user
	}
	out.sessions = append(out.sessions, s.sessions...)
	out.messages = append(out.messages, s.messages...)
	out.tickets = append(out.tickets, s.tickets...)
	for code, tpl := range s.templates {
		out.templates[code] = tpl
	}
	for prefix, v := range s.sequences {
		out.sequences[prefix] = v
	}
	out.history = append(out.history, s.history...)
	for catalog, rows := range s.tiers {
		out.tiers[catalog] = append([]domain.PriorityTier(nil), rows...)
	}
	out.audit = append(out.audit, s.audit...)
	return out
}

// Store holds all in-memory tables.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

// WithinTransaction runs fn with exclusive access to the store. When fn
// returns an error every write made through ctx is discarded.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.data = snapshot
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) read(fn func(d *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// write applies fn under the data lock. Outside a transaction it also takes
// txMu, so a concurrent rollback cannot discard it.
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func newID() string {
	return uuid.NewString()
}

// TxManager exposes the store as a repository.TxManager.
func (s *Store) TxManager() repository.TxManager { return s }

func (s *Store) Users() repository.UserRepository { return &userRepo{store: s} }

func (s *Store) ChatSessions() repository.ChatSessionRepository { return &chatSessionRepo{store: s} }

func (s *Store) ChatMessages() repository.ChatMessageRepository { return &chatMessageRepo{store: s} }

func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{store: s} }

func (s *Store) TicketTemplates() repository.TicketTemplateRepository {
	return &ticketTemplateRepo{store: s}
}

func (s *Store) TicketCodes() repository.TicketCodeSequence { return &ticketCodeSequence{store: s} }

func (s *Store) TicketHistory() repository.TicketHistoryRepository {
	return &ticketHistoryRepo{store: s}
}

func (s *Store) SupportPlans() repository.PriorityTierRepository {
	return &priorityTierRepo{store: s, catalog: domain.CatalogSupportPlan}
}

func (s *Store) LoyaltyRules() repository.PriorityTierRepository {
	return &priorityTierRepo{store: s, catalog: domain.CatalogLoyaltyRule}
}

func (s *Store) AuditLogs() repository.AuditLogRepository { return &auditLogRepo{store: s} }

// SeedTemplates installs templates, replacing rows with the same code.
func (s *Store) SeedTemplates(templates []domain.TicketSubjectTemplate) {
	_ = s.write(context.Background(), func(d *state) error {
		for _, tpl := range templates {
			d.templates[tpl.Code] = tpl
		}
		return nil
	})
}
