package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/clock"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/repository/memory"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

var testEpoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store         *memory.Store
	clock         *clock.Fixed
	recorder      *eventRecorder
	verifications *auth.MemoryTokenStore
	attempts      *auth.MemoryAttemptStore
	sessions      *SupportSessionService
	tickets       *TicketService
	assignments   *AssignmentService
	plans         *PriorityTierService
	loyalty       *PriorityTierService
	auth          *AuthService
	staff         *StaffService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	store.SeedTemplates(domain.DefaultTicketTemplates())
	clk := clock.NewFixed(testEpoch)
	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.SubscribeAll(recorder.handle)
	audit := NewAuditLogger(store.AuditLogs(), clk, nil)

	h := &harness{
		store:         store,
		clock:         clk,
		recorder:      recorder,
		verifications: auth.NewMemoryTokenStore(clk.Now),
		attempts:      auth.NewMemoryAttemptStore(clk.Now),
	}
	h.sessions = NewSupportSessionService(SupportSessionDependencies{
		TxManager:   store.TxManager(),
		SessionRepo: store.ChatSessions(),
		MessageRepo: store.ChatMessages(),
		UserRepo:    store.Users(),
		Audit:       audit,
		Dispatcher:  dispatcher,
		Clock:       clk,
	})
	h.tickets = NewTicketService(TicketDependencies{
		TxManager:    store.TxManager(),
		TicketRepo:   store.Tickets(),
		TemplateRepo: store.TicketTemplates(),
		CodeSequence: store.TicketCodes(),
		HistoryRepo:  store.TicketHistory(),
		UserRepo:     store.Users(),
		Audit:        audit,
		Dispatcher:   dispatcher,
		Clock:        clk,
	})
	h.assignments = NewAssignmentService(AssignmentDependencies{
		TxManager:   store.TxManager(),
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		HistoryRepo: store.TicketHistory(),
		Audit:       audit,
		Dispatcher:  dispatcher,
		Clock:       clk,
	})
	h.plans = NewPriorityTierService(PriorityTierDependencies{
		TxManager:  store.TxManager(),
		TierRepo:   store.SupportPlans(),
		Audit:      audit,
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	h.loyalty = NewPriorityTierService(PriorityTierDependencies{
		TxManager:  store.TxManager(),
		TierRepo:   store.LoyaltyRules(),
		Audit:      audit,
		Dispatcher: dispatcher,
		Clock:      clk,
	})
	h.auth = NewAuthService(AuthDependencies{
		UserRepo:        store.Users(),
		Tokens:          auth.NewTokenManager("test-secret", time.Hour),
		Attempts:        h.attempts,
		Verifications:   h.verifications,
		Audit:           audit,
		Dispatcher:      dispatcher,
		Clock:           clk,
		BcryptCost:      bcrypt.MinCost,
		MaxFailedLogins: 3,
		LockoutWindow:   10 * time.Minute,
		VerificationTTL: 30 * time.Minute,
	})
	h.staff = NewStaffService(StaffDependencies{
		UserRepo:   store.Users(),
		Audit:      audit,
		Clock:      clk,
		BcryptCost: bcrypt.MinCost,
	})
	return h
}

// seedUser stores an active, verified user and returns its actor.
func (h *harness) seedUser(t *testing.T, name string, roles ...domain.RoleCode) domain.Actor {
	t.Helper()
	user := &domain.User{
		Name:          name,
		Email:         name + "@example.com",
		Status:        domain.UserStatusActive,
		Roles:         roles,
		EmailVerified: true,
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return domain.NewActor(user)
}

func (h *harness) customer(t *testing.T, name string) domain.Actor {
	return h.seedUser(t, name, domain.RoleCustomer)
}

func (h *harness) careStaff(t *testing.T, name string) domain.Actor {
	return h.seedUser(t, name, domain.RoleCareStaff)
}

func (h *harness) admin(t *testing.T, name string) domain.Actor {
	return h.seedUser(t, name, domain.RoleAdmin)
}

func requireDomainError(t *testing.T, err error, code, message string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %v", err)
	require.Equal(t, code, domainErr.Code)
	if message != "" {
		require.Equal(t, message, domainErr.Message)
	}
}
