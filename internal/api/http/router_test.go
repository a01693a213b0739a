package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-service/internal/api/http/handlers"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/observability"
	"github.com/spec-kit/support-service/internal/persistence"
	"github.com/spec-kit/support-service/internal/repository/memory"
	"github.com/spec-kit/support-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	store.SeedTemplates(domain.DefaultTicketTemplates())
	dispatcher := events.NewInMemoryDispatcher()
	audit := service.NewAuditLogger(store.AuditLogs(), nil, logger)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:      store.Users(),
		Tokens:        tokens,
		Attempts:      auth.NewMemoryAttemptStore(nil),
		Verifications: auth.NewMemoryTokenStore(nil),
		Audit:         audit,
		Dispatcher:    dispatcher,
		BcryptCost:    bcrypt.MinCost,
	})
	sessions := service.NewSupportSessionService(service.SupportSessionDependencies{
		TxManager:   store.TxManager(),
		SessionRepo: store.ChatSessions(),
		MessageRepo: store.ChatMessages(),
		UserRepo:    store.Users(),
		Audit:       audit,
		Dispatcher:  dispatcher,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TxManager:    store.TxManager(),
		TicketRepo:   store.Tickets(),
		TemplateRepo: store.TicketTemplates(),
		CodeSequence: store.TicketCodes(),
		HistoryRepo:  store.TicketHistory(),
		UserRepo:     store.Users(),
		Audit:        audit,
		Dispatcher:   dispatcher,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TxManager:   store.TxManager(),
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		HistoryRepo: store.TicketHistory(),
		Audit:       audit,
		Dispatcher:  dispatcher,
	})
	plans := service.NewPriorityTierService(service.PriorityTierDependencies{
		TxManager: store.TxManager(), TierRepo: store.SupportPlans(), Audit: audit, Dispatcher: dispatcher,
	})
	loyalty := service.NewPriorityTierService(service.PriorityTierDependencies{
		TxManager: store.TxManager(), TierRepo: store.LoyaltyRules(), Audit: audit, Dispatcher: dispatcher,
	})
	staff := service.NewStaffService(service.StaffDependencies{UserRepo: store.Users(), Audit: audit, BcryptCost: bcrypt.MinCost})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("support-service", "test", &persistence.Postgres{}, nil, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Sessions:       handlers.NewSupportSessionsHandler(sessions),
		Tickets:        handlers.NewTicketsHandler(tickets),
		StaffTickets:   handlers.NewStaffTicketsHandler(tickets, assignments),
		SupportPlans:   handlers.NewTiersHandler(plans),
		LoyaltyRules:   handlers.NewTiersHandler(loyalty),
		Staff:          handlers.NewStaffHandler(staff),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
	})
	return &testServer{app: app, store: store, tokens: tokens}
}

// login seeds a verified, active user and returns a bearer token for it.
func (s *testServer) login(t *testing.T, name string, roles ...domain.RoleCode) (string, *domain.User) {
	t.Helper()
	user := &domain.User{
		Name:          name,
		Email:         name + "@example.com",
		Status:        domain.UserStatusActive,
		Roles:         roles,
		EmailVerified: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	token, _, err := s.tokens.GenerateToken(user)
	require.NoError(t, err)
	return token, user
}

type apiResponse struct {
	status int
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	snapshot := decode[observability.MetricsSnapshot](t, res.Data)
	assert.GreaterOrEqual(t, snapshot.TotalRequests, int64(2))
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": "Lan", "email": "lan@example.com", "password": "password123",
	})
	require.Equal(t, fiber.StatusCreated, res.status)

	res = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{
		"name": "Lan", "email": "lan@example.com", "password": "password123",
	})
	assert.Equal(t, fiber.StatusConflict, res.status)
	assert.Equal(t, "CONFLICT", res.Error.Code)

	res = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{
		"email": "lan@example.com", "password": "password123",
	})
	require.Equal(t, fiber.StatusOK, res.status)
	login := decode[struct {
		Token string `json:"token"`
	}](t, res.Data)
	require.NotEmpty(t, login.Token)

	res = s.do(t, fiber.MethodGet, "/me", login.Token, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	me := decode[struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}](t, res.Data)
	assert.Equal(t, "lan@example.com", me.Email)
	assert.False(t, me.EmailVerified)
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, fiber.MethodGet, "/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	assert.Equal(t, "UNAUTHORIZED", res.Error.Code)

	res = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_FAILED", res.Error.Code)
	assert.Contains(t, res.Error.Details["fields"], "password")

	customer, _ := s.login(t, "lan", domain.RoleCustomer)
	res = s.do(t, fiber.MethodGet, "/staff/tickets", customer, nil)
	assert.Equal(t, fiber.StatusForbidden, res.status)
}

func TestSupportSessionFlow(t *testing.T) {
	s := newTestServer(t)
	customer, _ := s.login(t, "lan", domain.RoleCustomer)
	staff, staffUser := s.login(t, "minh", domain.RoleCareStaff)

	res := s.do(t, fiber.MethodPost, "/support/sessions", customer, map[string]any{
		"initial_message": "Xin chào", "priority_level": 2,
	})
	require.Equal(t, fiber.StatusCreated, res.status)
	opened := decode[struct {
		Session struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"session"`
		Created             bool    `json:"created"`
		LastClosedSessionID *string `json:"last_closed_session_id"`
	}](t, res.Data)
	assert.True(t, opened.Created)
	assert.Equal(t, "WAITING", opened.Session.Status)
	assert.Nil(t, opened.LastClosedSessionID)
	sessionPath := "/support/sessions/" + opened.Session.ID

	res = s.do(t, fiber.MethodPost, "/support/sessions", customer, nil)
	assert.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodGet, "/support/sessions/queue", staff, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, decode[[]map[string]any](t, res.Data), 1)

	res = s.do(t, fiber.MethodPost, sessionPath+"/claim", staff, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	claimed := decode[struct {
		Status          string  `json:"status"`
		AssignedStaffID *string `json:"assigned_staff_id"`
	}](t, res.Data)
	assert.Equal(t, "ACTIVE", claimed.Status)
	require.NotNil(t, claimed.AssignedStaffID)
	assert.Equal(t, staffUser.ID, *claimed.AssignedStaffID)

	res = s.do(t, fiber.MethodPost, sessionPath+"/messages", staff, map[string]string{"content": "   "})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "VALIDATION_FAILED", res.Error.Code)

	res = s.do(t, fiber.MethodPost, sessionPath+"/messages", staff, map[string]string{"content": "Chào bạn"})
	require.Equal(t, fiber.StatusCreated, res.status)
	assert.True(t, decode[struct {
		IsFromStaff bool `json:"is_from_staff"`
	}](t, res.Data).IsFromStaff)

	res = s.do(t, fiber.MethodGet, sessionPath+"/messages", customer, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, decode[[]map[string]any](t, res.Data), 2)

	res = s.do(t, fiber.MethodPost, sessionPath+"/close", customer, nil)
	assert.Equal(t, fiber.StatusNoContent, res.status)

	res = s.do(t, fiber.MethodPost, sessionPath+"/claim", staff, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "INVALID_STATE", res.Error.Code)

	res = s.do(t, fiber.MethodPost, "/support/sessions", customer, nil)
	require.Equal(t, fiber.StatusCreated, res.status)
	reopened := decode[struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		HasPreviousClosedSession bool       `json:"has_previous_closed_session"`
		LastClosedSessionID      *string    `json:"last_closed_session_id"`
		LastClosedAt             *time.Time `json:"last_closed_at"`
	}](t, res.Data)
	assert.NotEqual(t, opened.Session.ID, reopened.Session.ID)
	assert.True(t, reopened.HasPreviousClosedSession)
	require.NotNil(t, reopened.LastClosedSessionID)
	assert.Equal(t, opened.Session.ID, *reopened.LastClosedSessionID)
	assert.NotNil(t, reopened.LastClosedAt)
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer(t)
	customer, _ := s.login(t, "lan", domain.RoleCustomer)
	care, _ := s.login(t, "minh", domain.RoleCareStaff)
	_, tech := s.login(t, "an", domain.RoleTechnicalStaff)

	res := s.do(t, fiber.MethodGet, "/tickets/templates", customer, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.NotEmpty(t, decode[[]map[string]any](t, res.Data))

	res = s.do(t, fiber.MethodPost, "/tickets", customer, map[string]string{"template_code": "PAYMENT_FAILED", "description": "Thẻ bị trừ tiền"})
	require.Equal(t, fiber.StatusCreated, res.status)
	ticket := decode[struct {
		ID         string `json:"id"`
		TicketCode string `json:"ticket_code"`
		Severity   string `json:"severity"`
	}](t, res.Data)
	assert.Equal(t, "TCK-0001", ticket.TicketCode)
	assert.Equal(t, "CRITICAL", ticket.Severity)

	res = s.do(t, fiber.MethodPost, "/tickets", customer, map[string]string{"template_code": "NOPE"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/assign-to-me", care, nil)
	require.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/transfer-tech", care, map[string]string{"new_assignee_id": tech.ID})
	require.Equal(t, fiber.StatusOK, res.status)
	transferred := decode[struct {
		AssignmentState string  `json:"assignment_state"`
		AssigneeID      *string `json:"assignee_id"`
	}](t, res.Data)
	assert.Equal(t, "TECHNICAL", transferred.AssignmentState)
	require.NotNil(t, transferred.AssigneeID)
	assert.Equal(t, tech.ID, *transferred.AssigneeID)

	res = s.do(t, fiber.MethodGet, "/staff/tickets?assignment_state=TECHNICAL", care, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, decode[[]map[string]any](t, res.Data), 1)

	res = s.do(t, fiber.MethodGet, "/tickets/"+ticket.ID, customer, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	detail := decode[struct {
		History []map[string]any `json:"history"`
	}](t, res.Data)
	assert.NotEmpty(t, detail.History)
}

func TestTierAdministration(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "root", domain.RoleAdmin)
	customer, _ := s.login(t, "lan", domain.RoleCustomer)

	res := s.do(t, fiber.MethodPost, "/admin/loyalty-rules", admin, map[string]any{
		"name": "Silver", "priority_level": 1, "threshold": 300000, "is_active": true,
	})
	require.Equal(t, fiber.StatusCreated, res.status)

	res = s.do(t, fiber.MethodPost, "/admin/loyalty-rules", admin, map[string]any{
		"name": "Gold", "priority_level": 2, "threshold": 200000,
	})
	require.Equal(t, fiber.StatusCreated, res.status)
	gold := decode[struct {
		ID             string `json:"id"`
		ThresholdField string `json:"threshold_field"`
	}](t, res.Data)
	assert.Equal(t, "MinTotalSpend", gold.ThresholdField)

	res = s.do(t, fiber.MethodPost, "/admin/loyalty-rules/"+gold.ID+"/toggle", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "ORDERING_VIOLATION", res.Error.Code)

	res = s.do(t, fiber.MethodGet, "/loyalty-rules/resolve?total_spend=350000", customer, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, 1, decode[struct {
		PriorityLevel int `json:"priority_level"`
	}](t, res.Data).PriorityLevel)

	res = s.do(t, fiber.MethodGet, "/loyalty-rules/resolve?total_spend=abc", customer, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, fiber.MethodGet, "/admin/support-plans", customer, nil)
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodGet, "/admin/support-plans", admin, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Empty(t, decode[[]map[string]any](t, res.Data))
}

func TestStaffAdministration(t *testing.T) {
	s := newTestServer(t)
	admin, _ := s.login(t, "root", domain.RoleAdmin)

	res := s.do(t, fiber.MethodPost, "/admin/staff", admin, map[string]string{
		"name": "Minh", "email": "minh@example.com", "password": "password123", "role": "CARE_STAFF",
	})
	require.Equal(t, fiber.StatusCreated, res.status)
	created := decode[struct {
		ID string `json:"id"`
	}](t, res.Data)

	res = s.do(t, fiber.MethodPatch, "/admin/users/"+created.ID+"/status", admin, map[string]string{"status": "LOCKED"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, fiber.MethodPatch, "/admin/users/"+created.ID+"/status", admin, map[string]string{"status": "DISABLED"})
	require.Equal(t, fiber.StatusOK, res.status)

	res = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "minh@example.com", "password": "password123"})
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = s.do(t, fiber.MethodGet, "/admin/staff", admin, nil)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Len(t, decode[[]map[string]any](t, res.Data), 2)
}
