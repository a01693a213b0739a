package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
)

type stubResolver map[string]domain.Actor

func (s stubResolver) Resolve(_ context.Context, token string) (*auth.Principal, error) {
	actor, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Principal{Actor: actor}, nil
}

func dial(t *testing.T, server *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestHubDeliversToGroups(t *testing.T) {
	resolver := stubResolver{
		"customer": {UserID: "c1", Capabilities: domain.NewCapabilitySet(domain.CapabilityCustomer)},
		"staff":    {UserID: "s1", Capabilities: domain.NewCapabilitySet(domain.CapabilityStaff, domain.CapabilityCareStaff)},
	}
	hub := NewHub(resolver, zap.NewNop())
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	customerConn, _, err := dial(t, server, "customer")
	require.NoError(t, err)
	defer customerConn.Close()
	staffConn, _, err := dial(t, server, "staff")
	require.NoError(t, err)
	defer staffConn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount(UserGroup("c1")) == 1 && hub.ClientCount(StaffGroup) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount(UserGroup("nobody")))

	require.NoError(t, hub.Broadcast(context.Background(), StaffGroup, "support_session_opened", map[string]string{"session_id": "x"}))

	require.NoError(t, staffConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := staffConn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, StaffGroup, env.Group)
	assert.Equal(t, "support_session_opened", env.Type)
	assert.JSONEq(t, `{"session_id":"x"}`, string(env.Data))

	require.NoError(t, hub.Broadcast(context.Background(), UserGroup("c1"), "support_session_claimed", map[string]string{"staff_id": "s1"}))
	require.NoError(t, customerConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err = customerConn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "support_session_claimed", env.Type)
}

func TestHubRejectsInvalidToken(t *testing.T) {
	hub := NewHub(stubResolver{}, zap.NewNop())
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	_, resp, err := dial(t, server, "nope")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	resolver := stubResolver{"customer": {UserID: "c1", Capabilities: domain.NewCapabilitySet(domain.CapabilityCustomer)}}
	hub := NewHub(resolver, zap.NewNop())
	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn, _, err := dial(t, server, "customer")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount(UserGroup("c1")) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount(UserGroup("c1")) == 0 }, 2*time.Second, 10*time.Millisecond)
}
