package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/alerting"
)

func TestAlertHub_TenantFilter(t *testing.T) {
	t.Parallel()
	hub := NewAlertHub(nil)
	chA, cancelA := hub.subscribe("tenant-a")
	defer cancelA()
	chB, cancelB := hub.subscribe("tenant-b")
	defer cancelB()
	require.Equal(t, 2, hub.Subscribers())

	hub.Broadcast(&alerting.TriggeredEnvelope{
		TenantID: "tenant-a",
		Alerts:   []alerting.TriggeredAlert{{AlertID: "a1", PolicyID: "p1"}},
	})

	select {
	case msg := <-chA:
		var env alerting.TriggeredEnvelope
		require.NoError(t, json.Unmarshal(msg, &env))
		assert.Equal(t, "a1", env.Alerts[0].AlertID)
	default:
		t.Fatal("tenant-a subscriber got nothing")
	}
	assert.Empty(t, chB)
}

func TestAlertHub_EmptyEnvelopeIgnored(t *testing.T) {
	t.Parallel()
	hub := NewAlertHub(nil)
	ch, cancel := hub.subscribe("tenant-a")
	defer cancel()

	hub.Broadcast(nil)
	hub.Broadcast(&alerting.TriggeredEnvelope{TenantID: "tenant-a"})
	assert.Empty(t, ch)
}

func TestAlertHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()
	hub := NewAlertHub(nil)
	ch, cancel := hub.subscribe("tenant-a")
	defer cancel()

	env := &alerting.TriggeredEnvelope{TenantID: "tenant-a", Alerts: []alerting.TriggeredAlert{{AlertID: "x"}}}
	for range streamBuffer * 2 {
		hub.Broadcast(env)
	}
	assert.Len(t, ch, streamBuffer)
}

func TestAlertHub_UnsubscribeIdempotent(t *testing.T) {
	t.Parallel()
	hub := NewAlertHub(nil)
	_, cancel := hub.subscribe("tenant-a")
	cancel()
	cancel()
	assert.Zero(t, hub.Subscribers())
}

func TestAlertHub_HandleBusMessage(t *testing.T) {
	t.Parallel()
	hub := NewAlertHub(nil)
	ch, cancel := hub.subscribe("tenant-a")
	defer cancel()

	hub.HandleBusMessage(t.Context(), []byte("not json"))
	assert.Empty(t, ch)

	hub.HandleBusMessage(t.Context(), []byte(`{"tenant_id":"tenant-a","alerts":[{"alert_id":"a9"}]}`))
	require.Len(t, ch, 1)
	assert.Contains(t, string(<-ch), `"a9"`)
}

func TestStreamAlerts_WebSocket(t *testing.T) {
	f := newAPIFixture(t, "")
	policy := f.createPolicy(t)

	srv := httptest.NewServer(f.echo)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v2/alerts/stream?tenant_id=" + testTenant
	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	_ = resp.Body.Close()

	rec := f.do(t, http.MethodPost, "/api/v2/events", loginEventBody())
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	var env alerting.TriggeredEnvelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, testTenant, env.TenantID)
	require.Len(t, env.Alerts, 1)
	assert.Equal(t, policy.ID, env.Alerts[0].PolicyID)
}

func TestStreamAlerts_CrossOriginRejected(t *testing.T) {
	f := newAPIFixture(t, "")
	srv := httptest.NewServer(f.echo)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v2/alerts/stream"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.DialContext(t.Context(), wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
