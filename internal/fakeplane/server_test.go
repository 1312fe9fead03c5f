package fakeplane

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/cloudbrowser/internal/ratelimit"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

const testKey = "sk_test"

func do(t *testing.T, srv *httptest.Server, method, path, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	fake := NewServer(testKey, 5)
	fake.SetScenario(Scenario{ReadyAfter: 1})
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	resp := do(t, srv, "POST", "/v1/sessions", `{"region":"BR"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.CreateSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "pending", created.Status)

	var st models.SessionStatusResponse
	resp = do(t, srv, "GET", "/v1/sessions/"+created.SessionID, "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "claimed", st.Status)
	assert.Empty(t, st.Endpoint)

	resp = do(t, srv, "GET", "/v1/sessions/"+created.SessionID, "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "ready", st.Status)
	assert.True(t, strings.HasPrefix(st.Endpoint, "ws://"))
	assert.True(t, strings.HasPrefix(st.LiveViewURL, "http://"))

	resp = do(t, srv, "DELETE", "/v1/sessions/"+created.SessionID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, ok := fake.SessionStatus(created.SessionID)
	require.True(t, ok)
	assert.Equal(t, models.BackendFinished, status)

	assert.Equal(t, 1, fake.Calls(RouteCreate))
	assert.Equal(t, 2, fake.Calls(RouteGet))
	assert.Equal(t, 1, fake.Calls(RouteDelete))

	resp = do(t, srv, "GET", "/v1/sessions?status=finished", "")
	var listed []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Len(t, listed, 1)
}

func TestIdempotentCreate(t *testing.T) {
	fake := NewServer(testKey, 5)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	var first, second models.CreateSessionResponse
	resp := do(t, srv, "POST", "/v1/sessions", `{}`, "Idempotency-Key", "k1")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	resp = do(t, srv, "POST", "/v1/sessions", `{}`, "Idempotency-Key", "k1")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))

	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestAuthAndFunds(t *testing.T) {
	fake := NewServer(testKey, 0)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	req, _ := http.NewRequest("GET", srv.URL+"/v1/account/balance", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, "POST", "/v1/sessions", `{}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestInjectedReplies(t *testing.T) {
	fake := NewServer(testKey, 5)
	fake.Inject(RouteBalance,
		Reply{Status: http.StatusServiceUnavailable},
		Reply{Status: http.StatusTooManyRequests, Header: map[string]string{"Retry-After": "10"}},
	)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, "GET", "/v1/account/balance", "").StatusCode)
	limited := do(t, srv, "GET", "/v1/account/balance", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, "10", limited.Header.Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/account/balance", "").StatusCode)
	assert.Equal(t, 3, fake.Calls(RouteBalance))
}

func TestRateLimitMiddleware(t *testing.T) {
	fake := NewServer(testKey, 5)
	fake.SetRateLimit(ratelimit.NewLimiter(ratelimit.PerHour(60), 1))
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/account/balance", "").StatusCode)
	limited := do(t, srv, "GET", "/v1/account/balance", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.NotEmpty(t, limited.Header.Get("Retry-After"))
}

func TestCDPEcho(t *testing.T) {
	fake := NewServer(testKey, 5)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	var created models.CreateSessionResponse
	require.NoError(t, json.NewDecoder(do(t, srv, "POST", "/v1/sessions", `{}`).Body).Decode(&created))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/cdp/" + created.SessionID
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err, "not ready yet")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	do(t, srv, "GET", "/v1/sessions/"+created.SessionID, "")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"method":"Browser.getVersion"}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"method":"Browser.getVersion"}`, string(msg))
}
