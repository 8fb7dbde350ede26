// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"nhooyr.io/websocket"

	"github.com/ManuGH/wsguard/internal/auth"
	"github.com/ManuGH/wsguard/internal/config"
	"github.com/ManuGH/wsguard/internal/consumer"
	"github.com/ManuGH/wsguard/internal/health"
	"github.com/ManuGH/wsguard/internal/metrics"
	"github.com/ManuGH/wsguard/internal/session"
)

type testEnv struct {
	srv    *httptest.Server
	api    *Server
	creds  *auth.MemoryCredentials
	cookie string
}

func newTestEnv(t *testing.T, mutate func(*config.AppConfig)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	cfg.Session.CheckInterval = 20 * time.Millisecond
	cfg.Session.TeardownTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	creds, err := auth.NewMemoryCredentials("test-secret")
	require.NoError(t, err)
	creds.WithCost(bcrypt.MinCost)
	require.NoError(t, creds.SetPassword(context.Background(), "alice", "s3cret"))

	store := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })

	s, err := New(Deps{
		Logger:   zerolog.Nop(),
		Config:   config.NewHolder(cfg, nil),
		Sessions: session.NewService(store, creds, time.Hour, zerolog.Nop()),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Registry().CloseAll(ctx, "test done")
		srv.Close()
	})
	return &testEnv{srv: srv, api: s, creds: creds, cookie: cfg.Session.CookieName}
}

func (e *testEnv) post(t *testing.T, path string, body any, key string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.AddCookie(&http.Cookie{Name: e.cookie, Value: key})
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) sessionKey(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == e.cookie {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) login(t *testing.T, user, password string) string {
	t.Helper()
	resp := e.post(t, "/api/login", loginRequest{User: user, Password: password}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	key := e.sessionKey(resp)
	require.NotEmpty(t, key)
	return key
}

func (e *testEnv) dial(t *testing.T, path, key string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := http.Header{}
	if key != "" {
		h.Set("Cookie", e.cookie+"="+key)
	}
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: h})
}

// readUntilClosed reads until the server closes and returns the close status.
func readUntilClosed(t *testing.T, c *websocket.Conn, timeout time.Duration) websocket.StatusCode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		_, _, err := c.Read(ctx)
		if err != nil {
			require.NoError(t, ctx.Err(), "connection was not closed in time")
			return websocket.CloseStatus(err)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.post(t, "/api/login", loginRequest{User: "alice", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.post(t, "/api/login", loginRequest{User: "alice", Password: "s3cret"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "alice", body.User)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == env.cookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestLogin_RejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.post(t, "/api/login", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, nil)
	key := env.login(t, "alice", "s3cret")

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/me", nil)
	req.AddCookie(&http.Cookie{Name: env.cookie, Value: key})
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := env.srv.Client().Get(env.srv.URL + "/api/me")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := env.srv.Client().Get(env.srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestReadyz_StoreDown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.api.Health().RegisterChecker(health.NewPingChecker("broken", func(context.Context) error {
		return errors.New("unreachable")
	}))

	resp, err := env.srv.Client().Get(env.srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebSocket_RequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, resp, err := env.dial(t, "/ws", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = env.dial(t, "/ws", "not-a-session")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_Echo(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.Session.CheckInterval = time.Hour })
	key := env.login(t, "alice", "s3cret")

	c, _, err := env.dial(t, "/ws", key)
	require.NoError(t, err)
	defer c.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("hello")))
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "hello", string(data))
}

func TestWebSocket_JSONEcho(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.Session.CheckInterval = time.Hour })
	key := env.login(t, "alice", "s3cret")

	c, _, err := env.dial(t, "/ws/json", key)
	require.NoError(t, err)
	defer c.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"n":1}`)))
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"n":`)))
	assert.Equal(t, websocket.StatusUnsupportedData, readUntilClosed(t, c, 5*time.Second))
}

func TestWebSocket_LogoutClosesConnection(t *testing.T) {
	env := newTestEnv(t, nil)
	key := env.login(t, "alice", "s3cret")

	c, _, err := env.dial(t, "/ws", key)
	require.NoError(t, err)
	defer c.CloseNow()

	resp := env.post(t, "/api/logout", nil, key)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, consumer.StatusSessionInvalid, readUntilClosed(t, c, 3*time.Second))
	assert.Eventually(t, func() bool { return env.api.Registry().Len() == 0 },
		3*time.Second, 10*time.Millisecond)
}

func TestWebSocket_PasswordChangeClosesOtherSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	held := env.login(t, "alice", "s3cret")
	other := env.login(t, "alice", "s3cret")

	c, _, err := env.dial(t, "/ws", held)
	require.NoError(t, err)
	defer c.CloseNow()

	resp := env.post(t, "/api/password", passwordRequest{OldPassword: "s3cret", NewPassword: "n3w"}, other)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := env.sessionKey(resp)
	require.NotEmpty(t, fresh)
	assert.NotEqual(t, other, fresh)

	assert.Equal(t, consumer.StatusSessionInvalid, readUntilClosed(t, c, 3*time.Second))

	// The session returned by the change keeps working.
	c2, _, err := env.dial(t, "/ws", fresh)
	require.NoError(t, err)
	_ = c2.Close(websocket.StatusNormalClosure, "")
}

func TestPasswordChange_WrongOldPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	key := env.login(t, "alice", "s3cret")

	resp := env.post(t, "/api/password", passwordRequest{OldPassword: "nope", NewPassword: "n3w"}, key)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.post(t, "/api/password", passwordRequest{OldPassword: "s3cret", NewPassword: "n3w"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_DisconnectBeforeFirstCheckReleasesWatchdog(t *testing.T) {
	env := newTestEnv(t, func(c *config.AppConfig) { c.Session.CheckInterval = time.Hour })
	key := env.login(t, "alice", "s3cret")
	baseline := testutil.ToFloat64(metrics.WatchdogActive)

	c, _, err := env.dial(t, "/ws", key)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.api.Registry().Len() == 1 },
		3*time.Second, 5*time.Millisecond)

	_ = c.Close(websocket.StatusNormalClosure, "bye")

	assert.Eventually(t, func() bool {
		return env.api.Registry().Len() == 0 &&
			testutil.ToFloat64(metrics.WatchdogActive) == baseline
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMetricsHandler_Token(t *testing.T) {
	h := MetricsHandler("tok")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeps_Validate(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config holder is required")
	assert.Contains(t, err.Error(), "session service is required")
}

// unavailableStore fails every write.
type unavailableStore struct {
	*session.MemoryStore
}

func (unavailableStore) Save(context.Context, *session.Record) error {
	return errors.New("store unavailable")
}

func (unavailableStore) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

func TestAuthHandlers_StoreFailureIsInternalError(t *testing.T) {
	creds, err := auth.NewMemoryCredentials("test-secret")
	require.NoError(t, err)
	creds.WithCost(bcrypt.MinCost)
	require.NoError(t, creds.SetPassword(context.Background(), "alice", "s3cret"))

	mem := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = mem.Close() })

	s, err := New(Deps{
		Logger:   zerolog.Nop(),
		Config:   config.NewHolder(config.Default(), nil),
		Sessions: session.NewService(unavailableStore{mem}, creds, time.Hour, zerolog.Nop()),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	env := &testEnv{srv: srv, api: s, creds: creds, cookie: config.Default().Session.CookieName}

	resp := env.post(t, "/api/login", map[string]string{"user": "alice", "password": "s3cret"}, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = env.post(t, "/api/logout", nil, "some-session")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
