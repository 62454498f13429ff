package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/resumeforge/sessionkit"
	"github.com/resumeforge/sessionkit/session"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, mr *miniredis.Miniredis, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	app := newApp(&stdout, io.Discard)
	full := append([]string{"sessionctl", "--redis-addr", mr.Addr(), "--prefix", "ctl:"}, args...)
	err := app.Run(full)
	return stdout.String(), err
}

func TestSessionsLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := runCLI(t, mr, "sessions", "create", "--user", "u1", "--email", "u1@example.com")
	require.NoError(t, err)
	var tokens sessionkit.Tokens
	require.NoError(t, json.Unmarshal([]byte(out), &tokens))
	require.NotEmpty(t, tokens.SessionID)
	require.NotEmpty(t, tokens.AccessToken)
	require.True(t, mr.Exists("ctl:session:"+tokens.SessionID))

	_, err = runCLI(t, mr, "sessions", "create", "--user", "u1")
	require.NoError(t, err)

	out, err = runCLI(t, mr, "sessions", "list", "--user", "u1")
	require.NoError(t, err)
	var views []sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 2)
	require.Equal(t, tokens.SessionID, views[0].SessionID)
	require.Equal(t, "u1@example.com", views[0].Email)
	require.NotContains(t, out, tokens.AccessToken)

	out, err = runCLI(t, mr, "stats")
	require.NoError(t, err)
	var stats sessionkit.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Equal(t, 2, stats.TotalSessions)
	require.Equal(t, 2, stats.SessionsByUser["u1"])

	_, err = runCLI(t, mr, "sessions", "revoke", "--id", tokens.SessionID)
	require.NoError(t, err)
	require.False(t, mr.Exists("ctl:session:"+tokens.SessionID))

	out, err = runCLI(t, mr, "sessions", "revoke-all", "--user", "u1")
	require.NoError(t, err)
	require.JSONEq(t, `{"removed":1}`, out)

	out, err = runCLI(t, mr, "cleanup")
	require.NoError(t, err)
	require.JSONEq(t, `{"reaped":0}`, out)
}

func TestSessionsRequireFlags(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := runCLI(t, mr, "sessions", "list")
	require.Error(t, err)

	_, err = runCLI(t, mr, "sessions", "revoke", "--id", "")
	require.Error(t, err)
}

func TestStatsStoreDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	var stdout bytes.Buffer
	err := newApp(&stdout, io.Discard).Run([]string{"sessionctl", "--redis-addr", addr, "stats"})
	require.Error(t, err)
	require.ErrorIs(t, err, sessionkit.ErrStoreUnavailable)
}

func TestServeMuxHealthAndMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	svc, err := sessionkit.New().WithRedis(rdb).WithMetricsEnabled(true).Build()
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.CreateSession(context.Background(), "u1", session.Profile{})
	require.NoError(t, err)

	mux := newServeMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "sessionkit_session_created_total 1"))

	mr.Close()
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := newApp(io.Discard, io.Discard).RunContext(ctx, []string{
		"sessionctl", "--redis-addr", mr.Addr(), "serve", "--addr", "127.0.0.1:0",
	})
	require.NoError(t, err)
}
