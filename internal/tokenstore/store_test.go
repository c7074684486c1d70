package tokenstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

func writeSeedFile(t *testing.T, dir string, logins []fileLogin) string {
	t.Helper()
	path := filepath.Join(dir, "token-store.json")
	data, err := json.Marshal(fileDocument{Logins: logins})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRefreshAccessToken_AtomicRotation(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, []fileLogin{{ID: "alice", RefreshToken: "old-token"}})

	var sawRefreshToken string
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRefreshToken = r.URL.Query().Get("refresh_token")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"api_server":    "https://api01.iq.questrade.com/",
			"refresh_token": "new-refresh",
			"expires_in":    1800,
		})
	}))
	defer broker.Close()

	store, err := New(Config{Path: path, LoginHost: broker.URL, Clock: fakeClock{time.Now()}, Log: zerolog.Nop()})
	require.NoError(t, err)

	login, err := store.GetLogin("alice")
	require.NoError(t, err)

	tok, err := store.RefreshAccessToken(context.Background(), *login)
	require.NoError(t, err)
	assert.Equal(t, "old-token", sawRefreshToken)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "https://api01.iq.questrade.com/", tok.ApiServer)

	// Reading the file back must show the new refresh token (spec §8
	// token-store atomicity invariant).
	reloaded, err := New(Config{Path: path, LoginHost: broker.URL, Log: zerolog.Nop()})
	require.NoError(t, err)
	reloadedLogin, err := reloaded.GetLogin("alice")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", reloadedLogin.RefreshToken)
}

func TestRefreshAccessToken_FailureKeepsOldToken(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, []fileLogin{{ID: "alice", RefreshToken: "old-token"}})

	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer broker.Close()

	store, err := New(Config{Path: path, LoginHost: broker.URL, Log: zerolog.Nop()})
	require.NoError(t, err)

	login, err := store.GetLogin("alice")
	require.NoError(t, err)

	_, err = store.RefreshAccessToken(context.Background(), *login)
	require.Error(t, err)
	var refreshErr *domain.TokenRefreshFailed
	require.ErrorAs(t, err, &refreshErr)

	reloaded, err := New(Config{Path: path, LoginHost: broker.URL, Log: zerolog.Nop()})
	require.NoError(t, err)
	reloadedLogin, err := reloaded.GetLogin("alice")
	require.NoError(t, err)
	assert.Equal(t, "old-token", reloadedLogin.RefreshToken)
}

func TestLoad_AcceptsLegacySingleLoginShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token-store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"primary","refreshToken":"legacy-token"}`), 0o644))

	store, err := New(Config{Path: path, Log: zerolog.Nop()})
	require.NoError(t, err)

	login, err := store.GetLogin("primary")
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", login.RefreshToken)
}
