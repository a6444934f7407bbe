package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/store"
)

func testManager(t *testing.T, loginStatus, validateStatus int) (*Manager, *store.SQLiteStore) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.WriteHeader(loginStatus)
		case "/validate":
			w.WriteHeader(validateStatus)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env, err := crypto.NewEnvelopeFromHex("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	require.NoError(t, err)

	client := httpclient.New("lazabot-test/1.0", retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2})

	return NewManager(st, client, env, t.TempDir(), srv.URL+"/login", srv.URL+"/validate"), st
}

func TestLoginIssuesCookies(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusOK)

	sess, err := m.Login(context.Background(), Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	require.NotEmpty(t, sess.Cookies["auth_token"])
	require.Equal(t, "alice", sess.Cookies["user_id"])
}

func TestLoginFailsOnNonSuccessStatus(t *testing.T) {
	m, _ := testManager(t, http.StatusUnauthorized, http.StatusOK)

	_, err := m.Login(context.Background(), Credentials{Username: "alice"})
	require.Error(t, err)
}

func TestPersistAndRestoreRoundTrip(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusOK)
	ctx := context.Background()

	sess, err := m.Login(ctx, Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	require.NoError(t, m.Persist(ctx, sess))

	restored, err := m.Restore(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, sess.ID, restored.ID)
	require.Equal(t, sess.Credentials.Username, restored.Credentials.Username)
	require.Equal(t, sess.Cookies, restored.Cookies)
}

func TestValidateReflectsEndpointStatus(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusForbidden)
	ctx := context.Background()

	sess, err := m.Login(ctx, Credentials{Username: "alice"})
	require.NoError(t, err)

	ok, err := m.Validate(ctx, sess)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, sess.IsValid)
}

func TestListAndDelete(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusOK)
	ctx := context.Background()

	sess, err := m.Login(ctx, Credentials{Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.Persist(ctx, sess))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, sess.ID)

	require.NoError(t, m.Delete(ctx, sess.ID))
	ids, err = m.List(ctx)
	require.NoError(t, err)
	require.NotContains(t, ids, sess.ID)
}

func TestCleanupExpiredRemovesStaleSessions(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusOK)
	ctx := context.Background()

	sess, err := m.Login(ctx, Credentials{Username: "alice"})
	require.NoError(t, err)
	sess.LastUsed = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, m.Persist(ctx, sess))

	cleaned, err := m.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestCleanupExpiredRemovesCorruptSessionFiles(t *testing.T) {
	m, _ := testManager(t, http.StatusOK, http.StatusOK)
	ctx := context.Background()

	sess, err := m.Login(ctx, Credentials{Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, m.Persist(ctx, sess))

	require.NoError(t, os.WriteFile(m.sessionFile(sess.ID), []byte("not a sealed envelope"), 0o600))

	cleaned, err := m.CleanupExpired(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, cleaned)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}
