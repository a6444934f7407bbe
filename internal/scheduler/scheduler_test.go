package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaysix/lazabot/internal/crypto"
	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/proxypool"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/session"
	"github.com/relaysix/lazabot/internal/store"
)

func testEnvelope(t *testing.T) *crypto.Envelope {
	t.Helper()
	env, err := crypto.NewEnvelopeFromHex("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")
	require.NoError(t, err)
	return env
}

func TestScheduleProxyRecoveryRegistersJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := proxypool.New([]proxypool.Endpoint{{Host: "127.0.0.1", Port: 1, Type: proxypool.TypeHTTP}})
	pool.SetHealth(pool.Members()[0], false)
	hc := proxypool.NewHealthChecker(srv.URL, time.Second)

	s := New(pool, hc, nil, 0)
	require.NoError(t, s.ScheduleProxyRecovery(context.Background(), "@every 1s"))
	s.Start()
	defer s.Stop()
}

func TestScheduleSessionSweepRegistersJob(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	client := httpclient.New("lazabot-test/1.0", retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2})
	mgr := session.NewManager(st, client, testEnvelope(t), t.TempDir(), "http://unused.invalid/login", "http://unused.invalid/validate")

	s := New(nil, nil, mgr, time.Hour)
	require.NoError(t, s.ScheduleSessionSweep(context.Background(), "@every 1s"))
	s.Start()
	defer s.Stop()
}

func TestNewSchedulerToleratesNilDependencies(t *testing.T) {
	s := New(nil, nil, nil, 0)
	require.NoError(t, s.ScheduleProxyRecovery(context.Background(), "@every 1h"))
	require.NoError(t, s.ScheduleSessionSweep(context.Background(), "@every 1h"))
	s.Start()
	s.Stop()
}
