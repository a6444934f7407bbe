package challenge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
)

func testClient() *httpclient.Client {
	return httpclient.New("lazabot-test/1.0", retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2})
}

func TestMockSolver(t *testing.T) {
	m := MockSolver{ImageResult: "img-answer", RecaptchaResult: "token-xyz"}

	img, err := m.SolveImage(context.Background(), []byte("data"))
	require.NoError(t, err)
	require.Equal(t, "img-answer", img)

	token, err := m.SolveRecaptcha(context.Background(), "sitekey", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "token-xyz", token)
}

func TestRemoteSolverSubmitAndPollImmediateSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK|captcha-123"))
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK|solved-answer"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := NewRemoteSolver("test-key", testClient()).WithEndpoint(srv.URL, time.Millisecond, 3)

	token, err := solver.SolveRecaptcha(context.Background(), "sitekey", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "solved-answer", token)
}

func TestRemoteSolverPollsUntilReady(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK|captcha-123"))
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.Write([]byte("CAPCHA_NOT_READY"))
			return
		}
		w.Write([]byte("OK|solved-answer"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := NewRemoteSolver("test-key", testClient()).WithEndpoint(srv.URL, time.Millisecond, 5)

	token, err := solver.SolveImage(context.Background(), []byte("fake-image"))
	require.NoError(t, err)
	require.Equal(t, "solved-answer", token)
	require.Equal(t, int32(3), polls.Load())
}

func TestRemoteSolverTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK|captcha-123"))
	})
	mux.HandleFunc("/res.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("CAPCHA_NOT_READY"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := NewRemoteSolver("test-key", testClient()).WithEndpoint(srv.URL, time.Millisecond, 2)

	_, err := solver.SolveRecaptcha(context.Background(), "sitekey", "https://example.com")
	require.Error(t, err)
}

func TestRemoteSolverSubmitFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/in.php", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ERROR_WRONG_USER_KEY"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solver := NewRemoteSolver("bad-key", testClient()).WithEndpoint(srv.URL, time.Millisecond, 2)

	_, err := solver.SolveRecaptcha(context.Background(), "sitekey", "https://example.com")
	require.Error(t, err)
}
