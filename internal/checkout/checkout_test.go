package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/session"
)

type stubSolver struct {
	token string
	err   error
}

func (s stubSolver) SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error) {
	return s.token, s.err
}

func validSession() *session.Session {
	return &session.Session{ID: "sess-1", IsValid: true}
}

func testClient() *httpclient.Client {
	return httpclient.New("lazabot-test/1.0", retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2})
}

func newHappyPathServer(t *testing.T, hasCaptcha bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cart/add", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "cart_id": "cart-1"})
	})
	mux.HandleFunc("/cart/cart-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"checkout_url": "http://" + r.Host + "/checkout/xyz"})
	})
	mux.HandleFunc("/checkout/xyz/shipping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/checkout/xyz/payment", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/checkout/xyz/captcha-check", func(w http.ResponseWriter, r *http.Request) {
		if hasCaptcha {
			json.NewEncoder(w).Encode(map[string]any{
				"has_captcha": true, "captcha_type": "recaptcha_v2",
				"site_key": "site-key-123", "page_url": "",
			})
		} else {
			json.NewEncoder(w).Encode(map[string]any{"has_captcha": false})
		}
	})
	mux.HandleFunc("/checkout/xyz/submit", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "order_id": "ORDER-1"})
	})
	return httptest.NewServer(mux)
}

func TestInstantCheckoutHappyPathNoCaptcha(t *testing.T) {
	srv := newHappyPathServer(t, false)
	defer srv.Close()

	engine := NewEngine(testClient(), stubSolver{}, srv.URL)
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1", Quantity: 1}, Account{
		Settings: AccountSettings{ShippingAddress: "123 Main St", PaymentMethod: "card"},
	}, validSession())

	require.True(t, result.Success)
	require.Equal(t, "ORDER-1", result.OrderID)
	require.Empty(t, result.Error)
}

func TestInstantCheckoutSolvesCaptcha(t *testing.T) {
	srv := newHappyPathServer(t, true)
	defer srv.Close()

	engine := NewEngine(testClient(), stubSolver{token: "captcha-token"}, srv.URL)
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1", Quantity: 1}, Account{
		Settings: AccountSettings{ShippingAddress: "123 Main St", PaymentMethod: "card"},
	}, validSession())

	require.True(t, result.Success)
	require.Equal(t, "ORDER-1", result.OrderID)
}

func TestInstantCheckoutRejectsInvalidSession(t *testing.T) {
	engine := NewEngine(testClient(), stubSolver{}, "http://unused.invalid")
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1"}, Account{}, &session.Session{ID: "x", IsValid: false})

	require.False(t, result.Success)
	require.Contains(t, result.Error, string(KindSessionExpired))
}

func TestInstantCheckoutFailsWhenAddToCartRejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cart/add", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "out of stock"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.AddToCartRetries = 1
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond

	engine := NewEngineWithConfig(testClient(), stubSolver{}, srv.URL, cfg)
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1"}, Account{}, validSession())

	require.False(t, result.Success)
	require.Contains(t, result.Error, string(KindAddToCart))
}

func TestInstantCheckoutFailsWhenCaptchaUnsupported(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cart/add", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "cart_id": "cart-1"})
	})
	mux.HandleFunc("/cart/cart-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"checkout_url": fmt.Sprintf("http://%s/checkout/xyz", r.Host)})
	})
	mux.HandleFunc("/checkout/xyz/shipping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/checkout/xyz/payment", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/checkout/xyz/captcha-check", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"has_captcha": true, "captcha_type": "image"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewEngine(testClient(), stubSolver{}, srv.URL)
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1"}, Account{
		Settings: AccountSettings{ShippingAddress: "addr", PaymentMethod: "card"},
	}, validSession())

	require.False(t, result.Success)
	require.Contains(t, result.Error, string(KindCaptchaUnsupported))
}

func TestInstantCheckoutFailsOnUnknownCaptchaType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cart/add", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "cart_id": "cart-1"})
	})
	mux.HandleFunc("/cart/cart-1/checkout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"checkout_url": fmt.Sprintf("http://%s/checkout/xyz", r.Host)})
	})
	mux.HandleFunc("/checkout/xyz/shipping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/checkout/xyz/payment", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/checkout/xyz/captcha-check", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"has_captcha": true, "captcha_type": "hcaptcha"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	engine := NewEngine(testClient(), stubSolver{}, srv.URL)
	result := engine.InstantCheckout(context.Background(), Product{ID: "p1"}, Account{
		Settings: AccountSettings{ShippingAddress: "addr", PaymentMethod: "card"},
	}, validSession())

	require.False(t, result.Success)
	require.Contains(t, result.Error, string(KindCaptchaUnknownType))
}
