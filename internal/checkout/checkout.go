// Package checkout implements the instant-checkout state machine: add to
// cart, fetch the checkout URL, fill shipping and payment, solve a captcha
// if one is presented, and submit the order, grounded on the original
// CheckoutEngine's step sequence. Add to cart, checkout-URL retrieval,
// payment selection and order submission each retry under their own budget;
// the shipping step and the captcha check are attempted once.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/relaysix/lazabot/internal/httpclient"
	"github.com/relaysix/lazabot/internal/retry"
	"github.com/relaysix/lazabot/internal/session"
)

// Product is the item being purchased.
type Product struct {
	ID       string
	Name     string
	URL      string
	Price    *float64
	Quantity int
}

// AccountSettings carries the shipping and payment preferences used during
// checkout, scoped to one account.
type AccountSettings struct {
	ShippingAddress string
	PaymentMethod   string
}

// Account identifies who is checking out.
type Account struct {
	ID       string
	Username string
	Settings AccountSettings
}

// Result is the outcome of one checkout attempt.
type Result struct {
	Success   bool
	OrderID   string
	Error     string
	Timestamp time.Time
	Duration  time.Duration
}

func successResult(orderID string, d time.Duration) Result {
	return Result{Success: true, OrderID: orderID, Timestamp: time.Now().UTC(), Duration: d}
}

func failureResult(errMsg string, d time.Duration) Result {
	return Result{Success: false, Error: errMsg, Timestamp: time.Now().UTC(), Duration: d}
}

// Config controls per-step retry behavior.
type Config struct {
	AddToCartRetries   int
	CheckoutURLRetries int
	PaymentRetries     int
	SubmissionRetries  int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	BackoffMultiplier  float64
	CaptchaTimeout     time.Duration
}

// DefaultConfig mirrors the original engine's defaults.
func DefaultConfig() Config {
	return Config{
		AddToCartRetries:   3,
		CheckoutURLRetries: 2,
		PaymentRetries:     2,
		SubmissionRetries:  3,
		BaseDelay:          time.Second,
		MaxDelay:           10 * time.Second,
		BackoffMultiplier:  2.0,
		CaptchaTimeout:     120 * time.Second,
	}
}

func retryPolicy(retries int, cfg Config) retry.Policy {
	maxRetries := retries - 1
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retry.Policy{MaxRetries: maxRetries, BaseDelay: cfg.BaseDelay, MaxDelay: cfg.MaxDelay, Multiplier: cfg.BackoffMultiplier}
}

// CaptchaSolver resolves a reCAPTCHA challenge into a verification token.
// Satisfied by internal/challenge's solvers.
type CaptchaSolver interface {
	SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error)
}

// Engine drives the instant-checkout flow against a base storefront API.
type Engine struct {
	client  *httpclient.Client
	solver  CaptchaSolver
	baseURL string
	cfg     Config
}

// NewEngine builds an Engine with DefaultConfig.
func NewEngine(client *httpclient.Client, solver CaptchaSolver, baseURL string) *Engine {
	return NewEngineWithConfig(client, solver, baseURL, DefaultConfig())
}

// NewEngineWithConfig builds an Engine with a custom retry configuration.
func NewEngineWithConfig(client *httpclient.Client, solver CaptchaSolver, baseURL string, cfg Config) *Engine {
	return &Engine{client: client, solver: solver, baseURL: baseURL, cfg: cfg}
}

// InstantCheckout runs the full add-to-cart-through-order-submission flow.
// A step failure yields a Result with Success=false; no error is returned,
// and setup problems such as a body that fails to marshal are reported the
// same way.
func (e *Engine) InstantCheckout(ctx context.Context, product Product, account Account, sess *session.Session) Result {
	start := time.Now()

	if !sess.IsValid {
		return failureResult(newError(KindSessionExpired, "session is not valid", nil).Error(), time.Since(start))
	}

	cartID, err := e.addToCartWithRetry(ctx, product, sess)
	if err != nil {
		return failureResult(err.Error(), time.Since(start))
	}

	checkoutURL, err := e.getCheckoutURLWithRetry(ctx, cartID)
	if err != nil {
		return failureResult(err.Error(), time.Since(start))
	}

	if err := e.fillShippingInfo(ctx, checkoutURL, account.Settings, sess); err != nil {
		return failureResult(newError(KindShipping, err.Error(), err).Error(), time.Since(start))
	}

	if err := retry.Do(ctx, retryPolicy(e.cfg.PaymentRetries, e.cfg), func(attempt int) error {
		return e.selectPaymentMethod(ctx, checkoutURL, account.Settings, sess)
	}); err != nil {
		return failureResult(newError(KindPayment, err.Error(), err).Error(), time.Since(start))
	}

	captchaToken, err := e.detectAndSolveCaptcha(ctx, checkoutURL)
	if err != nil {
		return failureResult(err.Error(), time.Since(start))
	}

	orderID, err := e.submitOrderWithRetry(ctx, checkoutURL, captchaToken, sess)
	if err != nil {
		return failureResult(err.Error(), time.Since(start))
	}

	return successResult(orderID, time.Since(start))
}

type addToCartResponse struct {
	Success bool   `json:"success"`
	CartID  string `json:"cart_id"`
	Message string `json:"message"`
}

func (e *Engine) addToCartWithRetry(ctx context.Context, product Product, sess *session.Session) (string, error) {
	var cartID string
	err := retry.Do(ctx, retryPolicy(e.cfg.AddToCartRetries, e.cfg), func(attempt int) error {
		id, err := e.addToCart(ctx, product, sess)
		if err != nil {
			return err
		}
		cartID = id
		return nil
	})
	if err != nil {
		return "", newError(KindAddToCart, "add to cart failed after retries", err)
	}
	return cartID, nil
}

func (e *Engine) addToCart(ctx context.Context, product Product, sess *session.Session) (string, error) {
	body, err := json.Marshal(map[string]any{
		"product_id":    product.ID,
		"quantity":      product.Quantity,
		"session_token": sess.ID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal add-to-cart body: %w", err)
	}

	resp, err := e.postJSON(ctx, e.baseURL+"/cart/add", body)
	if err != nil {
		return "", err
	}

	var parsed addToCartResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("parse add-to-cart response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("add to cart unsuccessful: %s", orUnknown(parsed.Message))
	}
	if parsed.CartID == "" {
		return "", fmt.Errorf("cart id not provided in response")
	}
	return parsed.CartID, nil
}

type checkoutURLResponse struct {
	CheckoutURL string `json:"checkout_url"`
	Token       string `json:"token"`
}

func (e *Engine) getCheckoutURLWithRetry(ctx context.Context, cartID string) (string, error) {
	var checkoutURL string
	err := retry.Do(ctx, retryPolicy(e.cfg.CheckoutURLRetries, e.cfg), func(attempt int) error {
		url, err := e.getCheckoutURL(ctx, cartID)
		if err != nil {
			return err
		}
		checkoutURL = url
		return nil
	})
	if err != nil {
		return "", newError(KindCheckoutURL, "checkout url retrieval failed after retries", err)
	}
	return checkoutURL, nil
}

func (e *Engine) getCheckoutURL(ctx context.Context, cartID string) (string, error) {
	resp, err := e.client.Request(ctx, http.MethodGet, fmt.Sprintf("%s/cart/%s/checkout", e.baseURL, cartID), nil, nil, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get checkout url failed with status %d", resp.StatusCode)
	}

	var parsed checkoutURLResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("parse checkout url response: %w", err)
	}
	if parsed.CheckoutURL == "" {
		return "", fmt.Errorf("checkout url not provided in response")
	}
	return parsed.CheckoutURL, nil
}

func (e *Engine) fillShippingInfo(ctx context.Context, checkoutURL string, settings AccountSettings, sess *session.Session) error {
	body, err := json.Marshal(map[string]any{
		"address":       settings.ShippingAddress,
		"session_token": sess.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal shipping body: %w", err)
	}
	_, err = e.postJSON(ctx, checkoutURL+"/shipping", body)
	return err
}

func (e *Engine) selectPaymentMethod(ctx context.Context, checkoutURL string, settings AccountSettings, sess *session.Session) error {
	body, err := json.Marshal(map[string]any{
		"payment_method": settings.PaymentMethod,
		"session_token":  sess.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal payment body: %w", err)
	}
	_, err = e.postJSON(ctx, checkoutURL+"/payment", body)
	return err
}

type captchaDetectionResponse struct {
	HasCaptcha  bool   `json:"has_captcha"`
	CaptchaType string `json:"captcha_type"`
	SiteKey     string `json:"site_key"`
	PageURL     string `json:"page_url"`
}

func (e *Engine) detectAndSolveCaptcha(ctx context.Context, checkoutURL string) (string, error) {
	resp, err := e.client.Request(ctx, http.MethodGet, checkoutURL+"/captcha-check", nil, nil, nil)
	if err != nil {
		return "", newError(KindCaptchaDetection, err.Error(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(KindCaptchaDetection, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var detection captchaDetectionResponse
	if err := json.Unmarshal(resp.Body, &detection); err != nil {
		return "", newError(KindCaptchaDetection, "parse response", err)
	}
	if !detection.HasCaptcha {
		return "", nil
	}

	switch detection.CaptchaType {
	case "recaptcha_v2":
		if detection.SiteKey == "" {
			return "", newError(KindCaptchaSolving, "site key not provided", nil)
		}
		pageURL := detection.PageURL
		if pageURL == "" {
			pageURL = checkoutURL
		}
		ctx, cancel := context.WithTimeout(ctx, e.cfg.CaptchaTimeout)
		defer cancel()
		token, err := e.solver.SolveRecaptcha(ctx, detection.SiteKey, pageURL)
		if err != nil {
			return "", newError(KindCaptchaSolving, "solve recaptcha", err)
		}
		return token, nil
	case "image":
		return "", newError(KindCaptchaUnsupported, "image captchas are not solved by this engine", nil)
	default:
		return "", newError(KindCaptchaUnknownType, fmt.Sprintf("unrecognized captcha type %q", detection.CaptchaType), nil)
	}
}

type orderSubmissionResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

func (e *Engine) submitOrderWithRetry(ctx context.Context, checkoutURL, captchaToken string, sess *session.Session) (string, error) {
	var orderID string
	err := retry.Do(ctx, retryPolicy(e.cfg.SubmissionRetries, e.cfg), func(attempt int) error {
		id, err := e.submitOrder(ctx, checkoutURL, captchaToken, sess)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return "", newError(KindOrderSubmission, "order submission failed after retries", err)
	}
	return orderID, nil
}

func (e *Engine) submitOrder(ctx context.Context, checkoutURL, captchaToken string, sess *session.Session) (string, error) {
	payload := map[string]any{"session_token": sess.ID}
	if captchaToken != "" {
		payload["captcha_token"] = captchaToken
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal order submission body: %w", err)
	}

	resp, err := e.postJSON(ctx, checkoutURL+"/submit", body)
	if err != nil {
		return "", err
	}

	var parsed orderSubmissionResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("parse order submission response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("order submission unsuccessful: %s", orUnknown(parsed.Error))
	}
	if parsed.OrderID == "" {
		return "", fmt.Errorf("order id not provided in response")
	}
	return parsed.OrderID, nil
}

func (e *Engine) postJSON(ctx context.Context, url string, body []byte) (*httpclient.Response, error) {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	resp, err := e.client.Request(ctx, http.MethodPost, url, headers, body, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}
