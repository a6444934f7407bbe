// Package challenge solves captchas presented during checkout: a remote
// solver backed by a 2Captcha-compatible submit/poll API, and a mock for
// tests, grounded on the original CaptchaSolver/MockCaptchaSolver pair.
package challenge

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/relaysix/lazabot/internal/httpclient"
)

// Type identifies the captcha variant being solved.
type Type string

const (
	TypeImage       Type = "image"
	TypeRecaptchaV2 Type = "recaptcha_v2"
	TypeRecaptchaV3 Type = "recaptcha_v3"
)

func method(t Type) string {
	switch t {
	case TypeImage:
		return "base64"
	default:
		return "userrecaptcha"
	}
}

// Solver resolves a captcha challenge into a verification token or answer.
type Solver interface {
	SolveImage(ctx context.Context, imageBytes []byte) (string, error)
	SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error)
}

const (
	defaultBaseURL      = "http://2captcha.com"
	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 60
)

// RemoteSolver submits captchas to a 2Captcha-compatible API and polls for
// the result.
type RemoteSolver struct {
	APIKey       string
	client       *httpclient.Client
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
}

// NewRemoteSolver builds a RemoteSolver against the default 2Captcha
// endpoints, polling every 5 seconds for up to 60 attempts.
func NewRemoteSolver(apiKey string, client *httpclient.Client) *RemoteSolver {
	return &RemoteSolver{
		APIKey:       apiKey,
		client:       client,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

// WithEndpoint overrides the base URL, poll interval, and poll cap — used in
// tests to point at a local stub server.
func (s *RemoteSolver) WithEndpoint(baseURL string, pollInterval time.Duration, maxPolls int) *RemoteSolver {
	s.baseURL = baseURL
	s.pollInterval = pollInterval
	s.maxPolls = maxPolls
	return s
}

// SolveImage submits imageBytes as a base64 image captcha and polls for its
// answer text.
func (s *RemoteSolver) SolveImage(ctx context.Context, imageBytes []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	id, err := s.submit(ctx, TypeImage, encoded, "")
	if err != nil {
		return "", fmt.Errorf("challenge: submit image captcha: %w", err)
	}
	return s.poll(ctx, id)
}

// SolveRecaptcha submits a reCAPTCHA v2 challenge and polls for its token.
func (s *RemoteSolver) SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error) {
	id, err := s.submit(ctx, TypeRecaptchaV2, siteKey, pageURL)
	if err != nil {
		return "", fmt.Errorf("challenge: submit recaptcha: %w", err)
	}
	return s.poll(ctx, id)
}

func (s *RemoteSolver) submit(ctx context.Context, t Type, data, pageURL string) (string, error) {
	params := url.Values{}
	params.Set("key", s.APIKey)
	params.Set("method", method(t))

	switch t {
	case TypeImage:
		params.Set("body", data)
	case TypeRecaptchaV2:
		params.Set("googlekey", data)
		if pageURL != "" {
			params.Set("pageurl", pageURL)
		}
	case TypeRecaptchaV3:
		params.Set("googlekey", data)
		if pageURL != "" {
			params.Set("pageurl", pageURL)
		}
		params.Set("action", "verify")
		params.Set("min_score", "0.3")
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Request(ctx, http.MethodPost, s.baseURL+"/in.php", headers, []byte(params.Encode()), nil)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if id, ok := strings.CutPrefix(text, "OK|"); ok {
		return id, nil
	}
	return "", fmt.Errorf("challenge: submit failed: %s", text)
}

func (s *RemoteSolver) poll(ctx context.Context, captchaID string) (string, error) {
	for attempt := 1; attempt <= s.maxPolls; attempt++ {
		params := url.Values{}
		params.Set("key", s.APIKey)
		params.Set("action", "get")
		params.Set("id", captchaID)

		resp, err := s.client.Request(ctx, http.MethodGet, s.baseURL+"/res.php?"+params.Encode(), nil, nil, nil)
		if err != nil {
			return "", err
		}
		text := resp.Text()

		if text == "CAPCHA_NOT_READY" {
			if attempt == s.maxPolls {
				return "", fmt.Errorf("challenge: solving timeout after %d attempts", s.maxPolls)
			}
			select {
			case <-time.After(s.pollInterval):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}

		if result, ok := strings.CutPrefix(text, "OK|"); ok {
			return result, nil
		}
		return "", fmt.Errorf("challenge: solve failed: %s", text)
	}
	return "", fmt.Errorf("challenge: solving timeout")
}

// MockSolver always returns its configured results, for tests and dry runs.
type MockSolver struct {
	ImageResult     string
	RecaptchaResult string
}

func (m MockSolver) SolveImage(ctx context.Context, imageBytes []byte) (string, error) {
	return m.ImageResult, nil
}

func (m MockSolver) SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error) {
	return m.RecaptchaResult, nil
}
