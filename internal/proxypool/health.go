package proxypool

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// HealthReport summarizes one health scan.
type HealthReport struct {
	Total     int
	Healthy   []Endpoint
	Unhealthy []Endpoint
	Duration  time.Duration
}

// HealthChecker probes pool members through a well-known IP-echo endpoint.
type HealthChecker struct {
	TestURL string
	Timeout time.Duration
}

// NewHealthChecker builds a checker with the given probe URL and timeout.
func NewHealthChecker(testURL string, timeout time.Duration) *HealthChecker {
	if testURL == "" {
		testURL = "https://httpbin.org/ip"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{TestURL: testURL, Timeout: timeout}
}

// ScanAll probes every member in the pool, updating health-bits in place.
func (hc *HealthChecker) ScanAll(ctx context.Context, p *Pool) HealthReport {
	return hc.scan(ctx, p, p.Members())
}

// ScanHealthyOnly re-checks members currently presumed healthy.
func (hc *HealthChecker) ScanHealthyOnly(ctx context.Context, p *Pool) HealthReport {
	return hc.scan(ctx, p, p.Healthy())
}

// ScanUnhealthyOnly is a recovery probe over members currently presumed
// unhealthy.
func (hc *HealthChecker) ScanUnhealthyOnly(ctx context.Context, p *Pool) HealthReport {
	var unhealthy []Endpoint
	for _, e := range p.Members() {
		if !p.IsHealthy(e) {
			unhealthy = append(unhealthy, e)
		}
	}
	return hc.scan(ctx, p, unhealthy)
}

func (hc *HealthChecker) scan(ctx context.Context, p *Pool, members []Endpoint) HealthReport {
	start := time.Now()
	report := HealthReport{Total: len(members)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ep := range members {
		wg.Add(1)
		go func(ep Endpoint) {
			defer wg.Done()
			ok := hc.probe(ctx, ep)
			p.SetHealth(ep, ok)

			mu.Lock()
			if ok {
				report.Healthy = append(report.Healthy, ep)
			} else {
				report.Unhealthy = append(report.Unhealthy, ep)
			}
			mu.Unlock()
		}(ep)
	}
	wg.Wait()

	report.Duration = time.Since(start)
	return report
}

func (hc *HealthChecker) probe(ctx context.Context, ep Endpoint) bool {
	ctx, cancel := context.WithTimeout(ctx, hc.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.TestURL, nil)
	if err != nil {
		return false
	}

	transport := &http.Transport{
		Proxy: http.ProxyURL(mustParseProxyURL(ep)),
	}
	client := &http.Client{Transport: transport, Timeout: hc.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func mustParseProxyURL(ep Endpoint) *url.URL {
	u, err := url.Parse(ep.URL())
	if err != nil {
		return nil
	}
	return u
}
