// Package stealth generates browser fingerprints and paces outgoing
// requests so automated traffic resembles a human shopper, grounded on the
// original fingerprint spoofer and behavior simulator.
package stealth

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
)

// Fingerprint is a coherent set of browser-identifying values presented on
// every request within a session, so headers don't contradict each other
// across requests.
type Fingerprint struct {
	UserAgent           string
	Timezone            string
	Language            string
	ScreenResolution    string
	Platform            string
	Vendor              string
	VendorSub           string
	CPUClass            string
	DoNotTrack          string
	ColorDepth          int
	PixelRatio          float64
	HardwareConcurrency int
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:119.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

var timezones = []string{
	"America/New_York", "America/Los_Angeles", "America/Chicago", "America/Denver",
	"Europe/London", "Europe/Paris", "Europe/Berlin",
	"Asia/Tokyo", "Asia/Shanghai", "Asia/Singapore",
	"Australia/Sydney", "America/Toronto", "America/Vancouver", "Europe/Rome", "Europe/Madrid",
}

var languages = []string{
	"en-US,en;q=0.9", "en-GB,en;q=0.9", "en-CA,en;q=0.9", "es-ES,es;q=0.9",
	"fr-FR,fr;q=0.9", "de-DE,de;q=0.9", "it-IT,it;q=0.9", "pt-BR,pt;q=0.9",
	"ja-JP,ja;q=0.9", "ko-KR,ko;q=0.9", "zh-CN,zh;q=0.9", "ru-RU,ru;q=0.9",
}

var screenResolutions = []string{
	"1920x1080", "1366x768", "1536x864", "1440x900", "1280x720",
	"1600x900", "2560x1440", "3840x2160", "1680x1050", "1024x768",
}

var platforms = []string{"Win32", "MacIntel", "Linux x86_64"}

var vendors = []string{"Google Inc.", "Mozilla", "Apple Computer, Inc.", "Microsoft Corporation"}

var cpuClasses = []string{"x86", "x64", "arm", "arm64"}

var doNotTrackValues = []string{"1", "0", "null"}

var colorDepths = []int{24, 32, 16}

var pixelRatios = []float64{1.0, 1.25, 1.5, 2.0, 2.5, 3.0}

var hardwareConcurrencies = []int{2, 4, 6, 8, 12, 16, 24, 32}

func pick[T any](rng *rand.Rand, choices []T) T {
	return choices[rng.Intn(len(choices))]
}

// Generate produces a random fingerprint. Each field is drawn independently
// from its pool, so the user agent, platform and vendor need not match.
func Generate() Fingerprint {
	return generate(rand.New(rand.NewSource(rand.Int63())))
}

func generate(rng *rand.Rand) Fingerprint {
	vendor := pick(rng, vendors)
	return Fingerprint{
		UserAgent:           pick(rng, userAgents),
		Timezone:            pick(rng, timezones),
		Language:            pick(rng, languages),
		ScreenResolution:    pick(rng, screenResolutions),
		Platform:            pick(rng, platforms),
		Vendor:              vendor,
		VendorSub:           vendor,
		CPUClass:            pick(rng, cpuClasses),
		DoNotTrack:          pick(rng, doNotTrackValues),
		ColorDepth:          pick(rng, colorDepths),
		PixelRatio:          pick(rng, pixelRatios),
		HardwareConcurrency: pick(rng, hardwareConcurrencies),
	}
}

// GenerateMany produces count independent fingerprints for rotation across a
// pool of accounts or proxies.
func GenerateMany(count int) []Fingerprint {
	rng := rand.New(rand.NewSource(rand.Int63()))
	out := make([]Fingerprint, count)
	for i := range out {
		out[i] = generate(rng)
	}
	return out
}

// GenerateForBrowser produces a fingerprint pinned to a specific browser's
// user agent and vendor strings (and, for Safari, the MacIntel platform),
// with the remaining fields still randomized.
func GenerateForBrowser(browser string) Fingerprint {
	fp := Generate()
	switch strings.ToLower(browser) {
	case "chrome":
		fp.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		fp.Vendor, fp.VendorSub = "Google Inc.", "Google Inc."
	case "firefox":
		fp.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0"
		fp.Vendor, fp.VendorSub = "Mozilla", "Mozilla"
	case "safari":
		fp.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
		fp.Vendor, fp.VendorSub = "Apple Computer, Inc.", "Apple Computer, Inc."
		fp.Platform = "MacIntel"
	case "edge":
		fp.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
		fp.Vendor, fp.VendorSub = "Microsoft Corporation", "Microsoft Corporation"
	}
	return fp
}

// Headers renders the fingerprint as the HTTP header set a real browser
// would send on a navigation request.
func (f Fingerprint) Headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", f.UserAgent)
	h.Set("Accept-Language", f.Language)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	if f.DoNotTrack != "null" {
		h.Set("DNT", f.DoNotTrack)
	}
	return h
}

// ScreenDimensions parses the fingerprint's "WxH" screen resolution.
func (f Fingerprint) ScreenDimensions() (width, height int, err error) {
	parts := strings.SplitN(f.ScreenResolution, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("stealth: invalid screen resolution %q", f.ScreenResolution)
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("stealth: invalid screen width: %w", err)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("stealth: invalid screen height: %w", err)
	}
	return width, height, nil
}
