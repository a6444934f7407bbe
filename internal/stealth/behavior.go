package stealth

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Pacer introduces human-scale delays between automated actions and caps
// their steady-state rate, grounded on the original behavior simulator's
// randomized sleeps.
type Pacer struct {
	rng     *rand.Rand
	limiter *rate.Limiter
}

// NewPacer builds a Pacer whose burst actions are additionally capped to
// ratePerSecond with the given burst allowance, on top of its randomized
// per-action delays.
func NewPacer(ratePerSecond float64, burst int) *Pacer {
	return &Pacer{
		rng:     rand.New(rand.NewSource(rand.Int63())),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (p *Pacer) sleep(ctx context.Context, d time.Duration) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pacer) randDuration(minMS, maxMS int64) time.Duration {
	if maxMS <= minMS {
		return time.Duration(minMS) * time.Millisecond
	}
	return time.Duration(minMS+p.rng.Int63n(maxMS-minMS+1)) * time.Millisecond
}

// RandomDelay sleeps for a uniformly random duration between min and max.
func (p *Pacer) RandomDelay(ctx context.Context, min, max time.Duration) error {
	return p.sleep(ctx, p.randDuration(min.Milliseconds(), max.Milliseconds()))
}

// MouseDelay simulates the pause before a UI interaction, 100-300ms.
func (p *Pacer) MouseDelay(ctx context.Context) error {
	return p.sleep(ctx, p.randDuration(100, 300))
}

// PageLoadDelay simulates waiting for a page to render, 1-3s.
func (p *Pacer) PageLoadDelay(ctx context.Context) error {
	return p.sleep(ctx, p.randDuration(1000, 3000))
}

// FormFillingDelay simulates the pause while filling a form field, 200-800ms.
func (p *Pacer) FormFillingDelay(ctx context.Context) error {
	return p.sleep(ctx, p.randDuration(200, 800))
}

// ReadingDelay simulates the time a human spends reading text before acting
// on it, scaled to word count at roughly 200 words per minute.
func (p *Pacer) ReadingDelay(ctx context.Context, text string) error {
	words := len(strings.Fields(text))
	readingMS := int64(float64(words) / 200.0 * 60.0 * 1000.0)
	const minDelay = 500
	maxDelay := readingMS + 1000
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return p.sleep(ctx, p.randDuration(minDelay, maxDelay))
}

func typingDelayMS(rng *rand.Rand, ch rune) int64 {
	var base int64
	switch {
	case ch >= '0' && ch <= '9':
		base = 50
	case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
		base = 80
	case strings.ContainsRune("!@#$%^&*()-_=+", ch):
		base = 120
	case ch == ' ':
		base = 30
	default:
		base = 100
	}

	variation := 0.8 + rng.Float64()*0.4
	delay := int64(float64(base) * variation)

	if rng.Float64() < 0.05 {
		delay += 200 + rng.Int63n(601)
	}
	return delay
}

// SimulateTyping sleeps out a human-like typing cadence for text, character
// by character, honoring ctx cancellation between keystrokes.
func (p *Pacer) SimulateTyping(ctx context.Context, text string) error {
	runes := []rune(text)
	for i, ch := range runes {
		if i == len(runes)-1 {
			break
		}
		if err := p.sleep(ctx, time.Duration(typingDelayMS(p.rng, ch))*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}
