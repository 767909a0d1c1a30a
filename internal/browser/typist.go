package browser

import (
	"context"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"github.com/chromedp/chromedp"
)

// commonDigraphs are letter pairs a practiced typist rolls through faster
// than isolated keystrokes.
var commonDigraphs = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true, "en": true, "ed": true,
}

// typist produces inter-key delays drawn from a normal distribution, so that
// typed input carries the cadence of a human rather than a script. Delays
// shrink on common digraphs and grow when the hand crosses case or symbol
// boundaries.
type typist struct {
	mu  sync.Mutex
	rng *rand.Rand

	meanDelay   time.Duration
	stdDevDelay time.Duration
	minDelay    time.Duration
	maxDelay    time.Duration
}

func newTypist(seed int64) *typist {
	return &typist{
		rng:         rand.New(rand.NewSource(seed)),
		meanDelay:   90 * time.Millisecond,
		stdDevDelay: 35 * time.Millisecond,
		minDelay:    20 * time.Millisecond,
		maxDelay:    350 * time.Millisecond,
	}
}

// keyDelay returns the pause before typing cur, given the previous rune.
func (t *typist) keyDelay(prev, cur rune) time.Duration {
	t.mu.Lock()
	sample := t.rng.NormFloat64()
	t.mu.Unlock()

	d := time.Duration(float64(t.meanDelay) + sample*float64(t.stdDevDelay))

	if commonDigraphs[string([]rune{prev, cur})] {
		d = d * 6 / 10
	}
	if unicode.IsUpper(cur) != unicode.IsUpper(prev) && unicode.IsLetter(prev) {
		d += 40 * time.Millisecond
	}
	if !unicode.IsLetter(cur) && !unicode.IsDigit(cur) && cur != ' ' {
		d += 30 * time.Millisecond
	}

	if d < t.minDelay {
		d = t.minDelay
	}
	if d > t.maxDelay {
		d = t.maxDelay
	}
	return d
}

// typeInto sends value into selector one rune at a time with human-paced
// gaps. The element must already be focused and cleared.
func (t *typist) typeInto(selector, value string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		prev := rune(0)
		for _, r := range value {
			if prev != 0 {
				select {
				case <-time.After(t.keyDelay(prev, r)):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err := chromedp.SendKeys(selector, string(r), chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			prev = r
		}
		return nil
	})
}
