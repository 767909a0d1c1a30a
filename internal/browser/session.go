package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webvoyant/voyant-cli/api/schemas"
	"github.com/webvoyant/voyant-cli/internal/config"
)

var _ schemas.SessionContext = (*Session)(nil)

// Session is one isolated browser tab. All primitives run against the tab's
// chromedp context combined with the caller's deadline; Close is idempotent.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    *config.Config

	tabCtx    context.Context
	tabCancel context.CancelFunc

	typist  *typist
	onClose func()

	mu       sync.Mutex
	isClosed bool
}

func newSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) *Session {
	id := uuid.New().String()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	return &Session{
		id:        id,
		logger:    logger.Named("session").With(zap.String("session_id", id[:8])),
		cfg:       cfg,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		typist:    newTypist(time.Now().UnixNano()),
	}
}

func (s *Session) ID() string { return s.id }

// run executes chromedp actions on the tab, bounded by the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return fmt.Errorf("session %s is closed", s.id[:8])
	}
	s.mu.Unlock()

	runCtx, cancel := CombineContext(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL, waits for the document body, and lets in-flight
// async work settle for the configured stabilization window.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	return s.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCacheDisabled(false).Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.Browser.StabilizeWait),
	)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// Fill clears the target and types the value into it. With humanize_typing
// enabled, keystrokes are paced like a person typing instead of one burst.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	typeAction := chromedp.SendKeys(selector, value, chromedp.ByQuery)
	if s.cfg.Browser.HumanizeTyping {
		typeAction = s.typist.typeInto(selector, value)
	}
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		typeAction,
	)
}

// SelectOption sets a <select> value and fires the change event the page's
// scripts listen for.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`document.querySelector(%q).dispatchEvent(new Event('change', {bubbles: true}))`,
			selector), nil),
	)
}

func (s *Session) Hover(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`document.querySelector(%q).dispatchEvent(new MouseEvent('mouseover', {bubbles: true}))`,
			selector), nil),
	)
}

// keyNames maps friendly key names onto chromedp's key runes. Unknown names
// are sent literally.
var keyNames = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Home":       kb.Home,
	"End":        kb.End,
}

// Press sends one key, focusing selector first when given.
func (s *Session) Press(ctx context.Context, selector, key string) error {
	keys, ok := keyNames[key]
	if !ok {
		keys = key
	}
	actions := []chromedp.Action{}
	if selector != "" {
		actions = append(actions, chromedp.Focus(selector, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.KeyEvent(keys))
	return s.run(ctx, actions...)
}

// ScrollPage scrolls roughly one viewport in the given direction ("up" or
// anything else meaning down).
func (s *Session) ScrollPage(ctx context.Context, direction string) error {
	dy := "window.innerHeight * 0.8"
	if direction == "up" {
		dy = "-window.innerHeight * 0.8"
	}
	return s.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy({top: %s, behavior: 'instant'})`, dy), nil),
	)
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Evaluate runs script in the page. out may be nil when the result is
// irrelevant.
func (s *Session) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Sleep blocks for d, or until the caller's context or the tab dies.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.tabCtx.Done():
		return s.tabCtx.Err()
	}
}

// Close tears down the tab. Safe to call more than once; only the first call
// does work.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing session.")
	s.tabCancel()

	select {
	case <-s.tabCtx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("Timed out waiting for tab to close.")
	}

	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
