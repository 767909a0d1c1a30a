package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/webvoyant/voyant-cli/api/schemas"
)

// fakeSession is a scriptable SessionContext. Zero value behaves like a
// healthy blank tab; tests override individual primitives.
type fakeSession struct {
	mu         sync.Mutex
	calls      []string
	closeCount int

	currentURL string
	title      string
	html       string
	screenshot []byte

	navigateFn   func(ctx context.Context, url string) error
	clickFn      func(ctx context.Context, selector string) error
	fillFn       func(ctx context.Context, selector, value string) error
	selectFn     func(ctx context.Context, selector, value string) error
	hoverFn      func(ctx context.Context, selector string) error
	pressFn      func(ctx context.Context, selector, key string) error
	scrollFn     func(ctx context.Context, direction string) error
	screenshotFn func(ctx context.Context) ([]byte, error)
	evaluateFn   func(ctx context.Context, script string, out any) error
	titleFn      func(ctx context.Context) (string, error)
	urlFn        func(ctx context.Context) (string, error)
	htmlFn       func(ctx context.Context) (string, error)
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		currentURL: "about:blank",
		html:       "<html><head></head><body></body></html>",
	}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeSession) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) ID() string { return "fake-session" }

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.record("navigate:" + url)
	if f.navigateFn != nil {
		return f.navigateFn(ctx, url)
	}
	f.mu.Lock()
	f.currentURL = url
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.record("click:" + selector)
	if f.clickFn != nil {
		return f.clickFn(ctx, selector)
	}
	return nil
}

func (f *fakeSession) Fill(ctx context.Context, selector, value string) error {
	f.record("fill:" + selector)
	if f.fillFn != nil {
		return f.fillFn(ctx, selector, value)
	}
	return nil
}

func (f *fakeSession) SelectOption(ctx context.Context, selector, value string) error {
	f.record("select:" + selector)
	if f.selectFn != nil {
		return f.selectFn(ctx, selector, value)
	}
	return nil
}

func (f *fakeSession) Hover(ctx context.Context, selector string) error {
	f.record("hover:" + selector)
	if f.hoverFn != nil {
		return f.hoverFn(ctx, selector)
	}
	return nil
}

func (f *fakeSession) Press(ctx context.Context, selector, key string) error {
	f.record("press:" + key)
	if f.pressFn != nil {
		return f.pressFn(ctx, selector, key)
	}
	return nil
}

func (f *fakeSession) ScrollPage(ctx context.Context, direction string) error {
	f.record("scroll:" + direction)
	if f.scrollFn != nil {
		return f.scrollFn(ctx, direction)
	}
	return nil
}

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	f.record("screenshot")
	if f.screenshotFn != nil {
		return f.screenshotFn(ctx)
	}
	return f.screenshot, nil
}

func (f *fakeSession) Evaluate(ctx context.Context, script string, out any) error {
	f.record("evaluate")
	if f.evaluateFn != nil {
		return f.evaluateFn(ctx, script, out)
	}
	return nil
}

func (f *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	if f.urlFn != nil {
		return f.urlFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentURL, nil
}

func (f *fakeSession) Title(ctx context.Context) (string, error) {
	if f.titleFn != nil {
		return f.titleFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, nil
}

func (f *fakeSession) OuterHTML(ctx context.Context) (string, error) {
	if f.htmlFn != nil {
		return f.htmlFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, nil
}

func (f *fakeSession) Sleep(ctx context.Context, d time.Duration) error {
	// Sleeps are compressed so loop tests stay fast.
	select {
	case <-time.After(time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

// scriptedLLM replays canned responses in order, repeating the last one, and
// records every request it sees.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	i         int
	requests  []schemas.GenerationRequest
}

func (s *scriptedLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	idx := s.i
	s.i++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scriptedLLM has no responses")
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) lastRequest() schemas.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}
