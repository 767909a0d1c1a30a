package browser

import "context"

// CombineContext derives a context from tabCtx (which carries the CDP target
// values chromedp needs) that is additionally canceled when opCtx is done.
// chromedp actions must always run on a context descended from the tab
// context, so operational deadlines are layered on this way rather than by
// deriving from the caller's context.
func CombineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
