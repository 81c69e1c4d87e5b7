// internal/browser/session.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

var _ schemas.BrowserSession = (*Session)(nil)

// uuidNewString is extracted for deterministic session IDs in tests.
var uuidNewString = newUUIDString

const readyStatePollInterval = 250 * time.Millisecond

// Session drives a single browser tab over CDP. It is the only component that
// talks to Chrome; the capturer and the executor both work through it.
type Session struct {
	id     string
	cfg    *config.BrowserConfig
	logger *zap.Logger

	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	onClose  func()
	isClosed bool
	mu       sync.Mutex
}

// newSession creates the tab, applies the viewport, and disables the network
// cache so each task sees current page content.
func newSession(allocCtx context.Context, cfg *config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuidNewString()

	sessionCtx, cancel := chromedp.NewContext(allocCtx)
	s := &Session{
		id:            id,
		cfg:           cfg,
		logger:        logger.With(zap.String("session_id", id[:8])),
		sessionCtx:    sessionCtx,
		sessionCancel: cancel,
	}

	err := chromedp.Run(sessionCtx,
		emulation.SetDeviceMetricsOverride(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), 1.0, false),
		network.SetCacheDisabled(true),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to configure session tab: %w", err)
	}
	return s, nil
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	return s.id
}

// run executes chromedp actions on the session tab while honoring the
// caller's deadline and cancellation.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.sessionCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Prefer the caller's context error as the cause when it expired.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("browser operation aborted: %w", ctxErr)
		}
		return err
	}
	return nil
}

// Navigate loads a URL and blocks until the document body is present.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// CurrentURL reports the document location after any redirects.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read document location: %w", err)
	}
	return url, nil
}

// OuterHTML returns the full serialized DOM of the current page.
func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var content string
	if err := s.run(ctx, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to retrieve page HTML: %w", err)
	}
	return content, nil
}

// CaptureScreenshot takes a PNG screenshot of the current viewport.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// EvaluateJSON runs a JavaScript expression and unmarshals its JSON result
// into out. Pass nil when the result is not needed.
func (s *Session) EvaluateJSON(ctx context.Context, expression string, out any) error {
	var res json.RawMessage
	err := s.run(ctx,
		chromedp.Evaluate(expression, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("JS evaluation failed: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("failed to unmarshal JS result: %w (payload: %s)", err, truncateRaw(res))
	}
	return nil
}

// Click clicks the first element matching the CSS selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// ClearAndType clears the matched element and types text into it.
func (s *Session) ClearAndType(ctx context.Context, selector, text string) error {
	err := s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// ScrollBy scrolls the window vertically by deltaY pixels.
func (s *Session) ScrollBy(ctx context.Context, deltaY float64) error {
	expr := fmt.Sprintf("window.scrollBy(0, %s); undefined", jsonEncode(deltaY))
	if err := s.EvaluateJSON(ctx, expr, nil); err != nil {
		return fmt.Errorf("scroll by %v failed: %w", deltaY, err)
	}
	return nil
}

// ScrollTo scrolls the window to the absolute vertical offset y.
func (s *Session) ScrollTo(ctx context.Context, y float64) error {
	expr := fmt.Sprintf("window.scrollTo(0, %s); undefined", jsonEncode(y))
	if err := s.EvaluateJSON(ctx, expr, nil); err != nil {
		return fmt.Errorf("scroll to %v failed: %w", y, err)
	}
	return nil
}

// ScrollMetrics reports the current scroll offset and page geometry.
func (s *Session) ScrollMetrics(ctx context.Context) (*schemas.ScrollMetrics, error) {
	const expr = `({
        scroll_y: window.scrollY,
        viewport_height: window.innerHeight,
        content_height: document.body.scrollHeight
    })`

	var metrics schemas.ScrollMetrics
	if err := s.EvaluateJSON(ctx, expr, &metrics); err != nil {
		return nil, fmt.Errorf("failed to read scroll metrics: %w", err)
	}
	return &metrics, nil
}

// WaitDocumentComplete polls document.readyState until it is "complete" or
// the settle timeout expires. A page that never settles is reported as an
// error; the caller decides whether that fails the step.
func (s *Session) WaitDocumentComplete(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(readyStatePollInterval)
	defer ticker.Stop()

	for {
		var state string
		if err := s.EvaluateJSON(waitCtx, "document.readyState", &state); err != nil {
			return fmt.Errorf("failed to poll document readyState: %w", err)
		}
		if state == "complete" {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("document did not reach readyState complete: %w", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// Close tears down the underlying browser target. Safe to call twice.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	onClose := s.onClose
	s.mu.Unlock()

	s.sessionCancel()

	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()

	select {
	case <-s.sessionCtx.Done():
		s.logger.Debug("Browser session closed gracefully.")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for browser session to close.", zap.Error(waitCtx.Err()))
	}

	if onClose != nil {
		onClose()
	}
	return nil
}
