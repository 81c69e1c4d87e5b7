// internal/browser/consent.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// ConsentHandler dismisses cookie-consent overlays right after navigation so
// they never occlude screenshots or swallow clicks. Dismissal is best-effort:
// a page without an overlay, or one we fail to dismiss, never fails the task.
type ConsentHandler struct {
	selectors   []string
	buttonTexts []string
	settlePause time.Duration
	logger      *zap.Logger
}

// NewConsentHandler builds the handler from the configured selector allowlist
// and accept-button labels.
func NewConsentHandler(cfg *config.Config, logger *zap.Logger) *ConsentHandler {
	return &ConsentHandler{
		selectors:   cfg.Agent.ConsentSelectors,
		buttonTexts: cfg.Agent.ConsentButtonTexts,
		settlePause: cfg.Browser.SettlePause,
		logger:      logger.Named("consent"),
	}
}

// Dismiss tries the known selectors first, then falls back to scanning for
// visible buttons with accept-style labels. Reports whether anything was
// clicked.
func (h *ConsentHandler) Dismiss(ctx context.Context, sess schemas.BrowserSession) bool {
	for _, selector := range h.selectors {
		clicked, err := h.clickBySelector(ctx, sess, selector)
		if err != nil {
			h.logger.Debug("Consent selector probe failed.", zap.String("selector", selector), zap.Error(err))
			continue
		}
		if clicked {
			h.logger.Info("Dismissed consent overlay.", zap.String("selector", selector))
			h.pause(ctx)
			return true
		}
	}

	clicked, err := h.clickByButtonText(ctx, sess)
	if err != nil {
		h.logger.Debug("Consent button-text scan failed.", zap.Error(err))
		return false
	}
	if clicked {
		h.logger.Info("Dismissed consent overlay via button text scan.")
		h.pause(ctx)
	}
	return clicked
}

// clickBySelector clicks the selector's first visible match via JS, reporting
// whether anything was actually clicked.
func (h *ConsentHandler) clickBySelector(ctx context.Context, sess schemas.BrowserSession, selector string) (bool, error) {
	expr := fmt.Sprintf(`(() => {
        const el = document.querySelector(%s);
        if (!el) return false;
        const rect = el.getBoundingClientRect();
        if (rect.width === 0 || rect.height === 0) return false;
        el.click();
        return true;
    })()`, jsonEncode(selector))

	var clicked bool
	if err := sess.EvaluateJSON(ctx, expr, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

// clickByButtonText scans visible buttons and button-like elements for an
// accept-style label and clicks the first match.
func (h *ConsentHandler) clickByButtonText(ctx context.Context, sess schemas.BrowserSession) (bool, error) {
	labels := make([]string, 0, len(h.buttonTexts))
	for _, t := range h.buttonTexts {
		labels = append(labels, strings.ToLower(strings.TrimSpace(t)))
	}

	expr := fmt.Sprintf(`(() => {
        const wanted = new Set(%s);
        const candidates = document.querySelectorAll('button, a, [role="button"], input[type="button"], input[type="submit"]');
        for (const el of candidates) {
            const rect = el.getBoundingClientRect();
            if (rect.width === 0 || rect.height === 0) continue;
            const text = (el.innerText || el.value || '').trim().toLowerCase();
            if (wanted.has(text)) {
                el.click();
                return true;
            }
        }
        return false;
    })()`, jsonEncode(labels))

	var clicked bool
	if err := sess.EvaluateJSON(ctx, expr, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

func (h *ConsentHandler) pause(ctx context.Context) {
	select {
	case <-time.After(h.settlePause):
	case <-ctx.Done():
	}
}
