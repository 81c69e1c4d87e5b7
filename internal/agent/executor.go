// internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/InvokerMing/WebAgent/api/schemas"
)

// Executor performs a proposed action against the live page. Failures are
// classified step errors the loop records into history; nothing here is
// fatal to the task.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger.Named("executor")}
}

// locator is one way of finding the target element, tried in order.
type locator struct {
	Kind  string `json:"kind"` // "css" or "xpath"
	Value string `json:"value"`
}

// Execute carries out one proposal. ANSWER and stop never reach here; the
// session loop terminates on them before execution.
func (e *Executor) Execute(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal, state *PageState) error {
	e.logger.Debug("Executing action.", zap.String("action", string(p.Type)), zap.String("element_id", p.ElementID))

	switch p.Type {
	case ActionClick:
		return e.executeClick(ctx, sess, p, state)
	case ActionTypeText:
		return e.executeType(ctx, sess, p, state)
	case ActionSelect:
		return e.executeSelect(ctx, sess, p, state)
	case ActionScroll:
		return e.executeScroll(ctx, sess, p)
	case ActionNavigate:
		if err := sess.Navigate(ctx, p.URL); err != nil {
			return newStepError(ErrCodeNavigateFailed, err)
		}
		return nil
	default:
		return newStepError(ErrCodeInteraction, fmt.Errorf("action %q is not executable", p.Type))
	}
}

func (e *Executor) executeClick(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal, state *PageState) error {
	loc, err := e.resolveTarget(ctx, sess, p, state)
	if err != nil {
		return err
	}

	// Native click first for CSS targets; the JS path covers XPath targets
	// and elements the native path cannot reach.
	if loc.Kind == "css" {
		if err := sess.Click(ctx, loc.Value); err == nil {
			return nil
		}
		e.logger.Debug("Native click failed, falling back to JS click.", zap.String("selector", loc.Value))
	}
	return e.jsClick(ctx, sess, loc)
}

func (e *Executor) executeType(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal, state *PageState) error {
	loc, err := e.resolveTarget(ctx, sess, p, state)
	if err != nil {
		return err
	}

	if loc.Kind == "css" {
		if err := sess.ClearAndType(ctx, loc.Value, p.Text); err == nil {
			return nil
		}
		e.logger.Debug("Native typing failed, falling back to JS value set.", zap.String("selector", loc.Value))
	}
	return e.jsSetValue(ctx, sess, loc, p.Text)
}

// executeSelect picks an option by visible text, falling back to value match.
func (e *Executor) executeSelect(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal, state *PageState) error {
	loc, err := e.resolveTarget(ctx, sess, p, state)
	if err != nil {
		return err
	}

	expr := fmt.Sprintf(`(() => {
        const el = %s;
        if (!el) return "ELEMENT_NOT_FOUND";
        if (el.tagName.toLowerCase() !== 'select') return "NOT_A_SELECT";
        const wanted = %s;
        const pick = i => {
            el.selectedIndex = i;
            el.dispatchEvent(new Event('input', { bubbles: true }));
            el.dispatchEvent(new Event('change', { bubbles: true }));
            return "OK";
        };
        for (let i = 0; i < el.options.length; i++) {
            if (el.options[i].text.trim() === wanted) return pick(i);
        }
        for (let i = 0; i < el.options.length; i++) {
            if (el.options[i].value === wanted) return pick(i);
        }
        return "OPTION_NOT_FOUND";
    })()`, resolveJS(loc), jsEncode(p.OptionText))

	var result string
	if err := sess.EvaluateJSON(ctx, expr, &result); err != nil {
		return newStepError(ErrCodeInteraction, err)
	}

	switch result {
	case "OK":
		return nil
	case "NOT_A_SELECT":
		return newStepError(ErrCodeNotASelect, fmt.Errorf("element %q is not a select", p.ElementID))
	case "OPTION_NOT_FOUND":
		return newStepError(ErrCodeOptionNotFound, fmt.Errorf("option %q not found by text or value", p.OptionText))
	default:
		return newStepError(ErrCodeElementNotFound, fmt.Errorf("select target vanished before interaction"))
	}
}

// executeScroll moves one viewport up or down.
func (e *Executor) executeScroll(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal) error {
	metrics, err := sess.ScrollMetrics(ctx)
	if err != nil {
		return newStepError(ErrCodeInteraction, err)
	}

	delta := float64(metrics.ViewportHeight)
	switch p.Direction {
	case ScrollDown:
	case ScrollUp:
		delta = -delta
	default:
		return newStepError(ErrCodeBadDirection, fmt.Errorf("unknown scroll direction %q", p.Direction))
	}

	if err := sess.ScrollBy(ctx, delta); err != nil {
		return newStepError(ErrCodeInteraction, err)
	}
	return nil
}

// resolveTarget builds the locator fallback chain for the proposal's target
// and probes the page for the first one matching a visible element.
func (e *Executor) resolveTarget(ctx context.Context, sess schemas.BrowserSession, p *ActionProposal, state *PageState) (locator, error) {
	locs := candidateLocators(p, state)
	if len(locs) == 0 {
		return locator{}, newStepError(ErrCodeElementNotFound,
			fmt.Errorf("no usable locator for element %q", p.ElementID))
	}

	expr := fmt.Sprintf(`(() => {
        const locs = %s;
        const visible = el => {
            if (!el || !el.getBoundingClientRect) return false;
            const r = el.getBoundingClientRect();
            return r.width > 0 && r.height > 0;
        };
        const resolve = l => {
            try {
                if (l.kind === "css") return document.querySelector(l.value);
                return document.evaluate(l.value, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
            } catch (err) {
                return null;
            }
        };
        for (let i = 0; i < locs.length; i++) {
            if (visible(resolve(locs[i]))) return i;
        }
        return -1;
    })()`, jsEncode(locs))

	var idx int
	if err := sess.EvaluateJSON(ctx, expr, &idx); err != nil {
		return locator{}, newStepError(ErrCodeInteraction, err)
	}
	if idx < 0 || idx >= len(locs) {
		return locator{}, newStepError(ErrCodeElementNotFound,
			fmt.Errorf("element %q not found by any of %d locators", p.ElementID, len(locs)))
	}

	chosen := locs[idx]
	e.logger.Debug("Target element resolved.",
		zap.String("element_id", p.ElementID),
		zap.String("kind", chosen.Kind),
		zap.String("value", chosen.Value),
	)
	return chosen, nil
}

// candidateLocators orders every way of finding the target: the proposal's
// direct CSS selector, the perceived CSS selector and XPath, then heuristic
// XPaths derived from the element's text and visual description.
func candidateLocators(p *ActionProposal, state *PageState) []locator {
	var locs []locator
	if p.CSSSelector != "" && p.CSSSelector != LocatorUnavailable {
		locs = append(locs, locator{Kind: "css", Value: p.CSSSelector})
	}

	var el *InteractiveElement
	if p.ElementID != "" && state != nil {
		el = state.Element(p.ElementID)
	}
	if el == nil {
		return locs
	}

	if el.HasCSSSelector() {
		locs = append(locs, locator{Kind: "css", Value: el.CSSSelector})
	}
	if el.HasXPath() {
		locs = append(locs, locator{Kind: "xpath", Value: el.XPath})
	}

	for _, text := range []string{el.Text, el.VisualDescription} {
		text = strings.TrimSpace(text)
		// XPath string literals here use single quotes; skip texts that
		// would break out of them.
		if text == "" || strings.Contains(text, "'") {
			continue
		}
		heuristics := []string{
			fmt.Sprintf(`//a[normalize-space()='%s']`, text),
			fmt.Sprintf(`//button[normalize-space()='%s']`, text),
			fmt.Sprintf(`//input[@value='%s']`, text),
			fmt.Sprintf(`//input[@aria-label='%s']`, text),
			fmt.Sprintf(`//button[@aria-label='%s']`, text),
			fmt.Sprintf(`//*[@title='%s']`, text),
		}
		if strings.EqualFold(el.Type, "input") {
			heuristics = append(heuristics, fmt.Sprintf(`//input[@placeholder='%s']`, text))
		}
		heuristics = append(heuristics,
			fmt.Sprintf(`//*[normalize-space()='%s']`, text),
			fmt.Sprintf(`//*[contains(normalize-space(), '%s')]`, text),
		)
		for _, xp := range heuristics {
			locs = append(locs, locator{Kind: "xpath", Value: xp})
		}
	}
	return locs
}

func (e *Executor) jsClick(ctx context.Context, sess schemas.BrowserSession, loc locator) error {
	expr := fmt.Sprintf(`(() => {
        const el = %s;
        if (!el) return false;
        el.click();
        return true;
    })()`, resolveJS(loc))

	var clicked bool
	if err := sess.EvaluateJSON(ctx, expr, &clicked); err != nil {
		return newStepError(ErrCodeInteraction, err)
	}
	if !clicked {
		return newStepError(ErrCodeElementNotFound, fmt.Errorf("click target vanished before interaction"))
	}
	return nil
}

// jsSetValue writes the value directly and dispatches input/change events so
// framework-bound inputs notice the change.
func (e *Executor) jsSetValue(ctx context.Context, sess schemas.BrowserSession, loc locator, text string) error {
	expr := fmt.Sprintf(`(() => {
        const el = %s;
        if (!el) return false;
        el.value = %s;
        el.dispatchEvent(new Event('input', { bubbles: true }));
        el.dispatchEvent(new Event('change', { bubbles: true }));
        return true;
    })()`, resolveJS(loc), jsEncode(text))

	var ok bool
	if err := sess.EvaluateJSON(ctx, expr, &ok); err != nil {
		return newStepError(ErrCodeInteraction, err)
	}
	if !ok {
		return newStepError(ErrCodeElementNotFound, fmt.Errorf("type target vanished before interaction"))
	}
	return nil
}

// resolveJS renders a JS expression resolving the locator to an element.
func resolveJS(loc locator) string {
	if loc.Kind == "css" {
		return fmt.Sprintf("document.querySelector(%s)", jsEncode(loc.Value))
	}
	return fmt.Sprintf(
		"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
		jsEncode(loc.Value),
	)
}

// jsEncode safely embeds a value into generated JavaScript.
func jsEncode(v interface{}) string {
	s, err := json.MarshalToString(v)
	if err != nil {
		return `""`
	}
	return s
}
