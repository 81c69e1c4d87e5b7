// internal/browser/consent_test.go
package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// fakeSession is a scriptable schemas.BrowserSession for tests that only
// exercise JS evaluation.
type fakeSession struct {
	schemas.BrowserSession

	evalFunc func(expression string, out any) error
	evals    []string
}

func (f *fakeSession) EvaluateJSON(_ context.Context, expression string, out any) error {
	f.evals = append(f.evals, expression)
	if f.evalFunc != nil {
		return f.evalFunc(expression, out)
	}
	return nil
}

func newTestConsentHandler(t *testing.T) *ConsentHandler {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Browser.SettlePause = time.Millisecond
	return NewConsentHandler(cfg, zaptest.NewLogger(t))
}

// -- Test Cases: Consent Overlay Dismissal --

func TestConsentHandler_Dismiss(t *testing.T) {
	t.Run("first matching selector wins", func(t *testing.T) {
		sess := &fakeSession{
			evalFunc: func(expr string, out any) error {
				clicked := strings.Contains(expr, "#onetrust-accept-btn-handler")
				*(out.(*bool)) = clicked
				return nil
			},
		}

		got := newTestConsentHandler(t).Dismiss(context.Background(), sess)
		assert.True(t, got)
		assert.Len(t, sess.evals, 1, "must stop probing after the first hit")
	})

	t.Run("falls back to button text scan", func(t *testing.T) {
		sess := &fakeSession{
			evalFunc: func(expr string, out any) error {
				// Only the text-scan script (the one carrying the label set) clicks.
				*(out.(*bool)) = strings.Contains(expr, "wanted")
				return nil
			},
		}

		got := newTestConsentHandler(t).Dismiss(context.Background(), sess)
		assert.True(t, got)
		// All selectors probed, then one text scan.
		cfg := config.NewDefaultConfig()
		assert.Len(t, sess.evals, len(cfg.Agent.ConsentSelectors)+1)
	})

	t.Run("no overlay found", func(t *testing.T) {
		sess := &fakeSession{
			evalFunc: func(expr string, out any) error {
				*(out.(*bool)) = false
				return nil
			},
		}

		got := newTestConsentHandler(t).Dismiss(context.Background(), sess)
		assert.False(t, got)
	})

	t.Run("evaluation errors never fail the task", func(t *testing.T) {
		sess := &fakeSession{
			evalFunc: func(expr string, out any) error {
				return errors.New("target crashed")
			},
		}

		got := newTestConsentHandler(t).Dismiss(context.Background(), sess)
		assert.False(t, got)
	})
}
