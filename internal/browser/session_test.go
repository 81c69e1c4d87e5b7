// internal/browser/session_test.go
package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

const testTimeout = 45 * time.Second

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// newBrowserFixture launches one headless Chrome per test. These tests need a
// Chrome binary on PATH and exercise the real CDP transport.
func newBrowserFixture(t *testing.T) *Manager {
	t.Helper()

	cfg := &config.BrowserConfig{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    900,
		NavigationTimeout: 30 * time.Second,
		SettleTimeout:     10 * time.Second,
		SettlePause:       50 * time.Millisecond,
		Args:              []string{"--disable-dev-shm-usage"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	manager, err := NewManager(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err, "browser failed to launch; these tests need Chrome installed")

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		assert.NoError(t, manager.Shutdown(shutdownCtx))
	})
	return manager
}

func newTestSession(t *testing.T, manager *Manager) *Session {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	session, err := manager.NewSession(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		assert.NoError(t, session.Close(closeCtx))
	})
	return session
}

func staticTestServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(server.Close)
	return server
}

// -- Test Cases: Session --

func TestSession(t *testing.T) {
	manager := newBrowserFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	t.Run("NavigateAndReadBack", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body><h1>Landing</h1></body></html>`)

		require.NoError(t, session.Navigate(ctx, server.URL))

		url, err := session.CurrentURL(ctx)
		require.NoError(t, err)
		assert.Contains(t, url, server.Listener.Addr().String())

		html, err := session.OuterHTML(ctx)
		require.NoError(t, err)
		assert.Contains(t, html, "Landing")

		require.NoError(t, session.WaitDocumentComplete(ctx))
	})

	t.Run("EvaluateJSON", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body><p id="msg">ready</p></body></html>`)
		require.NoError(t, session.Navigate(ctx, server.URL))

		var text string
		require.NoError(t, session.EvaluateJSON(ctx, `document.getElementById("msg").textContent`, &text))
		assert.Equal(t, "ready", text)

		// A nil out discards the result.
		require.NoError(t, session.EvaluateJSON(ctx, `1 + 1`, nil))

		err := session.EvaluateJSON(ctx, `({bad: "shape"})`, &text)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal JS result")
	})

	t.Run("ScrollingAndMetrics", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body style="margin:0"><div style="height:5000px">tall</div></body></html>`)
		require.NoError(t, session.Navigate(ctx, server.URL))

		metrics, err := session.ScrollMetrics(ctx)
		require.NoError(t, err)
		want := &schemas.ScrollMetrics{ScrollY: 0, ViewportHeight: 900, ContentHeight: 5000}
		assert.Empty(t, cmp.Diff(want, metrics))

		require.NoError(t, session.ScrollBy(ctx, 700))
		metrics, err = session.ScrollMetrics(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 700, metrics.ScrollY)

		require.NoError(t, session.ScrollTo(ctx, 0))
		metrics, err = session.ScrollMetrics(ctx)
		require.NoError(t, err)
		assert.Zero(t, metrics.ScrollY)
	})

	t.Run("ClickAndType", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body>
			<input id="q" value="stale">
			<button id="go" onclick="document.getElementById('q').value='clicked'">Go</button>
		</body></html>`)
		require.NoError(t, session.Navigate(ctx, server.URL))

		require.NoError(t, session.ClearAndType(ctx, "#q", "fresh"))
		var value string
		require.NoError(t, session.EvaluateJSON(ctx, `document.getElementById("q").value`, &value))
		assert.Equal(t, "fresh", value)

		require.NoError(t, session.Click(ctx, "#go"))
		require.NoError(t, session.EvaluateJSON(ctx, `document.getElementById("q").value`, &value))
		assert.Equal(t, "clicked", value)
	})

	t.Run("ClickMissingElementFails", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body>empty</body></html>`)
		require.NoError(t, session.Navigate(ctx, server.URL))

		shortCtx, shortCancel := context.WithTimeout(ctx, 2*time.Second)
		defer shortCancel()
		err := session.Click(shortCtx, "#nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `click on "#nope" failed`)
	})

	t.Run("CaptureScreenshot", func(t *testing.T) {
		session := newTestSession(t, manager)
		server := staticTestServer(t, `<html><body><h1>Shot</h1></body></html>`)
		require.NoError(t, session.Navigate(ctx, server.URL))

		shot, err := session.CaptureScreenshot(ctx)
		require.NoError(t, err)
		require.True(t, len(shot) > len(pngMagic))
		assert.True(t, bytes.HasPrefix(shot, pngMagic), "screenshot must be a PNG")
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		session, err := manager.NewSession(ctx)
		require.NoError(t, err)

		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		require.NoError(t, session.Close(closeCtx))
		require.NoError(t, session.Close(closeCtx))
	})

	t.Run("SessionIsolation", func(t *testing.T) {
		server := staticTestServer(t, `<html><body><script>window.__flag = "set"</script></body></html>`)

		first := newTestSession(t, manager)
		require.NoError(t, first.Navigate(ctx, server.URL))

		second := newTestSession(t, manager)
		require.NoError(t, second.Navigate(ctx, "about:blank"))

		var flag *string
		require.NoError(t, second.EvaluateJSON(ctx, `window.__flag ?? null`, &flag))
		assert.Nil(t, flag, "tabs must not share page state")
	})
}
