// internal/agent/helpers_test.go
package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// setupTestLogger creates a logger that captures output for assertions.
func setupTestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// testAgentSettings returns session settings that keep captures cheap:
// no image downscaling, no HTML truncation.
func testAgentSettings(mode config.CaptureMode) config.AgentConfig {
	return config.AgentConfig{
		StartURL:   "https://example.com",
		Mode:       mode,
		MaxScrolls: 3,
		MaxSteps:   3,
	}
}

// scriptedLLM replays canned replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []schemas.GenerationRequest
}

func (m *scriptedLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if idx < len(m.replies) {
		return m.replies[idx], nil
	}
	// Off-script calls repeat the last reply so step-limit tests can loop.
	if len(m.replies) > 0 {
		return m.replies[len(m.replies)-1], nil
	}
	return "", fmt.Errorf("scriptedLLM: no reply configured for call %d", idx)
}

func (m *scriptedLLM) Close() error { return nil }

func (m *scriptedLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedLLM) Request(i int) schemas.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// fakeSession is an in-memory schemas.BrowserSession. Interactions are
// recorded; behavior is steered through the func fields and canned values.
type fakeSession struct {
	mu sync.Mutex

	currentURL string
	html       string
	screenshot []byte
	metrics    schemas.ScrollMetrics

	navigateErr   error
	clickErr      error
	typeErr       error
	currentURLErr func(call int) error
	evalFunc      func(expr string, out any) error

	navigations []string
	clicks      []string
	typed       [][2]string
	evals       []string
	scrollBys   []float64
	scrollTos   []float64
	urlCalls    int
	settleWaits int
	closed      int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		currentURL: "https://example.com/page",
		html:       `<html><body><a href="/next">Next page</a><p>Hello world</p></body></html>`,
		screenshot: []byte("not-a-real-png"),
		metrics:    schemas.ScrollMetrics{ScrollY: 0, ViewportHeight: 800, ContentHeight: 600},
	}
}

func (s *fakeSession) ID() string { return "fake-session" }

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
	return s.navigateErr
}

func (s *fakeSession) CurrentURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlCalls++
	if s.currentURLErr != nil {
		if err := s.currentURLErr(s.urlCalls); err != nil {
			return "", err
		}
	}
	return s.currentURL, nil
}

func (s *fakeSession) OuterHTML(context.Context) (string, error) {
	return s.html, nil
}

func (s *fakeSession) CaptureScreenshot(context.Context) ([]byte, error) {
	return s.screenshot, nil
}

func (s *fakeSession) EvaluateJSON(_ context.Context, expr string, out any) error {
	s.mu.Lock()
	s.evals = append(s.evals, expr)
	fn := s.evalFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(expr, out)
	}
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, selector)
	return s.clickErr
}

func (s *fakeSession) ClearAndType(_ context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typed = append(s.typed, [2]string{selector, text})
	return s.typeErr
}

func (s *fakeSession) ScrollBy(_ context.Context, deltaY float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollBys = append(s.scrollBys, deltaY)
	s.metrics.ScrollY += int64(deltaY)
	return nil
}

func (s *fakeSession) ScrollTo(_ context.Context, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollTos = append(s.scrollTos, y)
	s.metrics.ScrollY = int64(y)
	return nil
}

func (s *fakeSession) ScrollMetrics(context.Context) (*schemas.ScrollMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.metrics
	return &m, nil
}

func (s *fakeSession) WaitDocumentComplete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleWaits++
	return nil
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) evalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evals)
}

var _ schemas.BrowserSession = (*fakeSession)(nil)

// testState builds a perceived page state with one well-located element and
// one element whose locators are unavailable.
func testState() *PageState {
	return &PageState{
		Summary: "A product listing page",
		InteractiveElements: []InteractiveElement{
			{
				ID:          "element_1",
				Type:        "button",
				Text:        "Add to cart",
				CSSSelector: "#add-to-cart",
				XPath:       `//*[@id="add-to-cart"]`,
			},
			{
				ID:                "element_2",
				Type:              "link",
				VisualDescription: "Blue link in the footer",
				CSSSelector:       LocatorUnavailable,
				XPath:             LocatorUnavailable,
			},
		},
		ContentElements: []ContentElement{
			{Type: "price", Text: "$19.99"},
		},
	}
}
