// internal/agent/capture.go
package agent

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/InvokerMing/WebAgent/api/schemas"
	"github.com/InvokerMing/WebAgent/internal/browser/dom"
	"github.com/InvokerMing/WebAgent/internal/config"
)

// batchScrollPause gives lazy-loaded content a moment to render between
// scroll positions.
const batchScrollPause = 400 * time.Millisecond

// Capturer gathers the page state for one step in the configured mode.
// Browser interaction is strictly sequential; only the PNG file writes at the
// end of a capture run concurrently.
type Capturer struct {
	logger *zap.Logger
}

func NewCapturer(logger *zap.Logger) *Capturer {
	return &Capturer{logger: logger.Named("capturer")}
}

// Capture produces the step's Capture per the session settings. Driver-level
// failures surface as errors; the session loop owns the retry policy.
func (c *Capturer) Capture(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, tempDir string, step int) (*Capture, error) {
	pageURL, err := sess.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture failed reading page URL: %w", err)
	}

	capture := &Capture{PageURL: pageURL}

	switch settings.Mode {
	case config.ModeHTML:
		err = c.captureHTML(ctx, sess, settings, capture)
	case config.ModeStandard:
		err = c.captureStandard(ctx, sess, settings, capture)
	case config.ModeBatch:
		err = c.captureBatch(ctx, sess, settings, capture)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", settings.Mode)
	}
	if err != nil {
		return nil, err
	}

	c.persistScreenshots(ctx, capture, tempDir, step)

	c.logger.Debug("Capture complete.",
		zap.String("mode", string(settings.Mode)),
		zap.Int("images", len(capture.Images)),
		zap.Int("html_bytes", len(capture.HTML)),
		zap.Bool("at_bottom", capture.AtBottom),
	)
	return capture, nil
}

// captureHTML gathers simplified HTML only. No screenshot is taken, so this
// mode deterministically yields zero images.
func (c *Capturer) captureHTML(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, capture *Capture) error {
	if err := c.fillHTML(ctx, sess, settings, capture); err != nil {
		return err
	}
	metrics, err := sess.ScrollMetrics(ctx)
	if err != nil {
		return fmt.Errorf("capture failed reading scroll metrics: %w", err)
	}
	capture.AtBottom = metrics.AtBottom()
	return nil
}

// captureStandard takes exactly one screenshot of the current viewport.
func (c *Capturer) captureStandard(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, capture *Capture) error {
	metrics, err := sess.ScrollMetrics(ctx)
	if err != nil {
		return fmt.Errorf("capture failed reading scroll metrics: %w", err)
	}

	img, err := c.takeScreenshot(ctx, sess, settings, metrics.ScrollY)
	if err != nil {
		return err
	}
	capture.Images = []schemas.ImageData{img}
	capture.AtBottom = metrics.AtBottom()
	return nil
}

// captureBatch rewinds to the top and screenshots one viewport at a time,
// stopping early at the page bottom, then adds the simplified HTML.
func (c *Capturer) captureBatch(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, capture *Capture) error {
	if err := sess.ScrollTo(ctx, 0); err != nil {
		return fmt.Errorf("capture failed rewinding to page top: %w", err)
	}

	for i := 0; i < settings.MaxScrolls; i++ {
		metrics, err := sess.ScrollMetrics(ctx)
		if err != nil {
			return fmt.Errorf("capture failed reading scroll metrics: %w", err)
		}

		img, err := c.takeScreenshot(ctx, sess, settings, metrics.ScrollY)
		if err != nil {
			return err
		}
		capture.Images = append(capture.Images, img)

		if metrics.AtBottom() {
			capture.AtBottom = true
			break
		}
		if i == settings.MaxScrolls-1 {
			break
		}

		if err := sess.ScrollBy(ctx, float64(metrics.ViewportHeight)); err != nil {
			return fmt.Errorf("capture failed scrolling: %w", err)
		}
		select {
		case <-time.After(batchScrollPause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return c.fillHTML(ctx, sess, settings, capture)
}

func (c *Capturer) fillHTML(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, capture *Capture) error {
	raw, err := sess.OuterHTML(ctx)
	if err != nil {
		return fmt.Errorf("capture failed reading page HTML: %w", err)
	}
	simplified, err := dom.Simplify(raw, settings.HTMLByteBudget)
	if err != nil {
		return fmt.Errorf("capture failed simplifying HTML: %w", err)
	}
	capture.HTML = simplified
	return nil
}

func (c *Capturer) takeScreenshot(ctx context.Context, sess schemas.BrowserSession, settings config.AgentConfig, scrollY int64) (schemas.ImageData, error) {
	buf, err := sess.CaptureScreenshot(ctx)
	if err != nil {
		return schemas.ImageData{}, fmt.Errorf("capture failed taking screenshot: %w", err)
	}

	buf, err = c.downscale(buf, settings.MaxImageWidth)
	if err != nil {
		return schemas.ImageData{}, err
	}

	return schemas.ImageData{
		MIMEType: "image/png",
		Data:     buf,
		ScrollY:  scrollY,
	}, nil
}

// downscale shrinks screenshots wider than maxWidth to respect model payload
// limits. Smaller images pass through untouched.
func (c *Capturer) downscale(buf []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return buf, nil
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("capture produced an undecodable screenshot: %w", err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return buf, nil
	}

	resized := resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	var out bytes.Buffer
	if err := png.Encode(&out, resized); err != nil {
		return nil, fmt.Errorf("failed to re-encode downscaled screenshot: %w", err)
	}
	return out.Bytes(), nil
}

// persistScreenshots writes the step's PNGs to the per-task temp dir
// concurrently. These are debugging artifacts; a write failure is logged, not
// raised.
func (c *Capturer) persistScreenshots(ctx context.Context, capture *Capture, tempDir string, step int) {
	if tempDir == "" || len(capture.Images) == 0 {
		return
	}

	g, _ := errgroup.WithContext(ctx)
	for i, img := range capture.Images {
		path := filepath.Join(tempDir, fmt.Sprintf("step_%02d_shot_%02d.png", step, i))
		data := img.Data
		g.Go(func() error {
			return os.WriteFile(path, data, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("Failed to persist step screenshots.", zap.Error(err))
	}
}
