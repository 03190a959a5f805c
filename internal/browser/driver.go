// Package browser provides the headless-browser abstraction used by the
// scene recorder: a session holds one browser at a fixed viewport, and
// each scene gets one page (and one screen recording) opened from a
// session.
package browser

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/imageprocessing"
	"github.com/yourorg/rendercore/internal/logging"
)

// pageReadyFrameWidth/Height match the downscale pageready.CaptureFunc
// documents: full-resolution screenshots aren't needed to detect a
// still-white page or a stable paint, and shrinking them keeps the
// per-frame luminance/diff scan cheap.
const pageReadyFrameWidth = 512
const pageReadyFrameHeight = 288

// navigationMask is injected before any navigation so that the initial
// unstyled paint and any mid-navigation resize flash never reach the
// recording; it is removed once navigate() completes its stability poll.
const navigationMask = `(() => {
	const style = document.createElement('style');
	style.id = '__rendercore_mask_style';
	style.textContent = 'html,body{background:#000 !important}';
	const el = document.createElement('div');
	el.id = '__rendercore_mask';
	el.style.cssText = 'position:fixed;top:0;left:0;right:0;bottom:0;background:#000;z-index:2147483647;visibility:hidden';
	document.documentElement.appendChild(style);
	document.documentElement.appendChild(el);
})();`

const widgetWarmupDelay = 1500 * time.Millisecond
const stabilityPollInterval = 100 * time.Millisecond
const stabilityHoldDuration = 1 * time.Second
const stabilityPollCap = 10 * time.Second

// Driver is the abstraction a scene recorder drives: acquire a session,
// open one page per scene, and take a recording per page.
type Driver interface {
	AcquireCampaignSession(ctx context.Context, width, height int, baseDir string) (*Session, error)
	NewPage(ctx context.Context, sess *Session) (*Page, error)
	Navigate(ctx context.Context, pg *Page, url string, maxWait time.Duration) error
	ClosePage(ctx context.Context, pg *Page) (videoPath string, err error)
	ReleaseSession(ctx context.Context, sess *Session) error
}

// Session owns one browser context with video recording enabled at a
// fixed width×height; every page opened from it shares that surface.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserCancel context.CancelFunc
	width       int
	height      int
	baseDir     string
}

// Page is one scene's navigation target plus its screencast recorder.
type Page struct {
	ctx      context.Context
	cancel   context.CancelFunc
	target   cdp.FrameID
	recorder *screencastRecorder
	masked   bool
}

// PageContext exposes the page's chromedp context for callers outside
// this package (internal/recorder's action executor and HME adapter)
// that need to issue their own chromedp.Run calls against the same page.
func PageContext(pg *Page) context.Context {
	return pg.ctx
}

func normalizeURL(raw string) string {
	for _, scheme := range []string{"http://", "https://"} {
		if len(raw) >= len(scheme) && raw[:len(scheme)] == scheme {
			return raw
		}
	}
	return "https://" + raw
}

// navigate implements the shared contract between LocalDriver and
// RemoteDriver: normalize the URL, navigate with the mask up, wait for
// DOM-ready, warm up the widget, poll for viewport stability, then lift
// the mask.
func navigate(ctx context.Context, pg *Page, rawURL string, maxWait time.Duration) error {
	url := normalizeURL(rawURL)
	waitCtx, cancel := context.WithTimeout(pg.ctx, maxWait)
	defer cancel()

	err := chromedp.Run(waitCtx,
		page.AddScriptToEvaluateOnNewDocument(navigationMask).WithRunImmediately(true),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	pg.masked = true

	if err := warmupWidget(waitCtx); err != nil {
		logging.WarnWithComponent(logging.ComponentBrowser, "widget warmup degraded", "url", url, "error", err)
	}

	if err := pollViewportStable(waitCtx); err != nil {
		logging.WarnWithComponent(logging.ComponentBrowser, "viewport never stabilized, continuing anyway", "url", url, "error", err)
	}

	if err := WaitPageReady(func() (image.Image, error) { return captureDownscaledFrame(waitCtx) }); err != nil {
		logging.WarnWithComponent(logging.ComponentBrowser, "page-ready visual stability check degraded", "url", url, "error", err)
	}

	if err := chromedp.Run(waitCtx, chromedp.Evaluate(`
		(() => {
			const el = document.getElementById('__rendercore_mask');
			if (el) el.remove();
			const style = document.getElementById('__rendercore_mask_style');
			if (style) style.remove();
		})();
	`, nil)); err != nil {
		return fmt.Errorf("remove navigation mask: %w", err)
	}
	pg.masked = false

	return nil
}

// warmupWidget dispatches synthetic resize/scroll/focus events, waits
// for fonts and two animation frames, and sleeps a short settle delay
// so embedded widgets finish their initial layout pass before any
// capture begins.
func warmupWidget(ctx context.Context) error {
	err := chromedp.Run(ctx, chromedp.Evaluate(`
		(async () => {
			window.dispatchEvent(new Event('resize'));
			window.dispatchEvent(new Event('scroll'));
			window.focus();
			if (document.fonts && document.fonts.ready) {
				await document.fonts.ready;
			}
			await new Promise(r => requestAnimationFrame(() => requestAnimationFrame(r)));
		})();
	`, nil))
	if err != nil {
		return err
	}
	time.Sleep(widgetWarmupDelay)
	return nil
}

// captureDownscaledFrame grabs a full-quality CDP screenshot of the
// current page and decodes+downscales it to the size WaitPageReady's
// luminance/diff checks operate on.
func captureDownscaledFrame(ctx context.Context) (image.Image, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	img, err := imageprocessing.DecodeImage(buf)
	if err != nil {
		return nil, err
	}
	return imageprocessing.ResizeToFit(img, pageReadyFrameWidth, pageReadyFrameHeight), nil
}

// pollViewportStable waits for the rendered document size to settle:
// polls every 100ms, requires 1s of consecutive agreement, caps at 10s.
func pollViewportStable(ctx context.Context) error {
	deadline := time.Now().Add(stabilityPollCap)
	var lastW, lastH int64
	stableSince := time.Time{}

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("viewport did not stabilize within %s", stabilityPollCap)
		}

		var dims []int64
		if err := chromedp.Run(ctx, chromedp.Evaluate(`[document.documentElement.scrollWidth, document.documentElement.scrollHeight]`, &dims)); err != nil {
			return err
		}
		if len(dims) != 2 {
			return fmt.Errorf("unexpected viewport probe result")
		}

		if dims[0] == lastW && dims[1] == lastH {
			if stableSince.IsZero() {
				stableSince = time.Now()
			} else if time.Since(stableSince) >= stabilityHoldDuration {
				return nil
			}
		} else {
			lastW, lastH = dims[0], dims[1]
			stableSince = time.Time{}
		}

		time.Sleep(stabilityPollInterval)
	}
}
