package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/videotool"
)

// RemoteDriver dials an existing remote debugging endpoint (a managed
// Chromium instance, e.g. a Steel.dev session selected with USE_STEEL and
// addressed by STEEL_DEBUG_URL) rather
// than launching a local process. Page/navigate/close/release
// share the exact same contract as LocalDriver once the allocator is in
// place, since both ultimately drive a chromedp.Context.
type RemoteDriver struct {
	DebugURL string
	Tool     videotool.Tool
}

func (d RemoteDriver) AcquireCampaignSession(ctx context.Context, width, height int, baseDir string) (*Session, error) {
	if d.DebugURL == "" {
		return nil, fmt.Errorf("remote browser debug URL (STEEL_DEBUG_URL) is not configured")
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, d.DebugURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect remote browser %s: %w", d.DebugURL, err)
	}

	logging.InfoWithComponent(logging.ComponentBrowser, "acquired remote campaign session", "debug_url", d.DebugURL, "width", width, "height", height)

	return &Session{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		width:         width,
		height:        height,
		baseDir:       baseDir,
	}, nil
}

func (d RemoteDriver) NewPage(ctx context.Context, sess *Session) (*Page, error) {
	return newPageFromSession(ctx, sess, d.Tool)
}

func (d RemoteDriver) Navigate(ctx context.Context, pg *Page, url string, maxWait time.Duration) error {
	return navigate(ctx, pg, url, maxWait)
}

func (d RemoteDriver) ClosePage(ctx context.Context, pg *Page) (string, error) {
	return closePage(ctx, pg)
}

func (d RemoteDriver) ReleaseSession(ctx context.Context, sess *Session) error {
	return releaseSession(sess)
}
