package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/videotool"
)

// LocalDriver launches a local headless Chromium via chromedp's exec
// allocator. One allocator/browser pair is created per
// campaign session.
type LocalDriver struct {
	ChromeBin string
	Tool      videotool.Tool
}

func (d LocalDriver) AcquireCampaignSession(ctx context.Context, width, height int, baseDir string) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width, height),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
	)
	if d.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(d.ChromeBin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch local browser: %w", err)
	}

	logging.InfoWithComponent(logging.ComponentBrowser, "acquired local campaign session", "width", width, "height", height)

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

func (d LocalDriver) NewPage(ctx context.Context, sess *Session) (*Page, error) {
	return newPageFromSession(ctx, sess, d.Tool)
}

func (d LocalDriver) Navigate(ctx context.Context, pg *Page, url string, maxWait time.Duration) error {
	return navigate(ctx, pg, url, maxWait)
}

func (d LocalDriver) ClosePage(ctx context.Context, pg *Page) (string, error) {
	return closePage(ctx, pg)
}

func (d LocalDriver) ReleaseSession(ctx context.Context, sess *Session) error {
	return releaseSession(sess)
}

func newPageFromSession(ctx context.Context, sess *Session, tool videotool.Tool) (*Page, error) {
	pageCtx, pageCancel := chromedp.NewContext(sess.browserCtx)
	if err := chromedp.Run(pageCtx); err != nil {
		pageCancel()
		return nil, fmt.Errorf("open page: %w", err)
	}

	frameDir := filepath.Join(sess.baseDir, fmt.Sprintf("frames-%d", time.Now().UnixNano()))
	recorder, err := newScreencastRecorder(pageCtx, frameDir, 30, tool)
	if err != nil {
		pageCancel()
		return nil, fmt.Errorf("start page recorder: %w", err)
	}

	return &Page{ctx: pageCtx, cancel: pageCancel, recorder: recorder}, nil
}

func closePage(ctx context.Context, pg *Page) (string, error) {
	videoPath := filepath.Join(filepath.Dir(pg.recorder.dir), fmt.Sprintf("scene-%d.webm", time.Now().UnixNano()))
	if err := pg.recorder.stop(pg.ctx, videoPath); err != nil {
		pg.cancel()
		return "", fmt.Errorf("stop recording: %w", err)
	}
	pg.cancel()
	return videoPath, nil
}

func releaseSession(sess *Session) error {
	sess.browserCancel()
	sess.allocCancel()
	return nil
}
