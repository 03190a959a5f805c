package recorder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/browser"
	"github.com/yourorg/rendercore/internal/database"
	"github.com/yourorg/rendercore/internal/hme"
	"github.com/yourorg/rendercore/internal/logging"
)

// safetyBufferSec pads every scene recording's content past its nominal
// duration, so the normalizer's leader trim never runs out of frames.
const safetyBufferSec = 15

const embedWaitDefault = 3 * time.Second
const networkIdleWait = 5 * time.Second

// Recorder records scenes through one browser.Driver.
type Recorder struct {
	Driver browser.Driver
}

// RecordScene implements a four-step sequence: acquire a page with the
// mask up, navigate and let lazy embeds settle, run the scene's
// explicit actions or the HME for its full duration plus the safety
// buffer, then close and verify the resulting file.
func (r *Recorder) RecordScene(ctx context.Context, sess *browser.Session, scene database.Scene, url string, pageLoadWaitMs int) (videoPath string, err error) {
	pg, err := r.Driver.NewPage(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("acquire page for scene %d: %w", scene.OrderIndex, err)
	}

	maxWait := networkIdleWait
	if pageLoadWaitMs > 0 {
		maxWait = time.Duration(pageLoadWaitMs) * time.Millisecond
	}
	if err := r.Driver.Navigate(ctx, pg, url, maxWait); err != nil {
		_, _ = r.Driver.ClosePage(ctx, pg)
		return "", fmt.Errorf("navigate scene %d to %s: %w", scene.OrderIndex, url, err)
	}

	time.Sleep(embedWaitDefault)

	if len(scene.Actions) > 0 {
		runActions(ctx, pg, scene.Actions, time.Duration(scene.DurationSec)*time.Second)
	} else {
		adapter := &chromePage{ctx: pageContext(pg)}
		hme.Run(ctx, adapter, url, float64(scene.DurationSec)*1000)
	}

	time.Sleep(safetyBufferSec * time.Second)

	videoPath, err = r.Driver.ClosePage(ctx, pg)
	if err != nil {
		return "", fmt.Errorf("close scene %d page: %w", scene.OrderIndex, err)
	}

	info, statErr := os.Stat(videoPath)
	if statErr != nil || info.Size() == 0 {
		return "", fmt.Errorf("scene %d recording missing or empty at %s", scene.OrderIndex, videoPath)
	}

	logging.InfoWithComponent(logging.ComponentRecorder, "scene recorded", "scene", scene.OrderIndex, "path", videoPath, "size_bytes", info.Size())
	return videoPath, nil
}

// pageContext reaches into browser.Page for its chromedp context; kept
// as a small accessor so internal/browser doesn't need to export its
// unexported field.
func pageContext(pg *browser.Page) context.Context {
	return browser.PageContext(pg)
}

// runActions executes an explicit scene script (go-to, wait, click-text,
// highlight, scroll) consuming up to budget.
func runActions(ctx context.Context, pg *browser.Page, actions []database.SceneAction, budget time.Duration) {
	cdpCtx := browser.PageContext(pg)
	deadline := time.Now().Add(budget)

	for _, action := range actions {
		if time.Now().After(deadline) {
			break
		}

		var actionErr error
		switch action.Type {
		case "go-to":
			actionErr = chromedp.Run(cdpCtx, chromedp.Navigate(action.Value))
		case "wait":
			ms := action.Ms
			if ms <= 0 {
				ms = 1000
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case "click-text":
			actionErr = chromedp.Run(cdpCtx, chromedp.Click(fmt.Sprintf("//*[contains(text(), %q)]", action.Target), chromedp.BySearch))
		case "highlight":
			actionErr = chromedp.Run(cdpCtx, chromedp.Evaluate(fmt.Sprintf(`
				(() => {
					const el = [...document.querySelectorAll('*')].find(e => (e.innerText||'').includes(%q));
					if (el) el.style.outline = '3px solid orange';
				})();
			`, action.Target), nil))
		case "scroll":
			amount := action.Amount
			if amount == 0 {
				amount = 300
			}
			actionErr = chromedp.Run(cdpCtx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, amount), nil))
		default:
			logging.WarnWithComponent(logging.ComponentRecorder, "unknown scene action, skipping", "type", action.Type)
			continue
		}

		if actionErr != nil {
			logging.WarnWithComponent(logging.ComponentRecorder, "scene action failed, continuing", "type", action.Type, "error", actionErr)
		}
	}
}
