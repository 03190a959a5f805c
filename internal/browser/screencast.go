package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/videotool"
)

// screencastRecorder captures CDP Page.screencastFrame events to a
// sequence of JPEG files on disk, then muxes them into a WebM at the
// recorder's fixed fps when the page closes.
type screencastRecorder struct {
	ctx       context.Context
	cancel    context.CancelFunc
	dir       string
	fps       int
	tool      videotool.Tool
	mu        sync.Mutex
	frameIdx  int
	stopped   bool
}

func newScreencastRecorder(ctx context.Context, dir string, fps int, tool videotool.Tool) (*screencastRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screencast frame dir: %w", err)
	}

	r := &screencastRecorder{dir: dir, fps: fps, tool: tool}

	listenCtx, cancel := context.WithCancel(ctx)
	r.ctx = listenCtx
	r.cancel = cancel

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		frame, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		go r.handleFrame(ctx, frame)
	})

	err := chromedp.Run(ctx, page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(80).
		WithEveryNthFrame(1))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start screencast: %w", err)
	}

	return r, nil
}

func (r *screencastRecorder) handleFrame(ctx context.Context, frame *page.EventScreencastFrame) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	idx := r.frameIdx
	r.frameIdx++
	r.mu.Unlock()

	data, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		logging.WarnWithComponent(logging.ComponentBrowser, "decode screencast frame", "error", err)
	} else {
		path := filepath.Join(r.dir, fmt.Sprintf("frame-%08d.jpg", idx))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logging.WarnWithComponent(logging.ComponentBrowser, "write screencast frame", "error", err)
		}
	}

	_ = chromedp.Run(ctx, page.ScreencastFrameAck(frame.SessionID))
}

// stop halts capture and muxes the captured frame sequence into a WebM
// at outputPath using the shared ffmpeg wrapper's image2 demuxer.
func (r *screencastRecorder) stop(ctx context.Context, outputPath string) error {
	r.mu.Lock()
	r.stopped = true
	frameCount := r.frameIdx
	r.mu.Unlock()

	_ = chromedp.Run(ctx, page.StopScreencast())
	r.cancel()
	defer os.RemoveAll(r.dir)

	if frameCount == 0 {
		return fmt.Errorf("no screencast frames captured in %s", r.dir)
	}

	return r.tool.MuxImageSequence(ctx, filepath.Join(r.dir, "frame-%08d.jpg"), r.fps, outputPath)
}
