package hme

import (
	"context"
	"time"
)

// AmbientPause fills budgetMs with 700-1400ms quiet windows interleaved
// with micro-moves (±8-20px) and occasional tiny scroll nudges, replacing
// naked sleeps ≥5s. Returns the actual
// elapsed time so the caller can reconcile any scheduling deficit.
func AmbientPause(ctx context.Context, page Page, rng *RNG, budgetMs float64) float64 {
	start := time.Now()
	remaining := budgetMs

	width, height, err := page.ViewportSize(ctx)
	if err != nil || width == 0 {
		width, height = 1280, 720
	}
	cx, cy := width/2, height/2

	for remaining > 0 {
		quiet := rng.Range(700, 1400)
		if quiet > remaining {
			quiet = remaining
		}
		sleepCtx(ctx, quiet)
		remaining -= quiet

		if remaining <= 0 {
			break
		}

		dx, dy := rng.Range(-20, 20), rng.Range(-20, 20)
		if dx >= 0 {
			dx = 8 + dx*0.6
		} else {
			dx = -8 + dx*0.6
		}
		moveDur := rng.Range(120, 220)
		_ = page.MoveCursor(ctx, cx+dx, cy+dy)
		if moveDur > remaining {
			moveDur = remaining
		}
		sleepCtx(ctx, moveDur)
		remaining -= moveDur

		if rng.Bool(0.21) && remaining > 300 {
			nudge := rng.Range(20, 40)
			nudgeDur := rng.Range(300, 500)
			if nudgeDur > remaining {
				nudgeDur = remaining
			}
			_ = page.ScrollBy(ctx, nudge)
			sleepCtx(ctx, nudgeDur)
			remaining -= nudgeDur
		}
	}

	return float64(time.Since(start).Milliseconds())
}

func sleepCtx(ctx context.Context, ms float64) {
	if ms <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
