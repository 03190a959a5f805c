package hme

import (
	"context"
	"time"

	"github.com/yourorg/rendercore/internal/logging"
)

// MinBeatMs is the minimum budget reserved per remaining beat when the
// scheduler allocates a slice; the second of the three enforcement
// layers in the budget-allocation scheme.
const MinBeatMs = 400

// Run choreographs a scene for exactly durationMs (within ±100ms),
// picking the simplified script below 10s and the full script at or
// above it, short-circuiting to intro+idle on auth-like pages, seeded
// deterministically from the scene URL.
func Run(ctx context.Context, page Page, url string, durationMs float64) float64 {
	seed := SeedFromURL(url)
	rng := NewRNG(seed)
	cursor := &Cursor{}

	if isAuthPage(ctx, page) {
		return runAuthShortCircuit(ctx, page, cursor, rng, durationMs)
	}

	if durationMs < 10000 {
		return runSimplified(ctx, page, cursor, rng, durationMs)
	}
	return runFull(ctx, page, cursor, rng, durationMs)
}

func isAuthPage(ctx context.Context, page Page) bool {
	hasPassword, _ := page.HasPasswordField(ctx)
	hasLoginHeading, _ := page.HasLoginHeading(ctx)
	return hasPassword || hasLoginHeading
}

// runAuthShortCircuit performs introSettle and fills the remainder with
// idle, per the authentication-page short-circuit policy.
func runAuthShortCircuit(ctx context.Context, page Page, cursor *Cursor, rng *RNG, durationMs float64) float64 {
	introBudget := durationMs * 0.15
	if introBudget > 1200 {
		introBudget = 1200
	}
	elapsed := IntroSettle(ctx, page, cursor, rng, introBudget)
	elapsed += Idle(ctx, page, cursor, rng, durationMs-elapsed)
	return elapsed
}

func runSimplified(ctx context.Context, page Page, cursor *Cursor, rng *RNG, durationMs float64) float64 {
	elapsed := runBeat(ctx, page, cursor, rng, "introSettle", IntroSettle, durationMs*0.15, durationMs)

	remaining := durationMs - elapsed
	driftShare := rng.Range(0.40, 0.50)
	driftBudget := remaining * driftShare
	elapsed += runBeat(ctx, page, cursor, rng, "scrollDrift", ScrollDrift, driftBudget, durationMs-elapsed)

	elapsed += runBeat(ctx, page, cursor, rng, "idle", Idle, durationMs-elapsed, durationMs-elapsed)
	return elapsed
}

func runFull(ctx context.Context, page Page, cursor *Cursor, rng *RNG, durationMs float64) float64 {
	type step struct {
		name           string
		fn             Beat
		minMs, maxMs   float64
		shareOfRemain  float64 // 0 means "use fixed min/max range" instead
		cap            float64
	}
	steps := []step{
		{name: "introSettle", fn: IntroSettle, minMs: 800, maxMs: 1200},
		{name: "hoverNav", fn: HoverNav, minMs: 2500, maxMs: 4000},
		{name: "scrollDrift", fn: ScrollDrift, shareOfRemain: rng.Range(0.40, 0.50), cap: 12000},
		{name: "hoverHeadingNearCenter", fn: HoverHeadingNearCenter, minMs: 2500, maxMs: 4000},
		{name: "highlightSentence", fn: HighlightSentence, minMs: 1800, maxMs: 3000},
		{name: "moveToCTAandHover", fn: MoveToCTAandHover, minMs: 1500, maxMs: 2500},
		{name: "idle", fn: Idle, minMs: 1000, maxMs: 0},
	}

	elapsed := 0.0
	for i, s := range steps {
		remaining := durationMs - elapsed
		remainingBeats := float64(len(steps) - i)
		reserve := MinBeatMs * (remainingBeats - 1)

		var budget float64
		switch {
		case s.name == "idle":
			budget = remaining
		case s.shareOfRemain > 0:
			budget = remaining * s.shareOfRemain
			if s.cap > 0 && budget > s.cap {
				budget = s.cap
			}
		default:
			budget = rng.Range(s.minMs, s.maxMs)
		}

		available := remaining - reserve
		if budget > available {
			budget = available
		}
		if budget < 0 {
			budget = 0
		}

		elapsed += runBeat(ctx, page, cursor, rng, s.name, s.fn, budget, remaining)
	}

	return elapsed
}

// runBeat invokes a beat with its budget, enforcing layer one (the
// scheduler never hands out more than `available`) and logging+skipping
// on error so the remaining budget flows to the next beat.
func runBeat(ctx context.Context, page Page, cursor *Cursor, rng *RNG, name string, fn Beat, budgetMs, available float64) (elapsed float64) {
	if budgetMs > available {
		budgetMs = available
	}
	if budgetMs <= 0 {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithComponent(logging.ComponentHME, "beat panicked, skipping", "beat", name, "recovered", r)
			elapsed = 0
		}
	}()

	start := time.Now()
	elapsed = fn(ctx, page, cursor, rng, budgetMs)
	logging.DebugWithComponent(logging.ComponentHME, "beat complete", "beat", name, "budget_ms", budgetMs, "elapsed_ms", time.Since(start).Milliseconds())
	return elapsed
}
