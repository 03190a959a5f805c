package hme

import (
	"context"
	"sort"
)

// Cursor tracks the choreographer's believed on-screen cursor position
// across beats, so each beat's path generation starts from where the
// last one left off.
type Cursor struct {
	X, Y float64
}

// Beat is the common signature for all seven named beats: consume up
// to budgetMs and report actual elapsed.
type Beat func(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64

func runPath(ctx context.Context, page Page, cursor *Cursor, rng *RNG, target Point, nominalWidth float64) float64 {
	samples := GeneratePath(rng, Point{X: cursor.X, Y: cursor.Y}, target, nominalWidth)
	last := 0.0
	for _, s := range samples {
		wait := s.OffsetMs - last
		sleepCtx(ctx, wait)
		last = s.OffsetMs
		_ = page.MoveCursor(ctx, s.X, s.Y)
	}
	cursor.X, cursor.Y = target.X, target.Y
	return PathDurationMs(samples)
}

// IntroSettle moves the cursor from offscreen to a jittered viewport
// centre, then hovers with tiny idle motion.
func IntroSettle(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	width, height, err := page.ViewportSize(ctx)
	if err != nil || width == 0 {
		width, height = 1280, 720
	}
	cursor.X, cursor.Y = -40, height/2

	target := Point{X: width/2 + rng.Range(-40, 40), Y: height/2 + rng.Range(-30, 30)}
	elapsed := runPath(ctx, page, cursor, rng, target, width*0.6)

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

// HoverNav scores nav anchors and hovers over the best match with 2-4
// micro-movements.
func HoverNav(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	anchors, err := page.NavAnchors(ctx)
	if err != nil || len(anchors) == 0 {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	best := anchors[0]
	bestScore := ScoreNavAnchor(best)
	for _, a := range anchors[1:] {
		if s := ScoreNavAnchor(a); s > bestScore {
			best, bestScore = a, s
		}
	}
	if bestScore == 0 {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	elapsed := runPath(ctx, page, cursor, rng, Point{X: best.X, Y: best.Y}, 200)
	microMoves := int(rng.Range(2, 5))
	for i := 0; i < microMoves && elapsed < budgetMs; i++ {
		jx, jy := best.X+rng.Range(-4, 4), best.Y+rng.Range(-4, 4)
		pause := rng.Range(150, 300)
		sleepCtx(ctx, pause)
		elapsed += pause
		_ = page.MoveCursor(ctx, jx, jy)
	}

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

// ScrollDrift runs a content-aware (falling back to simple) scroll plan
// using 95% of budget for segments, the rest for final padding.
func ScrollDrift(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	segmentBudget := budgetMs * 0.95

	headings, _ := page.Headings(ctx)
	currentY, _ := page.ScrollY(ctx)

	var plan []ScrollSegment
	if len(headings) > 0 {
		plan = ContentAwareScrollPlan(rng, segmentBudget, headings, currentY)
	} else {
		plan = SimpleScrollPlan(rng, segmentBudget)
	}

	elapsed := executeScrollPlan(ctx, page, plan)

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

func executeScrollPlan(ctx context.Context, page Page, plan []ScrollSegment) float64 {
	elapsed := 0.0
	const frameMs = 1000.0 / 60.0

	for _, seg := range plan {
		frames := int(seg.DurationMs / frameMs)
		if frames < 1 {
			frames = 1
		}
		prevDisplacement := 0.0
		for i := 1; i <= frames; i++ {
			u := float64(i) / float64(frames)
			eased := EnvelopeValue(seg.Envelope, u)
			displacement := seg.AmplitudePx * eased
			_ = page.ScrollBy(ctx, displacement-prevDisplacement)
			prevDisplacement = displacement
			sleepCtx(ctx, frameMs)
			elapsed += frameMs
		}
		sleepCtx(ctx, seg.PauseAfterMs)
		elapsed += seg.PauseAfterMs
	}

	return elapsed
}

// HoverHeadingNearCenter selects the heading nearest viewport centre,
// scrolls it into view with a 120px top margin, then hovers with
// micro-jitter.
func HoverHeadingNearCenter(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	headings, err := page.Headings(ctx)
	if err != nil || len(headings) == 0 {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	_, viewportHeight, _ := page.ViewportSize(ctx)
	centre := viewportHeight / 2
	currentY, _ := page.ScrollY(ctx)

	sort.Slice(headings, func(i, j int) bool {
		return absF(headings[i].TopPx-currentY-centre) < absF(headings[j].TopPx-currentY-centre)
	})
	target := headings[0]

	scrollDelta := target.TopPx - currentY - 120
	_ = page.ScrollBy(ctx, scrollDelta)
	elapsed := 400.0
	sleepCtx(ctx, 400)

	width, _, _ := page.ViewportSize(ctx)
	elapsed += runPath(ctx, page, cursor, rng, Point{X: width / 2, Y: 120 + 20}, 200)

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

// HighlightSentence finds a visible <p> of 8-30 words and drags the
// cursor across 40-70% of its width, holding before release.
func HighlightSentence(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	paragraphs, err := page.Paragraphs(ctx)
	if err != nil {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	var candidate *Paragraph
	for i := range paragraphs {
		if paragraphs[i].Words >= 8 && paragraphs[i].Words <= 30 {
			candidate = &paragraphs[i]
			break
		}
	}
	if candidate == nil {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	width := candidate.RightX - candidate.LeftX
	dragWidth := width * rng.Range(0.4, 0.7)
	startX := candidate.LeftX + width*0.02
	endX := startX + dragWidth

	elapsed := runPath(ctx, page, cursor, rng, Point{X: startX, Y: candidate.Y}, 150)
	_ = page.MouseDown(ctx, startX, candidate.Y)
	elapsed += runPath(ctx, page, cursor, rng, Point{X: endX, Y: candidate.Y}, 150)

	hold := rng.Range(500, 900)
	sleepCtx(ctx, hold)
	elapsed += hold
	_ = page.MouseUp(ctx, endX, candidate.Y)

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

// MoveToCTAandHover moves to the first CTA anchor, in the order
// CTAAnchors returns them, that passes IsSafeToApproach, and hovers. The
// candidates are not scored or ranked. The approach path overshoots and
// corrects only when GeneratePath picks an overshoot for that move.
func MoveToCTAandHover(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	anchors, err := page.CTAAnchors(ctx)
	if err != nil {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	var best *Anchor
	for i := range anchors {
		if IsSafeToApproach(anchors[i]) {
			best = &anchors[i]
			break
		}
	}
	if best == nil {
		return AmbientPause(ctx, page, rng, budgetMs)
	}

	elapsed := runPath(ctx, page, cursor, rng, Point{X: best.X, Y: best.Y}, 150)

	if elapsed < budgetMs {
		elapsed += AmbientPause(ctx, page, rng, budgetMs-elapsed)
	}
	return elapsed
}

// Idle is the elastic final filler: for budgets ≥5s it delegates to the
// ambient pause, otherwise a single micro-move plus a sleep to the exact
// budget.
func Idle(ctx context.Context, page Page, cursor *Cursor, rng *RNG, budgetMs float64) float64 {
	if budgetMs >= 5000 {
		return AmbientPause(ctx, page, rng, budgetMs)
	}
	if budgetMs <= 0 {
		return 0
	}

	dx, dy := rng.Range(-10, 10), rng.Range(-10, 10)
	_ = page.MoveCursor(ctx, cursor.X+dx, cursor.Y+dy)
	sleepCtx(ctx, budgetMs)
	return budgetMs
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
