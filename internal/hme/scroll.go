package hme

import "math"

// ScrollEnvelope selects the easing shape applied across a scroll burst.
type ScrollEnvelope string

const (
	EnvelopeSin ScrollEnvelope = "sin"
	EnvelopeExp ScrollEnvelope = "exp"
)

// ScrollSegment is one planned scroll burst plus its trailing reading
// pause.
type ScrollSegment struct {
	DurationMs    float64
	AmplitudePx   float64
	Envelope      ScrollEnvelope
	PauseAfterMs  float64
	TargetComment string // optional heading text this segment scrolls toward, for logging
}

// SimpleScrollPlan generates 60-140px bursts over 900-1600ms, each
// followed by a 900-1800ms reading pause, with an occasional small
// reverse "peek-back" burst, filling the given budget.
func SimpleScrollPlan(rng *RNG, budgetMs float64) []ScrollSegment {
	var plan []ScrollSegment
	spent := 0.0

	for spent < budgetMs {
		seg := ScrollSegment{
			DurationMs:   rng.Range(900, 1600),
			AmplitudePx:  rng.Range(60, 140),
			Envelope:     pickEnvelope(rng),
			PauseAfterMs: rng.Range(900, 1800),
		}
		if rng.Bool(0.15) {
			seg.AmplitudePx = -rng.Range(60, 120)
		}

		cost := seg.DurationMs + seg.PauseAfterMs
		if spent+cost > budgetMs {
			remaining := budgetMs - spent
			if remaining < minMoveDurationMs {
				break
			}
			seg.DurationMs = math.Min(seg.DurationMs, remaining)
			seg.PauseAfterMs = math.Max(0, remaining-seg.DurationMs)
		}

		plan = append(plan, seg)
		spent += seg.DurationMs + seg.PauseAfterMs
	}

	return plan
}

// Heading is a DOM heading candidate discovered by the caller (the
// recorder, which has page access); content-aware planning only needs
// its approximate position.
type Heading struct {
	Text  string
	TopPx float64
}

// ContentAwareScrollPlan targets 1-2 headings within the time budget,
// planning a burst toward each and a long reading pause once reached.
// Falls back to the simple plan if no headings are supplied.
func ContentAwareScrollPlan(rng *RNG, budgetMs float64, headings []Heading, currentScrollY float64) []ScrollSegment {
	if len(headings) == 0 {
		return SimpleScrollPlan(rng, budgetMs)
	}

	targetCount := 1
	if len(headings) > 1 && rng.Bool(0.5) {
		targetCount = 2
	}
	if targetCount > len(headings) {
		targetCount = len(headings)
	}

	var plan []ScrollSegment
	spent := 0.0
	pos := currentScrollY

	for i := 0; i < targetCount && spent < budgetMs; i++ {
		h := headings[i]
		amplitude := h.TopPx - pos
		if amplitude == 0 {
			continue
		}
		seg := ScrollSegment{
			DurationMs:    rng.Range(900, 1600),
			AmplitudePx:   amplitude,
			Envelope:      pickEnvelope(rng),
			PauseAfterMs:  rng.Range(1200, 2200),
			TargetComment: h.Text,
		}

		cost := seg.DurationMs + seg.PauseAfterMs
		if spent+cost > budgetMs {
			remaining := budgetMs - spent
			if remaining < minMoveDurationMs {
				break
			}
			seg.DurationMs = math.Min(seg.DurationMs, remaining)
			seg.PauseAfterMs = math.Max(0, remaining-seg.DurationMs)
		}

		plan = append(plan, seg)
		spent += seg.DurationMs + seg.PauseAfterMs
		pos = h.TopPx
	}

	return plan
}

func pickEnvelope(rng *RNG) ScrollEnvelope {
	if rng.Bool(0.5) {
		return EnvelopeSin
	}
	return EnvelopeExp
}

// EnvelopeValue returns the eased progress for u∈[0,1] under the given
// envelope shape, used by the executor to step window.scrollY per frame.
func EnvelopeValue(env ScrollEnvelope, u float64) float64 {
	switch env {
	case EnvelopeExp:
		return 1 - math.Exp(-4*u)
	default:
		return minJerk(u)
	}
}

// ScrollPlanDurationMs sums a plan's total elapsed time.
func ScrollPlanDurationMs(plan []ScrollSegment) float64 {
	total := 0.0
	for _, seg := range plan {
		total += seg.DurationMs + seg.PauseAfterMs
	}
	return total
}
