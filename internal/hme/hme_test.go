package hme

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFromURLIsDeterministic(t *testing.T) {
	a := SeedFromURL("https://example.com/pricing")
	b := SeedFromURL("https://example.com/pricing")
	c := SeedFromURL("https://example.com/features")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRNGIsReproducibleGivenSeed(t *testing.T) {
	seed := SeedFromURL("https://example.com")
	r1 := NewRNG(seed)
	r2 := NewRNG(seed)
	for i := 0; i < 50; i++ {
		require.Equal(t, r1.Float64(), r2.Float64())
	}
}

func TestFittsDurationClampedToRange(t *testing.T) {
	assert.Equal(t, float64(minMoveDurationMs), fittsDuration(0, 40))
	assert.Equal(t, float64(maxMoveDurationMs), fittsDuration(1e9, 1))
}

func TestGeneratePathReachesTarget(t *testing.T) {
	rng := NewRNG(42)
	samples := GeneratePath(rng, Point{0, 0}, Point{100, 100}, 40)
	require.NotEmpty(t, samples)
	last := samples[len(samples)-1]
	assert.InDelta(t, 100, last.X, 10)
	assert.InDelta(t, 100, last.Y, 10)
}

func TestIsSafeToApproachRejectsDenyListed(t *testing.T) {
	assert.False(t, IsSafeToApproach(Anchor{Text: "Sign in", SameOrigin: true}))
	assert.False(t, IsSafeToApproach(Anchor{Text: "Buy now", SameOrigin: true}))
	assert.False(t, IsSafeToApproach(Anchor{Text: "Pricing", SameOrigin: false}))
	assert.True(t, IsSafeToApproach(Anchor{Text: "Pricing", SameOrigin: true}))
	assert.True(t, IsSafeToApproach(Anchor{Text: "Book demo", SameOrigin: true}))
	assert.False(t, IsSafeToApproach(Anchor{Text: "Download", SameOrigin: true}))
}

func TestSimpleScrollPlanStaysWithinBudget(t *testing.T) {
	rng := NewRNG(7)
	plan := SimpleScrollPlan(rng, 5000)
	total := ScrollPlanDurationMs(plan)
	assert.LessOrEqual(t, total, 5000.0)
}

type fakePage struct {
	width, height float64
	scrollY       float64
	hasPassword   bool
}

func (f *fakePage) MoveCursor(ctx context.Context, x, y float64) error { return nil }
func (f *fakePage) ScrollBy(ctx context.Context, dy float64) error     { f.scrollY += dy; return nil }
func (f *fakePage) ScrollY(ctx context.Context) (float64, error)      { return f.scrollY, nil }
func (f *fakePage) Click(ctx context.Context, x, y float64) error     { return nil }
func (f *fakePage) MouseDown(ctx context.Context, x, y float64) error { return nil }
func (f *fakePage) MouseUp(ctx context.Context, x, y float64) error   { return nil }
func (f *fakePage) ViewportSize(ctx context.Context) (float64, float64, error) {
	return f.width, f.height, nil
}
func (f *fakePage) NavAnchors(ctx context.Context) ([]Anchor, error)       { return nil, nil }
func (f *fakePage) CTAAnchors(ctx context.Context) ([]Anchor, error)       { return nil, nil }
func (f *fakePage) Headings(ctx context.Context) ([]Heading, error)       { return nil, nil }
func (f *fakePage) Paragraphs(ctx context.Context) ([]Paragraph, error)   { return nil, nil }
func (f *fakePage) HasPasswordField(ctx context.Context) (bool, error)    { return f.hasPassword, nil }
func (f *fakePage) HasLoginHeading(ctx context.Context) (bool, error)     { return false, nil }

func TestRunAuthPageShortCircuitsToIdle(t *testing.T) {
	page := &fakePage{width: 1280, height: 720, hasPassword: true}
	elapsed := Run(context.Background(), page, "https://example.com/login", 8000)
	assert.InDelta(t, 8000, elapsed, 200)
}

func TestRunSimplifiedScriptMeetsBudget(t *testing.T) {
	page := &fakePage{width: 1280, height: 720}
	elapsed := Run(context.Background(), page, "https://example.com", 4000)
	assert.InDelta(t, 4000, elapsed, 300)
}
