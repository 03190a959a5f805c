package videotool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayPositionCorners(t *testing.T) {
	cases := []struct {
		corner string
		want   string
	}{
		{"bottom-right", "W-w-24:H-h-24"},
		{"bottom-left", "24:H-h-24"},
		{"top-right", "W-w-24:24"},
		{"top-left", "24:24"},
		{"", "W-w-24:H-h-24"}, // default
	}
	for _, c := range cases {
		got := overlayPosition(PIPOptions{Width: 320, Margin: 24, Corner: c.corner})
		assert.Equal(t, c.want, got, "corner %q", c.corner)
	}
}

func TestNormalizeRejectsNonPositiveFrameCount(t *testing.T) {
	tool := Tool{}
	err := tool.Normalize(context.Background(), "in.webm", "out.mp4", NormalizeOptions{
		Width: 1920, Height: 1080, FPS: 0, DurationSec: 30,
	})
	require.Error(t, err, "fps=0 must be rejected before shelling out to ffmpeg")
}

func TestConcatRejectsEmptyInputList(t *testing.T) {
	tool := Tool{}
	err := tool.Concat(context.Background(), nil, "out.mp4")
	require.Error(t, err)
}

func TestNormalizeLeaderSkipNeverExceedsFixedDefault(t *testing.T) {
	// The luma scan may only refine the skip downward, never extend it.
	opts := NormalizeOptions{
		Width: 1920, Height: 1080, FPS: 60, DurationSec: 10,
		LumaScan:       true,
		LumaScanOffset: 6 * time.Second, // larger than the 4.5s default: must be ignored
	}
	skip := leaderSkip(opts)
	assert.Equal(t, 4500*time.Millisecond, skip)
}
