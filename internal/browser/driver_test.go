package browser

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURLAddsScheme(t *testing.T) {
	assert.Equal(t, "https://example.com", normalizeURL("example.com"))
	assert.Equal(t, "https://example.com", normalizeURL("https://example.com"))
	assert.Equal(t, "http://example.com", normalizeURL("http://example.com"))
}

func solidFrame(c color.Gray) image.Image {
	img := image.NewGray(image.Rect(0, 0, 16, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, c)
		}
	}
	return img
}

func TestWaitPageReadyAcceptsStablePaintedFrames(t *testing.T) {
	calls := 0
	frame := solidFrame(color.Gray{Y: 120})
	err := WaitPageReady(func() (image.Image, error) {
		calls++
		return frame, nil
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, calls, stabilityConsecutiveFrames+1)
}

func TestWaitPageReadyRejectsStillWhiteUntilCapped(t *testing.T) {
	white := solidFrame(color.Gray{Y: 255})
	err := WaitPageReady(func() (image.Image, error) {
		return white, nil
	})
	// Never stabilizes (always "still white"); returns nil once the hard
	// cap elapses rather than blocking forever or erroring.
	assert.NoError(t, err)
}
