package imageprocessing

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solidImage(w, h int, c color.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	return img
}

func TestAverageLuminanceWhitePageRejected(t *testing.T) {
	white := solidImage(64, 64, color.Gray{Y: 255})
	lum := AverageLuminance(white)
	assert.Greater(t, lum, 0.95, "a blank white page must exceed the 0.95 still-white threshold")
}

func TestAverageLuminancePaintedPageAccepted(t *testing.T) {
	painted := solidImage(64, 64, color.Gray{Y: 180})
	lum := AverageLuminance(painted)
	assert.Less(t, lum, 0.95)
}

func TestPixelDiffFractionIdenticalFramesAreStable(t *testing.T) {
	a := solidImage(64, 64, color.Gray{Y: 120})
	b := solidImage(64, 64, color.Gray{Y: 120})
	diff := PixelDiffFraction(a, b, 2)
	assert.Equal(t, 0.0, diff)
}

func TestPixelDiffFractionDetectsChange(t *testing.T) {
	a := solidImage(64, 64, color.Gray{Y: 50})
	b := solidImage(64, 64, color.Gray{Y: 220})
	diff := PixelDiffFraction(a, b, 2)
	assert.Equal(t, 1.0, diff, "a fully repainted frame must register as 100% changed")
}

func TestPixelDiffFractionMismatchedDimensions(t *testing.T) {
	a := solidImage(64, 64, color.Gray{Y: 120})
	b := solidImage(32, 32, color.Gray{Y: 120})
	diff := PixelDiffFraction(a, b, 2)
	assert.Equal(t, 1.0, diff, "mismatched dimensions must be treated as maximally different, not panic")
}
