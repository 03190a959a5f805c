package imageprocessing

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetScaledDimensionsPreservesAspectRatio(t *testing.T) {
	w, h := GetScaledDimensions(1920, 1080, 512, 288)
	assert.Equal(t, 512, w)
	assert.Equal(t, 288, h)
}

func TestResizeToFitLetterboxesNarrowerSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1080, 1920))
	for y := 0; y < 1920; y++ {
		for x := 0; x < 1080; x++ {
			src.Set(x, y, color.White)
		}
	}

	out := ResizeToFit(src, 512, 288)
	bounds := out.Bounds()
	assert.Equal(t, 512, bounds.Dx())
	assert.Equal(t, 288, bounds.Dy())

	r, g, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r, "unfilled letterbox area must be black")
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(0), b)
}

func TestResizeToFitNilImageReturnsNil(t *testing.T) {
	assert.Nil(t, ResizeToFit(nil, 100, 100))
}
