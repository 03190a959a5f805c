package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
)

// DecodeImage decodes a PNG/JPEG byte buffer, as produced by a headless
// browser's screenshot capture.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode captured frame: %w", err)
	}
	return img, nil
}

// CreateImageCanvas creates a new RGBA image with the specified dimensions.
func CreateImageCanvas(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// AverageLuminance returns the mean normalized luminance (0.0 black to
// 1.0 white) across an image, used by the page-ready "still white"
// rejection.
func AverageLuminance(img image.Image) float64 {
	gray := ToGrayscale(img)
	bounds := gray.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return 0
	}

	var sum uint64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, g, _, _ := gray.At(x, y).RGBA()
			sum += uint64(g >> 8)
			count++
		}
	}
	return float64(sum) / float64(count) / 255.0
}

// PixelDiffFraction returns the fraction of pixels (0.0-1.0) whose
// grayscale value differs by more than toleranceLevels (0-255) between
// a and b. Both images must share dimensions; mismatched dimensions
// return 1.0 (maximally different) rather than panicking.
func PixelDiffFraction(a, b image.Image, toleranceLevels uint8) float64 {
	ga, gb := ToGrayscale(a), ToGrayscale(b)
	boundsA, boundsB := ga.Bounds(), gb.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return 1.0
	}
	if boundsA.Dx() == 0 || boundsA.Dy() == 0 {
		return 0
	}

	var changed, total int
	for y := boundsA.Min.Y; y < boundsA.Max.Y; y++ {
		for x := boundsA.Min.X; x < boundsA.Max.X; x++ {
			_, va, _, _ := ga.At(x, y).RGBA()
			_, vb, _, _ := gb.At(x, y).RGBA()
			diff := int(va>>8) - int(vb>>8)
			if diff < 0 {
				diff = -diff
			}
			if diff > int(toleranceLevels) {
				changed++
			}
			total++
		}
	}
	return float64(changed) / float64(total)
}
