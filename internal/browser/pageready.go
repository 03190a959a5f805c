package browser

import (
	"image"
	"time"

	"github.com/yourorg/rendercore/internal/imageprocessing"
)

// pageReadyCap is the hard cap on how long the tolerant visual-stability
// loop may run before giving up; the normalizer's white-leader trim makes
// any residual leader benign.
const pageReadyCap = 7 * time.Second

const stillWhiteLuminanceThreshold = 0.95
const stabilityDiffThreshold = 0.01
const stabilityConsecutiveFrames = 3

// CaptureFunc returns a decoded downscaled frame (512x288) from the page,
// used by the page-ready loop below. Supplied by navigate (driver.go),
// which wraps captureDownscaledFrame: a CDP screenshot decoded and
// downscaled.
type CaptureFunc func() (image.Image, error)

// WaitPageReady implements page-ready detection: reject still-white
// frames, then require three consecutive per-pixel diffs under 1%
// against the previously accepted frame, capped at 7 seconds
// regardless of outcome.
func WaitPageReady(capture CaptureFunc) error {
	deadline := time.Now().Add(pageReadyCap)
	var previous image.Image
	stableCount := 0

	for time.Now().Before(deadline) {
		frame, err := capture()
		if err != nil {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		if imageprocessing.AverageLuminance(frame) > stillWhiteLuminanceThreshold {
			previous = nil
			stableCount = 0
			time.Sleep(200 * time.Millisecond)
			continue
		}

		if previous != nil {
			diff := imageprocessing.PixelDiffFraction(previous, frame, 3)
			if diff < stabilityDiffThreshold {
				stableCount++
				if stableCount >= stabilityConsecutiveFrames {
					return nil
				}
			} else {
				stableCount = 0
			}
		}

		previous = frame
		time.Sleep(200 * time.Millisecond)
	}

	return nil // hard cap reached; caller proceeds regardless (leader trim covers it)
}
