package hme

import "math"

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X float64
	Y float64
}

// Sample is one point along a generated cursor path with its offset from
// the path's start time, used to drive synthetic mousemove dispatch.
type Sample struct {
	Point
	OffsetMs float64
}

const minMoveDurationMs = 120
const maxMoveDurationMs = 1200
const fittsA = 80.0  // ms
const fittsB = 140.0 // ms per bit

// fittsDuration implements Fitts' Law: T = a + b*log2(1 + distance/width),
// clamped to [120, 1200] ms.
func fittsDuration(distance, nominalWidth float64) float64 {
	if nominalWidth <= 0 {
		nominalWidth = 40
	}
	t := fittsA + fittsB*math.Log2(1+distance/nominalWidth)
	if t < minMoveDurationMs {
		t = minMoveDurationMs
	}
	if t > maxMoveDurationMs {
		t = maxMoveDurationMs
	}
	return t
}

// minJerk is the minimum-jerk scalar time-warp s(u) = 10u³ - 15u⁴ + 6u⁵,
// mapping linear progress u∈[0,1] to eased progress.
func minJerk(u float64) float64 {
	return 10*u*u*u - 15*u*u*u*u + 6*u*u*u*u*u
}

// GeneratePath samples a cubic Bézier from start to end with two control
// points bowed perpendicular to the travel direction by 2-8% of the
// distance (randomly chosen side), time-parameterized by the minimum-jerk
// scalar, with low-pass micro-jitter decaying to zero at the endpoint and
// an optional small overshoot-and-correct. Sampling rate 60-120Hz.
func GeneratePath(rng *RNG, start, end Point, nominalWidth float64) []Sample {
	dx, dy := end.X-start.X, end.Y-start.Y
	distance := math.Hypot(dx, dy)
	duration := fittsDuration(distance, nominalWidth)

	overshoot := rng.Bool(0.35)
	target := end
	if overshoot && distance > 0 {
		amount := rng.Range(2, 6)
		ux, uy := dx/distance, dy/distance
		target = Point{X: end.X + ux*amount, Y: end.Y + uy*amount}
	}

	perpX, perpY := 0.0, 0.0
	if distance > 0 {
		perpX, perpY = -dy/distance, dx/distance
	}
	side := rng.Sign()
	bow := distance * rng.Range(0.02, 0.08) * side

	c1 := Point{
		X: start.X + dx*0.33 + perpX*bow,
		Y: start.Y + dy*0.33 + perpY*bow,
	}
	c2 := Point{
		X: start.X + dx*0.66 + perpX*bow*0.6,
		Y: start.Y + dy*0.66 + perpY*bow*0.6,
	}

	sampleRate := rng.Range(60, 120)
	frameCount := int(duration / 1000 * sampleRate)
	if frameCount < 2 {
		frameCount = 2
	}

	samples := make([]Sample, 0, frameCount+1)
	jitterPhase := rng.Range(0, math.Pi*2)
	for i := 0; i <= frameCount; i++ {
		u := float64(i) / float64(frameCount)
		eased := minJerk(u)
		p := cubicBezier(start, c1, c2, target, eased)

		decay := 1 - u
		amp := rng.Range(0.4, 1.2) * decay
		p.X += amp * math.Sin(jitterPhase+u*9)
		p.Y += amp * math.Cos(jitterPhase+u*7)

		samples = append(samples, Sample{Point: p, OffsetMs: u * duration})
	}

	if overshoot {
		correctionMs := rng.Range(80, 120)
		corrFrames := int(correctionMs / 1000 * sampleRate)
		if corrFrames < 1 {
			corrFrames = 1
		}
		last := samples[len(samples)-1]
		for i := 1; i <= corrFrames; i++ {
			u := float64(i) / float64(corrFrames)
			eased := minJerk(u)
			p := Point{
				X: last.Point.X + (end.X-last.Point.X)*eased,
				Y: last.Point.Y + (end.Y-last.Point.Y)*eased,
			}
			samples = append(samples, Sample{Point: p, OffsetMs: last.OffsetMs + u*correctionMs})
		}
	}

	return samples
}

func cubicBezier(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// PathDurationMs returns the total elapsed time of a generated path.
func PathDurationMs(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1].OffsetMs
}
