package fatigue

import (
	"math"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

// EAR returns the eye aspect ratio of the six eye points:
//
//	(|p1-p5| + |p2-p4|) / (2 * |p0-p3|)
//
// A degenerate eye whose corners coincide yields 0.
func EAR(eye [6]vision.Point) float64 {
	horizontal := dist(eye[0], eye[3])
	if horizontal == 0 {
		return 0
	}
	return (dist(eye[1], eye[5]) + dist(eye[2], eye[4])) / (2 * horizontal)
}

func dist(a, b vision.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
