package vision

import (
	"context"
	"fmt"
	"image"
)

// Point is a landmark in pixel coordinates of the analysed frame.
type Point struct {
	X, Y int
}

// Landmarks is one face mesh, indexed by the MediaPipe face-mesh scheme.
type Landmarks []Point

// Eye contours as six mesh indices: two corners (0 and 3), two upper-lid
// points (1, 2) and two lower-lid points (4 mirrors 2, 5 mirrors 1).
var (
	LeftEye  = [6]int{362, 385, 387, 263, 373, 380}
	RightEye = [6]int{33, 158, 159, 133, 144, 153}
)

// Source extracts a face mesh from a frame. A nil Landmarks with a nil
// error means no face was found.
type Source interface {
	Detect(ctx context.Context, frame image.Image) (Landmarks, error)
}

// Eye returns the six points named by idx. ok is false if the mesh is too
// short to contain them.
func (l Landmarks) Eye(idx [6]int) (eye [6]Point, ok bool) {
	for i, n := range idx {
		if n < 0 || n >= len(l) {
			return eye, false
		}
		eye[i] = l[n]
	}
	return eye, true
}

// Bounds returns the smallest rectangle containing every landmark. The Max
// corner is the largest coordinate itself, matching how the face crop pads it.
func (l Landmarks) Bounds() image.Rectangle {
	if len(l) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: image.Point(l[0]), Max: image.Point(l[0])}
	for _, p := range l[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

// FromNormalized converts a flat [x0, y0, x1, y1, ...] list of coordinates
// in [0, 1] into pixel landmarks for a w×h frame, truncating toward zero.
func FromNormalized(xy []float64, w, h int) (Landmarks, error) {
	if len(xy)%2 != 0 {
		return nil, fmt.Errorf("vision: odd coordinate count %d", len(xy))
	}
	out := make(Landmarks, len(xy)/2)
	for i := range out {
		out[i] = Point{
			X: int(xy[2*i] * float64(w)),
			Y: int(xy[2*i+1] * float64(h)),
		}
	}
	return out, nil
}
