package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrBadFrame is returned for frames that are not a decodable data URL.
var ErrBadFrame = errors.New("vision: malformed frame")

// DecodeDataURL decodes "data:image/<fmt>;base64,<payload>" into an image.
// A bare base64 payload without the header is accepted as well.
func DecodeDataURL(s string) (image.Image, error) {
	payload := s
	if i := strings.IndexByte(s, ','); i >= 0 {
		payload = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrBadFrame, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return img, nil
}

// Mirror returns a horizontally flipped copy of src with bounds at the origin.
func Mirror(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dx()-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// FaceRegion pads the landmark bounding box by pad pixels on every side and
// clips it to frame. The result is empty when the face lies outside frame.
func FaceRegion(lm Landmarks, frame image.Rectangle, pad int) image.Rectangle {
	if len(lm) == 0 {
		return image.Rectangle{}
	}
	return lm.Bounds().Inset(-pad).Intersect(frame)
}

// GrayPatch converts region r of src to grayscale and scales it to a
// size×size patch.
func GrayPatch(src image.Image, r image.Rectangle, size int) *image.Gray {
	gray := image.NewGray(r)
	draw.Draw(gray, r, src, r.Min, draw.Src)

	patch := image.NewGray(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(patch, patch.Bounds(), gray, r, draw.Src, nil)
	return patch
}

// Normalize flattens a grayscale patch row by row into values in [0, 1].
func Normalize(g *image.Gray) []float64 {
	b := g.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, float64(row[x])/255)
		}
	}
	return out
}
