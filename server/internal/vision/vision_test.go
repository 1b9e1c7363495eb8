package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// --- landmarks ---

func TestFromNormalized_Truncates(t *testing.T) {
	lm, err := FromNormalized([]float64{0.5, 0.5, 0.999, 0.001, 0, 1}, 640, 480)
	if err != nil {
		t.Fatalf("FromNormalized: %v", err)
	}
	want := Landmarks{{320, 240}, {639, 0}, {0, 480}}
	if len(lm) != len(want) {
		t.Fatalf("len: got %d, want %d", len(lm), len(want))
	}
	for i := range want {
		if lm[i] != want[i] {
			t.Errorf("[%d]: got %v, want %v", i, lm[i], want[i])
		}
	}
}

func TestFromNormalized_OddLength(t *testing.T) {
	if _, err := FromNormalized([]float64{0.1, 0.2, 0.3}, 10, 10); err == nil {
		t.Fatal("expected error for odd coordinate count")
	}
}

func TestLandmarks_Eye(t *testing.T) {
	lm := make(Landmarks, 478)
	for i := range lm {
		lm[i] = Point{X: i, Y: -i}
	}
	eye, ok := lm.Eye(LeftEye)
	if !ok {
		t.Fatal("Eye: ok = false for full mesh")
	}
	for i, n := range LeftEye {
		if eye[i] != (Point{X: n, Y: -n}) {
			t.Errorf("eye[%d]: got %v, want index %d", i, eye[i], n)
		}
	}

	if _, ok := lm[:100].Eye(RightEye); ok {
		t.Error("Eye: ok = true for a mesh missing indices")
	}
}

func TestLandmarks_Bounds(t *testing.T) {
	lm := Landmarks{{10, 40}, {30, 20}, {25, 60}}
	got := lm.Bounds()
	want := image.Rect(10, 20, 30, 60)
	if got != want {
		t.Errorf("Bounds: got %v, want %v", got, want)
	}
}

// --- face region ---

func TestFaceRegion(t *testing.T) {
	frame := image.Rect(0, 0, 200, 100)
	tests := []struct {
		name string
		lm   Landmarks
		want image.Rectangle
	}{
		{"padded inside frame", Landmarks{{50, 40}, {100, 60}}, image.Rect(20, 10, 130, 90)},
		{"clipped at edges", Landmarks{{5, 5}, {190, 95}}, image.Rect(0, 0, 200, 100)},
		{"outside frame", Landmarks{{500, 500}, {600, 600}}, image.Rectangle{}},
		{"no landmarks", nil, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FaceRegion(tt.lm, frame, 30)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// --- pixels ---

func TestMirror(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(2, 0, color.RGBA{B: 255, A: 255})

	m := Mirror(src)
	if r, _, _, _ := m.At(2, 0).RGBA(); r != 0xffff {
		t.Errorf("right pixel should be red after mirroring, got %v", m.At(2, 0))
	}
	if _, _, b, _ := m.At(0, 0).RGBA(); b != 0xffff {
		t.Errorf("left pixel should be blue after mirroring, got %v", m.At(0, 0))
	}
}

func TestGrayPatch_SizeAndNormalize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 120, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			src.Set(x, y, color.White)
		}
	}
	patch := GrayPatch(src, image.Rect(10, 10, 110, 80), 48)
	if b := patch.Bounds(); b.Dx() != 48 || b.Dy() != 48 {
		t.Fatalf("patch size: got %v, want 48x48", b)
	}

	vals := Normalize(patch)
	if len(vals) != 48*48 {
		t.Fatalf("Normalize len: got %d, want %d", len(vals), 48*48)
	}
	for i, v := range vals {
		if v < 0.99 || v > 1 {
			t.Fatalf("vals[%d] = %v, want ~1 for a white frame", i, v)
		}
	}
}

// --- decoding ---

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeDataURL(t *testing.T) {
	payload := encodePNG(t, image.NewGray(image.Rect(0, 0, 4, 3)))

	for _, s := range []string{"data:image/png;base64," + payload, payload} {
		img, err := DecodeDataURL(s)
		if err != nil {
			t.Fatalf("DecodeDataURL: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Errorf("bounds: got %v, want 4x3", b)
		}
	}
}

func TestDecodeDataURL_Malformed(t *testing.T) {
	for _, s := range []string{
		"data:image/jpeg;base64,!!!not-base64",
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not an image")),
	} {
		if _, err := DecodeDataURL(s); !errors.Is(err, ErrBadFrame) {
			t.Errorf("DecodeDataURL(%.30q): got %v, want ErrBadFrame", s, err)
		}
	}
}
