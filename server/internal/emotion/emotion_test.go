package emotion

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// stubModel returns fixed probabilities and counts calls.
type stubModel struct {
	probs []float64
	err   error
	calls int
	last  []float64
}

func (m *stubModel) Classify(_ context.Context, patch []float64) ([]float64, error) {
	m.calls++
	m.last = patch
	return m.probs, m.err
}

func probsFor(label string, p float64) []float64 {
	out := make([]float64, len(types.EmotionLabels))
	rest := (1 - p) / float64(len(out)-1)
	for i, l := range types.EmotionLabels {
		if l == label {
			out[i] = p
		} else {
			out[i] = rest
		}
	}
	return out
}

func testConfig() Config {
	return Config{ConfidenceThreshold: 0.6, Padding: 30, PatchSize: 48}
}

var (
	testFrame = image.NewRGBA(image.Rect(0, 0, 320, 240))
	testFace  = vision.Landmarks{{X: 100, Y: 80}, {X: 180, Y: 160}}
)

// --- Gate ---

func TestGate(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  string
	}{
		{"confident happy", probsFor(types.EmotionHappy, 0.9), types.EmotionHappy},
		{"weak happy kept", probsFor(types.EmotionHappy, 0.3), types.EmotionHappy},
		{"confident angry", probsFor(types.EmotionAngry, 0.7), types.EmotionAngry},
		{"weak angry to neutral", probsFor(types.EmotionAngry, 0.4), types.EmotionNeutral},
		{"weak sad to neutral", probsFor(types.EmotionSad, 0.59), types.EmotionNeutral},
		{"sad at threshold kept", probsFor(types.EmotionSad, 0.6), types.EmotionSad},
		{"weak fear to neutral", probsFor(types.EmotionFear, 0.5), types.EmotionNeutral},
		{"weak disgust kept", probsFor(types.EmotionDisgust, 0.3), types.EmotionDisgust},
		{"tie picks first", []float64{0.3, 0.3, 0.1, 0.1, 0.1, 0.05, 0.05}, types.EmotionNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Gate(tt.probs, 0.6)
			if err != nil {
				t.Fatalf("Gate: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGate_WrongLength(t *testing.T) {
	if _, err := Gate([]float64{1, 0}, 0.6); err == nil {
		t.Fatal("expected error for short probability vector")
	}
}

// --- Cooldown ---

func TestCooldown_StartsAtCreation(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := NewCooldown(time.Second, clk.now)

	if c.Ready() {
		t.Fatal("ready immediately after creation")
	}
	clk.advance(999 * time.Millisecond)
	if c.Ready() {
		t.Fatal("ready before interval elapsed")
	}
	clk.advance(time.Millisecond)
	if !c.Ready() {
		t.Fatal("not ready once interval elapsed")
	}
	c.Mark()
	if c.Ready() {
		t.Fatal("ready right after Mark")
	}
}

// --- Classifier ---

func TestClassifier_InitialLabel(t *testing.T) {
	c := NewClassifier(testConfig(), &stubModel{}, NewCooldown(time.Second, nil))
	if c.Label() != types.LabelAnalyzing {
		t.Errorf("initial label: got %q, want %q", c.Label(), types.LabelAnalyzing)
	}
}

func TestClassifier_AtMostOncePerInterval(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	model := &stubModel{probs: probsFor(types.EmotionHappy, 0.8)}
	c := NewClassifier(testConfig(), model, NewCooldown(time.Second, clk.now))
	ctx := context.Background()

	// 30 frames per second for three seconds.
	for i := 0; i < 90; i++ {
		if _, err := c.Update(ctx, testFrame, testFace); err != nil {
			t.Fatalf("Update: %v", err)
		}
		clk.advance(time.Second / 30)
	}
	// The cooldown starts at creation, so three seconds allow two calls.
	if model.calls != 2 {
		t.Errorf("model calls: got %d, want 2", model.calls)
	}
	if c.Label() != types.EmotionHappy {
		t.Errorf("label: got %q, want Happy", c.Label())
	}
}

func TestClassifier_MemoisesBetweenCalls(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	model := &stubModel{probs: probsFor(types.EmotionSurprise, 0.9)}
	c := NewClassifier(testConfig(), model, NewCooldown(time.Second, clk.now))
	ctx := context.Background()

	clk.advance(time.Second)
	c.Update(ctx, testFrame, testFace) //nolint:errcheck

	model.probs = probsFor(types.EmotionHappy, 0.9)
	clk.advance(500 * time.Millisecond)
	got, _ := c.Update(ctx, testFrame, testFace)
	if got != types.EmotionSurprise {
		t.Errorf("label inside cooldown: got %q, want Surprise", got)
	}
}

func TestClassifier_ModelErrorKeepsLabelAndRetries(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	model := &stubModel{err: errors.New("unavailable")}
	c := NewClassifier(testConfig(), model, NewCooldown(time.Second, clk.now))
	ctx := context.Background()

	clk.advance(time.Second)
	if _, err := c.Update(ctx, testFrame, testFace); err == nil {
		t.Fatal("expected model error")
	}
	if c.Label() != types.LabelAnalyzing {
		t.Errorf("label after failure: got %q", c.Label())
	}

	// The cooldown was not restarted, so the very next frame retries.
	model.err = nil
	model.probs = probsFor(types.EmotionNeutral, 0.9)
	got, err := c.Update(ctx, testFrame, testFace)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != types.EmotionNeutral || model.calls != 2 {
		t.Errorf("got %q after %d calls, want Neutral after 2", got, model.calls)
	}
}

func TestClassifier_EmptyRegionSkips(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	model := &stubModel{probs: probsFor(types.EmotionHappy, 0.9)}
	c := NewClassifier(testConfig(), model, NewCooldown(time.Second, clk.now))

	clk.advance(time.Second)
	offFrame := vision.Landmarks{{X: 1000, Y: 1000}, {X: 1100, Y: 1100}}
	got, err := c.Update(context.Background(), testFrame, offFrame)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != types.LabelAnalyzing || model.calls != 0 {
		t.Errorf("got %q with %d calls, want previous label and no call", got, model.calls)
	}
}

func TestClassifier_InFlightBlocksSecondBegin(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewClassifier(testConfig(), &stubModel{}, NewCooldown(time.Second, clk.now))
	clk.advance(2 * time.Second)

	patch, ok := c.Begin(testFrame, testFace)
	if !ok {
		t.Fatal("first Begin not eligible")
	}
	if len(patch) != 48*48 {
		t.Errorf("patch len: got %d, want %d", len(patch), 48*48)
	}
	if _, ok := c.Begin(testFrame, testFace); ok {
		t.Fatal("second Begin allowed while a call is in flight")
	}

	c.Finish(types.EmotionHappy, nil)
	if c.Label() != types.EmotionHappy {
		t.Errorf("label after Finish: got %q", c.Label())
	}
	if _, ok := c.Begin(testFrame, testFace); ok {
		t.Fatal("Begin allowed right after a successful call")
	}
}
