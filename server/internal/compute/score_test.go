package compute

import (
	"reflect"
	"testing"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

var defaultThresholds = Thresholds{FatigueScore: 0.5, Hydration: 0.6}

// --- Compute() table-driven tests ---

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantScore int
		wantRecs  []string
	}{
		{
			name:      "happy and rested",
			in:        Input{Emotion: types.EmotionHappy, FatigueScore: 0, Hydration: 0.8},
			wantScore: 100,
			wantRecs:  []string{RecAllGood},
		},
		{
			name:      "placeholder label carries no emotion penalty",
			in:        Input{Emotion: types.LabelAnalyzing, Hydration: 0.8},
			wantScore: 100,
			wantRecs:  []string{RecAllGood},
		},
		{
			name:      "neutral",
			in:        Input{Emotion: types.EmotionNeutral, Hydration: 0.8},
			wantScore: 90,
			wantRecs:  []string{RecSmile},
		},
		{
			name:      "stressed",
			in:        Input{Emotion: types.EmotionSad, Hydration: 0.8},
			wantScore: 70,
			wantRecs:  []string{RecStress},
		},
		{
			name:      "fatigue at threshold is not penalised",
			in:        Input{Emotion: types.EmotionHappy, FatigueScore: 0.5, Hydration: 0.8},
			wantScore: 100,
			wantRecs:  []string{RecAllGood},
		},
		{
			// 0.75 * 40 = 30
			name:      "tired and neutral",
			in:        Input{Emotion: types.EmotionNeutral, FatigueScore: 0.75, Hydration: 0.8},
			wantScore: 60,
			wantRecs:  []string{RecSmile, RecBreak},
		},
		{
			name:      "dehydrated",
			in:        Input{Emotion: types.EmotionSurprise, Hydration: 0.4},
			wantScore: 85,
			wantRecs:  []string{RecHydration},
		},
		{
			// 100 - 30 - 40 - 15 = 15
			name:      "every penalty",
			in:        Input{Emotion: types.EmotionFear, FatigueScore: 1, Hydration: 0},
			wantScore: 15,
			wantRecs:  []string{RecStress, RecBreak, RecHydration},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(tt.in, defaultThresholds)
			if out.Score != tt.wantScore {
				t.Errorf("score: got %d, want %d", out.Score, tt.wantScore)
			}
			if !reflect.DeepEqual(out.Recommendations, tt.wantRecs) {
				t.Errorf("recommendations: got %q, want %q", out.Recommendations, tt.wantRecs)
			}
		})
	}
}

func TestCompute_ClampedAtZero(t *testing.T) {
	// A stricter threshold set can push the raw score below zero.
	out := Compute(
		Input{Emotion: types.EmotionAngry, FatigueScore: 5, Hydration: 0},
		Thresholds{FatigueScore: 0, Hydration: 1},
	)
	if out.Score < 0 || out.Score > 100 {
		t.Errorf("score out of range: %d", out.Score)
	}
}

func TestCompute_AlwaysInRange(t *testing.T) {
	emotions := append(types.EmotionLabels[:], types.LabelAnalyzing)
	for _, e := range emotions {
		for f := 0.0; f <= 1.0; f += 0.05 {
			for _, h := range []float64{0, 0.59, 0.6, 1} {
				out := Compute(Input{Emotion: e, FatigueScore: f, Hydration: h}, defaultThresholds)
				if out.Score < 0 || out.Score > 100 {
					t.Fatalf("%s f=%v h=%v: score %d out of range", e, f, h, out.Score)
				}
				if len(out.Recommendations) == 0 {
					t.Fatalf("%s f=%v h=%v: empty recommendations", e, f, h)
				}
			}
		}
	}
}

func TestConstantHydration(t *testing.T) {
	var src HydrationSource = ConstantHydration(0.8)
	if src.Level() != 0.8 {
		t.Errorf("Level: got %v, want 0.8", src.Level())
	}
	out := Compute(Input{Emotion: types.EmotionHappy, Hydration: src.Level()}, defaultThresholds)
	if out.Score != 100 {
		t.Errorf("default hydration should not trigger the penalty, score %d", out.Score)
	}
}
