package analyzer

import (
	"testing"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

func result(emotion string, score types.Score, alert bool) types.AnalysisResult {
	return types.AnalysisResult{Emotion: emotion, HealthScore: score, FatigueAlert: alert}
}

func TestTally_Empty(t *testing.T) {
	s := NewTally().Summary()
	if s.DominantEmotion != types.LabelNotAvailable {
		t.Errorf("dominantEmotion: got %q, want N/A", s.DominantEmotion)
	}
	if s.AvgScore.Valid {
		t.Errorf("avgScore: got %+v, want absent", s.AvgScore)
	}
	if s.FatigueEvents != 0 {
		t.Errorf("fatigueEvents: got %d, want 0", s.FatigueEvents)
	}
}

func TestTally_Summary(t *testing.T) {
	tl := NewTally()
	tl.Add(result(types.LabelLookingForUser, types.Score{}, false))
	tl.Add(result(types.EmotionHappy, types.IntScore(90), false))
	tl.Add(result(types.EmotionHappy, types.IntScore(85), true))
	tl.Add(result(types.EmotionSad, types.IntScore(60), true))

	s := tl.Summary()
	// (90 + 85 + 60) / 3 = 78.33
	if s.AvgScore != types.IntScore(78) {
		t.Errorf("avgScore: got %+v, want 78", s.AvgScore)
	}
	if s.DominantEmotion != types.EmotionHappy {
		t.Errorf("dominantEmotion: got %q, want Happy", s.DominantEmotion)
	}
	if s.FatigueEvents != 2 {
		t.Errorf("fatigueEvents: got %d, want 2 alert frames", s.FatigueEvents)
	}
	if tl.Frames() != 4 {
		t.Errorf("Frames: got %d, want 4", tl.Frames())
	}
}

func TestTally_RoundsHalfUp(t *testing.T) {
	tl := NewTally()
	tl.Add(result(types.EmotionHappy, types.IntScore(80), false))
	tl.Add(result(types.EmotionHappy, types.IntScore(85), false))
	if s := tl.Summary(); s.AvgScore != types.IntScore(83) {
		t.Errorf("avgScore: got %+v, want 83 (82.5 rounded up)", s.AvgScore)
	}
}

func TestTally_TieGoesToLaterLabel(t *testing.T) {
	tl := NewTally()
	tl.Add(result(types.EmotionNeutral, types.IntScore(90), false))
	tl.Add(result(types.EmotionHappy, types.IntScore(100), false))
	tl.Add(result(types.EmotionNeutral, types.IntScore(90), false))
	tl.Add(result(types.EmotionHappy, types.IntScore(100), false))

	if s := tl.Summary(); s.DominantEmotion != types.EmotionHappy {
		t.Errorf("dominantEmotion: got %q, want Happy", s.DominantEmotion)
	}
}

func TestTally_PlaceholderCanDominate(t *testing.T) {
	tl := NewTally()
	for i := 0; i < 3; i++ {
		tl.Add(result(types.LabelLookingForUser, types.Score{}, false))
	}
	s := tl.Summary()
	if s.DominantEmotion != types.LabelLookingForUser {
		t.Errorf("dominantEmotion: got %q", s.DominantEmotion)
	}
	if s.AvgScore.Valid {
		t.Error("avgScore present without numeric scores")
	}
}
