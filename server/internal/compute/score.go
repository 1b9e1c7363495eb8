package compute

import (
	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

// Penalties subtracted from BaseScore.
const (
	BaseScore           = 100
	stressPenalty       = 30
	neutralPenalty      = 10
	fatiguePenaltyScale = 40
	hydrationPenalty    = 15
)

// Recommendation texts, in the order they are issued.
const (
	RecStress    = "You seem stressed. Try a 2-minute breathing exercise."
	RecSmile     = "A quick smile can boost your mood!"
	RecBreak     = "You look tired. Remember to take short breaks and stretch."
	RecHydration = "Don't forget to stay hydrated!"
	RecAllGood   = "You're looking great! Keep it up."
)

// Thresholds gate the fatigue and hydration penalties.
type Thresholds struct {
	// FatigueScore: a fatigue score strictly above it is penalised.
	FatigueScore float64

	// Hydration: a hydration level strictly below it is penalised.
	Hydration float64
}

// Input holds the per-frame signals the health score is derived from.
type Input struct {
	// Emotion is the current classifier label, possibly a placeholder.
	Emotion string

	// FatigueScore is the detector score in [0, 1].
	FatigueScore float64

	// Hydration is the reading of the session's HydrationSource in [0, 1].
	Hydration float64
}

// Output is the health score with its recommendations.
type Output struct {
	// Score is in [0, 100].
	Score int

	// Recommendations is never empty.
	Recommendations []string
}

// Compute derives the health score:
//
//	100
//	- 30 if the emotion is Angry, Sad or Fear, else - 10 if it is Neutral
//	- floor(fatigue * 40) if fatigue > threshold
//	- 15 if hydration < threshold
//
// clamped at 0. Each penalty adds its recommendation; with none the
// positive-reinforcement message is returned.
func Compute(in Input, th Thresholds) Output {
	score := BaseScore
	recs := make([]string, 0, 3)

	switch in.Emotion {
	case types.EmotionAngry, types.EmotionSad, types.EmotionFear:
		score -= stressPenalty
		recs = append(recs, RecStress)
	case types.EmotionNeutral:
		score -= neutralPenalty
		recs = append(recs, RecSmile)
	}

	if in.FatigueScore > th.FatigueScore {
		score -= int(clamp01(in.FatigueScore) * fatiguePenaltyScale)
		recs = append(recs, RecBreak)
	}

	if in.Hydration < th.Hydration {
		score -= hydrationPenalty
		recs = append(recs, RecHydration)
	}

	if len(recs) == 0 {
		recs = append(recs, RecAllGood)
	}
	return Output{Score: max(0, score), Recommendations: recs}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
