package analyzer

import (
	"math"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

// Tally accumulates the results of one session into its summary.
// Placeholder results are counted like any other label; the dashboard
// aggregation filters them out later.
type Tally struct {
	scoreSum      int
	scoreCount    int
	counts        map[string]int
	order         []string
	fatigueFrames int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Add records one result.
func (t *Tally) Add(r types.AnalysisResult) {
	if r.HealthScore.Valid {
		t.scoreSum += r.HealthScore.Value
		t.scoreCount++
	}
	if _, seen := t.counts[r.Emotion]; !seen {
		t.order = append(t.order, r.Emotion)
	}
	t.counts[r.Emotion]++
	if r.FatigueAlert {
		t.fatigueFrames++
	}
}

// Frames returns how many results were recorded.
func (t *Tally) Frames() int {
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Summary returns the session summary. The average rounds half up and is
// absent when no frame carried a numeric score. The dominant emotion is the
// most frequent label; on a tie the label first seen later wins. Fatigue
// events count frames with the alert raised.
func (t *Tally) Summary() types.SessionSummary {
	s := types.SessionSummary{
		DominantEmotion: types.LabelNotAvailable,
		FatigueEvents:   t.fatigueFrames,
	}
	if t.scoreCount > 0 {
		avg := float64(t.scoreSum) / float64(t.scoreCount)
		s.AvgScore = types.IntScore(int(math.Floor(avg + 0.5)))
	}
	for i, label := range t.order {
		if i == 0 || t.counts[label] >= t.counts[s.DominantEmotion] {
			s.DominantEmotion = label
		}
	}
	return s
}
