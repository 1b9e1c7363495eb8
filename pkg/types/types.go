package types

import (
	"bytes"
	"strconv"
)

// Emotion labels in the order the classification model emits probabilities.
const (
	EmotionAngry    = "Angry"
	EmotionDisgust  = "Disgust"
	EmotionFear     = "Fear"
	EmotionHappy    = "Happy"
	EmotionNeutral  = "Neutral"
	EmotionSad      = "Sad"
	EmotionSurprise = "Surprise"
)

// EmotionLabels indexes model output positions to labels.
var EmotionLabels = [7]string{
	EmotionAngry,
	EmotionDisgust,
	EmotionFear,
	EmotionHappy,
	EmotionNeutral,
	EmotionSad,
	EmotionSurprise,
}

// Placeholder labels. None of them describes a classified face and the
// aggregator never counts them.
const (
	LabelAnalyzing      = "Analyzing..."
	LabelLookingForUser = "Looking for user..."
	LabelModelError     = "Model Error"
	LabelNotAvailable   = "N/A"
)

// IsEmotion reports whether s is one of the seven classifier labels.
func IsEmotion(s string) bool {
	for _, l := range EmotionLabels {
		if l == s {
			return true
		}
	}
	return false
}

// Score is an integer that may be absent. Absent scores encode as "N/A".
type Score struct {
	Value int
	Valid bool
}

// IntScore returns a present score.
func IntScore(v int) Score { return Score{Value: v, Valid: true} }

// MarshalJSON encodes a present score as a JSON number and an absent one as "N/A".
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`"N/A"`), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// UnmarshalJSON accepts any JSON value. Only integral numbers without a
// fraction or exponent produce a present score; everything else decodes to
// an absent score without error.
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.ContainsAny(data, ".eE\"") {
		return nil
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return nil
	}
	*s = IntScore(v)
	return nil
}

// AnalysisResult is the per-frame output sent to the live channel.
type AnalysisResult struct {
	Emotion         string   `json:"emotion"`
	FatigueAlert    bool     `json:"fatigueAlert"`
	HealthScore     Score    `json:"healthScore"`
	Recommendations []string `json:"recommendations"`
	EAR             string   `json:"ear"`

	// FatigueScore is the detector's accumulated score, used by alert rules.
	FatigueScore float64 `json:"-"`
}

// SessionSummary is the persisted end-of-session record.
type SessionSummary struct {
	DominantEmotion string `json:"dominantEmotion"`
	AvgScore        Score  `json:"avgScore"`
	FatigueEvents   int    `json:"fatigueEvents"`
}

// Dashboard is the team-level aggregate over all stored sessions.
type Dashboard struct {
	TotalSessions      int            `json:"totalSessions"`
	EmotionCounts      map[string]int `json:"emotionCounts"`
	TotalFatigueEvents int            `json:"totalFatigueEvents"`
	AverageScoreTrend  map[string]int `json:"averageScoreTrend"` // YYYY-MM-DD, encoded in date order
	FatigueByHour      map[int]int    `json:"fatigueByHour"`
}
