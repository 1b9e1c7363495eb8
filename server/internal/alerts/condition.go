package alerts

import (
	"strconv"
	"strings"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

// evalCondition evaluates a rule condition string against one analysis result.
//
// Supported expressions (field operator value):
//
//	fatigue_alert == true
//	health_score < 50
//	fatigue_score > 0.5
//	emotion == Sad
//	emotion != Happy
//
// Returns (fires bool, triggering value float64). health_score never fires
// while the score is "N/A". Unparseable expressions and unknown fields never
// fire.
func evalCondition(cond string, r types.AnalysisResult) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "emotion":
		switch op {
		case "==":
			return r.Emotion == rhs, 0
		case "!=":
			return r.Emotion != rhs, 0
		}
		return false, 0

	case "fatigue_alert":
		want, err := strconv.ParseBool(rhs)
		if err != nil || (op != "==" && op != "!=") {
			return false, 0
		}
		v := 0.0
		if r.FatigueAlert {
			v = 1
		}
		if op == "==" {
			return r.FatigueAlert == want, v
		}
		return r.FatigueAlert != want, v

	case "health_score":
		if !r.HealthScore.Valid {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		v := float64(r.HealthScore.Value)
		return compareFloat(v, op, threshold), v

	case "fatigue_score":
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(r.FatigueScore, op, threshold), r.FatigueScore

	default:
		return false, 0
	}
}

// validCondition reports whether cond names a known field and operator.
func validCondition(cond string) bool {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false
	}
	field, op, rhs := parts[0], parts[1], parts[2]
	switch field {
	case "emotion":
		return op == "==" || op == "!="
	case "fatigue_alert":
		_, err := strconv.ParseBool(rhs)
		return err == nil && (op == "==" || op == "!=")
	case "health_score", "fatigue_score":
		_, err := strconv.ParseFloat(rhs, 64)
		return err == nil && validOp(op)
	}
	return false
}

func validOp(op string) bool {
	switch op {
	case ">", ">=", "<", "<=", "==":
		return true
	}
	return false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
