package analyzer

import (
	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

// ModelLoadFailed is the only recommendation issued in degraded mode.
const ModelLoadFailed = "Emotion model failed to load."

// NoFaceResult is returned for frames without a detectable face.
func NoFaceResult() types.AnalysisResult {
	return types.AnalysisResult{
		Emotion:         types.LabelLookingForUser,
		FatigueAlert:    false,
		HealthScore:     types.Score{},
		Recommendations: []string{},
		EAR:             types.LabelNotAvailable,
	}
}

// ModelErrorResult is returned for every frame once the server runs in
// degraded mode.
func ModelErrorResult() types.AnalysisResult {
	return types.AnalysisResult{
		Emotion:         types.LabelModelError,
		FatigueAlert:    false,
		HealthScore:     types.IntScore(0),
		Recommendations: []string{ModelLoadFailed},
		EAR:             types.LabelNotAvailable,
	}
}
