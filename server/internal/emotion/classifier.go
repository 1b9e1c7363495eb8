package emotion

import (
	"context"
	"fmt"
	"image"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

// Model scores a flattened grayscale patch and returns one probability per
// entry of types.EmotionLabels.
type Model interface {
	Classify(ctx context.Context, patch []float64) ([]float64, error)
}

// Config holds the classifier thresholds.
type Config struct {
	ConfidenceThreshold float64
	Padding             int
	PatchSize           int
}

// Classifier is the per-session emotion state. It is not safe for concurrent
// use; the owning analyzer serialises Begin, Finish and Label.
type Classifier struct {
	cfg      Config
	model    Model
	cooldown *Cooldown
	label    string
	inFlight bool
}

// NewClassifier returns a Classifier whose label starts as "Analyzing...".
func NewClassifier(cfg Config, model Model, cooldown *Cooldown) *Classifier {
	return &Classifier{
		cfg:      cfg,
		model:    model,
		cooldown: cooldown,
		label:    types.LabelAnalyzing,
	}
}

// Label returns the last computed label.
func (c *Classifier) Label() string { return c.label }

// Begin decides whether this frame triggers a model call. When it does, it
// returns the normalised face patch and marks a call in flight; the caller
// must pass the outcome of Run to Finish. ok is false while the cooldown
// runs, while another call is in flight, or when the face crop is empty.
func (c *Classifier) Begin(frame image.Image, lm vision.Landmarks) (patch []float64, ok bool) {
	if c.inFlight || !c.cooldown.Ready() {
		return nil, false
	}
	r := vision.FaceRegion(lm, frame.Bounds(), c.cfg.Padding)
	if r.Empty() {
		return nil, false
	}
	c.inFlight = true
	return vision.Normalize(vision.GrayPatch(frame, r, c.cfg.PatchSize)), true
}

// Run invokes the model and applies the confidence gate. It touches no
// classifier state.
func (c *Classifier) Run(ctx context.Context, patch []float64) (string, error) {
	probs, err := c.model.Classify(ctx, patch)
	if err != nil {
		return "", fmt.Errorf("emotion: classify: %w", err)
	}
	return Gate(probs, c.cfg.ConfidenceThreshold)
}

// Finish completes a call started by Begin. On success the label is stored
// and the cooldown restarts; on failure the previous label is kept and the
// next eligible frame retries.
func (c *Classifier) Finish(label string, err error) {
	c.inFlight = false
	if err != nil {
		return
	}
	c.label = label
	c.cooldown.Mark()
}

// Update runs Begin, Run and Finish inline and returns the resulting label.
func (c *Classifier) Update(ctx context.Context, frame image.Image, lm vision.Landmarks) (string, error) {
	patch, ok := c.Begin(frame, lm)
	if !ok {
		return c.label, nil
	}
	label, err := c.Run(ctx, patch)
	c.Finish(label, err)
	return c.label, err
}

// Gate picks the most probable label. A negative label whose probability is
// below threshold is replaced by Neutral.
func Gate(probs []float64, threshold float64) (string, error) {
	if len(probs) != len(types.EmotionLabels) {
		return "", fmt.Errorf("emotion: got %d probabilities, want %d", len(probs), len(types.EmotionLabels))
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label := types.EmotionLabels[best]
	if IsNegative(label) && probs[best] < threshold {
		return types.EmotionNeutral, nil
	}
	return label, nil
}

// IsNegative reports whether label is one of the stress-related emotions.
func IsNegative(label string) bool {
	switch label {
	case types.EmotionAngry, types.EmotionSad, types.EmotionFear:
		return true
	}
	return false
}
