package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/compute"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/emotion"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/fatigue"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

// Frame outcomes reported to the Recorder.
const (
	OutcomeFace     = "face"
	OutcomeNoFace   = "no_face"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
)

// ErrPoolBusy is passed to the classifier when the executor rejects a job.
var ErrPoolBusy = errors.New("analyzer: inference pool busy")

// Recorder receives per-frame and per-inference observations.
type Recorder interface {
	Frame(outcome string)
	Inference(elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) Frame(string)                   {}
func (nopRecorder) Inference(time.Duration, error) {}

// Deps are the capabilities an Analyzer is built on. Landmarks and Model
// are required unless the registry is degraded.
type Deps struct {
	Landmarks vision.Source
	Model     emotion.Model
	Exec      Executor
	Recorder  Recorder

	// Hydration overrides the session's hydration reading. When nil each
	// session reports its config's HydrationLevel.
	Hydration compute.HydrationSource

	// Now is the clock used by the emotion cooldown. Defaults to time.Now.
	Now func() time.Time

	// OnEmotion is called after every completed model call with the session
	// ID and the label now in effect.
	OnEmotion func(sessionID, label string)
}

func (d Deps) withDefaults() Deps {
	if d.Exec == nil {
		d.Exec = Inline{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Analyzer owns the state of one monitoring session. Process may be called
// from one goroutine at a time; model completions arrive on pool goroutines
// and are serialised with frames by mu.
type Analyzer struct {
	id       string
	cfg      config.AnalyzerConfig
	deps     Deps
	degraded bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	fatigue *fatigue.Detector
	emotion *emotion.Classifier
	tally   *Tally
}

func newAnalyzer(id string, cfg config.AnalyzerConfig, deps Deps, degraded bool) *Analyzer {
	if deps.Hydration == nil {
		deps.Hydration = compute.ConstantHydration(cfg.HydrationLevel)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Analyzer{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		degraded: degraded,
		ctx:      ctx,
		cancel:   cancel,
		fatigue: fatigue.NewDetector(fatigue.Config{
			EARThreshold:      cfg.EARThreshold,
			ConsecutiveFrames: cfg.ConsecutiveFrames,
			Increment:         cfg.FatigueIncrement,
			Decay:             cfg.FatigueDecay,
		}),
		emotion: emotion.NewClassifier(
			emotion.Config{
				ConfidenceThreshold: cfg.ConfidenceThreshold,
				Padding:             cfg.FacePadding,
				PatchSize:           cfg.PatchSize,
			},
			deps.Model,
			emotion.NewCooldown(cfg.EmotionInterval, deps.Now),
		),
		tally: NewTally(),
	}
}

// ID returns the session ID.
func (a *Analyzer) ID() string { return a.id }

// Process analyses one decoded frame and returns the result for it.
//
// Without a face the sentinel result is returned and no state changes. With
// a face the fatigue detector advances, an emotion model call is scheduled
// if the cooldown allows, and the health score is computed from the label
// in effect. With an asynchronous executor the scheduled call updates the
// label for later frames; with Inline it applies to this frame.
func (a *Analyzer) Process(ctx context.Context, frame image.Image) types.AnalysisResult {
	if a.degraded {
		a.deps.Recorder.Frame(OutcomeDegraded)
		return a.record(ModelErrorResult())
	}

	if a.cfg.MirrorFrames() {
		frame = vision.Mirror(frame)
	}

	lm, err := a.deps.Landmarks.Detect(ctx, frame)
	if err != nil {
		slog.Warn("analyzer: landmark detection failed", "session", a.id, "err", err)
		a.deps.Recorder.Frame(OutcomeError)
		return a.record(NoFaceResult())
	}
	left, okL := lm.Eye(vision.LeftEye)
	right, okR := lm.Eye(vision.RightEye)
	if lm == nil || !okL || !okR {
		if lm != nil {
			slog.Warn("analyzer: face mesh too short", "session", a.id, "points", len(lm))
		}
		a.deps.Recorder.Frame(OutcomeNoFace)
		return a.record(NoFaceResult())
	}

	a.mu.Lock()
	reading := a.fatigue.Observe(left, right)
	patch, scheduled := a.emotion.Begin(frame, lm)
	a.mu.Unlock()

	if scheduled {
		a.schedule(patch)
	}

	a.mu.Lock()
	label := a.emotion.Label()
	a.mu.Unlock()

	out := compute.Compute(
		compute.Input{
			Emotion:      label,
			FatigueScore: reading.Score,
			Hydration:    a.deps.Hydration.Level(),
		},
		compute.Thresholds{
			FatigueScore: a.cfg.FatigueScoreThreshold,
			Hydration:    a.cfg.HydrationThreshold,
		},
	)

	a.deps.Recorder.Frame(OutcomeFace)
	return a.record(types.AnalysisResult{
		Emotion:         label,
		FatigueAlert:    reading.Alert,
		HealthScore:     types.IntScore(out.Score),
		Recommendations: out.Recommendations,
		EAR:             fmt.Sprintf("%.2f", reading.EAR),
		FatigueScore:    reading.Score,
	})
}

// schedule hands one model call to the executor. The completion callback
// stores the label under mu and notifies OnEmotion.
func (a *Analyzer) schedule(patch []float64) {
	job := func() {
		start := time.Now()
		label, err := a.emotion.Run(a.ctx, patch)
		a.deps.Recorder.Inference(time.Since(start), err)
		if err != nil && a.ctx.Err() == nil {
			slog.Warn("analyzer: emotion model call failed", "session", a.id, "err", err)
		}

		a.mu.Lock()
		a.emotion.Finish(label, err)
		current := a.emotion.Label()
		a.mu.Unlock()

		if err == nil && a.deps.OnEmotion != nil {
			a.deps.OnEmotion(a.id, current)
		}
	}
	if !a.deps.Exec.Submit(job) {
		slog.Debug("analyzer: inference pool busy, skipping frame", "session", a.id)
		a.mu.Lock()
		a.emotion.Finish("", ErrPoolBusy)
		a.mu.Unlock()
	}
}

func (a *Analyzer) record(r types.AnalysisResult) types.AnalysisResult {
	a.mu.Lock()
	a.tally.Add(r)
	a.mu.Unlock()
	return r
}

// Summary returns the session summary built from every result so far.
func (a *Analyzer) Summary() types.SessionSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tally.Summary()
}

func (a *Analyzer) close() {
	a.cancel()
}
