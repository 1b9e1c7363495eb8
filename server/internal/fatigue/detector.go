package fatigue

import (
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

// Config holds the detector thresholds.
type Config struct {
	EARThreshold      float64
	ConsecutiveFrames int
	Increment         float64
	Decay             float64
}

// Reading is the detector state after one frame.
type Reading struct {
	EAR   float64
	Alert bool
	Score float64
}

// Detector is the per-session fatigue state machine. It is not safe for
// concurrent use; the owning analyzer serialises frames.
type Detector struct {
	cfg     Config
	counter int
	score   float64
	alert   bool
}

// NewDetector returns a Detector with zero counter, score and alert.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Observe averages the EAR of both eyes and feeds it to Update.
func (d *Detector) Observe(left, right [6]vision.Point) Reading {
	return d.Update((EAR(left) + EAR(right)) / 2)
}

// Update advances the state machine with one averaged EAR value.
func (d *Detector) Update(ear float64) Reading {
	if ear < d.cfg.EARThreshold {
		d.counter++
		if d.counter >= d.cfg.ConsecutiveFrames {
			d.alert = true
			d.score = min(1, d.score+d.cfg.Increment)
		}
	} else {
		d.counter = 0
		d.alert = false
		d.score = max(0, d.score-d.cfg.Decay)
	}
	return Reading{EAR: ear, Alert: d.alert, Score: d.score}
}

// Score returns the current fatigue score.
func (d *Detector) Score() float64 { return d.score }

// Alert reports whether the alert is currently raised.
func (d *Detector) Alert() bool { return d.alert }
