// Package fatigue detects sustained eye closure from face-mesh landmarks.
//
// EAR computes the eye aspect ratio of one eye. Detector keeps the
// per-session hysteresis state: a run of ConsecutiveFrames frames below
// the EAR threshold raises the alert and grows the fatigue score; any
// open-eye frame clears the alert and lets the score decay. The score is
// always in [0, 1].
package fatigue
