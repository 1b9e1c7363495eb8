// Package compute derives the 0–100 health score shown with every analysed
// frame.
//
// Compute is a pure function of the current emotion label, the fatigue score
// and a hydration reading. Emotion penalties are exclusive (stress or
// neutral, never both); fatigue and hydration penalties stack on top. Every
// penalty contributes one recommendation, and a frame without penalties gets
// the positive-reinforcement message, so the list is never empty.
//
// Hydration comes from a HydrationSource. By default each session reports
// a ConstantHydration of its configured hydration_level; the default 0.8
// sits above the 0.6 threshold and never triggers the penalty.
package compute
