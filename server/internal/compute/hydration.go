package compute

// HydrationSource reports the user's hydration level in [0, 1].
// No sensor exists yet; ConstantHydration stands in for one.
type HydrationSource interface {
	Level() float64
}

// ConstantHydration always reports the same level.
type ConstantHydration float64

// Level implements HydrationSource.
func (c ConstantHydration) Level() float64 { return float64(c) }
