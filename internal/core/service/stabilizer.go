package service

import "math"

// WeightStabilizer smooths raw load-cell samples with an exponential
// filter and tracks reading stability. A reading is stable once the
// smoothed value has stayed within the delta for the required number of
// consecutive samples. The filter seeds itself on the first sample so a
// fresh reading is never dragged toward an arbitrary zero baseline. Not
// safe for concurrent use; it runs on the sampling loop of one device.
type WeightStabilizer struct {
	smoothing float64 // weight of the previous smoothed value
	delta     float64 // grams of movement tolerated between samples
	required  int     // consecutive in-delta samples for stability

	seeded   bool
	smoothed float64
	counter  int
}

func NewWeightStabilizer(smoothing, deltaGrams float64, requiredSamples int) *WeightStabilizer {
	return &WeightStabilizer{
		smoothing: smoothing,
		delta:     deltaGrams,
		required:  requiredSamples,
	}
}

// Process folds one raw sample into the filter and returns the smoothed
// weight and whether the reading is stable. The first sample becomes the
// baseline unchanged.
func (w *WeightStabilizer) Process(rawGrams float64) (float64, bool) {
	if !w.seeded {
		w.seeded = true
		w.smoothed = rawGrams
		w.counter = 1
		return w.smoothed, w.IsStable()
	}

	prev := w.smoothed
	w.smoothed = prev*w.smoothing + rawGrams*(1-w.smoothing)

	if math.Abs(w.smoothed-prev) < w.delta {
		w.counter++
	} else {
		w.counter = 0
	}

	return w.smoothed, w.IsStable()
}

// IsStable reports whether the required consecutive sample count has been
// reached.
func (w *WeightStabilizer) IsStable() bool {
	return w.counter >= w.required
}

// Smoothed returns the current filtered weight.
func (w *WeightStabilizer) Smoothed() float64 { return w.smoothed }

// Tare resets the baseline to zero and clears stability.
func (w *WeightStabilizer) Tare() {
	w.seeded = true
	w.smoothed = 0
	w.counter = 0
}

// Calibrate resets the baseline to a known reference weight and clears
// stability.
func (w *WeightStabilizer) Calibrate(knownGrams float64) {
	w.seeded = true
	w.smoothed = knownGrams
	w.counter = 0
}
