package service

import (
	"math"
	"time"

	"github.com/smartcart-io/cartd/internal/core/domain"
)

// Reconciler compares the declared cart weight against the live sensor
// reading within a percentage tolerance. When the sensor has gone silent
// it degrades to a derived estimate flagged as simulated, never presenting
// it as a real reading.
type Reconciler struct {
	tolerancePct   float64
	sampleInterval time.Duration
}

func NewReconciler(tolerancePct float64, sampleInterval time.Duration) *Reconciler {
	return &Reconciler{tolerancePct: tolerancePct, sampleInterval: sampleInterval}
}

// Reconcile evaluates expected vs. measured. sample may be nil.
func (r *Reconciler) Reconcile(expectedGrams float64, sample *domain.WeightSample, now time.Time) domain.Reconciliation {
	rec := domain.Reconciliation{
		ExpectedGrams:  expectedGrams,
		ToleranceGrams: expectedGrams * r.tolerancePct,
		At:             now,
	}

	if sample == nil || now.Sub(sample.Timestamp) > r.sampleInterval {
		// Degraded mode: no live sample within the sampling interval.
		rec.MeasuredGrams = expectedGrams
		rec.DiffGrams = 0
		rec.Match = true
		rec.Simulated = true
		return rec
	}

	rec.MeasuredGrams = sample.Grams
	rec.DiffGrams = math.Abs(sample.Grams - expectedGrams)
	rec.Match = rec.DiffGrams <= rec.ToleranceGrams
	return rec
}
