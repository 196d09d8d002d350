package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/smartcart-io/cartd/internal/core/domain"
)

func TestReconciler_Match(t *testing.T) {
	r := NewReconciler(0.05, time.Second)
	now := time.Now()
	sample := &domain.WeightSample{DeviceID: "lc-1", Grams: 1040, Timestamp: now}

	rec := r.Reconcile(1000, sample, now)

	assert.Equal(t, 1000.0, rec.ExpectedGrams)
	assert.Equal(t, 1040.0, rec.MeasuredGrams)
	assert.Equal(t, 50.0, rec.ToleranceGrams)
	assert.InDelta(t, 40, rec.DiffGrams, 1e-9)
	assert.True(t, rec.Match)
	assert.False(t, rec.Simulated)
}

func TestReconciler_Mismatch(t *testing.T) {
	r := NewReconciler(0.05, time.Second)
	now := time.Now()
	sample := &domain.WeightSample{DeviceID: "lc-1", Grams: 1100, Timestamp: now}

	rec := r.Reconcile(1000, sample, now)

	assert.InDelta(t, 100, rec.DiffGrams, 1e-9)
	assert.False(t, rec.Match)
	assert.False(t, rec.Simulated)
}

func TestReconciler_DegradedOnNoSample(t *testing.T) {
	r := NewReconciler(0.05, time.Second)
	now := time.Now()

	rec := r.Reconcile(280, nil, now)

	assert.True(t, rec.Simulated, "missing sample must be flagged simulated")
	assert.Equal(t, 280.0, rec.MeasuredGrams, "degraded mode derives the estimate")
	assert.True(t, rec.Match)
}

func TestReconciler_DegradedOnStaleSample(t *testing.T) {
	r := NewReconciler(0.05, time.Second)
	now := time.Now()
	sample := &domain.WeightSample{DeviceID: "lc-1", Grams: 500, Timestamp: now.Add(-3 * time.Second)}

	rec := r.Reconcile(500, sample, now)

	assert.True(t, rec.Simulated, "sample older than the interval must be flagged simulated")
}

func TestReconciler_FreshSampleIsLive(t *testing.T) {
	r := NewReconciler(0.05, time.Second)
	now := time.Now()
	sample := &domain.WeightSample{DeviceID: "lc-1", Grams: 270, Timestamp: now.Add(-500 * time.Millisecond)}

	rec := r.Reconcile(280, sample, now)

	assert.False(t, rec.Simulated)
	assert.InDelta(t, 14, rec.ToleranceGrams, 1e-9)
	assert.InDelta(t, 10, rec.DiffGrams, 1e-9)
	assert.True(t, rec.Match)
}
