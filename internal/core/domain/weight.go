package domain

import "time"

// WeightSample is one load-cell reading. The latest sample per device
// replaces any prior one.
type WeightSample struct {
	DeviceID  string
	Grams     float64
	Stable    bool
	Timestamp time.Time
	Reason    string
}

// Reconciliation compares the declared cart weight against the live sensor
// reading within a percentage tolerance.
type Reconciliation struct {
	ExpectedGrams  float64
	MeasuredGrams  float64
	ToleranceGrams float64
	DiffGrams      float64
	Match          bool

	// Simulated is set when no live sample arrived within the sampling
	// interval and the measured value is a derived estimate, not a reading.
	Simulated bool

	At time.Time
}
