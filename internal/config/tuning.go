package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning collects the empirically chosen signal-processing and transport
// constants. They ship with the defaults the hardware was calibrated
// against and can be overridden from a YAML file.
type Tuning struct {
	// Dedup filter.
	ScanCooldownMillis int `yaml:"scan_cooldown_millis"`

	// Weight stabilizer.
	SmoothingFactor      float64 `yaml:"smoothing_factor"`
	StabilityDeltaGrams  float64 `yaml:"stability_delta_grams"`
	StableSampleCount    int     `yaml:"stable_sample_count"`
	SampleIntervalMillis int     `yaml:"sample_interval_millis"`

	// Reconciliation.
	TolerancePercent float64 `yaml:"tolerance_percent"`

	// Transport client.
	ReconnectIntervalMillis int `yaml:"reconnect_interval_millis"`
	MaxReconnectAttempts    int `yaml:"max_reconnect_attempts"`
	KeepaliveSeconds        int `yaml:"keepalive_seconds"`
	HandshakeTimeoutSeconds int `yaml:"handshake_timeout_seconds"`
}

// DefaultTuning returns the calibration defaults.
func DefaultTuning() Tuning {
	return Tuning{
		ScanCooldownMillis:      2000,
		SmoothingFactor:         0.7,
		StabilityDeltaGrams:     5,
		StableSampleCount:       5,
		SampleIntervalMillis:    1000,
		TolerancePercent:        0.05,
		ReconnectIntervalMillis: 5000,
		MaxReconnectAttempts:    5,
		KeepaliveSeconds:        30,
		HandshakeTimeoutSeconds: 10,
	}
}

// LoadTuning reads a YAML tuning file layered over the defaults. An empty
// path returns the defaults unchanged.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// Validate rejects values that would break the filters.
func (t Tuning) Validate() error {
	if t.SmoothingFactor < 0 || t.SmoothingFactor >= 1 {
		return fmt.Errorf("smoothing_factor must be in [0, 1), got %v", t.SmoothingFactor)
	}
	if t.StableSampleCount < 1 {
		return fmt.Errorf("stable_sample_count must be >= 1, got %d", t.StableSampleCount)
	}
	if t.TolerancePercent < 0 {
		return fmt.Errorf("tolerance_percent must be >= 0, got %v", t.TolerancePercent)
	}
	if t.ScanCooldownMillis < 0 || t.SampleIntervalMillis <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if t.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max_reconnect_attempts must be >= 0, got %d", t.MaxReconnectAttempts)
	}
	return nil
}

// ScanCooldown returns the dedup window as a duration.
func (t Tuning) ScanCooldown() time.Duration {
	return time.Duration(t.ScanCooldownMillis) * time.Millisecond
}

// SampleInterval returns the nominal load-cell sampling interval.
func (t Tuning) SampleInterval() time.Duration {
	return time.Duration(t.SampleIntervalMillis) * time.Millisecond
}

// ReconnectInterval returns the fixed delay between reconnect attempts.
func (t Tuning) ReconnectInterval() time.Duration {
	return time.Duration(t.ReconnectIntervalMillis) * time.Millisecond
}

// KeepaliveInterval returns the ping cadence while connected.
func (t Tuning) KeepaliveInterval() time.Duration {
	return time.Duration(t.KeepaliveSeconds) * time.Second
}

// HandshakeTimeout bounds the WebSocket dial.
func (t Tuning) HandshakeTimeout() time.Duration {
	return time.Duration(t.HandshakeTimeoutSeconds) * time.Second
}
