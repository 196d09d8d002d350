package domain

import "time"

// ScanKind identifies the sensor that produced a scan.
type ScanKind string

const (
	ScanKindRFID    ScanKind = "rfid"
	ScanKindBarcode ScanKind = "barcode"
	ScanKindCamera  ScanKind = "camera"
	ScanKindManual  ScanKind = "manual"
)

// Valid reports whether k is one of the known scan kinds.
func (k ScanKind) Valid() bool {
	switch k {
	case ScanKindRFID, ScanKindBarcode, ScanKindCamera, ScanKindManual:
		return true
	}
	return false
}

// ScanEvent is one physical read from a sensor. Immutable and ephemeral;
// it exists only until it has been deduplicated and resolved.
type ScanEvent struct {
	Code      string
	Kind      ScanKind
	Timestamp time.Time
}
