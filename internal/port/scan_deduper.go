package port

import (
	"context"
	"time"
)

type ScanDeduper interface {
	// Admit reports whether the code was not seen within the cooldown
	// window for this session. A suppressed scan refreshes the window.
	Admit(ctx context.Context, sessionID, code string, at time.Time) (bool, error)
}
