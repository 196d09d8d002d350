package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper suppresses repeated scans within a cooldown window. A
// background sweep evicts stale entries every cooldown interval to bound
// memory.
type MemoryDeduper struct {
	cooldown time.Duration

	mu   sync.Mutex
	seen map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryDeduper(cooldown time.Duration) *MemoryDeduper {
	d := &MemoryDeduper{
		cooldown: cooldown,
		seen:     make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go d.sweep()
	return d
}

func (d *MemoryDeduper) Admit(_ context.Context, sessionID, code string, at time.Time) (bool, error) {
	key := sessionID + ":" + code

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && at.Sub(last) < d.cooldown {
		// Suppressed scans refresh the window.
		d.seen[key] = at
		return false, nil
	}
	d.seen[key] = at
	return true, nil
}

// sweep evicts entries older than the cooldown.
func (d *MemoryDeduper) sweep() {
	ticker := time.NewTicker(d.cooldown)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case now := <-ticker.C:
			d.mu.Lock()
			for key, last := range d.seen {
				if now.Sub(last) >= d.cooldown {
					delete(d.seen, key)
				}
			}
			d.mu.Unlock()
		}
	}
}

// Close stops the background sweep. Safe to call more than once.
func (d *MemoryDeduper) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// size reports tracked entries, for tests.
func (d *MemoryDeduper) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
