// Package cooldown suppresses repeated signals for the same
// (strategy, symbol, action) inside a time window.
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"go.uber.org/zap"
)

// DefaultWindow is the suppression window applied when none is configured.
const DefaultWindow = 6 * time.Hour

// Key identifies a cooldown entry
type Key struct {
	Strategy string
	Symbol   string
	Action   core.Action
}

// Book tracks when each key last emitted
type Book struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[Key]time.Time
	logger  *zap.Logger
}

// New creates a cooldown book with the given window
func New(window time.Duration, logger *zap.Logger) *Book {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		window:  window,
		entries: make(map[Key]time.Time),
		logger:  logger,
	}
}

// Window returns the suppression window
func (b *Book) Window() time.Duration {
	return b.window
}

// Allow reports whether key may emit at time at. Entries older than the
// window are inert.
func (b *Book) Allow(key Key, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked(key, at)
}

func (b *Book) allowLocked(key Key, at time.Time) bool {
	last, ok := b.entries[key]
	if !ok {
		return true
	}
	return at.Sub(last) >= b.window
}

// Record stores at as the last emission time for key
func (b *Book) Record(key Key, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if last, ok := b.entries[key]; ok && last.After(at) {
		return
	}
	b.entries[key] = at
}

// TryAcquire atomically checks and records an emission. It returns false
// when key is still cooling down.
func (b *Book) TryAcquire(key Key, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.allowLocked(key, at) {
		return false
	}
	b.entries[key] = at
	return true
}

// LastEmitted returns the last emission time for key
func (b *Book) LastEmitted(key Key) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.entries[key]
	return t, ok
}

// Clear removes a single key
func (b *Book) Clear(key Key) {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
}

// Len returns the number of tracked entries
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Purge removes entries that can no longer suppress anything at now.
func (b *Book) Purge(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, last := range b.entries {
		if now.Sub(last) >= b.window {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine starts a background goroutine that periodically purges
// inert entries. Entries carry the time of the bar that produced them, so
// now must follow the same clock; nil uses the ticker's wall-clock time.
func (b *Book) StartCleanupRoutine(ctx context.Context, interval time.Duration, now func() time.Time) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				if now != nil {
					tick = now()
				}
				removed := b.Purge(tick)
				if removed > 0 {
					b.logger.Debug("purged inert cooldowns", zap.Int("removed", removed))
				}
			}
		}
	}()
}
