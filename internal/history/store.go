// Package history keeps a bounded rolling window of candles per symbol.
package history

import (
	"sort"
	"sync"

	"github.com/newthinker/signalcore/internal/core"
)

// DefaultCapacity is the number of candles retained per symbol.
const DefaultCapacity = 200

// buffer is a fixed-capacity FIFO ring for one symbol.
type buffer struct {
	mu    sync.RWMutex
	bars  []core.Candle
	start int
	size  int
}

func newBuffer(capacity int) *buffer {
	return &buffer{bars: make([]core.Candle, capacity)}
}

func (b *buffer) at(i int) core.Candle {
	return b.bars[(b.start+i)%len(b.bars)]
}

// push appends c and reports whether it was stored.
func (b *buffer) push(c core.Candle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size > 0 {
		lastIdx := (b.start + b.size - 1) % len(b.bars)
		last := b.bars[lastIdx]
		switch {
		case c.Time.Before(last.Time):
			return false
		case c.Time.Equal(last.Time):
			// in-progress bar update
			b.bars[lastIdx] = c
			return true
		}
	}

	if b.size < len(b.bars) {
		b.bars[(b.start+b.size)%len(b.bars)] = c
		b.size++
		return true
	}

	// full: overwrite oldest
	b.bars[b.start] = c
	b.start = (b.start + 1) % len(b.bars)
	return true
}

func (b *buffer) snapshot() []core.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Candle, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.at(i)
	}
	return out
}

// Store holds candle history for many symbols. Each symbol's buffer has its
// own lock so pushes for different symbols never contend.
type Store struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string]*buffer
	dropped  int64
}

// NewStore creates a store retaining capacity candles per symbol
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		buffers:  make(map[string]*buffer),
	}
}

// Capacity returns the per-symbol limit
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) buffer(symbol string, create bool) *buffer {
	s.mu.RLock()
	b, ok := s.buffers[symbol]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buffers[symbol]; ok {
		return b
	}
	b = newBuffer(s.capacity)
	s.buffers[symbol] = b
	return b
}

// Push appends a candle, evicting the oldest once capacity is reached.
// Out-of-order candles are dropped; a candle with the same timestamp as the
// latest one replaces it.
func (s *Store) Push(symbol string, c core.Candle) {
	if !s.buffer(symbol, true).push(c) {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// History returns a copy of the symbol's candles, oldest first.
func (s *Store) History(symbol string) []core.Candle {
	b := s.buffer(symbol, false)
	if b == nil {
		return []core.Candle{}
	}
	return b.snapshot()
}

// Len returns the number of stored candles for symbol
func (s *Store) Len(symbol string) int {
	b := s.buffer(symbol, false)
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Latest returns the most recent candle for symbol
func (s *Store) Latest(symbol string) (core.Candle, bool) {
	b := s.buffer(symbol, false)
	if b == nil {
		return core.Candle{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return core.Candle{}, false
	}
	return b.at(b.size - 1), true
}

// Symbols returns the tracked symbols in sorted order
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.buffers))
	for sym := range s.buffers {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Replace discards the symbol's history and loads bars in order.
func (s *Store) Replace(symbol string, bars []core.Candle) {
	s.Reset(symbol)
	for _, c := range bars {
		s.Push(symbol, c)
	}
}

// Reset drops all candles for symbol
func (s *Store) Reset(symbol string) {
	s.mu.Lock()
	delete(s.buffers, symbol)
	s.mu.Unlock()
}

// Dropped returns how many out-of-order candles were rejected
func (s *Store) Dropped() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
