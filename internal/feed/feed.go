// Package feed pulls candles from an external source into the pipeline.
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/newthinker/signalcore/internal/core"
)

// ErrEndOfFeed reports that a finite feed has no more candles for a symbol
var ErrEndOfFeed = errors.New("end of feed")

// CandleFeed returns the next candle for a symbol. Polled sources may return
// the same bar repeatedly until a new one closes.
type CandleFeed interface {
	Next(ctx context.Context, symbol string) (core.Candle, error)
}

// SliceFeed replays fixed candle series, one bar per call
type SliceFeed struct {
	mu     sync.Mutex
	series map[string][]core.Candle
	cursor map[string]int
}

// NewSliceFeed creates a feed over the given series
func NewSliceFeed(series map[string][]core.Candle) *SliceFeed {
	f := &SliceFeed{
		series: make(map[string][]core.Candle, len(series)),
		cursor: make(map[string]int, len(series)),
	}
	for symbol, bars := range series {
		f.series[symbol] = append([]core.Candle(nil), bars...)
	}
	return f
}

func (f *SliceFeed) Next(ctx context.Context, symbol string) (core.Candle, error) {
	if err := ctx.Err(); err != nil {
		return core.Candle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.cursor[symbol]
	bars := f.series[symbol]
	if i >= len(bars) {
		return core.Candle{}, ErrEndOfFeed
	}
	f.cursor[symbol] = i + 1
	return bars[i], nil
}

// Symbols returns the symbols in the feed, sorted
func (f *SliceFeed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	symbols := make([]string, 0, len(f.series))
	for s := range f.series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Series returns a copy of one symbol's candles
func (f *SliceFeed) Series(symbol string) []core.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Candle(nil), f.series[symbol]...)
}

// Remaining returns how many candles are left for symbol
func (f *SliceFeed) Remaining(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.series[symbol]) - f.cursor[symbol]
}

// Rewind restarts every series from its first candle
func (f *SliceFeed) Rewind() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = make(map[string]int, len(f.series))
}
