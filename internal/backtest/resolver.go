package backtest

import (
	"sort"

	"github.com/newthinker/signalcore/internal/core"
)

type position struct {
	signal core.Signal
	bars   int
}

// Resolver follows open signals through later candles and closes each one
// when price reaches its stop or its target. A bar that spans both levels
// counts as a stop.
type Resolver struct {
	maxBars int
	open    map[string][]*position
}

// NewResolver creates a resolver. Signals still open after maxBars candles
// expire at the close; zero disables expiry.
func NewResolver(maxBars int) *Resolver {
	return &Resolver{
		maxBars: maxBars,
		open:    make(map[string][]*position),
	}
}

// Open starts tracking a signal
func (r *Resolver) Open(sig core.Signal) {
	r.open[sig.Symbol] = append(r.open[sig.Symbol], &position{signal: sig})
}

// OpenCount returns the number of unresolved signals
func (r *Resolver) OpenCount() int {
	n := 0
	for _, ps := range r.open {
		n += len(ps)
	}
	return n
}

// OnCandle applies a candle to the symbol's open signals and returns the
// trades it closed.
func (r *Resolver) OnCandle(symbol string, c core.Candle) []Trade {
	positions := r.open[symbol]
	if len(positions) == 0 {
		return nil
	}

	var closed []Trade
	remaining := positions[:0]
	for _, p := range positions {
		if !c.Time.After(p.signal.GeneratedAt) {
			remaining = append(remaining, p)
			continue
		}
		p.bars++
		if t, ok := r.resolve(p, c); ok {
			closed = append(closed, t)
			continue
		}
		remaining = append(remaining, p)
	}
	r.open[symbol] = remaining
	return closed
}

func (r *Resolver) resolve(p *position, c core.Candle) (Trade, bool) {
	sig := p.signal
	var stopHit, targetHit bool
	switch sig.Action {
	case core.ActionBuy:
		stopHit = c.Low <= sig.StopLoss
		targetHit = c.High >= sig.TakeProfit
	case core.ActionSell:
		stopHit = c.High >= sig.StopLoss
		targetHit = c.Low <= sig.TakeProfit
	}

	switch {
	case stopHit:
		return closeTrade(sig, sig.StopLoss, c, ExitStop), true
	case targetHit:
		return closeTrade(sig, sig.TakeProfit, c, ExitTarget), true
	case r.maxBars > 0 && p.bars >= r.maxBars:
		return closeTrade(sig, c.Close, c, ExitExpired), true
	}
	return Trade{}, false
}

// Remaining marks every open signal to the given prices and returns them as
// open trades, ordered by symbol then entry time.
func (r *Resolver) Remaining(last map[string]core.Candle) []Trade {
	symbols := make([]string, 0, len(r.open))
	for s := range r.open {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var out []Trade
	for _, s := range symbols {
		c, ok := last[s]
		for _, p := range r.open[s] {
			t := Trade{Signal: p.signal, Exit: ExitOpen}
			if ok {
				t.ExitPrice = c.Close
				t.ExitAt = c.Time
				t.Return = tradeReturn(p.signal, c.Close)
			}
			out = append(out, t)
		}
	}
	return out
}

func closeTrade(sig core.Signal, price float64, c core.Candle, exit Exit) Trade {
	return Trade{
		Signal:    sig,
		ExitPrice: price,
		ExitAt:    c.Time,
		Exit:      exit,
		Return:    tradeReturn(sig, price),
	}
}

func tradeReturn(sig core.Signal, exit float64) float64 {
	if sig.Entry == 0 {
		return 0
	}
	r := (exit - sig.Entry) / sig.Entry
	if sig.Action == core.ActionSell {
		r = -r
	}
	return r
}
