// Package families builds the closed set of pattern detectors by name.
package families

import (
	"fmt"
	"sort"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/strategy/adaptive_rsi"
	"github.com/newthinker/signalcore/internal/strategy/bollinger_squeeze"
	"github.com/newthinker/signalcore/internal/strategy/character_change"
	"github.com/newthinker/signalcore/internal/strategy/ema_pullback"
	"github.com/newthinker/signalcore/internal/strategy/engulfing"
	"github.com/newthinker/signalcore/internal/strategy/fair_value_gap"
	"github.com/newthinker/signalcore/internal/strategy/liquidity_sweep"
	"github.com/newthinker/signalcore/internal/strategy/ma_crossover"
	"github.com/newthinker/signalcore/internal/strategy/order_block"
	"github.com/newthinker/signalcore/internal/strategy/range_breakout"
	"github.com/newthinker/signalcore/internal/strategy/stochastic_cross"
	"github.com/newthinker/signalcore/internal/strategy/structure_break"
	"github.com/newthinker/signalcore/internal/strategy/supertrend"
	"github.com/newthinker/signalcore/internal/strategy/volume_node"
	"github.com/newthinker/signalcore/internal/strategy/vwap_rejection"
)

// constructors returns a fresh detector with default parameters
var constructors = map[string]func() strategy.Pattern{
	"vwap_rejection":    func() strategy.Pattern { return vwap_rejection.New(20, 0.5) },
	"range_breakout":    func() strategy.Pattern { return range_breakout.New(20, 0.03, 1.5) },
	"adaptive_rsi":      func() strategy.Pattern { return adaptive_rsi.New(14, 20) },
	"structure_break":   func() strategy.Pattern { return structure_break.New(3) },
	"character_change":  func() strategy.Pattern { return character_change.New(3) },
	"order_block":       func() strategy.Pattern { return order_block.New(30, 1.5) },
	"fair_value_gap":    func() strategy.Pattern { return fair_value_gap.New(20, 0.002) },
	"liquidity_sweep":   func() strategy.Pattern { return liquidity_sweep.New(40, 0.002) },
	"volume_node":       func() strategy.Pattern { return volume_node.New(100, 24, 0.7) },
	"ma_crossover":      func() strategy.Pattern { return ma_crossover.New(20, 50) },
	"bollinger_squeeze": func() strategy.Pattern { return bollinger_squeeze.New(20, 2.0, 0.03) },
	"ema_pullback":      func() strategy.Pattern { return ema_pullback.New(20, 50) },
	"stochastic_cross":  func() strategy.Pattern { return stochastic_cross.New(14, 20, 80) },
	"engulfing":         func() strategy.Pattern { return engulfing.New(5, 10) },
	"supertrend":        func() strategy.Pattern { return supertrend.New(10, 3.0) },
}

// defaultEnabled are the families built when config does not mention them.
// Five agreeing out of nine gives an agreement of 0.556, which conservatism
// 1.2 lifts to 0.667, so the default min_agree of 5 and min_confidence of
// 0.65 bind at the same count. The other families are opt-in.
var defaultEnabled = map[string]bool{
	"vwap_rejection":   true,
	"range_breakout":   true,
	"adaptive_rsi":     true,
	"structure_break":  true,
	"character_change": true,
	"order_block":      true,
	"fair_value_gap":   true,
	"liquidity_sweep":  true,
	"volume_node":      true,
}

// DefaultEnabled returns the families enabled without explicit config, sorted
func DefaultEnabled() []string {
	names := make([]string, 0, len(defaultEnabled))
	for name := range defaultEnabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns every known family, sorted
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a family by name and applies cfg
func New(name string, cfg strategy.Config) (strategy.Pattern, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("unknown strategy %q", name))
	}
	p := ctor()
	if err := p.Init(cfg); err != nil {
		return nil, fmt.Errorf("init %s: %w", name, err)
	}
	return p, nil
}

// Default returns every family with default parameters
func Default() []strategy.Pattern {
	patterns := make([]strategy.Pattern, 0, len(constructors))
	for _, name := range Names() {
		patterns = append(patterns, constructors[name]())
	}
	return patterns
}

// Build creates the enabled set. Families missing from cfgs run with
// defaults; an entry with Enabled false switches the family off.
func Build(cfgs map[string]strategy.Config) ([]strategy.Pattern, error) {
	for name := range cfgs {
		if _, ok := constructors[name]; !ok {
			return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("unknown strategy %q", name))
		}
	}

	var patterns []strategy.Pattern
	for _, name := range Names() {
		cfg, ok := cfgs[name]
		if !ok {
			cfg = strategy.Config{Enabled: defaultEnabled[name]}
		}
		if !cfg.Enabled {
			continue
		}
		p, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// RegisterAll adds patterns to the engine
func RegisterAll(e *strategy.Engine, patterns []strategy.Pattern) {
	for _, p := range patterns {
		e.Register(p)
	}
}
