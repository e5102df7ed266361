package risk

import (
	"fmt"
	"strings"

	"github.com/newthinker/signalcore/internal/core"
)

// Level names a risk appetite
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Profile holds the sizing and exit parameters of a risk appetite
type Profile struct {
	Level                 Level
	RiskMultiplier        float64
	MaxVolatileAllocation float64
	StopLossPct           float64
	TakeProfitPct         float64
}

// Profiles keyed by level. Every take-profit stays within the 6% target
// move and at a 2:1 reward to risk.
var Profiles = map[Level]Profile{
	LevelLow:    {Level: LevelLow, RiskMultiplier: 0.5, MaxVolatileAllocation: 0.05, StopLossPct: 0.015, TakeProfitPct: 0.03},
	LevelMedium: {Level: LevelMedium, RiskMultiplier: 1.0, MaxVolatileAllocation: 0.10, StopLossPct: 0.02, TakeProfitPct: 0.04},
	LevelHigh:   {Level: LevelHigh, RiskMultiplier: 1.5, MaxVolatileAllocation: 0.20, StopLossPct: 0.03, TakeProfitPct: 0.06},
}

// ProfileFor looks up a profile by name, case-insensitively
func ProfileFor(name string) (Profile, error) {
	p, ok := Profiles[Level(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Profile{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown risk profile %q", name))
	}
	return p, nil
}

// ApplyRiskProfile scales the suggested balance fraction by the profile's
// multiplier, caps it at MaxVolatileAllocation and returns the position size
// in account currency.
func ApplyRiskProfile(fraction, balance float64, p Profile) float64 {
	if !positive(fraction) || !positive(balance) || !positive(p.RiskMultiplier) {
		return 0
	}
	f := fraction * p.RiskMultiplier
	if p.MaxVolatileAllocation > 0 && f > p.MaxVolatileAllocation {
		f = p.MaxVolatileAllocation
	}
	return balance * f
}

// Levels returns profile levels from most to least conservative
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}
