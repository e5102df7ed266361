package risk

import (
	"errors"
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFor(t *testing.T) {
	p, err := ProfileFor(" High ")
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, p.Level)
	assert.Equal(t, 1.5, p.RiskMultiplier)

	_, err = ProfileFor("reckless")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestProfiles_TargetsWithinBounds(t *testing.T) {
	for _, level := range Levels() {
		p := Profiles[level]
		assert.LessOrEqual(t, p.TakeProfitPct, core.MaxTargetMove, "level %s", level)
		assert.GreaterOrEqual(t, p.TakeProfitPct/p.StopLossPct, 2.0, "level %s", level)
	}
}

func TestApplyRiskProfile(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		level    Level
		want     float64
	}{
		{"medium passes through", 0.08, LevelMedium, 800},
		{"high scales up", 0.08, LevelHigh, 1200},
		{"low scales down", 0.08, LevelLow, 400},
		{"high capped", 0.3, LevelHigh, 2000},
		{"low capped", 0.3, LevelLow, 500},
		{"zero fraction", 0, LevelMedium, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ApplyRiskProfile(tt.fraction, 10000, Profiles[tt.level]), 1e-9)
		})
	}
}
