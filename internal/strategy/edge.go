package strategy

import "github.com/newthinker/signalcore/internal/core"

// Edge runs eval on the current and previous bar and reports a completion
// only on the bar where it first holds. A completion that already held on
// the previous bar is downgraded to forming.
func Edge(bars []core.Candle, eval func([]core.Candle) Setup) Setup {
	curr := eval(bars)
	if curr.Phase != PhaseCompleted || len(bars) < 2 {
		return curr
	}
	prev := eval(bars[:len(bars)-1])
	if prev.Phase == PhaseCompleted && prev.Action == curr.Action {
		return Forming("condition persisting")
	}
	return curr
}

// Direction returns +1 for buy, -1 for sell and 0 otherwise
func Direction(a core.Action) float64 {
	switch a {
	case core.ActionBuy:
		return 1
	case core.ActionSell:
		return -1
	default:
		return 0
	}
}
