package volume_node

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// VolumeNode fires when price returns to a high-volume price band from one
// side, trades into it and closes back out on the side it came from.
type VolumeNode struct {
	lookback  int
	bins      int
	nodeRatio float64
}

// New creates a volume node bounce strategy
func New(lookback, bins int, nodeRatio float64) *VolumeNode {
	return &VolumeNode{
		lookback:  lookback,
		bins:      bins,
		nodeRatio: nodeRatio,
	}
}

func (v *VolumeNode) Name() string {
	return "volume_node"
}

func (v *VolumeNode) Description() string {
	return fmt.Sprintf("High Volume Node bounce (%d bars, %d bins)", v.lookback, v.bins)
}

func (v *VolumeNode) MinCandles() int {
	return 60
}

func (v *VolumeNode) Init(cfg strategy.Config) error {
	v.lookback = strategy.IntParam(cfg.Params, "lookback", v.lookback)
	v.bins = strategy.IntParam(cfg.Params, "bins", v.bins)
	v.nodeRatio = strategy.FloatParam(cfg.Params, "node_ratio", v.nodeRatio)
	if v.lookback < 10 || v.bins < 2 || v.nodeRatio <= 0 || v.nodeRatio > 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("volume_node: lookback %d, bins %d, node_ratio %.2f", v.lookback, v.bins, v.nodeRatio))
	}
	return nil
}

func (v *VolumeNode) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, v.evaluate)
}

func (v *VolumeNode) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < 3 {
		return strategy.None()
	}

	profile := indicator.VolumeProfile(bars[max(0, n-1-v.lookback):n-1], v.bins)
	poc, ok := profile.POC()
	if !ok {
		return strategy.None()
	}

	c, p := bars[n-1], bars[n-2]
	for _, node := range profile.HighVolumeNodes(v.nodeRatio) {
		switch {
		case p.Close > node.High && c.Low <= node.High && c.Close > node.High:
			return v.setup(core.ActionBuy, node, poc, bars)
		case p.Close < node.Low && c.High >= node.Low && c.Close < node.Low:
			return v.setup(core.ActionSell, node, poc, bars)
		case c.Close >= node.Low && c.Close <= node.High:
			return strategy.Forming(fmt.Sprintf("trading inside volume node %.2f-%.2f", node.Low, node.High))
		}
	}
	return strategy.None()
}

func (v *VolumeNode) setup(action core.Action, node, poc indicator.Node, bars []core.Candle) strategy.Setup {
	c := bars[len(bars)-1]
	stop, side, wick := node.Low, "support", c.LowerWick()
	if action == core.ActionSell {
		stop, side, wick = node.High, "resistance", c.UpperWick()
	}

	var strength float64
	if rng := c.Range(); rng > 0 {
		strength = 0.5*indicator.Clamp(wick/rng, 0, 1) + 0.5*indicator.Clamp(node.Volume/poc.Volume, 0, 1)
	}

	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        stop,
		Strength:    strength,
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Bounced off high-volume %s %.2f-%.2f", side, node.Low, node.High),
		Metadata: map[string]any{
			"node_low":  node.Low,
			"node_high": node.High,
			"poc":       poc.Mid(),
		},
	}
}
