package indicator

import (
	"math"
	"sort"

	"github.com/newthinker/signalcore/internal/core"
)

// VWAP calculates a rolling volume-weighted average of the typical price.
// Returns slice of length: len(bars) - period + 1. Windows without volume
// fall back to the plain average typical price.
func VWAP(bars []core.Candle, period int) []float64 {
	if period <= 0 || len(bars) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(bars)-period+1)
	for end := period; end <= len(bars); end++ {
		var pv, vol, tp float64
		for _, b := range bars[end-period : end] {
			t := Typical(b)
			pv += t * b.Volume
			vol += b.Volume
			tp += t
		}
		if vol > 0 {
			result = append(result, pv/vol)
		} else {
			result = append(result, tp/float64(period))
		}
	}
	return result
}

// Profile is a histogram of traded volume by price
type Profile struct {
	Low     float64
	High    float64
	Step    float64
	Volumes []float64
}

// Node is a price band from a volume profile
type Node struct {
	Low    float64
	High   float64
	Volume float64
}

// Mid returns the center price of the band
func (n Node) Mid() float64 {
	return (n.Low + n.High) / 2
}

// VolumeProfile buckets each bar's volume at its typical price into bins
// spanning the lowest low to highest high of bars.
func VolumeProfile(bars []core.Candle, bins int) Profile {
	if len(bars) == 0 || bins <= 0 {
		return Profile{}
	}

	lo, hi := Lowest(bars), Highest(bars)
	if hi <= lo {
		return Profile{Low: lo, High: hi, Volumes: []float64{AvgVolume(bars) * float64(len(bars))}}
	}

	p := Profile{Low: lo, High: hi, Step: (hi - lo) / float64(bins), Volumes: make([]float64, bins)}
	for _, b := range bars {
		p.Volumes[p.bin(Typical(b))] += b.Volume
	}
	return p
}

func (p Profile) bin(price float64) int {
	if p.Step <= 0 {
		return 0
	}
	idx := int(math.Floor((price - p.Low) / p.Step))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.Volumes) {
		idx = len(p.Volumes) - 1
	}
	return idx
}

func (p Profile) node(i int) Node {
	return Node{
		Low:    p.Low + float64(i)*p.Step,
		High:   p.Low + float64(i+1)*p.Step,
		Volume: p.Volumes[i],
	}
}

// POC returns the point-of-control band (highest volume)
func (p Profile) POC() (Node, bool) {
	if len(p.Volumes) == 0 {
		return Node{}, false
	}
	best := 0
	for i, v := range p.Volumes {
		if v > p.Volumes[best] {
			best = i
		}
	}
	if p.Volumes[best] <= 0 {
		return Node{}, false
	}
	return p.node(best), true
}

// HighVolumeNodes returns bands holding at least ratio of the POC volume,
// ordered by volume descending.
func (p Profile) HighVolumeNodes(ratio float64) []Node {
	poc, ok := p.POC()
	if !ok {
		return nil
	}

	var nodes []Node
	for i, v := range p.Volumes {
		if v >= poc.Volume*ratio {
			nodes = append(nodes, p.node(i))
		}
	}
	sort.SliceStable(nodes, func(a, b int) bool {
		return nodes[a].Volume > nodes[b].Volume
	})
	return nodes
}
