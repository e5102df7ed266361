package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"go.uber.org/zap"
)

const signalsRoot = "signals"

// Record is the archived form of a released signal
type Record struct {
	ID           string         `json:"id"`
	Strategy     string         `json:"strategy"`
	Symbol       string         `json:"symbol"`
	Action       core.Action    `json:"action"`
	Entry        float64        `json:"entry"`
	StopLoss     float64        `json:"stop_loss"`
	TakeProfit   float64        `json:"take_profit"`
	Confidence   float64        `json:"confidence"`
	RiskReward   float64        `json:"risk_reward_ratio"`
	PositionSize float64        `json:"position_size,omitempty"`
	Reasoning    string         `json:"reasoning"`
	Volume       bool           `json:"requires_volume"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

func toRecord(s core.Signal) Record {
	return Record{
		ID:           s.ID,
		Strategy:     s.Strategy,
		Symbol:       s.Symbol,
		Action:       s.Action,
		Entry:        s.Entry,
		StopLoss:     s.StopLoss,
		TakeProfit:   s.TakeProfit,
		Confidence:   s.Confidence,
		RiskReward:   s.RiskReward,
		PositionSize: s.PositionSize,
		Reasoning:    s.Reason,
		Volume:       s.RequiresVolume,
		Metadata:     s.Metadata,
		GeneratedAt:  s.GeneratedAt,
	}
}

// Signal converts a record back to a signal
func (r Record) Signal() core.Signal {
	return core.Signal{
		ID:             r.ID,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		Action:         r.Action,
		Entry:          r.Entry,
		StopLoss:       r.StopLoss,
		TakeProfit:     r.TakeProfit,
		Confidence:     r.Confidence,
		RiskReward:     r.RiskReward,
		PositionSize:   r.PositionSize,
		Reason:         r.Reasoning,
		RequiresVolume: r.Volume,
		Metadata:       r.Metadata,
		GeneratedAt:    r.GeneratedAt,
	}
}

// SignalPath returns signals/YYYY/MM/DD/<symbol>/<id>.json in UTC
func SignalPath(s core.Signal) string {
	day := s.GeneratedAt.UTC()
	return path.Join(dayPrefix(day), sanitize(s.Symbol), sanitize(s.ID)+".json")
}

func dayPrefix(day time.Time) string {
	return path.Join(signalsRoot, day.Format("2006"), day.Format("01"), day.Format("02"))
}

// sanitize keeps symbols like BTC/USDT from creating extra path levels
func sanitize(part string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(part)
}

// Sink writes released signals to a Storage backend
type Sink struct {
	storage Storage
	logger  *zap.Logger
}

// NewSink creates a signal sink
func NewSink(storage Storage, logger ...*zap.Logger) *Sink {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Sink{storage: storage, logger: l}
}

// Name identifies the sink in logs and metrics
func (s *Sink) Name() string {
	return "archive"
}

// Publish archives one signal
func (s *Sink) Publish(ctx context.Context, sig core.Signal) error {
	if sig.ID == "" {
		return core.WrapError(core.ErrArchiveFailed, fmt.Errorf("signal for %s has no id", sig.Symbol))
	}
	data, err := json.MarshalIndent(toRecord(sig), "", "  ")
	if err != nil {
		return core.WrapError(core.ErrArchiveFailed, err)
	}
	p := SignalPath(sig)
	if err := s.storage.Write(ctx, p, data); err != nil {
		return err
	}
	s.logger.Debug("signal archived", zap.String("path", p), zap.String("symbol", sig.Symbol))
	return nil
}

// Load returns the archived signals for one UTC day, optionally narrowed
// to a symbol, ordered by generation time.
func (s *Sink) Load(ctx context.Context, day time.Time, symbol string) ([]core.Signal, error) {
	prefix := dayPrefix(day.UTC())
	if symbol != "" {
		prefix = path.Join(prefix, sanitize(symbol))
	}
	paths, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	signals := make([]core.Signal, 0, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		data, err := s.storage.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("decode %s: %w", p, err))
		}
		signals = append(signals, rec.Signal())
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].GeneratedAt.Before(signals[j].GeneratedAt)
	})
	return signals, nil
}

// Prune deletes archived signals from days strictly before cutoff and
// returns how many files were removed.
func (s *Sink) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	paths, err := s.storage.List(ctx, signalsRoot)
	if err != nil {
		return 0, err
	}
	limit := dayPrefix(cutoff.UTC())

	removed := 0
	for _, p := range paths {
		parts := strings.Split(p, "/")
		if len(parts) < 4 {
			continue
		}
		if path.Join(parts[:4]...) >= limit {
			continue
		}
		if err := s.storage.Delete(ctx, p); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("archive pruned", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
