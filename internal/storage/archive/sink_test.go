package archive

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func released(id, symbol string, at time.Time) core.Signal {
	return core.Signal{
		ID:          id,
		Strategy:    "ensemble",
		Symbol:      symbol,
		Action:      core.ActionBuy,
		Entry:       100,
		StopLoss:    98,
		TakeProfit:  104,
		Confidence:  0.9,
		RiskReward:  2,
		Reason:      "6 of 8 strategies agree",
		GeneratedAt: at,
	}
}

func TestSignalPath(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	assert.Equal(t, "signals/2024/03/08/BTC_USDT/abc.json", SignalPath(released("abc", "BTC/USDT", at)))
}

func TestSink_PublishAndLoad(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	sink := NewSink(fs)
	ctx := context.Background()
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Publish(ctx, released("b", "BTC", day.Add(2*time.Hour))))
	require.NoError(t, sink.Publish(ctx, released("a", "BTC", day.Add(time.Hour))))
	require.NoError(t, sink.Publish(ctx, released("c", "ETH", day.Add(time.Hour))))

	all, err := sink.Load(ctx, day, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	btc, err := sink.Load(ctx, day, "BTC")
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, "a", btc[0].ID)
	assert.Equal(t, core.ActionBuy, btc[0].Action)
	assert.Equal(t, 104.0, btc[0].TakeProfit)
	assert.True(t, btc[0].GeneratedAt.Equal(day.Add(time.Hour)))
}

func TestSink_PublishRequiresID(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	err := NewSink(fs).Publish(context.Background(), released("", "BTC", time.Now()))
	assert.ErrorIs(t, err, core.ErrArchiveFailed)
}

func TestSink_Prune(t *testing.T) {
	s := newS3WithClient(newFakeS3(), S3Config{Bucket: "b"})
	sink := NewSink(s)
	ctx := context.Background()
	day := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Publish(ctx, released("old", "BTC", day.AddDate(0, 0, -40))))
	require.NoError(t, sink.Publish(ctx, released("edge", "BTC", day.AddDate(0, 0, -30))))
	require.NoError(t, sink.Publish(ctx, released("new", "BTC", day)))

	removed, err := sink.Prune(ctx, day.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, _ := s.List(ctx, signalsRoot)
	assert.Len(t, left, 2)
}
