package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

var csvColumns = []string{"symbol", "timestamp", "open", "high", "low", "close", "volume"}

// LoadCSV reads candles from CSV with the header
// symbol,timestamp,open,high,low,close,volume. Timestamps are RFC 3339 or
// unix seconds. Each symbol's bars are sorted by time.
func LoadCSV(r io.Reader) (map[string][]core.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrFeedFailed, fmt.Errorf("reading header: %w", err))
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	series := make(map[string][]core.Candle)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, core.WrapError(core.ErrFeedFailed, fmt.Errorf("line %d: %w", line, err))
		}

		symbol := strings.TrimSpace(record[idx["symbol"]])
		c, err := parseCandle(record, idx)
		if err != nil {
			return nil, core.WrapError(core.ErrFeedFailed, fmt.Errorf("line %d: %w", line, err))
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series[symbol] = append(series[symbol], c)
	}

	for _, bars := range series {
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	}
	return series, nil
}

// OpenCSV loads a CSV file into a replay feed
func OpenCSV(path string) (*SliceFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrFeedFailed, err)
	}
	defer f.Close()

	series, err := LoadCSV(f)
	if err != nil {
		return nil, err
	}
	return NewSliceFeed(series), nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, core.WrapError(core.ErrFeedFailed, fmt.Errorf("missing column %q", col))
		}
	}
	return idx, nil
}

func parseCandle(record []string, idx map[string]int) (core.Candle, error) {
	ts, err := parseTime(record[idx["timestamp"]])
	if err != nil {
		return core.Candle{}, err
	}
	c := core.Candle{Time: ts}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{"open", &c.Open},
		{"high", &c.High},
		{"low", &c.Low},
		{"close", &c.Close},
		{"volume", &c.Volume},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx[f.col]]), 64)
		if err != nil {
			return core.Candle{}, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = v
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// WriteCSV writes series in the format LoadCSV reads
func WriteCSV(w io.Writer, series map[string][]core.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}

	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, s := range symbols {
		for _, c := range series[s] {
			record := []string{
				s,
				c.Time.UTC().Format(time.RFC3339),
				strconv.FormatFloat(c.Open, 'f', -1, 64),
				strconv.FormatFloat(c.High, 'f', -1, 64),
				strconv.FormatFloat(c.Low, 'f', -1, 64),
				strconv.FormatFloat(c.Close, 'f', -1, 64),
				strconv.FormatFloat(c.Volume, 'f', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
