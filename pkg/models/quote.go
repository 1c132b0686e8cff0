package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// feedTimeLayouts are the textual timestamp formats accepted from upstream feeds.
var feedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// TopQuote is the best price level on one side of the book.
type TopQuote struct {
	Price float64 `json:"price"`
	Size  int64   `json:"size,omitempty"`
}

// QuoteRecord represents a single market data tick for a stock
type QuoteRecord struct {
	Stock     string    `json:"stock"`
	TopAsk    *TopQuote `json:"top_ask,omitempty"`
	TopBid    *TopQuote `json:"top_bid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SeqID     int64     `json:"seq_id,omitempty"` // monotonic counter per stock
}

// DisplayRow is the flattened shape of a QuoteRecord held by the chart table.
type DisplayRow struct {
	Stock       string    `json:"stock"`
	TopAskPrice float64   `json:"top_ask_price"`
	TopBidPrice float64   `json:"top_bid_price"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordKey identifies a QuoteRecord independently of how often it was delivered.
type RecordKey struct {
	Stock     string
	Timestamp int64
	Ask       float64
	Bid       float64
}

// Row projects the record onto the display schema. Missing sides price at 0.
func (q QuoteRecord) Row() DisplayRow {
	return DisplayRow{
		Stock:       q.Stock,
		TopAskPrice: sidePrice(q.TopAsk),
		TopBidPrice: sidePrice(q.TopBid),
		Timestamp:   q.Timestamp,
	}
}

// Key returns the identity of the record. Prices are taken after defaulting
// so that NaN never ends up in a map key.
func (q QuoteRecord) Key() RecordKey {
	row := q.Row()
	return RecordKey{
		Stock:     row.Stock,
		Timestamp: row.Timestamp.UnixNano(),
		Ask:       row.TopAskPrice,
		Bid:       row.TopBidPrice,
	}
}

// Valid reports whether the row can be charted: it needs a stock and a timestamp.
func (r DisplayRow) Valid() bool {
	return r.Stock != "" && !r.Timestamp.IsZero()
}

// ProjectRows maps every record of the batch onto a DisplayRow, preserving order.
func ProjectRows(batch []QuoteRecord) []DisplayRow {
	rows := make([]DisplayRow, len(batch))
	for i, q := range batch {
		rows[i] = q.Row()
	}
	return rows
}

func sidePrice(side *TopQuote) float64 {
	if side == nil || math.IsNaN(side.Price) {
		return 0
	}
	return side.Price
}

// UnmarshalJSON accepts RFC3339 timestamps, the space separated feed format
// and integer unix microseconds.
func (q *QuoteRecord) UnmarshalJSON(b []byte) error {
	type alias QuoteRecord
	aux := struct {
		*alias
		Timestamp json.RawMessage `json:"timestamp"`
	}{alias: (*alias)(q)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("quote %q: %w", q.Stock, err)
	}
	q.Timestamp = ts
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		for _, layout := range feedTimeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
	}

	micros, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %s", raw)
	}
	return time.UnixMicro(micros).UTC(), nil
}

const (
	snapshotKeyPrefix = "quote:"
	feedChannelPrefix = "quotes."
)

// SnapshotKey is the Redis key holding the latest quote of stock.
func SnapshotKey(stock string) string { return snapshotKeyPrefix + stock }

// FeedChannel is the Redis channel quotes of stock are published on.
func FeedChannel(stock string) string { return feedChannelPrefix + stock }

// StockFromChannel extracts the stock from a FeedChannel name.
func StockFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, feedChannelPrefix) || len(channel) == len(feedChannelPrefix) {
		return "", false
	}
	return channel[len(feedChannelPrefix):], true
}
