// Package bridge connects the quote feed to the chart widget: it owns the
// backing table, configures the widget once, and appends each delivery's
// unseen quotes to the table.
package bridge

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// Widget attribute names and the values the chart is configured with.
const (
	AttrView         = "view"
	AttrColumnPivots = "column-pivots"
	AttrRowPivots    = "row-pivots"
	AttrColumns      = "columns"
	AttrAggregates   = "aggregates"

	ViewLine     = "y_line"
	ColumnPivots = `["stock"]`
	RowPivots    = `["timestamp"]`
	Columns      = `["top_ask_price"]`
	Aggregates   = `{"stock":"distinct count","top_ask_price":"avg","top_bid_price":"avg","timestamp":"distinct count"}`
)

// Schema is the fixed shape of the backing table.
var Schema = perspective.Schema{
	{Name: "stock", Type: perspective.TypeString},
	{Name: "top_ask_price", Type: perspective.TypeFloat},
	{Name: "top_bid_price", Type: perspective.TypeFloat},
	{Name: "timestamp", Type: perspective.TypeDatetime},
}

var attributes = []struct{ name, value string }{
	{AttrView, ViewLine},
	{AttrColumnPivots, ColumnPivots},
	{AttrRowPivots, RowPivots},
	{AttrColumns, Columns},
	{AttrAggregates, Aggregates},
}

// Graph is driven by its host: Initialize once, then ApplyUpdate for every
// delivery. Calls must not overlap.
type Graph struct {
	engine perspective.Engine
	widget perspective.Widget
	logger *zap.Logger

	initialized bool
	table       perspective.Table
	committed   committedSet
	rejected    int

	// read by probes outside the lifecycle calls
	ready atomic.Bool
	count atomic.Int64
}

func New(engine perspective.Engine, widget perspective.Widget, logger *zap.Logger) *Graph {
	return &Graph{
		engine:    engine,
		widget:    widget,
		logger:    logger,
		committed: newCommittedSet(),
	}
}

// Initialize creates the backing table and configures the widget. It runs
// once; an unavailable engine leaves the graph without a table.
func (g *Graph) Initialize() {
	if g.initialized {
		return
	}
	g.initialized = true

	if g.engine == nil || g.widget == nil {
		g.logger.Debug("Chart engine not available, skipping chart setup")
		return
	}
	worker := g.engine.Worker()
	if worker == nil {
		g.logger.Debug("Chart engine worker not available, skipping chart setup")
		return
	}

	table, err := worker.Table(Schema)
	if err != nil {
		g.logger.Warn("Failed to create chart table", zap.Error(err))
		return
	}
	if table == nil {
		return
	}
	g.table = table

	g.widget.Load(table)
	for _, attr := range attributes {
		g.widget.SetAttribute(attr.name, attr.value)
	}
	g.ready.Store(true)

	g.logger.Info("Chart ready", zap.String("view", ViewLine))
}

// ApplyUpdate appends the quotes of batch that have not been committed yet.
// batch may be the whole delivered history or just the latest increment.
// Quotes the table cannot hold are committed without a row, so a redelivered
// bad quote never blocks the ones after it.
func (g *Graph) ApplyUpdate(batch []models.QuoteRecord) {
	if g.table == nil {
		return
	}

	fresh := g.committed.unseen(batch)
	if len(fresh) == 0 {
		return
	}

	accepted := make([]models.QuoteRecord, 0, len(fresh))
	rows := make([]models.DisplayRow, 0, len(fresh))
	var rejected []models.QuoteRecord
	for _, q := range fresh {
		row := q.Row()
		if !row.Valid() {
			rejected = append(rejected, q)
			continue
		}
		accepted = append(accepted, q)
		rows = append(rows, row)
	}
	if len(rejected) > 0 {
		g.committed.commit(rejected)
		g.rejected += len(rejected)
		g.logger.Warn("Dropping quotes the chart cannot hold",
			zap.Int("dropped", len(rejected)),
			zap.String("stock", rejected[0].Stock),
			zap.Time("timestamp", rejected[0].Timestamp),
		)
	}
	if len(rows) == 0 {
		return
	}

	if err := g.table.Update(rows); err != nil {
		g.logger.Error("Chart table update failed", zap.Error(err), zap.Int("rows", len(rows)))
		return
	}
	g.committed.commit(accepted)
	g.count.Add(int64(len(rows)))

	g.logger.Debug("Chart updated",
		zap.Int("appended", len(rows)),
		zap.Int("skipped", len(batch)-len(fresh)),
		zap.Int("committed", g.committed.len()),
	)
}

// Ready reports whether the backing table exists.
func (g *Graph) Ready() bool { return g.ready.Load() }

// Committed is the number of distinct quotes appended so far.
func (g *Graph) Committed() int { return int(g.count.Load()) }

// Rejected is the number of distinct quotes dropped because the table could
// not hold them. Only valid between lifecycle calls.
func (g *Graph) Rejected() int { return g.rejected }
