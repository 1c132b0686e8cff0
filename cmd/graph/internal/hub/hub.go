package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/protocol"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// Compile-time check: the hub receives the chart widget's changes
var _ perspective.Publisher = (*Hub)(nil)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	SendBytes(b []byte)
	Close()
}

// SnapshotSource is the chart state a newly subscribed viewer catches up from.
type SnapshotSource interface {
	View() perspective.View
	Snapshot(stocks []string) ([]models.DisplayRow, int)
}

// Hub fans chart rows out to viewers by stock. For every (client, stock) it
// keeps the table size its snapshot covered, so a row is sent to a client
// either in the snapshot or live, never both.
type Hub struct {
	subscribers map[string]map[ClientInterface]bool
	clientSubs  map[ClientInterface]map[string]int

	source SnapshotSource
	logger *zap.Logger
	mu     sync.RWMutex
}

func NewHub(source SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[ClientInterface]bool),
		clientSubs:  make(map[ClientInterface]map[string]int),
		source:      source,
		logger:      logger,
	}
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest, validTickers map[string]bool) {
	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(client, req, validTickers)
	case protocol.ActionUnsubscribe:
		h.handleUnsubscribe(client, req)
	case protocol.ActionUnsubscribeAll:
		h.handleUnsubscribeAll(client, req)
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(client ClientInterface, req protocol.WSRequest, validTickers map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var valid []string
	for _, s := range req.Payload.Symbols {
		if validTickers[s] {
			// Idempotency: Ignore if already subscribed
			if _, ok := h.clientSubs[client][s]; ok {
				continue
			}
			valid = append(valid, s)
		}
	}

	if len(valid) == 0 {
		h.sendError(client, req.ID, "No valid/new symbols provided")
		return
	}

	if h.clientSubs[client] == nil {
		h.clientSubs[client] = make(map[string]int)
	}

	// Snapshot under the lock: live rows are published under the same lock,
	// so the recorded size splits rows cleanly between snapshot and stream.
	rows, size := h.source.Snapshot(valid)

	for _, sym := range valid {
		h.clientSubs[client][sym] = size
		if h.subscribers[sym] == nil {
			h.subscribers[sym] = make(map[ClientInterface]bool)
		}
		h.subscribers[sym][client] = true
	}

	h.sendAck(client, req.ID, "success", fmt.Sprintf("Subscribed to %v", valid))

	if msg, ok := h.encode(protocol.TypeView, h.source.View()); ok {
		client.SendBytes(msg)
	}
	if len(rows) > 0 {
		if msg, ok := h.encode(protocol.TypeRows, rows); ok {
			client.SendBytes(msg)
		}
	}
	h.logger.Debug("Viewer subscribed", zap.String("client", client.ID()), zap.Strings("symbols", valid), zap.Int("snapshot_rows", len(rows)))
}

func (h *Hub) handleUnsubscribe(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []string
	if subs, ok := h.clientSubs[client]; ok {
		for _, sym := range req.Payload.Symbols {
			if _, ok := subs[sym]; ok {
				delete(subs, sym)
				h.removeSubscriber(sym, client)
				removed = append(removed, sym)
			}
		}
	}

	if len(removed) > 0 {
		h.sendAck(client, req.ID, "success", fmt.Sprintf("Unsubscribed from %v", removed))
	} else {
		h.sendError(client, req.ID, fmt.Sprintf("Not subscribed to: %v", req.Payload.Symbols))
	}
}

func (h *Hub) handleUnsubscribeAll(client ClientInterface, req protocol.WSRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.removeSubscriber(sym, client)
		}
		// Clear the map but keep the client registered
		h.clientSubs[client] = make(map[string]int)
	}
	h.sendAck(client, req.ID, "success", "Unsubscribed from all symbols")
}

func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clientSubs[client]; ok {
		for sym := range subs {
			h.removeSubscriber(sym, client)
		}
		delete(h.clientSubs, client)
	}
	client.Close()
}

// PublishView pushes a changed chart configuration to every registered viewer.
func (h *Hub) PublishView(v perspective.View) {
	msg, ok := h.encode(protocol.TypeView, v)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clientSubs {
		client.SendBytes(msg)
	}
}

// PublishRows sends each viewer the rows of its stocks it has not received
// through a snapshot. offset is the table index of rows[0].
func (h *Hub) PublishRows(offset int, rows []models.DisplayRow) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pending := make(map[ClientInterface][]models.DisplayRow)
	for i, row := range rows {
		for client := range h.subscribers[row.Stock] {
			if offset+i < h.clientSubs[client][row.Stock] {
				continue
			}
			pending[client] = append(pending[client], row)
		}
	}

	for client, batch := range pending {
		if msg, ok := h.encode(protocol.TypeRows, batch); ok {
			client.SendBytes(msg)
		}
	}
}

// Viewers is the number of connected clients with a registration.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientSubs)
}

func (h *Hub) removeSubscriber(symbol string, client ClientInterface) {
	delete(h.subscribers[symbol], client)
	if len(h.subscribers[symbol]) == 0 {
		delete(h.subscribers, symbol)
	}
}

func (h *Hub) encode(msgType string, data interface{}) ([]byte, bool) {
	b, err := json.Marshal(protocol.WSResponse{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode message", zap.String("type", msgType), zap.Error(err))
		return nil, false
	}
	return b, true
}

func (h *Hub) sendAck(c ClientInterface, id, status, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: status, Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Message: msg})
}
