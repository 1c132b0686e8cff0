package testutils

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/protocol"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// MockClient simulates a connected websocket viewer
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores control responses
	RawBytes []string              // Stores raw frames
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

// Frames decodes every raw frame of the given type.
func (m *MockClient) Frames(msgType string) []protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	var out []protocol.WSResponse
	for _, raw := range m.RawBytes {
		var resp protocol.WSResponse
		if err := json.Unmarshal([]byte(raw), &resp); err == nil && resp.Type == msgType {
			out = append(out, resp)
		}
	}
	return out
}

// ReceivedRows returns every display row pushed to the client, in order.
func (m *MockClient) ReceivedRows() []models.DisplayRow {
	var rows []models.DisplayRow
	for _, frame := range m.Frames(protocol.TypeRows) {
		b, _ := json.Marshal(frame.Data)
		var batch []models.DisplayRow
		if err := json.Unmarshal(b, &batch); err == nil {
			rows = append(rows, batch...)
		}
	}
	return rows
}

// MockQuoteStore simulates Redis
type MockQuoteStore struct {
	Snapshots          []string
	SnapshotErr        error
	SubscribedChannels map[string]int // stock -> count
	FailSubscribe      map[string]error
	Messages           chan [2]string
	Mu                 sync.Mutex
}

func NewMockStore() *MockQuoteStore {
	return &MockQuoteStore{
		SubscribedChannels: make(map[string]int),
		Messages:           make(chan [2]string, 64),
	}
}

func (m *MockQuoteStore) GetSnapshots(ctx context.Context, stocks []string) ([]string, error) {
	return m.Snapshots, m.SnapshotErr
}

func (m *MockQuoteStore) SubscribeToFeed(ctx context.Context, stock string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if err := m.FailSubscribe[stock]; err != nil {
		return err
	}
	m.SubscribedChannels[stock]++
	return nil
}

func (m *MockQuoteStore) UnsubscribeFromFeed(ctx context.Context, stock string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[stock]--
	if m.SubscribedChannels[stock] <= 0 {
		delete(m.SubscribedChannels, stock)
	}
	return nil
}

// RunPubSub replays whatever is pushed on Messages as (stock, payload) pairs.
func (m *MockQuoteStore) RunPubSub(ctx context.Context, onMessage func(stock string, payload string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.Messages:
			onMessage(msg[0], msg[1])
		}
	}
}

func (m *MockQuoteStore) Subscriptions() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.SubscribedChannels)
}

func (m *MockQuoteStore) Close() error { return nil }

// RecordingSink captures every delivery handed to it.
type RecordingSink struct {
	Mu         sync.Mutex
	Deliveries [][]models.QuoteRecord
}

func (s *RecordingSink) ApplyUpdate(batch []models.QuoteRecord) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	cp := make([]models.QuoteRecord, len(batch))
	copy(cp, batch)
	s.Deliveries = append(s.Deliveries, cp)
}

func (s *RecordingSink) Count() int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return len(s.Deliveries)
}

func (s *RecordingSink) Last() []models.QuoteRecord {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if len(s.Deliveries) == 0 {
		return nil
	}
	return s.Deliveries[len(s.Deliveries)-1]
}
