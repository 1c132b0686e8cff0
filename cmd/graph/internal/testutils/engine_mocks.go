package testutils

import (
	"errors"
	"sync"

	"github.com/shubham-shewale/stock-graph/cmd/graph/internal/perspective"
	"github.com/shubham-shewale/stock-graph/pkg/models"
)

// MockEngine hands out its Worker field; leave it nil to simulate an engine
// without a worker.
type MockEngine struct {
	WorkerVal perspective.Worker
	Calls     int
}

func (m *MockEngine) Worker() perspective.Worker {
	m.Calls++
	return m.WorkerVal
}

type MockWorker struct {
	Schemas    []perspective.Schema
	TableSpy   *MockTable
	ShouldFail bool
}

func (m *MockWorker) Table(schema perspective.Schema) (perspective.Table, error) {
	m.Schemas = append(m.Schemas, schema)
	if m.ShouldFail {
		return nil, errors.New("worker crashed")
	}
	if m.TableSpy == nil {
		m.TableSpy = &MockTable{}
	}
	return m.TableSpy, nil
}

// MockTable records every Update call.
type MockTable struct {
	Mu         sync.Mutex
	Updates    [][]models.DisplayRow
	Rows       []models.DisplayRow
	FailNext   bool
	UpdateCall int
}

func (m *MockTable) Update(rows []models.DisplayRow) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.UpdateCall++
	if m.FailNext {
		m.FailNext = false
		return errors.New("table update failed")
	}
	m.Updates = append(m.Updates, rows)
	m.Rows = append(m.Rows, rows...)
	return nil
}

func (m *MockTable) Size() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Rows)
}

type MockWidget struct {
	Loaded     []perspective.Table
	Attributes map[string]string
	Order      []string
}

func NewMockWidget() *MockWidget {
	return &MockWidget{Attributes: make(map[string]string)}
}

func (m *MockWidget) Load(t perspective.Table) { m.Loaded = append(m.Loaded, t) }

func (m *MockWidget) SetAttribute(name, value string) {
	m.Attributes[name] = value
	m.Order = append(m.Order, name)
}
