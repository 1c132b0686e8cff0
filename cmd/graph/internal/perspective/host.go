package perspective

import (
	"fmt"

	"go.uber.org/zap"
)

// Compile-time checks
var (
	_ Engine = (*Host)(nil)
	_ Worker = (*hostWorker)(nil)
)

// Host is the in-process engine. A nil *Host behaves as an unavailable engine.
type Host struct {
	worker *hostWorker
}

func NewHost(logger *zap.Logger) *Host {
	return &Host{worker: &hostWorker{logger: logger}}
}

func (h *Host) Worker() Worker {
	if h == nil || h.worker == nil {
		return nil
	}
	return h.worker
}

type hostWorker struct {
	logger *zap.Logger
}

func (w *hostWorker) Table(schema Schema) (Table, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("table schema has no columns")
	}
	seen := make(map[string]bool, len(schema))
	for _, col := range schema {
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
	}

	w.logger.Info("Table created", zap.Int("columns", len(schema)))
	return NewMemoryTable(schema), nil
}
