package perspective

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-graph/pkg/models"
)

var _ Widget = (*Viewer)(nil)

type rowSource interface {
	Schema() Schema
	OnUpdate(fn UpdateListener)
	RowsFor(stocks []string) ([]models.DisplayRow, int)
}

// Viewer is the widget the bridge configures. It renders nothing itself; it
// relays its table and attributes to every attached Publisher.
type Viewer struct {
	logger *zap.Logger

	mu         sync.RWMutex
	table      Table
	attributes map[string]string
	publishers []Publisher
}

func NewViewer(logger *zap.Logger) *Viewer {
	return &Viewer{
		logger:     logger,
		attributes: make(map[string]string),
	}
}

// Attach adds a publisher for subsequent view and row changes.
func (v *Viewer) Attach(p Publisher) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publishers = append(v.publishers, p)
}

func (v *Viewer) Load(t Table) {
	v.mu.Lock()
	v.table = t
	v.mu.Unlock()

	if src, ok := t.(rowSource); ok {
		src.OnUpdate(v.forwardRows)
	} else {
		v.logger.Warn("Loaded table cannot stream rows to viewers")
	}

	v.publishView()
}

func (v *Viewer) SetAttribute(name, value string) {
	v.mu.Lock()
	v.attributes[name] = value
	v.mu.Unlock()

	v.logger.Debug("Viewer attribute set", zap.String("name", name), zap.String("value", value))
	v.publishView()
}

func (v *Viewer) Attribute(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.attributes[name]
	return val, ok
}

// Loaded reports whether a table has been bound.
func (v *Viewer) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.table != nil
}

func (v *Viewer) View() View {
	v.mu.RLock()
	defer v.mu.RUnlock()

	view := View{Attributes: make(map[string]string, len(v.attributes))}
	for k, val := range v.attributes {
		view.Attributes[k] = val
	}
	if v.table != nil {
		view.Rows = v.table.Size()
		if src, ok := v.table.(rowSource); ok {
			view.Schema = src.Schema()
		}
	}
	return view
}

// Snapshot returns the stored rows of the given stocks and the table size
// they cover. Without a table it returns nothing.
func (v *Viewer) Snapshot(stocks []string) ([]models.DisplayRow, int) {
	v.mu.RLock()
	t := v.table
	v.mu.RUnlock()

	src, ok := t.(rowSource)
	if !ok {
		return nil, 0
	}
	return src.RowsFor(stocks)
}

func (v *Viewer) forwardRows(offset int, rows []models.DisplayRow) {
	for _, p := range v.snapshotPublishers() {
		p.PublishRows(offset, rows)
	}
}

func (v *Viewer) publishView() {
	view := v.View()
	for _, p := range v.snapshotPublishers() {
		p.PublishView(view)
	}
}

func (v *Viewer) snapshotPublishers() []Publisher {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Publisher, len(v.publishers))
	copy(out, v.publishers)
	return out
}
