package telemetry

import (
	"maps"
	"sync"
)

// DataLayer is sink B's call surface: an ordered list of {event, ...params} records.
type DataLayer interface {
	Push(record map[string]any) error
}

// DataLayerSink appends events to a data layer.
type DataLayerSink struct {
	layer DataLayer
}

// NewDataLayerSink wraps layer; a nil layer makes the sink unavailable.
func NewDataLayerSink(layer DataLayer) *DataLayerSink {
	return &DataLayerSink{layer: layer}
}

func (s *DataLayerSink) Name() string { return "datalayer" }

func (s *DataLayerSink) Available() bool { return s != nil && s.layer != nil }

func (s *DataLayerSink) Send(ev Event) error {
	record := ev.params()
	record["event"] = ev.Name
	return s.layer.Push(record)
}

// MemoryDataLayer keeps pushed records in order.
type MemoryDataLayer struct {
	mu      sync.Mutex
	records []map[string]any
}

func (l *MemoryDataLayer) Push(record map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, maps.Clone(record))
	return nil
}

// Records returns a copy of the records pushed so far.
func (l *MemoryDataLayer) Records() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]map[string]any, len(l.records))
	for i, r := range l.records {
		out[i] = maps.Clone(r)
	}
	return out
}
