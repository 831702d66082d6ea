package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters over inbound updates and
// outbound deliveries.
type Metrics struct {
	mu            sync.Mutex
	updateCount   map[string]int64
	errorCount    map[string]int64
	deliveryCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		updateCount:   make(map[string]int64),
		errorCount:    make(map[string]int64),
		deliveryCount: make(map[string]int64),
	}
}

// RecordUpdate counts an inbound update by kind (text, action, command).
func (m *Metrics) RecordUpdate(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCount[kind]++
}

// RecordError counts a surfaced domain error by code.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[code]++
}

// RecordDelivery counts an outbound notification attempt by outcome.
func (m *Metrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryCount[outcome]++
}

// Snapshot copies the counters for the readiness endpoint.
func (m *Metrics) Snapshot() (updates, errors, deliveries map[string]int64) {
	if m == nil {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounts(m.updateCount), copyCounts(m.errorCount), copyCounts(m.deliveryCount)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
