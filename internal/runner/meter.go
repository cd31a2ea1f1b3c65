package runner

import "sync"

// UsageMeter reports resource usage (typically tokens) attributable to the
// most recent invocation. The delta contract: CurrentUsage returns usage
// accumulated since the previous CurrentUsage call, and the runner queries
// the meter exactly once per invocation, immediately after it returns.
//
// With concurrency above one, attribution of concurrent usage between
// in-flight invocations is up to the meter; implementations must at minimum
// be safe for concurrent queries.
type UsageMeter interface {
	CurrentUsage() float64
}

// DeltaMeter is a UsageMeter over an in-process counter. Instrumented code
// calls Add as it consumes resources; each CurrentUsage query drains the
// accumulated amount and advances the query point.
type DeltaMeter struct {
	mu    sync.Mutex
	total float64
	read  float64
}

// NewDeltaMeter creates a meter with no recorded usage.
func NewDeltaMeter() *DeltaMeter { return &DeltaMeter{} }

// Add records n units of consumed usage.
func (m *DeltaMeter) Add(n float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total += n
}

// CurrentUsage returns the usage accumulated since the previous query and
// advances the query point.
func (m *DeltaMeter) CurrentUsage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.total - m.read
	m.read = m.total
	return delta
}
