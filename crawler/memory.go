package crawler

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// ThrottleLevel indicates memory pressure severity.
type ThrottleLevel int

const (
	// ThrottleNormal means heap use is below 75% of the limit.
	ThrottleNormal ThrottleLevel = iota
	// ThrottleWarning means heap use is between 75% and 90% of the limit.
	ThrottleWarning
	// ThrottleCritical means heap use is above 90% of the limit.
	ThrottleCritical
)

func (l ThrottleLevel) String() string {
	switch l {
	case ThrottleWarning:
		return "warning"
	case ThrottleCritical:
		return "critical"
	default:
		return "normal"
	}
}

// MemoryWatcher samples heap usage against a soft limit and reports level
// changes to a callback. The crawler uses it to shrink the number of pages
// fetched concurrently.
type MemoryWatcher struct {
	mu         sync.Mutex
	limitBytes int64
	callback   func(level ThrottleLevel)
	lastLevel  ThrottleLevel
	heapAlloc  func() uint64
}

// NewMemoryWatcher creates a watcher for limitMB megabytes and installs the
// same value as the runtime's soft memory limit.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	limitBytes := limitMB * 1024 * 1024
	if limitBytes > 0 {
		debug.SetMemoryLimit(limitBytes)
	}
	return &MemoryWatcher{
		limitBytes: limitBytes,
		heapAlloc: func() uint64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return ms.HeapAlloc
		},
	}
}

// Check samples heap usage and invokes the callback if the level changed.
func (m *MemoryWatcher) Check() (usedPercent float64, level ThrottleLevel) {
	m.mu.Lock()
	limit := m.limitBytes
	sample := m.heapAlloc
	m.mu.Unlock()

	if limit <= 0 {
		return 0, ThrottleNormal
	}
	usedPercent = float64(sample()) / float64(limit) * 100

	switch {
	case usedPercent >= 90:
		level = ThrottleCritical
	case usedPercent >= 75:
		level = ThrottleWarning
	default:
		level = ThrottleNormal
	}

	m.mu.Lock()
	changed := level != m.lastLevel
	m.lastLevel = level
	cb := m.callback
	m.mu.Unlock()

	if changed && cb != nil {
		cb(level)
	}
	return usedPercent, level
}

// Watch calls Check every interval until ctx is done.
func (m *MemoryWatcher) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// SetThrottleCallback registers the callback for level changes.
func (m *MemoryWatcher) SetThrottleCallback(cb func(level ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// SetLimit updates the limit in bytes.
func (m *MemoryWatcher) SetLimit(limitBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limitBytes = limitBytes
	if limitBytes > 0 {
		debug.SetMemoryLimit(limitBytes)
	}
}

// inFlightLimit scales the worker count down under memory pressure.
func inFlightLimit(workers int, level ThrottleLevel) int {
	switch level {
	case ThrottleCritical:
		return 1
	case ThrottleWarning:
		return max(1, workers/2)
	default:
		return workers
	}
}
