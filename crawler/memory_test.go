package crawler

import (
	"context"
	"runtime/debug"
	"sync"
	"testing"
	"time"
)

// restoreMemoryLimit undoes the soft limit NewMemoryWatcher installs.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func fixedHeap(m *MemoryWatcher, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heapAlloc = func() uint64 { return bytes }
}

func TestMemoryWatcherThrottleLevels(t *testing.T) {
	restoreMemoryLimit(t)
	const mb = 1024 * 1024

	tests := []struct {
		name string
		heap uint64
		want ThrottleLevel
	}{
		{"half", 50 * mb, ThrottleNormal},
		{"warning", 80 * mb, ThrottleWarning},
		{"critical", 95 * mb, ThrottleCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMemoryWatcher(100)
			fixedHeap(mw, tt.heap)

			used, level := mw.Check()
			if level != tt.want {
				t.Errorf("level = %v, want %v", level, tt.want)
			}
			if used <= 0 || used > 100 {
				t.Errorf("usedPercent = %f, want within (0, 100]", used)
			}
		})
	}
}

func TestMemoryWatcherCallbackOnChangeOnly(t *testing.T) {
	restoreMemoryLimit(t)
	const mb = 1024 * 1024

	mw := NewMemoryWatcher(100)
	var levels []ThrottleLevel
	mw.SetThrottleCallback(func(level ThrottleLevel) { levels = append(levels, level) })

	fixedHeap(mw, 10*mb)
	mw.Check()
	fixedHeap(mw, 80*mb)
	mw.Check()
	mw.Check()
	fixedHeap(mw, 99*mb)
	mw.Check()
	fixedHeap(mw, 10*mb)
	mw.Check()

	want := []ThrottleLevel{ThrottleWarning, ThrottleCritical, ThrottleNormal}
	if len(levels) != len(want) {
		t.Fatalf("callback levels = %v, want %v", levels, want)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Errorf("levels[%d] = %v, want %v", i, levels[i], want[i])
		}
	}
}

func TestMemoryWatcherSetLimit(t *testing.T) {
	restoreMemoryLimit(t)
	const mb = 1024 * 1024

	mw := NewMemoryWatcher(100)
	fixedHeap(mw, 80*mb)
	if _, level := mw.Check(); level != ThrottleWarning {
		t.Fatalf("level = %v, want warning", level)
	}

	mw.SetLimit(1000 * mb)
	if _, level := mw.Check(); level != ThrottleNormal {
		t.Errorf("level after raising limit = %v, want normal", level)
	}
}

func TestMemoryWatcherNoLimit(t *testing.T) {
	mw := &MemoryWatcher{heapAlloc: func() uint64 { return 1 << 40 }}
	if used, level := mw.Check(); used != 0 || level != ThrottleNormal {
		t.Errorf("Check() = %v, %v; want 0, normal", used, level)
	}
}

func TestMemoryWatcherWatch(t *testing.T) {
	restoreMemoryLimit(t)

	mw := NewMemoryWatcher(100)
	fixedHeap(mw, 99*1024*1024)

	var once sync.Once
	fired := make(chan ThrottleLevel, 1)
	mw.SetThrottleCallback(func(level ThrottleLevel) {
		once.Do(func() { fired <- level })
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mw.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case level := <-fired:
		if level != ThrottleCritical {
			t.Errorf("level = %v, want critical", level)
		}
	case <-time.After(time.Second):
		t.Error("Watch never reported a level change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestInFlightLimit(t *testing.T) {
	tests := []struct {
		workers int
		level   ThrottleLevel
		want    int
	}{
		{8, ThrottleNormal, 8},
		{8, ThrottleWarning, 4},
		{1, ThrottleWarning, 1},
		{8, ThrottleCritical, 1},
	}
	for _, tt := range tests {
		if got := inFlightLimit(tt.workers, tt.level); got != tt.want {
			t.Errorf("inFlightLimit(%d, %v) = %d, want %d", tt.workers, tt.level, got, tt.want)
		}
	}
}
