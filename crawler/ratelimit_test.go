package crawler

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func TestNewAdaptiveLimiter(t *testing.T) {
	tests := []struct {
		name        string
		rps         float64
		wantNil     bool
		wantFloor   float64
		wantCeiling float64
	}{
		{"disabled", 0, true, 0, 0},
		{"negative disabled", -3, true, 0, 0},
		{"ten", 10, false, 2.5, 40},
		{"slow", 1, false, 0.5, 4},
		{"below floor minimum", 0.2, false, 0.2, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewAdaptiveLimiter(tt.rps, time.Second)
			if tt.wantNil {
				if l != nil {
					t.Fatalf("NewAdaptiveLimiter(%v) = %+v, want nil", tt.rps, l)
				}
				return
			}
			if l.CurrentRate() != tt.rps {
				t.Errorf("CurrentRate() = %v, want %v", l.CurrentRate(), tt.rps)
			}
			if math.Abs(l.floor-tt.wantFloor) > 1e-9 || math.Abs(l.ceiling-tt.wantCeiling) > 1e-9 {
				t.Errorf("bounds = [%v, %v], want [%v, %v]", l.floor, l.ceiling, tt.wantFloor, tt.wantCeiling)
			}
		})
	}
}

func TestAdaptiveLimiter_NilIsUnlimited(t *testing.T) {
	var l *AdaptiveLimiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("Wait() on nil limiter = %v", err)
	}
	l.ObserveRTT(time.Second)
	if !math.IsInf(l.CurrentRate(), 1) {
		t.Errorf("CurrentRate() on nil limiter = %v, want +Inf", l.CurrentRate())
	}
}

func TestAdaptiveLimiter_Wait_ContextCancellation(t *testing.T) {
	l := NewAdaptiveLimiter(1, time.Second)
	// Drain the single burst token.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() with cancelled context returned nil")
	}
}

func TestAdaptiveLimiter_ObserveRTT_Backoff(t *testing.T) {
	l := NewAdaptiveLimiter(20, 100*time.Millisecond)

	l.ObserveRTT(5 * time.Second)
	rate := l.CurrentRate()
	if rate >= 20 {
		t.Errorf("rate = %v after slow response, want < 20", rate)
	}
	if rate < 10 {
		t.Errorf("rate = %v, a single step must not drop below half", rate)
	}
}

func TestAdaptiveLimiter_ObserveRTT_Recovery(t *testing.T) {
	l := NewAdaptiveLimiter(10, time.Second)

	l.ObserveRTT(10 * time.Millisecond)
	if got := l.CurrentRate(); math.Abs(got-11) > 1e-9 {
		t.Errorf("rate = %v after fast response, want 11", got)
	}
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	l := NewAdaptiveLimiter(10, 100*time.Millisecond)
	for range 50 {
		l.ObserveRTT(10 * time.Second)
	}
	if got := l.CurrentRate(); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("rate = %v after sustained slowness, want floor 2.5", got)
	}

	l = NewAdaptiveLimiter(10, time.Second)
	for range 100 {
		l.ObserveRTT(time.Millisecond)
	}
	if got := l.CurrentRate(); math.Abs(got-40) > 1e-9 {
		t.Errorf("rate = %v after sustained speed, want ceiling 40", got)
	}
}

func TestAdaptiveLimiter_EMA(t *testing.T) {
	l := NewAdaptiveLimiter(10, time.Second)
	if l.CurrentEMA() != time.Second {
		t.Fatalf("initial EMA = %v, want target", l.CurrentEMA())
	}

	l.ObserveRTT(2 * time.Second)
	// 0.2*2s + 0.8*1s
	if got := l.CurrentEMA(); got != 1200*time.Millisecond {
		t.Errorf("EMA = %v, want 1.2s", got)
	}

	l.ObserveRTT(0)
	if got := l.CurrentEMA(); got != 1200*time.Millisecond {
		t.Errorf("zero RTT changed EMA to %v", got)
	}
}

func TestAdaptiveLimiter_ConcurrentAccess(t *testing.T) {
	l := NewAdaptiveLimiter(100, 50*time.Millisecond)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				l.ObserveRTT(time.Duration(i*j) * time.Millisecond)
				_ = l.CurrentRate()
			}
		}()
	}
	wg.Wait()
}
