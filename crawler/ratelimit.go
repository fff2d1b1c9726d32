package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// emaAlpha is the smoothing factor for the RTT moving average.
	// 0.2 gives ~20% weight to a new observation.
	emaAlpha = 0.2

	// recoveryFactor raises the rate by 10% per fast response.
	recoveryFactor = 1.1

	// backoffFactor caps a single slowdown at halving the rate.
	backoffFactor = 0.5

	// rangeFactor bounds adaptation to [configured/4, configured*4].
	rangeFactor = 4.0

	// defaultTargetRTT is the response time the limiter steers towards.
	defaultTargetRTT = 500 * time.Millisecond
)

// AdaptiveLimiter is a requests-per-second limiter that slows down when the
// site responds slower than the target RTT and speeds back up when it
// recovers. A nil *AdaptiveLimiter imposes no limit.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration

	mu          sync.Mutex
	emaRTT      time.Duration
	currentRate float64
	floor       float64
	ceiling     float64
}

// NewAdaptiveLimiter returns a limiter starting at rps requests per second.
// A non-positive rps disables limiting and returns nil.
func NewAdaptiveLimiter(rps float64, targetRTT time.Duration) *AdaptiveLimiter {
	if rps <= 0 {
		return nil
	}
	if targetRTT <= 0 {
		targetRTT = defaultTargetRTT
	}
	initial := rps
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(initial), burstFor(initial)),
		targetRTT:   targetRTT,
		emaRTT:      targetRTT,
		currentRate: initial,
		floor:       math.Min(initial, math.Max(initial/rangeFactor, 0.5)),
		ceiling:     initial * rangeFactor,
	}
}

// Wait blocks until the next request is allowed or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	if a == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

// ObserveRTT folds a response time into the moving average and adjusts the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	if a == nil || rtt <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))

	ratio := float64(a.targetRTT) / float64(a.emaRTT)
	var next float64
	if ratio < 1 {
		next = math.Max(a.currentRate*ratio, a.currentRate*backoffFactor)
	} else {
		next = a.currentRate * recoveryFactor
	}
	next = math.Min(math.Max(next, a.floor), a.ceiling)

	if math.Abs(next-a.currentRate) > 0.1 {
		a.currentRate = next
		a.limiter.SetLimit(rate.Limit(next))
		a.limiter.SetBurst(burstFor(next))
	}
}

// CurrentRate returns the current limit in requests per second.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	if a == nil {
		return math.Inf(1)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// CurrentEMA returns the moving average of observed RTTs.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emaRTT
}

func burstFor(rps float64) int {
	return max(1, int(math.Ceil(rps)))
}
