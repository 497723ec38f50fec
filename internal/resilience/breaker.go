package resilience

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrOpenCircuit indicates the breaker is open and calls are being shed.
var ErrOpenCircuit = errors.New("resilience: circuit open")

// Breaker is a simple failure-counting circuit breaker. After Threshold
// consecutive failures it opens for Cooldown, then lets a single half-open
// probe through.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker constructs a breaker with the given trip threshold and cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	if cooldown <= 0 {
		cooldown = time.Second
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown}
}

func (b *Breaker) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.Threshold {
		return true
	}
	if b.clock().Sub(b.openedAt) < b.Cooldown {
		return false
	}
	// half-open: admit one probe at a time
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Report records the outcome of a call admitted by Allow.
func (b *Breaker) Report(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.Threshold {
		b.openedAt = b.clock()
	}
}

// Backoff computes the sleep before the given retry attempt (1-based),
// doubling per attempt with up to jitter fraction of randomisation.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if jitter > 0 {
		d += time.Duration(rand.Float64() * jitter * float64(d))
	}
	return d
}
