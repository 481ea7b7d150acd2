// Package circuit implements the per-queue Circuit Breaker described in
// spec §4.6/§4.16: CLOSED permits traffic, OPEN rejects until a cooldown
// elapses, HALF_OPEN permits exactly one probe before deciding to close or
// reopen.
package circuit

import (
	"sync"
	"time"
)

// State is one of the breaker's three states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Change reports what transition, if any, a RecordFailure/RecordSuccess
// call caused.
type Change struct {
	Opened bool
	Closed bool
}

// Breaker is a single named circuit breaker instance; callers hold one per
// queue (spec §4.6).
type Breaker struct {
	name string

	mu sync.Mutex

	failureThreshold float64 // ratio in [0,1]; CLOSED opens when met
	minSamples       int     // minimum window fill before the ratio is evaluated
	successThreshold int     // consecutive HALF_OPEN successes required to close
	cooldown         time.Duration
	now              func() time.Time

	state State

	// window is a ring buffer of the last len(window) outcomes in CLOSED
	// state (true = failure), per spec §4.6 bullet 6. windowLen counts how
	// many slots are populated so far (<= len(window)); failCount is the
	// number of failures currently held in the window.
	window    []bool
	windowPos int
	windowLen int
	failCount int

	consecutiveOK    int
	openedAt         time.Time
	halfOpenInFlight bool
}

// Option configures a Breaker at construction time.
type Option func(*Breaker)

// WithFailureThreshold sets the failure ratio (0.0-1.0) that, once the
// sliding window holds at least minSamples outcomes, opens the breaker.
func WithFailureThreshold(ratio float64) Option {
	return func(b *Breaker) { b.failureThreshold = ratio }
}

// WithMinSamples sets the minimum number of sliding-window outcomes
// required before the failure ratio is evaluated, so a single early
// failure can't trip the breaker on an empty window.
func WithMinSamples(n int) Option {
	return func(b *Breaker) { b.minSamples = n }
}

// WithWindowSize sets how many of the most recent CLOSED-state outcomes
// the breaker retains when computing its failure ratio.
func WithWindowSize(n int) Option {
	return func(b *Breaker) { b.window = make([]bool, n) }
}

// WithSuccessThreshold sets the number of consecutive HALF_OPEN successes
// required to close the breaker.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) { b.successThreshold = n }
}

// WithCooldown sets how long the breaker stays OPEN before allowing a single
// HALF_OPEN probe.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) { b.cooldown = d }
}

// withClock overrides the time source; used by tests.
func withClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

const (
	defaultFailureThreshold = 0.5
	defaultMinSamples       = 5
	defaultWindowSize       = 10
	defaultSuccessThreshold = 1
	defaultCooldown         = 30 * time.Second
)

// New constructs a Breaker named name with the given options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		minSamples:       defaultMinSamples,
		window:           make([]bool, defaultWindowSize),
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// recordOutcomeLocked pushes failed into the sliding window, evicting the
// oldest sample once the window is full, and keeps failCount in sync so
// the failure ratio can be read in O(1).
func (b *Breaker) recordOutcomeLocked(failed bool) {
	if b.windowLen < len(b.window) {
		b.window[b.windowPos] = failed
		if failed {
			b.failCount++
		}
		b.windowLen++
	} else {
		evicted := b.window[b.windowPos]
		if evicted {
			b.failCount--
		}
		b.window[b.windowPos] = failed
		if failed {
			b.failCount++
		}
	}
	b.windowPos = (b.windowPos + 1) % len(b.window)
}

// resetWindowLocked clears the sliding window, used whenever the breaker
// enters a new state so stale samples from before the transition don't
// influence the next evaluation period.
func (b *Breaker) resetWindowLocked() {
	b.windowPos = 0
	b.windowLen = 0
	b.failCount = 0
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the breaker's current state, resolving an elapsed cooldown
// into a HALF_OPEN probe window as a side effect.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpenLocked()
	return b.state
}

// IsOpen reports whether the breaker currently rejects calls: true in OPEN,
// false in CLOSED or HALF_OPEN (HALF_OPEN permits exactly one probe, gated
// by Allow, not by IsOpen).
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpenLocked()
	return b.state == StateOpen
}

// Allow reports whether the caller may proceed: always true when CLOSED,
// false when OPEN (cooldown not yet elapsed), and true for exactly one
// caller at a time when HALF_OPEN — subsequent callers are rejected until
// the probe's outcome is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpenLocked()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	default: // StateOpen
		return false
	}
}

func (b *Breaker) maybeEnterHalfOpenLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
		b.consecutiveOK = 0
		b.halfOpenInFlight = false
	}
}

// RecordFailure reports a failed call outcome. In CLOSED it feeds the
// sliding window and opens once the failure ratio reaches failureThreshold
// with at least minSamples outcomes recorded (spec §4.6 bullet 6); in
// HALF_OPEN any failure reopens immediately.
func (b *Breaker) RecordFailure() (useFallback bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpenLocked()

	switch b.state {
	case StateHalfOpen:
		b.openLocked()
		return true, Change{Opened: true}
	case StateOpen:
		return true, Change{}
	default: // StateClosed
		b.recordOutcomeLocked(true)
		if b.windowLen >= b.minSamples && b.failureRatioLocked() >= b.failureThreshold {
			b.openLocked()
			return true, Change{Opened: true}
		}
		return false, Change{}
	}
}

func (b *Breaker) failureRatioLocked() float64 {
	if b.windowLen == 0 {
		return 0
	}
	return float64(b.failCount) / float64(b.windowLen)
}

// RecordSuccess reports a successful call outcome. In CLOSED it feeds the
// sliding window; in HALF_OPEN it accumulates toward successThreshold and
// closes the breaker once reached.
func (b *Breaker) RecordSuccess() (usePrimary bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeEnterHalfOpenLocked()

	switch b.state {
	case StateHalfOpen:
		b.consecutiveOK++
		b.halfOpenInFlight = false
		if b.consecutiveOK >= b.successThreshold {
			b.closeLocked()
			return true, Change{Closed: true}
		}
		return false, Change{}
	case StateOpen:
		return false, Change{}
	default: // StateClosed
		b.recordOutcomeLocked(false)
		return true, Change{}
	}
}

// Reset forces the breaker back to CLOSED, clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Breaker) openLocked() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.resetWindowLocked()
	b.consecutiveOK = 0
	b.halfOpenInFlight = false
}

func (b *Breaker) closeLocked() {
	b.state = StateClosed
	b.resetWindowLocked()
	b.consecutiveOK = 0
	b.halfOpenInFlight = false
}
