package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 5 * time.Minute
)

// AttemptLimiter counts failed verification attempts per key over a sliding
// window. Once a key has MaxAttempts failures inside the window, Allow
// refuses it until the oldest failure ages out.
type AttemptLimiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	failures map[string][]time.Time

	stop chan struct{}
	once sync.Once
}

type AttemptOption func(*AttemptLimiter)

// WithAttemptClock replaces time.Now, for tests.
func WithAttemptClock(now func() time.Time) AttemptOption {
	return func(l *AttemptLimiter) {
		l.now = now
	}
}

// WithCleanupInterval starts a janitor that drops keys whose failures have
// all expired. Call Close to stop it.
func WithCleanupInterval(interval time.Duration) AttemptOption {
	return func(l *AttemptLimiter) {
		if interval > 0 {
			go l.cleanup(interval)
		}
	}
}

func NewAttemptLimiter(maxAttempts int, window time.Duration, opts ...AttemptOption) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &AttemptLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		failures:    make(map[string][]time.Time),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether key may attempt a verification now. When it may
// not, the second value is how long until the next attempt is allowed.
func (l *AttemptLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(key, now)
	if len(recent) < l.maxAttempts {
		return true, 0
	}
	return false, recent[0].Add(l.window).Sub(now)
}

// RecordFailure counts one failed attempt for key.
func (l *AttemptLimiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.failures[key] = append(l.prune(key, now), now)
}

// Reset forgets every failure for key.
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
}

// Failures returns the number of failures for key inside the window.
func (l *AttemptLimiter) Failures(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key, l.now()))
}

// Close stops the janitor goroutine, if any.
func (l *AttemptLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// prune drops failures older than the window. Caller holds mu.
func (l *AttemptLimiter) prune(key string, now time.Time) []time.Time {
	times := l.failures[key]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	times = times[i:]
	if len(times) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = times
	return times
}

func (l *AttemptLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key := range l.failures {
				l.prune(key, now)
			}
			l.mu.Unlock()
		}
	}
}
