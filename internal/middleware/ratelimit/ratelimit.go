// Package ratelimit caps per-client request rates. Receipt uploads cost a
// vision-model call each, so the limiter mainly protects the upstream
// Gemini quota from a single noisy client.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	mu   sync.Mutex
	seen map[string]*window
	stop chan struct{}
	once sync.Once

	perMinute     int
	sweepInterval time.Duration
}

// window is a fixed one-minute counting window per client IP.
type window struct {
	start time.Time
	count int
}

type Config struct {
	RequestsPerMinute int
	SweepInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		SweepInterval:     5 * time.Minute,
	}
}

func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}

	l := &Limiter{
		seen:          make(map[string]*window),
		stop:          make(chan struct{}),
		perMinute:     cfg.RequestsPerMinute,
		sweepInterval: cfg.SweepInterval,
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether a request from clientIP fits in its current
// one-minute window.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.seen[clientIP]
	if !ok || now.Sub(w.start) > time.Minute {
		l.seen[clientIP] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.perMinute
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops clients idle for more than ten minutes.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, w := range l.seen {
		if w.start.Before(cutoff) {
			delete(l.seen, ip)
		}
	}
}

// ActiveClients returns the number of currently tracked clients.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// Stop halts the background sweep. Safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
