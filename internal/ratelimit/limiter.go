// Package ratelimit paces outbound probes so audits stay polite to targets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter struct {
	limiter      *rate.Limiter
	requestDelay time.Duration
	lastRequest  map[string]time.Time
	mu           sync.Mutex
}

type Config struct {
	// RequestsPerSecond limits the global probe rate.
	RequestsPerSecond float64

	// BurstSize allows brief bursts above the rate limit.
	BurstSize int

	// MinDelay is the minimum delay between probes to the same host.
	MinDelay time.Duration
}

// DefaultConfig returns pacing suitable for auditing a production endpoint.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10.0,
		BurstSize:         5,
		MinDelay:          100 * time.Millisecond,
	}
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerSecond <= 0 {
		config = DefaultConfig()
	}
	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
		requestDelay: config.MinDelay,
		lastRequest:  make(map[string]time.Time),
	}
}

// Wait blocks until the limiter allows another probe.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitForHost enforces the global rate and a per-host minimum delay.
func (l *Limiter) WaitForHost(ctx context.Context, host string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastRequest[host]; ok {
		elapsed := time.Since(last)
		if elapsed < l.requestDelay {
			select {
			case <-time.After(l.requestDelay - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.lastRequest[host] = time.Now()
	return nil
}

// Allow reports whether a probe may proceed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
