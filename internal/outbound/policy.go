package outbound

import "time"

// Policy bounds retries and per-attempt latency.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Timeout:     30 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	defaults := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaults.MaxDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = defaults.Timeout
	}
	return p
}

// Backoff is the sleep after the given failed attempt (1-based):
// BaseDelay × 2^(attempt−1), capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// WorstCaseLatency is the longest Execute can take when every attempt runs to
// its timeout: MaxAttempts × Timeout plus the backoff between attempts.
// With the defaults that is 3×30s + 1s + 2s = 93s.
func (p Policy) WorstCaseLatency() time.Duration {
	p = p.normalized()
	total := time.Duration(p.MaxAttempts) * p.Timeout
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		total += p.Backoff(attempt)
	}
	return total
}
