package core

import "time"

// BackoffPolicy computes the wait after a failed cycle:
// delay = min(Cap, Base * 2^min(failures, MaxExponent)).
// The exponent is clamped before shifting so the result cannot overflow.
type BackoffPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxExponent int
}

// DefaultBackoffPolicy starts at one second and never waits longer than 30 minutes.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        time.Second,
		Cap:         30 * time.Minute,
		MaxExponent: 16,
	}
}

// Delay returns the wait for the given number of prior consecutive failures.
func (p BackoffPolicy) Delay(failures int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if failures < 0 {
		failures = 0
	}
	exp := failures
	if p.MaxExponent >= 0 && exp > p.MaxExponent {
		exp = p.MaxExponent
	}
	if exp > 62 {
		exp = 62
	}

	d := p.Base << uint(exp)
	if d <= 0 || d > p.Cap || d>>uint(exp) != p.Base {
		return p.Cap
	}
	return d
}
