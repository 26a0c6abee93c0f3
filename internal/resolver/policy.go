package resolver

import (
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds the retries spent on one page request.
type Policy struct {
	// MaxAttempts is the number of tries per page, the first included.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// EmptyIsNotFound treats a first page that stays empty after every
	// attempt as a missing organization.
	EmptyIsNotFound bool

	// EmptyAttempts caps the tries spent on an empty first page, and
	// EmptyBackoff is the fixed wait between them. Zero retries at once.
	EmptyAttempts int
	EmptyBackoff  time.Duration
}

// DefaultPolicy returns the defaults used when no policy is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     10,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      2 * time.Minute,
		Multiplier:      2.0,
		EmptyIsNotFound: true,
		EmptyAttempts:   3,
		EmptyBackoff:    250 * time.Millisecond,
	}
}

// withDefaults fills zero fields from DefaultPolicy. EmptyIsNotFound is
// taken as given.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()

	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}

	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}

	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}

	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}

	if p.EmptyAttempts <= 0 || p.EmptyAttempts > p.MaxAttempts {
		p.EmptyAttempts = min(d.EmptyAttempts, p.MaxAttempts)
	}

	if p.EmptyBackoff < 0 {
		p.EmptyBackoff = 0
	}

	return p
}

// backoff computes exponential backoff with jitter for the given zero-based
// retry number.
func (p Policy) backoff(retry int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(retry))

	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Add jitter (10%)
	jitter := backoff * 0.1 * (rand.Float64()*2 - 1)
	backoff += jitter

	return time.Duration(backoff)
}

// cap limits a server-provided wait to MaxBackoff.
func (p Policy) cap(wait time.Duration) time.Duration {
	if wait > p.MaxBackoff {
		return p.MaxBackoff
	}

	if wait < 0 {
		return 0
	}

	return wait
}
