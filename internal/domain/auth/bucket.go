package auth

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultBucketRate and DefaultBucketBurst match the reference's
// implicit per-attempt throttle: a handful of attempts per second,
// bursting briefly to absorb a multi-slot flood without permanently
// blocking legitimate reconnects.
const (
	DefaultBucketRate  = 2 // tokens/sec
	DefaultBucketBurst = 5
)

// TokenBucket limits the total number of authentication attempts
// accepted per unit time, independent of which slot or client
// generates them.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket returns a TokenBucket refilling at r tokens/sec up to
// a cap of burst.
func NewTokenBucket(r float64, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

// NewDefaultTokenBucket returns a TokenBucket configured with the
// package's default rate and burst.
func NewDefaultTokenBucket() *TokenBucket {
	return NewTokenBucket(DefaultBucketRate, DefaultBucketBurst)
}

// Allow consumes one token if available and reports whether the
// attempt may proceed. It never blocks.
func (b *TokenBucket) Allow() bool {
	return b.limiter.AllowN(time.Now(), 1)
}
