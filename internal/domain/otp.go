package domain

import (
	"time"
)

// OTPCode is a one-time passcode waiting to be verified.
// Only the hash of the code is ever stored.
type OTPCode struct {
	Key       string    `json:"key"`
	CodeHash  string    `json:"-"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code is past its expiry at now.
func (c *OTPCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Remaining returns the time until the code expires.
// Returns 0 if the code has already expired.
func (c *OTPCode) Remaining(now time.Time) time.Duration {
	ttl := c.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
