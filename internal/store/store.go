// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/parley/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository persists one-time passcodes.
type Repository interface {
	// PutOTP stores code, replacing any pending code for the same key.
	PutOTP(ctx context.Context, code *domain.OTPCode) error

	// GetOTP returns the pending code for key, or ErrNotFound.
	GetOTP(ctx context.Context, key string) (*domain.OTPCode, error)

	// IncrementOTPAttempts bumps the failed-attempt counter and returns the new value.
	IncrementOTPAttempts(ctx context.Context, key string) (int, error)

	// DeleteOTP removes the code for key. Deleting a missing key is not an error.
	DeleteOTP(ctx context.Context, key string) error

	// DeleteExpiredOTPs removes codes that expired before now.
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
