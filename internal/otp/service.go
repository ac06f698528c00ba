// Package otp issues and verifies short-lived email passcodes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/observability/metrics"
	"github.com/ashureev/parley/internal/store"
)

// Defaults for issued codes.
const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
	CodeLength         = 6
)

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidCode      = errors.New("invalid code")
	ErrCodeNotFound     = errors.New("no pending code")
	ErrCodeExpired      = errors.New("code expired")
	ErrTooManyAttempts  = errors.New("too many attempts")
	errMalformedCodeArg = errors.New("code must be 6 digits")
)

// Sender delivers a code to the learner.
type Sender interface {
	Send(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogSender writes codes to the log. With Redact set only the delivery is
// logged, never the code.
type LogSender struct {
	Logger *slog.Logger
	Redact bool
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, email, code string, expiresAt time.Time) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if s.Redact {
		logger.Info("OTP issued (log sender, redacted)", "email", email, "expires_at", expiresAt)
		return nil
	}
	logger.Info("OTP issued (log sender)", "email", email, "code", code, "expires_at", expiresAt)
	return nil
}

// Config tunes a Service.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
}

// Service issues and checks codes against a Repository.
type Service struct {
	repo        store.Repository
	sender      Sender
	ttl         time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	random      io.Reader
}

// NewService creates an OTP service. Zero config values take the defaults.
func NewService(repo store.Repository, sender Sender, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Service{
		repo:        repo,
		sender:      sender,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		random:      rand.Reader,
	}
}

// Issue creates a new code for email, replacing any pending one, and sends it.
func (s *Service) Issue(ctx context.Context, email string) (time.Time, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return time.Time{}, err
	}
	code, err := s.generate()
	if err != nil {
		return time.Time{}, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	rec := &domain.OTPCode{
		Key:       key,
		CodeHash:  hashCode(key, code),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.PutOTP(ctx, rec); err != nil {
		return time.Time{}, err
	}
	if err := s.sender.Send(ctx, key, code, rec.ExpiresAt); err != nil {
		_ = s.repo.DeleteOTP(ctx, key)
		return time.Time{}, fmt.Errorf("send code: %w", err)
	}
	s.metrics.OTPIssued.Inc()
	return rec.ExpiresAt, nil
}

// Verify checks code for email. A correct code is consumed.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	err := s.verify(ctx, email, code)
	s.metrics.RecordOTPVerification(verifyResult(err))
	return err
}

func (s *Service) verify(ctx context.Context, email, code string) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if !validCode(code) {
		return fmt.Errorf("%w: %v", ErrInvalidCode, errMalformedCodeArg)
	}

	rec, err := s.repo.GetOTP(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}

	if rec.Expired(s.now()) {
		_ = s.repo.DeleteOTP(ctx, key)
		return ErrCodeExpired
	}
	if rec.Attempts >= s.maxAttempts {
		_ = s.repo.DeleteOTP(ctx, key)
		return ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(key, code)), []byte(rec.CodeHash)) == 1 {
		if err := s.repo.DeleteOTP(ctx, key); err != nil {
			return err
		}
		return nil
	}

	attempts, err := s.repo.IncrementOTPAttempts(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if attempts >= s.maxAttempts {
		_ = s.repo.DeleteOTP(ctx, key)
		s.logger.Warn("OTP locked after failed attempts", "email", key, "attempts", attempts)
		return ErrTooManyAttempts
	}
	return ErrInvalidCode
}

func (s *Service) generate() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(s.random, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrTooManyAttempts):
		return "locked"
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidEmail):
		return "invalid"
	default:
		return "error"
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hashCode(key, code string) string {
	sum := sha256.Sum256([]byte(key + ":" + code))
	return hex.EncodeToString(sum[:])
}
