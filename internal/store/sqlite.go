package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository. ":memory:" opens a
// private in-memory database.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS otp_codes (
		otp_key TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_otp_expires ON otp_codes(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// PutOTP stores code, resetting attempts for the key.
func (s *SQLiteStore) PutOTP(ctx context.Context, code *domain.OTPCode) error {
	query := `
	INSERT INTO otp_codes (otp_key, code_hash, attempts, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(otp_key) DO UPDATE SET
		code_hash = excluded.code_hash,
		attempts = excluded.attempts,
		expires_at = excluded.expires_at,
		created_at = excluded.created_at`

	err := shared.RetrySQLite(ctx, retryAttempts, retryBase, func() error {
		_, err := s.db.ExecContext(ctx, query,
			code.Key, code.CodeHash, code.Attempts,
			code.ExpiresAt.UnixMilli(), code.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

// GetOTP returns the pending code for key.
func (s *SQLiteStore) GetOTP(ctx context.Context, key string) (*domain.OTPCode, error) {
	query := `SELECT otp_key, code_hash, attempts, expires_at, created_at FROM otp_codes WHERE otp_key = ?`

	var code domain.OTPCode
	var expiresAt, createdAt int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&code.Key, &code.CodeHash, &code.Attempts, &expiresAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan otp row: %w", err)
	}
	code.ExpiresAt = time.UnixMilli(expiresAt)
	code.CreatedAt = time.UnixMilli(createdAt)
	return &code, nil
}

// IncrementOTPAttempts bumps the attempt counter for key.
func (s *SQLiteStore) IncrementOTPAttempts(ctx context.Context, key string) (int, error) {
	var attempts int
	err := shared.RetrySQLite(ctx, retryAttempts, retryBase, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE otp_codes SET attempts = attempts + 1 WHERE otp_key = ? RETURNING attempts`, key,
		).Scan(&attempts)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return attempts, nil
}

// DeleteOTP removes the code for key.
func (s *SQLiteStore) DeleteOTP(ctx context.Context, key string) error {
	err := shared.RetrySQLite(ctx, retryAttempts, retryBase, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE otp_key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs removes every code whose expiry is at or before now.
func (s *SQLiteStore) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := shared.RetrySQLite(ctx, retryAttempts, retryBase, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at <= ?`, now.UnixMilli())
		if err != nil {
			return err
		}
		n, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return n, nil
}
