package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mwestby/authcore/otp/migrations"
)

// PostgresStore is the durable [Store] implementation. Codes survive process
// restarts, which the pure cache-based counters do not.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle opened with the pgx
// stdlib driver.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore opens a connection with the pgx stdlib driver and applies
// the embedded schema migrations.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	store := &PostgresStore{db: db}
	if err := store.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("otp migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO one_time_codes
			(id, email, code, type, expires_at, attempts, verified, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Email, record.Code, string(record.Type),
		record.ExpiresAt, record.Attempts, record.Verified,
		record.IPAddress, record.UserAgent, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) FindActive(ctx context.Context, email string, typ Type) (*Record, error) {
	query := `
		SELECT id, email, code, type, expires_at, attempts, verified, ip_address, user_agent, created_at
		FROM one_time_codes
		WHERE email = $1 AND type = $2 AND verified = false AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	record := &Record{}
	var typRaw string
	err := s.db.QueryRowContext(ctx, query, email, string(typ), time.Now()).Scan(
		&record.ID, &record.Email, &record.Code, &typRaw,
		&record.ExpiresAt, &record.Attempts, &record.Verified,
		&record.IPAddress, &record.UserAgent, &record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	record.Type = Type(typRaw)
	return record, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *Record) error {
	query := `
		UPDATE one_time_codes
		SET attempts = $2, verified = $3, expires_at = $4
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		record.ID, record.Attempts, record.Verified, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PurgeStale(ctx context.Context, email string, typ Type, maxAttempts int) error {
	query := `
		DELETE FROM one_time_codes
		WHERE email = $1 AND type = $2
		  AND (verified = true OR expires_at <= $3 OR attempts >= $4)`

	_, err := s.db.ExecContext(ctx, query, email, string(typ), time.Now(), maxAttempts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
