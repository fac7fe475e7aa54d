package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS courses (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		price NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
		instructor_id BIGINT NOT NULL REFERENCES users(id),
		rating_avg DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating_count INT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS course_roster (
		course_id BIGINT NOT NULL REFERENCES courses(id),
		student_id BIGINT NOT NULL REFERENCES users(id),
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (course_id, student_id)
	);
	CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		provider_order_ref TEXT UNIQUE NOT NULL,
		provider_payment_ref TEXT,
		amount BIGINT NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL,
		receipt TEXT UNIQUE NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		failure_reason TEXT NOT NULL DEFAULT '',
		student_id BIGINT NOT NULL REFERENCES users(id),
		course_id BIGINT NOT NULL REFERENCES courses(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE UNIQUE INDEX IF NOT EXISTS orders_one_pending_per_pair
		ON orders (student_id, course_id) WHERE status = 'PENDING';
	CREATE TABLE IF NOT EXISTS enrollments (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES users(id),
		course_id BIGINT NOT NULL REFERENCES courses(id),
		order_id UUID NOT NULL REFERENCES orders(id),
		status TEXT NOT NULL DEFAULT 'active',
		progress INT NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
		rating INT CHECK (rating BETWEEN 1 AND 5),
		review TEXT,
		enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, course_id)
	);
	CREATE TABLE IF NOT EXISTS payment_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		provider_order_ref TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT '',
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'received',
		error TEXT NOT NULL DEFAULT '',
		attempts INT NOT NULL DEFAULT 1,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	ALTER TABLE payment_events ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW();`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgreStorage(ctx context.Context, DatabaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, DatabaseURI)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}

// InTx runs fn inside a transaction carried by the context, so storage calls
// made with that context join it. Nested calls reuse the outer transaction.
func (store *PostgresStorage) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := store.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (store *PostgresStorage) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return store.db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23505: уникальное ограничение нарушено
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
