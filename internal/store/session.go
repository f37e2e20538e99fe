// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrSkip signals that a session's unit of work opted out for this
// entry. RunInSession rolls back the session but does not treat this
// as failure.
var ErrSkip = errors.New("store: skip")

// SessionRunner is the narrow surface callers outside this package
// depend on, so stage and executor tests can substitute a fake
// session source instead of a live database connection.
type SessionRunner interface {
	RunInSession(ctx context.Context, fn func(*Session) error) error
}

// SessionFactory is the sole entry point to the database. Every unit
// of work takes a fresh Session; sessions are never shared across
// stages.
type SessionFactory struct {
	db *sql.DB
}

// Open connects to the relational store at dsn using the pgx driver.
func Open(dsn string) (*SessionFactory, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	return &SessionFactory{db: db}, nil
}

// NewFactory wraps an already-open *sql.DB, used by tests against a
// local or containerized Postgres instance.
func NewFactory(db *sql.DB) *SessionFactory {
	return &SessionFactory{db: db}
}

// Close releases the underlying connection pool.
func (f *SessionFactory) Close() error {
	return f.db.Close()
}

// DB exposes the underlying pool for schema creation.
func (f *SessionFactory) DB() *sql.DB {
	return f.db
}

// Session is a scoped, transactional unit of work. It commits on
// clean exit, rolls back on any error (including ErrSkip), and always
// closes.
type Session struct {
	Tx  *sql.Tx
	ctx context.Context
}

// Begin opens a new transactional session.
func (f *SessionFactory) Begin(ctx context.Context) (*Session, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: beginning session: %w", err)
	}
	return &Session{Tx: tx, ctx: ctx}, nil
}

// Commit finalizes the session's writes.
func (s *Session) Commit() error {
	return s.Tx.Commit()
}

// Rollback discards the session's writes. Safe to call after Commit
// has already succeeded (returns sql.ErrTxDone, which callers ignore).
func (s *Session) Rollback() error {
	return s.Tx.Rollback()
}

// Context returns the context the session was opened with.
func (s *Session) Context() context.Context {
	return s.ctx
}

// RunInSession opens a session, runs fn, and commits on a nil return
// or rolls back otherwise. A fn that returns ErrSkip still rolls back
// but RunInSession passes ErrSkip through unwrapped so callers can
// distinguish a controlled skip from a hard failure.
func (f *SessionFactory) RunInSession(ctx context.Context, fn func(*Session) error) error {
	sess, err := f.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(sess); err != nil {
		_ = sess.Rollback()
		return err
	}

	if err := sess.Commit(); err != nil {
		return fmt.Errorf("store: committing session: %w", err)
	}
	return nil
}
