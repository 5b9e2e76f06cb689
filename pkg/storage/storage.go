// Package storage is the storage gateway: the only component in chatflow
// that issues SQL against Postgres. Every other package depends on the
// Gateway interface, never on *sql.DB directly, so the rest of the module
// stays testable without a live database.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fcamachol/chatflow/pkg/dberrors"
)

// Postgres error codes this gateway translates into dberrors classes.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Gateway is the storage gateway's query surface, split by concern across
// sibling files in this package (contacts.go, chats.go, messages.go, ...).
type Gateway struct {
	db *sql.DB
}

// New builds a Gateway over an already-migrated connection pool.
func New(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

// classify maps a raw driver error to a dberrors class for op.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return dberrors.NotFound(op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return dberrors.Conflict(op, err)
		case pgForeignKeyViolation:
			return dberrors.FKViolation(op, err)
		case pgCheckViolation:
			return dberrors.Permanent(op, err)
		}
	}
	return dberrors.Transient(op, err)
}
