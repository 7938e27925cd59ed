package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/homeledger/internal/usecase"
)

// DBTX is the query surface shared by pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txConn unwraps the pgx transaction behind a usecase.Transaction.
func txConn(tx usecase.Transaction) DBTX {
	return tx.(*Tx).PgxTx()
}

// notFound maps pgx.ErrNoRows to the domain error of the queried table.
func notFound(err, domainErr error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domainErr
	}
	return err
}

// expectOne reports domainErr when an UPDATE or DELETE touched nothing.
func expectOne(tag pgconn.CommandTag, err, domainErr error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErr
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// dateOnly strips the clock so DATE columns round-trip without drift.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
