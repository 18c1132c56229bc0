package repository

import "context"

type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a database transaction and passes the
// backend-specific handle (pgx.Tx, *sql.Tx) to repositories through tx.
// Repositories MUST accept NoTX and fall back to their pool.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
