package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists accounts and their append-only transaction log.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	GetAccountByActor(ctx context.Context, actorID int64) (*Account, error)

	// CreateAccount fails with apperrors.ErrAlreadyExists when the actor already has one.
	CreateAccount(ctx context.Context, actorID int64) (*Account, error)

	LockAccountInTx(ctx context.Context, tx pgx.Tx, actorID int64) (*Account, error)

	UpdateBalanceInTx(ctx context.Context, tx pgx.Tx, accountID int64, balance decimal.Decimal) error

	InsertTransactionInTx(ctx context.Context, tx pgx.Tx, txn *Transaction) error

	ListTransactions(ctx context.Context, accountID int64, limit, offset int) ([]Transaction, error)

	SumTransactions(ctx context.Context, accountID int64) (credits, debits decimal.Decimal, err error)
}
