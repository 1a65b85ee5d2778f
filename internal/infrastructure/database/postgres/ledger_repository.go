package postgres

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	accountColumns = `id, actor_id, current_balance, created_at, updated_at`

	accountByActorSQL = `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE actor_id = $1`

	insertAccountSQL = `
        INSERT INTO ledger_accounts (actor_id, current_balance, created_at, updated_at)
        VALUES ($1, 0, NOW(), NOW())
        RETURNING ` + accountColumns

	lockAccountSQL = `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE actor_id = $1 FOR UPDATE`

	updateBalanceSQL = `UPDATE ledger_accounts SET current_balance = $1, updated_at = NOW() WHERE id = $2`

	insertLedgerTransactionSQL = `
        INSERT INTO ledger_transactions (account_id, txn_type, amount, balance_after, reference_type, reference_id,
            note, recorded_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING id, created_at`

	listLedgerTransactionsSQL = `
        SELECT id, account_id, txn_type, amount, balance_after, reference_type, reference_id, note, recorded_by, created_at
        FROM ledger_transactions
        WHERE account_id = $1
        ORDER BY id DESC
        LIMIT $2 OFFSET $3`

	sumLedgerTransactionsSQL = `
        SELECT COALESCE(SUM(amount) FILTER (WHERE txn_type = 'credit'), 0),
            COALESCE(SUM(amount) FILTER (WHERE txn_type = 'debit'), 0)
        FROM ledger_transactions
        WHERE account_id = $1`
)

type LedgerRepository struct {
	txRunner
}

var _ ledger.Repository = (*LedgerRepository)(nil)

func NewLedgerRepository(db DBPool, lockTimeout time.Duration, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{txRunner{db: db, lockTimeout: lockTimeout, logger: logger.With("component", "LedgerRepository")}}
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var a ledger.Account
	if err := row.Scan(&a.ID, &a.ActorID, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *LedgerRepository) GetAccountByActor(ctx context.Context, actorID int64) (acct *ledger.Account, err error) {
	startTime := time.Now()
	defer func() { observe("GetAccountByActor", startTime, err) }()

	acct, err = scanAccount(r.db.QueryRow(ctx, accountByActorSQL, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get ledger account", "actorID", actorID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return acct, nil
}

func (r *LedgerRepository) CreateAccount(ctx context.Context, actorID int64) (*ledger.Account, error) {
	acct, err := scanAccount(r.db.QueryRow(ctx, insertAccountSQL, actorID))
	if err != nil {
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Ledger account created in DB", "actorID", actorID, "accountID", acct.ID)
	return acct, nil
}

func (r *LedgerRepository) LockAccountInTx(ctx context.Context, tx pgx.Tx, actorID int64) (*ledger.Account, error) {
	acct, err := scanAccount(tx.QueryRow(ctx, lockAccountSQL, actorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no ledger account for actor %d", apperrors.ErrNotFound, actorID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock ledger account", "actorID", actorID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return acct, nil
}

func (r *LedgerRepository) UpdateBalanceInTx(ctx context.Context, tx pgx.Tx, accountID int64, balance decimal.Decimal) error {
	cmdTag, err := tx.Exec(ctx, updateBalanceSQL, balance, accountID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update balance", "accountID", accountID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("%w: balance update for account %d affected zero rows", apperrors.ErrDatabase, accountID)
	}
	return nil
}

func (r *LedgerRepository) InsertTransactionInTx(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction) error {
	err := tx.QueryRow(ctx, insertLedgerTransactionSQL, txn.AccountID, string(txn.Type), txn.Amount, txn.BalanceAfter,
		string(txn.ReferenceType), txn.ReferenceID, txn.Note, txn.RecordedBy).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert ledger transaction", "accountID", txn.AccountID, "error", err)
		return translateDBError(err, r.logger)
	}
	return nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID int64, limit, offset int) (txns []ledger.Transaction, err error) {
	startTime := time.Now()
	defer func() { observe("ListLedgerTransactions", startTime, err) }()

	rows, err := r.db.Query(ctx, listLedgerTransactionsSQL, accountID, limit, offset)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query ledger transactions", "accountID", accountID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	txns = make([]ledger.Transaction, 0)
	for rows.Next() {
		var t ledger.Transaction
		var typ, refType string
		if err = rows.Scan(&t.ID, &t.AccountID, &typ, &t.Amount, &t.BalanceAfter, &refType, &t.ReferenceID,
			&t.Note, &t.RecordedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		t.Type = ledger.TransactionType(typ)
		t.ReferenceType = ledger.ReferenceKind(refType)
		txns = append(txns, t)
	}
	if err = rows.Err(); err != nil {
		return nil, translateDBError(err, r.logger)
	}
	return txns, nil
}

func (r *LedgerRepository) SumTransactions(ctx context.Context, accountID int64) (credits, debits decimal.Decimal, err error) {
	if err = r.db.QueryRow(ctx, sumLedgerTransactionsSQL, accountID).Scan(&credits, &debits); err != nil {
		r.logger.ErrorContext(ctx, "Failed to sum ledger transactions", "accountID", accountID, "error", err)
		return decimal.Zero, decimal.Zero, translateDBError(err, r.logger)
	}
	return credits, debits, nil
}
