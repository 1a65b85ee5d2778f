package postgres

import (
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var installmentRowColumns = []string{
	"id", "loan_id", "batch_id", "due_date", "installment_amount", "penalty_amount", "penalty_waived",
	"paid_amount", "total_due", "status", "payment_date", "created_at", "updated_at",
}

var (
	dueDate  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stampNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

func setupPaymentRepo(t *testing.T) (context.Context, *PaymentRepository, pgxmock.PgxPoolIface, pgx.Tx) {
	t.Helper()
	mockPool := newMockPool(t)
	repo := NewPaymentRepository(mockPool, 0, logger)
	tx := beginMockTx(t, mockPool, &repo.txRunner)
	return context.Background(), repo, mockPool, tx
}

func TestLockOutstandingInstallmentsForLoan(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()
	loanID := int64(7)

	mockPool.ExpectQuery(regexp.QuoteMeta(lockLoanInstallmentsSQL)).WithArgs(loanID).
		WillReturnRows(pgxmock.NewRows(installmentRowColumns).
			AddRow(int64(1), &loanID, nil, dueDate, decimal.NewFromInt(100), decimal.Zero, decimal.Zero,
				decimal.NewFromInt(40), decimal.NewFromInt(100), "partial", nil, stampNow, stampNow).
			AddRow(int64(2), &loanID, nil, dueDate.AddDate(0, 0, 1), decimal.NewFromInt(100), decimal.Zero, decimal.Zero,
				decimal.Zero, decimal.NewFromInt(100), "pending", nil, stampNow, stampNow))

	rows, err := repo.LockOutstandingInstallmentsInTx(ctx, tx, schedule.Target{Kind: schedule.TargetLoan, ID: loanID})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, schedule.StatusPartial, rows[0].Status)
	assert.Equal(t, schedule.Parent{Kind: schedule.ParentLoan, ID: loanID}, rows[0].Parent())
	assert.Nil(t, rows[0].BatchID)
	assert.True(t, rows[0].Outstanding().Equal(decimal.NewFromInt(60)))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLockOutstandingInstallmentsForCustomer(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()
	loanID, batchID := int64(7), int64(3)

	mockPool.ExpectQuery(regexp.QuoteMeta(lockCustomerInstallmentsSQL)).WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(installmentRowColumns).
			AddRow(int64(5), nil, &batchID, dueDate, decimal.NewFromInt(30), decimal.Zero, decimal.Zero,
				decimal.Zero, decimal.NewFromInt(30), "overdue", nil, stampNow, stampNow).
			AddRow(int64(9), &loanID, nil, dueDate, decimal.NewFromInt(10), decimal.Zero, decimal.Zero,
				decimal.Zero, decimal.NewFromInt(10), "pending", nil, stampNow, stampNow))

	rows, err := repo.LockOutstandingInstallmentsInTx(ctx, tx, schedule.Target{Kind: schedule.TargetCustomer, ID: 42})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, schedule.Parent{Kind: schedule.ParentBatch, ID: batchID}, rows[0].Parent())
	assert.Equal(t, schedule.Parent{Kind: schedule.ParentLoan, ID: loanID}, rows[1].Parent())
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLockOutstandingInstallmentsLockTimeout(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(lockBatchInstallmentsSQL)).WithArgs(int64(3)).
		WillReturnError(&pgconn.PgError{Code: pgLockNotAvailable})

	_, err := repo.LockOutstandingInstallmentsInTx(ctx, tx, schedule.Target{Kind: schedule.TargetBatch, ID: 3})

	assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
}

func TestGetTargetStatusInTx(t *testing.T) {
	t.Run("loan not found", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()
		mockPool.ExpectQuery(regexp.QuoteMeta(loanStatusSQL)).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetTargetStatusInTx(ctx, tx, schedule.Target{Kind: schedule.TargetLoan, ID: 7})

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("closed batch", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()
		mockPool.ExpectQuery(regexp.QuoteMeta(batchStatusSQL)).WithArgs(int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("closed"))

		status, err := repo.GetTargetStatusInTx(ctx, tx, schedule.Target{Kind: schedule.TargetBatch, ID: 3})

		require.NoError(t, err)
		assert.Equal(t, schedule.ParentClosed, status)
	})

	t.Run("customer without loans", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()
		mockPool.ExpectQuery(regexp.QuoteMeta(customerStatusSQL)).WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"owned", "open"}).AddRow(0, 0))

		_, err := repo.GetTargetStatusInTx(ctx, tx, schedule.Target{Kind: schedule.TargetCustomer, ID: 42})

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("customer with everything closed", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()
		mockPool.ExpectQuery(regexp.QuoteMeta(customerStatusSQL)).WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"owned", "open"}).AddRow(3, 0))

		status, err := repo.GetTargetStatusInTx(ctx, tx, schedule.Target{Kind: schedule.TargetCustomer, ID: 42})

		require.NoError(t, err)
		assert.Equal(t, schedule.ParentClosed, status)
	})
}

func TestUpdateInstallmentInTx(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()
	paidAt := stampNow
	inst := &schedule.Installment{ID: 1, PaidAmount: decimal.NewFromInt(100), PenaltyWaived: decimal.Zero,
		Status: schedule.StatusPaid, PaymentDate: &paidAt}

	mockPool.ExpectExec(regexp.QuoteMeta(updateInstallmentSQL)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "paid", &paidAt, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(regexp.QuoteMeta(updateInstallmentSQL)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "paid", &paidAt, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.NoError(t, repo.UpdateInstallmentInTx(ctx, tx, inst))
	assert.ErrorIs(t, repo.UpdateInstallmentInTx(ctx, tx, inst), apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCountUnpaidInstallmentsInTx(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(countUnpaidBatchSQL)).WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountUnpaidInstallmentsInTx(ctx, tx, schedule.Parent{Kind: schedule.ParentBatch, ID: 3})

	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCloseParentInTx(t *testing.T) {
	t.Run("batch closes its tokens too", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(closeBatchSQL)).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec(regexp.QuoteMeta(closeBatchLoansSQL)).WithArgs(int64(3)).WillReturnResult(pgxmock.NewResult("UPDATE", 4))

		require.NoError(t, repo.CloseParentInTx(ctx, tx, schedule.Parent{Kind: schedule.ParentBatch, ID: 3}))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("loan", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()

		mockPool.ExpectExec(regexp.QuoteMeta(closeLoanSQL)).WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.CloseParentInTx(ctx, tx, schedule.Parent{Kind: schedule.ParentLoan, ID: 7}))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("unknown kind", func(t *testing.T) {
		ctx, repo, mockPool, tx := setupPaymentRepo(t)
		defer mockPool.Close()

		err := repo.CloseParentInTx(ctx, tx, schedule.Parent{Kind: "customer", ID: 7})
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestInsertPaymentRecordsInTxEmpty(t *testing.T) {
	ctx, repo, mockPool, tx := setupPaymentRepo(t)
	defer mockPool.Close()

	saved, err := repo.InsertPaymentRecordsInTx(ctx, tx, nil)

	assert.NoError(t, err)
	assert.Empty(t, saved)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetPaymentsByReceipt(t *testing.T) {
	mockPool := newMockPool(t)
	defer mockPool.Close()
	repo := NewPaymentRepository(mockPool, 0, logger)
	receiptID := uuid.New()
	loanID := int64(7)

	mockPool.ExpectQuery(regexp.QuoteMeta(paymentsByReceiptSQL)).WithArgs(receiptID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "receipt_id", "installment_id", "loan_id", "batch_id", "amount",
			"penalty_waived", "mode", "payment_date", "recorded_by", "remarks", "created_at"}).
			AddRow(int64(1), receiptID, int64(11), &loanID, nil, decimal.NewFromInt(100), decimal.Zero,
				"mobile_money", stampNow, int64(5), "", stampNow))

	records, err := repo.GetPaymentsByReceipt(context.Background(), receiptID)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, payment.ModeMobileMoney, records[0].Mode)
	assert.Equal(t, receiptID, records[0].ReceiptID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
