package postgres

import (
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	lockLoanInstallmentsSQL = `
        SELECT ` + installmentColumns + `
        FROM installments
        WHERE loan_id = $1 AND status IN ('pending', 'partial', 'overdue')
        ORDER BY due_date ASC, id ASC
        FOR UPDATE`

	lockBatchInstallmentsSQL = `
        SELECT ` + installmentColumns + `
        FROM installments
        WHERE batch_id = $1 AND status IN ('pending', 'partial', 'overdue')
        ORDER BY due_date ASC, id ASC
        FOR UPDATE`

	lockCustomerInstallmentsSQL = `
        SELECT i.id, i.loan_id, i.batch_id, i.due_date, i.installment_amount, i.penalty_amount, i.penalty_waived,
            i.paid_amount, i.total_due, i.status, i.payment_date, i.created_at, i.updated_at
        FROM installments i
        LEFT JOIN loans l ON l.id = i.loan_id
        LEFT JOIN batches b ON b.id = i.batch_id
        WHERE (l.customer_id = $1 OR b.customer_id = $1) AND i.status IN ('pending', 'partial', 'overdue')
        ORDER BY i.due_date ASC, i.id ASC
        FOR UPDATE OF i`

	loanStatusSQL  = `SELECT status FROM loans WHERE id = $1`
	batchStatusSQL = `SELECT status FROM batches WHERE id = $1`

	customerStatusSQL = `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE status <> 'closed')
        FROM (
            SELECT status FROM loans WHERE customer_id = $1 AND batch_id IS NULL
            UNION ALL
            SELECT status FROM batches WHERE customer_id = $1
        ) owned`

	updateInstallmentSQL = `
        UPDATE installments
        SET paid_amount = $1, penalty_waived = $2, status = $3, payment_date = $4, updated_at = NOW()
        WHERE id = $5`

	insertPaymentSQL = `
        INSERT INTO payments (receipt_id, installment_id, loan_id, batch_id, amount, penalty_waived, mode,
            payment_date, recorded_by, remarks, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        RETURNING id, created_at`

	countUnpaidLoanSQL  = `SELECT COUNT(*) FROM installments WHERE loan_id = $1 AND status <> 'paid'`
	countUnpaidBatchSQL = `SELECT COUNT(*) FROM installments WHERE batch_id = $1 AND status <> 'paid'`

	closeLoanSQL       = `UPDATE loans SET status = 'closed', updated_at = NOW() WHERE id = $1 AND status <> 'closed'`
	closeBatchSQL      = `UPDATE batches SET status = 'closed', updated_at = NOW() WHERE id = $1 AND status <> 'closed'`
	closeBatchLoansSQL = `UPDATE loans SET status = 'closed', updated_at = NOW() WHERE batch_id = $1 AND status <> 'closed'`

	paymentsByReceiptSQL = `
        SELECT id, receipt_id, installment_id, loan_id, batch_id, amount, penalty_waived, mode,
            payment_date, recorded_by, remarks, created_at
        FROM payments
        WHERE receipt_id = $1
        ORDER BY id ASC`
)

// PaymentRepository stores installment mutations and payment rows for the allocator.
type PaymentRepository struct {
	txRunner
}

var _ payment.Repository = (*PaymentRepository)(nil)

func NewPaymentRepository(db DBPool, lockTimeout time.Duration, logger *slog.Logger) *PaymentRepository {
	return &PaymentRepository{txRunner{db: db, lockTimeout: lockTimeout, logger: logger.With("component", "PaymentRepository")}}
}

func (r *PaymentRepository) LockOutstandingInstallmentsInTx(ctx context.Context, tx pgx.Tx, target schedule.Target) (installments []schedule.Installment, err error) {
	startTime := time.Now()
	defer func() { observe("LockOutstandingInstallments", startTime, err) }()

	var query string
	switch target.Kind {
	case schedule.TargetLoan:
		query = lockLoanInstallmentsSQL
	case schedule.TargetBatch:
		query = lockBatchInstallmentsSQL
	case schedule.TargetCustomer:
		query = lockCustomerInstallmentsSQL
	default:
		return nil, fmt.Errorf("%w: unknown target kind %q", apperrors.ErrInvalidArgument, target.Kind)
	}

	rows, err := tx.Query(ctx, query, target.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock outstanding installments", "target", target.String(), "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	installments = make([]schedule.Installment, 0)
	for rows.Next() {
		inst, scanErr := scanInstallment(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan installment row", "target", target.String(), "error", scanErr)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, scanErr)
		}
		installments = append(installments, inst)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating installment rows", "target", target.String(), "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return installments, nil
}

func (r *PaymentRepository) GetTargetStatusInTx(ctx context.Context, tx pgx.Tx, target schedule.Target) (schedule.ParentStatus, error) {
	if target.Kind == schedule.TargetCustomer {
		var owned, open int
		if err := tx.QueryRow(ctx, customerStatusSQL, target.ID).Scan(&owned, &open); err != nil {
			r.logger.ErrorContext(ctx, "Failed to read customer status", "customerID", target.ID, "error", err)
			return "", translateDBError(err, r.logger)
		}
		switch {
		case owned == 0:
			return "", apperrors.ErrNotFound
		case open == 0:
			return schedule.ParentClosed, nil
		default:
			return schedule.ParentActive, nil
		}
	}

	query, err := byParent(schedule.Parent{Kind: schedule.ParentKind(target.Kind), ID: target.ID}, loanStatusSQL, batchStatusSQL)
	if err != nil {
		return "", err
	}
	var status string
	if err = tx.QueryRow(ctx, query, target.ID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to read target status", "target", target.String(), "error", err)
		return "", translateDBError(err, r.logger)
	}
	return schedule.ParentStatus(status), nil
}

func (r *PaymentRepository) UpdateInstallmentInTx(ctx context.Context, tx pgx.Tx, inst *schedule.Installment) error {
	cmdTag, err := tx.Exec(ctx, updateInstallmentSQL, inst.PaidAmount, inst.PenaltyWaived, string(inst.Status), inst.PaymentDate, inst.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update installment", "installmentID", inst.ID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Installment update affected zero rows", "installmentID", inst.ID)
		return fmt.Errorf("%w: installment %d update affected zero rows", apperrors.ErrDatabase, inst.ID)
	}
	return nil
}

func (r *PaymentRepository) InsertPaymentRecordsInTx(ctx context.Context, tx pgx.Tx, records []payment.Record) ([]payment.Record, error) {
	if len(records) == 0 {
		return records, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertPaymentSQL, rec.ReceiptID, rec.InstallmentID, rec.LoanID, rec.BatchID, rec.Amount,
			rec.PenaltyWaived, string(rec.Mode), rec.PaymentDate, rec.RecordedBy, rec.Remarks)
	}

	results := tx.SendBatch(ctx, batch)
	saved := make([]payment.Record, len(records))
	for i, rec := range records {
		if err := results.QueryRow().Scan(&rec.ID, &rec.CreatedAt); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing payment batch insert", "error", err, "entry_index", i, "receiptID", rec.ReceiptID)
			return nil, fmt.Errorf("%w: failed inserting payment %d: %w", apperrors.ErrDatabase, i+1, err)
		}
		saved[i] = rec
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing payment batch results", "error", err)
		return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}
	return saved, nil
}

func (r *PaymentRepository) CountUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) (int, error) {
	query, err := byParent(parent, countUnpaidLoanSQL, countUnpaidBatchSQL)
	if err != nil {
		return 0, err
	}
	var count int
	if err = tx.QueryRow(ctx, query, parent.ID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count unpaid installments", "parent", parent.String(), "error", err)
		return 0, translateDBError(err, r.logger)
	}
	return count, nil
}

func (r *PaymentRepository) CloseParentInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) error {
	query, err := byParent(parent, closeLoanSQL, closeBatchSQL)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, query, parent.ID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close parent", "parent", parent.String(), "error", err)
		return translateDBError(err, r.logger)
	}
	if parent.Kind == schedule.ParentBatch {
		if _, err = tx.Exec(ctx, closeBatchLoansSQL, parent.ID); err != nil {
			r.logger.ErrorContext(ctx, "Failed to close batch tokens", "batchID", parent.ID, "error", err)
			return translateDBError(err, r.logger)
		}
	}
	r.logger.InfoContext(ctx, "Parent closed in DB", "parent", parent.String())
	return nil
}

func (r *PaymentRepository) GetPaymentsByReceipt(ctx context.Context, receiptID uuid.UUID) (records []payment.Record, err error) {
	startTime := time.Now()
	defer func() { observe("GetPaymentsByReceipt", startTime, err) }()

	rows, err := r.db.Query(ctx, paymentsByReceiptSQL, receiptID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "receiptID", receiptID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	records = make([]payment.Record, 0)
	for rows.Next() {
		var rec payment.Record
		var mode string
		if err = rows.Scan(&rec.ID, &rec.ReceiptID, &rec.InstallmentID, &rec.LoanID, &rec.BatchID, &rec.Amount,
			&rec.PenaltyWaived, &mode, &rec.PaymentDate, &rec.RecordedBy, &rec.Remarks, &rec.CreatedAt); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan payment row", "receiptID", receiptID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		rec.Mode = payment.Mode(mode)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, translateDBError(err, r.logger)
	}
	return records, nil
}
