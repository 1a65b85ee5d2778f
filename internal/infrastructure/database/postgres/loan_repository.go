package postgres

import (
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	insertLoanSQL = `
        INSERT INTO loans (customer_id, batch_id, daily_amount, total_amount, duration_days, start_date, status,
            issued_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	insertBatchSQL = `
        INSERT INTO batches (customer_id, size, daily_amount, total_amount, duration_days, start_date, status,
            issued_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	insertInstallmentSQL = `
        INSERT INTO installments (loan_id, batch_id, due_date, installment_amount, penalty_amount, penalty_waived,
            paid_amount, total_due, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	loanByIDSQL = `
        SELECT id, customer_id, batch_id, daily_amount, total_amount, duration_days, start_date, status,
            issued_by, created_at, updated_at
        FROM loans
        WHERE id = $1`

	loanScheduleSQL = `
        SELECT ` + installmentColumns + `
        FROM installments
        WHERE loan_id = $1
        ORDER BY due_date ASC, id ASC`

	batchScheduleSQL = `
        SELECT ` + installmentColumns + `
        FROM installments
        WHERE batch_id = $1
        ORDER BY due_date ASC, id ASC`
)

type LoanRepository struct {
	txRunner
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, lockTimeout time.Duration, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{txRunner{db: db, lockTimeout: lockTimeout, logger: logger.With("component", "LoanRepository")}}
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	err := tx.QueryRow(ctx, insertLoanSQL, l.CustomerID, l.BatchID, l.DailyAmount, l.TotalAmount, l.DurationDays,
		l.StartDate, string(l.Status), l.IssuedBy).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "customerID", l.CustomerID, "error", err)
		return translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", l.ID)
	return nil
}

func (r *LoanRepository) CreateBatchInTx(ctx context.Context, tx pgx.Tx, b *loan.Batch) error {
	err := tx.QueryRow(ctx, insertBatchSQL, b.CustomerID, b.Size, b.DailyAmount, b.TotalAmount, b.DurationDays,
		b.StartDate, string(b.Status), b.IssuedBy).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert batch", "customerID", b.CustomerID, "error", err)
		return translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Batch created in DB", "batch_id", b.ID, "size", b.Size)
	return nil
}

func (r *LoanRepository) InsertInstallmentsInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent, installments []schedule.Installment) ([]schedule.Installment, error) {
	if _, err := byParent(parent, "", ""); err != nil {
		return nil, err
	}
	ownerID := parent.ID
	stamped := make([]schedule.Installment, len(installments))
	batch := &pgx.Batch{}
	for i, inst := range installments {
		inst.LoanID, inst.BatchID = nil, nil
		if parent.Kind == schedule.ParentBatch {
			inst.BatchID = &ownerID
		} else {
			inst.LoanID = &ownerID
		}
		stamped[i] = inst
		batch.Queue(insertInstallmentSQL, inst.LoanID, inst.BatchID, inst.DueDate, inst.InstallmentAmount,
			inst.PenaltyAmount, inst.PenaltyWaived, inst.PaidAmount, inst.TotalDue, string(inst.Status))
	}

	results := tx.SendBatch(ctx, batch)
	for i := range stamped {
		if err := results.QueryRow().Scan(&stamped[i].ID, &stamped[i].CreatedAt, &stamped[i].UpdatedAt); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing schedule batch insert", "error", err, "entry_index", i, "parent", parent.String())
			return nil, fmt.Errorf("%w: failed inserting schedule entry %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing schedule batch results", "error", err, "parent", parent.String())
		return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Schedule created in DB", "parent", parent.String(), "num_entries", len(stamped))
	return stamped, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (l *loan.Loan, err error) {
	startTime := time.Now()
	defer func() { observe("GetLoanByID", startTime, err) }()

	var out loan.Loan
	var status string
	err = r.db.QueryRow(ctx, loanByIDSQL, loanID).Scan(
		&out.ID, &out.CustomerID, &out.BatchID, &out.DailyAmount, &out.TotalAmount, &out.DurationDays,
		&out.StartDate, &status, &out.IssuedBy, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	out.Status = schedule.ParentStatus(status)
	return &out, nil
}

func (r *LoanRepository) GetScheduleByParent(ctx context.Context, parent schedule.Parent) (installments []schedule.Installment, err error) {
	startTime := time.Now()
	defer func() { observe("GetScheduleByParent", startTime, err) }()

	query, err := byParent(parent, loanScheduleSQL, batchScheduleSQL)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, parent.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query schedule", "parent", parent.String(), "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	installments = make([]schedule.Installment, 0)
	for rows.Next() {
		inst, scanErr := scanInstallment(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan schedule row", "parent", parent.String(), "error", scanErr)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, scanErr)
		}
		installments = append(installments, inst)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating schedule rows", "parent", parent.String(), "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return installments, nil
}
