package payment

import (
	"collection-ledger/internal/domain/schedule"
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// LockOutstandingInstallmentsInTx returns the target's pending, partial and
	// overdue installments ordered by due date then id, locked FOR UPDATE.
	LockOutstandingInstallmentsInTx(ctx context.Context, tx pgx.Tx, target schedule.Target) ([]schedule.Installment, error)

	GetTargetStatusInTx(ctx context.Context, tx pgx.Tx, target schedule.Target) (schedule.ParentStatus, error)

	UpdateInstallmentInTx(ctx context.Context, tx pgx.Tx, inst *schedule.Installment) error

	InsertPaymentRecordsInTx(ctx context.Context, tx pgx.Tx, records []Record) ([]Record, error)

	CountUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) (int, error)

	// CloseParentInTx closes a loan, or a batch together with its child loans.
	CloseParentInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) error

	GetPaymentsByReceipt(ctx context.Context, receiptID uuid.UUID) ([]Record, error)
}
