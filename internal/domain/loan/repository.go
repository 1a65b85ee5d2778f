package loan

import (
	"collection-ledger/internal/domain/schedule"
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	CreateLoanInTx(ctx context.Context, tx pgx.Tx, l *Loan) error

	CreateBatchInTx(ctx context.Context, tx pgx.Tx, b *Batch) error

	// InsertInstallmentsInTx stamps the owner on each installment and stores them
	// in one round trip.
	InsertInstallmentsInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent, installments []schedule.Installment) ([]schedule.Installment, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	GetScheduleByParent(ctx context.Context, parent schedule.Parent) ([]schedule.Installment, error)
}
