package penalty

import (
	"collection-ledger/internal/domain/schedule"
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// GetActivePolicy returns apperrors.ErrNotFound when no policy is active.
	GetActivePolicy(ctx context.Context) (*Policy, error)

	CreatePolicy(ctx context.Context, p *Policy) error

	// ActivatePolicyInTx deactivates every other policy and activates policyID.
	ActivatePolicyInTx(ctx context.Context, tx pgx.Tx, policyID int64) (*Policy, error)

	// ListAccrualCandidates returns ids of pending and partial installments with
	// no penalty whose due date is before dueBefore.
	ListAccrualCandidates(ctx context.Context, dueBefore time.Time) ([]int64, error)

	LockInstallmentInTx(ctx context.Context, tx pgx.Tx, installmentID int64) (*schedule.Installment, error)

	ApplyPenaltyInTx(ctx context.Context, tx pgx.Tx, inst *schedule.Installment) error

	// FlagParentOverdueInTx moves an active loan or batch to overdue. It reports
	// false when the parent was not active.
	FlagParentOverdueInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) (bool, error)
}
