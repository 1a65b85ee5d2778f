package postgres

import (
	"collection-ledger/internal/domain/penalty"
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
	policyColumns = `id, penalty_type, value, grace_days, active, created_at, updated_at`

	activePolicySQL = `
        SELECT ` + policyColumns + `
        FROM penalty_policies
        WHERE active
        ORDER BY id DESC
        LIMIT 1`

	insertPolicySQL = `
        INSERT INTO penalty_policies (penalty_type, value, grace_days, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	deactivatePoliciesSQL = `UPDATE penalty_policies SET active = FALSE, updated_at = NOW() WHERE active AND id <> $1`

	activatePolicySQL = `
        UPDATE penalty_policies SET active = TRUE, updated_at = NOW()
        WHERE id = $1
        RETURNING ` + policyColumns

	accrualCandidatesSQL = `
        SELECT id
        FROM installments
        WHERE status IN ('pending', 'partial') AND penalty_amount = 0 AND due_date < $1
        ORDER BY due_date ASC, id ASC`

	lockInstallmentSQL = `
        SELECT ` + installmentColumns + `
        FROM installments
        WHERE id = $1
        FOR UPDATE`

	applyPenaltySQL = `
        UPDATE installments
        SET penalty_amount = $1, total_due = $2, status = $3, updated_at = NOW()
        WHERE id = $4 AND penalty_amount = 0`

	flagLoanOverdueSQL  = `UPDATE loans SET status = 'overdue', updated_at = NOW() WHERE id = $1 AND status = 'active'`
	flagBatchOverdueSQL = `UPDATE batches SET status = 'overdue', updated_at = NOW() WHERE id = $1 AND status = 'active'`
)

type PenaltyRepository struct {
	txRunner
}

var _ penalty.Repository = (*PenaltyRepository)(nil)

func NewPenaltyRepository(db DBPool, lockTimeout time.Duration, logger *slog.Logger) *PenaltyRepository {
	return &PenaltyRepository{txRunner{db: db, lockTimeout: lockTimeout, logger: logger.With("component", "PenaltyRepository")}}
}

func scanPolicy(row rowScanner) (*penalty.Policy, error) {
	var p penalty.Policy
	var typ string
	if err := row.Scan(&p.ID, &typ, &p.Value, &p.GraceDays, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Type = penalty.Type(typ)
	return &p, nil
}

func (r *PenaltyRepository) GetActivePolicy(ctx context.Context) (policy *penalty.Policy, err error) {
	startTime := time.Now()
	defer func() { observe("GetActivePolicy", startTime, err) }()

	policy, err = scanPolicy(r.db.QueryRow(ctx, activePolicySQL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "No active penalty policy")
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to read active penalty policy", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return policy, nil
}

func (r *PenaltyRepository) CreatePolicy(ctx context.Context, p *penalty.Policy) error {
	err := r.db.QueryRow(ctx, insertPolicySQL, string(p.Type), p.Value, p.GraceDays, p.Active).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert penalty policy", "error", err)
		return translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Penalty policy created in DB", "policyID", p.ID)
	return nil
}

func (r *PenaltyRepository) ActivatePolicyInTx(ctx context.Context, tx pgx.Tx, policyID int64) (*penalty.Policy, error) {
	if _, err := tx.Exec(ctx, deactivatePoliciesSQL, policyID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to deactivate penalty policies", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	policy, err := scanPolicy(tx.QueryRow(ctx, activatePolicySQL, policyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: penalty policy %d", apperrors.ErrNotFound, policyID)
		}
		r.logger.ErrorContext(ctx, "Failed to activate penalty policy", "policyID", policyID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return policy, nil
}

func (r *PenaltyRepository) ListAccrualCandidates(ctx context.Context, dueBefore time.Time) (ids []int64, err error) {
	startTime := time.Now()
	defer func() { observe("ListAccrualCandidates", startTime, err) }()

	rows, err := r.db.Query(ctx, accrualCandidatesSQL, schedule.DateOf(dueBefore))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query accrual candidates", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	ids = make([]int64, 0)
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, translateDBError(err, r.logger)
	}
	return ids, nil
}

func (r *PenaltyRepository) LockInstallmentInTx(ctx context.Context, tx pgx.Tx, installmentID int64) (*schedule.Installment, error) {
	inst, err := scanInstallment(tx.QueryRow(ctx, lockInstallmentSQL, installmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: installment %d", apperrors.ErrNotFound, installmentID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock installment", "installmentID", installmentID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &inst, nil
}

// ApplyPenaltyInTx refuses to overwrite a penalty already on the row.
func (r *PenaltyRepository) ApplyPenaltyInTx(ctx context.Context, tx pgx.Tx, inst *schedule.Installment) error {
	cmdTag, err := tx.Exec(ctx, applyPenaltySQL, inst.PenaltyAmount, inst.TotalDue, string(inst.Status), inst.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to apply penalty", "installmentID", inst.ID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Penalty update affected zero rows", "installmentID", inst.ID)
		return fmt.Errorf("%w: installment %d already penalized", apperrors.ErrConcurrencyConflict, inst.ID)
	}
	return nil
}

func (r *PenaltyRepository) FlagParentOverdueInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent) (bool, error) {
	query, err := byParent(parent, flagLoanOverdueSQL, flagBatchOverdueSQL)
	if err != nil {
		return false, err
	}
	cmdTag, err := tx.Exec(ctx, query, parent.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to flag parent overdue", "parent", parent.String(), "error", err)
		return false, translateDBError(err, r.logger)
	}
	return cmdTag.RowsAffected() == 1, nil
}
