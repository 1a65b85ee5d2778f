package postgres

import (
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"fmt"
)

const installmentColumns = `id, loan_id, batch_id, due_date, installment_amount, penalty_amount, penalty_waived,
        paid_amount, total_due, status, payment_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstallment(row rowScanner) (schedule.Installment, error) {
	var inst schedule.Installment
	var status string
	err := row.Scan(
		&inst.ID, &inst.LoanID, &inst.BatchID, &inst.DueDate, &inst.InstallmentAmount,
		&inst.PenaltyAmount, &inst.PenaltyWaived, &inst.PaidAmount, &inst.TotalDue,
		&status, &inst.PaymentDate, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return schedule.Installment{}, err
	}
	inst.Status = schedule.Status(status)
	return inst, nil
}

// byParent picks the statement written for the parent's kind.
func byParent(parent schedule.Parent, loanSQL, batchSQL string) (string, error) {
	switch parent.Kind {
	case schedule.ParentLoan:
		return loanSQL, nil
	case schedule.ParentBatch:
		return batchSQL, nil
	default:
		return "", fmt.Errorf("%w: unknown parent kind %q", apperrors.ErrInvalidArgument, parent.Kind)
	}
}
