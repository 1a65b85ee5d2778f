package penalty

import (
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeFixed   Type = "fixed"
	TypePercent Type = "percent"
)

var hundred = decimal.NewFromInt(100)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeFixed, TypePercent:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown penalty type %q", apperrors.ErrInvalidArgument, s)
	}
}

// Policy is a late-payment penalty rule. At most one policy is active.
type Policy struct {
	ID        int64
	Type      Type
	Value     decimal.Decimal
	GraceDays int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Policy) Validate() error {
	if p.Type != TypeFixed && p.Type != TypePercent {
		return apperrors.NewValidationError("penaltyType", fmt.Sprintf("must be %q or %q", TypeFixed, TypePercent))
	}
	if p.Value.IsNegative() {
		return apperrors.NewValidationError("value", "must not be negative")
	}
	if p.Type == TypePercent && p.Value.GreaterThan(hundred) {
		return apperrors.NewValidationError("value", "percent penalty cannot exceed 100")
	}
	if p.GraceDays < 0 {
		return apperrors.NewValidationError("graceDays", "must not be negative")
	}
	return nil
}

// Compute returns the penalty for the given base, rounded half-up to cents.
// A fixed policy ignores the base.
func (p *Policy) Compute(base decimal.Decimal) decimal.Decimal {
	if p.Type == TypeFixed {
		return p.Value.Round(2)
	}
	return base.Mul(p.Value).Div(hundred).Round(2)
}

// PenaltyFor computes the penalty of an installment entering overdue. A pending
// row is charged on its installment amount, a partially paid row on what is
// left of the installment amount.
func (p *Policy) PenaltyFor(inst *schedule.Installment) decimal.Decimal {
	if inst.Status == schedule.StatusPartial {
		return p.Compute(inst.UnpaidPrincipal())
	}
	return p.Compute(inst.InstallmentAmount)
}

// PastGrace reports whether due is more than GraceDays whole days before asOf.
func (p *Policy) PastGrace(due, asOf time.Time) bool {
	return schedule.DaysBetween(due, asOf) > p.GraceDays
}

// Eligible reports whether accrual should penalize inst as of the given date.
// Rows already carrying a penalty are never recomputed.
func (p *Policy) Eligible(inst *schedule.Installment, asOf time.Time) bool {
	if inst.Status != schedule.StatusPending && inst.Status != schedule.StatusPartial {
		return false
	}
	if !inst.PenaltyAmount.IsZero() {
		return false
	}
	return p.PastGrace(inst.DueDate, asOf)
}

// AccrualResult summarises one accrual pass.
type AccrualResult struct {
	AsOf                  time.Time
	InstallmentsProcessed int
	TotalPenaltyAdded     decimal.Decimal
	LoansFlaggedOverdue   int
	Skipped               int
	Errors                int
}
