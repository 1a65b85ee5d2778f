package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

// OutstandingStatuses are the statuses the allocator may apply cash against.
var OutstandingStatuses = []Status{StatusPending, StatusPartial, StatusOverdue}

type Installment struct {
	ID                int64
	LoanID            *int64
	BatchID           *int64
	DueDate           time.Time
	InstallmentAmount decimal.Decimal
	PenaltyAmount     decimal.Decimal
	PenaltyWaived     decimal.Decimal
	PaidAmount        decimal.Decimal
	TotalDue          decimal.Decimal
	Status            Status
	PaymentDate       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (i *Installment) Parent() Parent {
	if i.BatchID != nil {
		return Parent{Kind: ParentBatch, ID: *i.BatchID}
	}
	if i.LoanID != nil {
		return Parent{Kind: ParentLoan, ID: *i.LoanID}
	}
	return Parent{}
}

func (i *Installment) Received() decimal.Decimal {
	return i.PaidAmount.Add(i.PenaltyWaived)
}

// Outstanding is the residual debt on the row, never negative.
func (i *Installment) Outstanding() decimal.Decimal {
	out := i.TotalDue.Sub(i.Received())
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// WaivablePenalty is the part of the penalty that has not been waived yet.
func (i *Installment) WaivablePenalty() decimal.Decimal {
	w := i.PenaltyAmount.Sub(i.PenaltyWaived)
	if w.IsNegative() {
		return decimal.Zero
	}
	return w
}

// UnpaidPrincipal is the part of the installment amount not yet covered by cash.
func (i *Installment) UnpaidPrincipal() decimal.Decimal {
	u := i.InstallmentAmount.Sub(i.PaidAmount)
	if u.IsNegative() {
		return decimal.Zero
	}
	return u
}

func (i *Installment) IsOutstanding() bool {
	return i.Status != StatusPaid
}

// Validate checks the amount invariant paid + waived <= total due.
func (i *Installment) Validate() error {
	if i.Received().GreaterThan(i.TotalDue) {
		return fmt.Errorf("installment %d: received %s exceeds total due %s",
			i.ID, i.Received().StringFixed(2), i.TotalDue.StringFixed(2))
	}
	if !i.TotalDue.Equal(i.InstallmentAmount.Add(i.PenaltyAmount)) {
		return fmt.Errorf("installment %d: total due %s does not match installment %s + penalty %s",
			i.ID, i.TotalDue.StringFixed(2), i.InstallmentAmount.StringFixed(2), i.PenaltyAmount.StringFixed(2))
	}
	return nil
}

// NextStatus evaluates the status after an amount mutation. Paid is terminal and
// an overdue row only ever leaves overdue by becoming paid.
func NextStatus(current Status, inst *Installment, today time.Time) Status {
	if current == StatusPaid {
		return StatusPaid
	}
	if inst.Received().GreaterThanOrEqual(inst.TotalDue) {
		return StatusPaid
	}
	if current == StatusOverdue {
		return StatusOverdue
	}
	if inst.PaidAmount.IsPositive() {
		return StatusPartial
	}
	if DateOf(inst.DueDate).Before(DateOf(today)) {
		return StatusOverdue
	}
	return StatusPending
}

var transitions = map[Status][]Status{
	StatusPending: {StatusPartial, StatusOverdue, StatusPaid},
	StatusPartial: {StatusOverdue, StatusPaid},
	StatusOverdue: {StatusPaid},
}

func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
