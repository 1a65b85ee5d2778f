package payment

import (
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/money"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationLine is the effect of one payment on one installment.
type AllocationLine struct {
	Installment    schedule.Installment
	PreviousStatus schedule.Status
	Applied        decimal.Decimal
	Waived         decimal.Decimal
}

type Allocation struct {
	Lines           []AllocationLine
	AmountApplied   decimal.Decimal
	AmountUnapplied decimal.Decimal
	PenaltyWaived   decimal.Decimal
	// Settled is true when every outstanding installment passed in ended up paid.
	Settled bool
}

// Allocate distributes cash over installments oldest due date first, ties broken
// by id. The waiver budget reduces penalty on each touched row before cash is
// applied and never consumes cash. Walking stops as soon as the cash is spent.
// The input slice is not modified.
func Allocate(installments []schedule.Installment, cash, waiverBudget decimal.Decimal, paymentDate time.Time) (*Allocation, error) {
	if !cash.IsPositive() {
		return nil, fmt.Errorf("%w: cash amount must be greater than zero, got %s", apperrors.ErrInvalidAmount, cash.String())
	}
	if waiverBudget.IsNegative() {
		return nil, fmt.Errorf("%w: penalty waiver budget must not be negative, got %s", apperrors.ErrInvalidAmount, waiverBudget.String())
	}
	if err := money.RequireCents("cash amount", cash); err != nil {
		return nil, err
	}
	if err := money.RequireCents("penalty waiver budget", waiverBudget); err != nil {
		return nil, err
	}

	rows := make([]schedule.Installment, 0, len(installments))
	for _, inst := range installments {
		if inst.IsOutstanding() {
			rows = append(rows, inst)
		}
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrNoOutstandingInstallments
	}
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := schedule.DateOf(rows[i].DueDate), schedule.DateOf(rows[j].DueDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return rows[i].ID < rows[j].ID
	})

	paidOn := schedule.DateOf(paymentDate)
	remaining := cash
	waiverLeft := waiverBudget
	alloc := &Allocation{
		Lines:         make([]AllocationLine, 0, len(rows)),
		AmountApplied: decimal.Zero,
		PenaltyWaived: decimal.Zero,
	}

	for idx := range rows {
		if !remaining.IsPositive() {
			break
		}
		inst := rows[idx]
		previous := inst.Status

		waive := decimal.Min(waiverLeft, inst.WaivablePenalty())
		if waive.IsPositive() {
			inst.PenaltyWaived = inst.PenaltyWaived.Add(waive)
			waiverLeft = waiverLeft.Sub(waive)
		} else {
			waive = decimal.Zero
		}

		apply := decimal.Min(remaining, inst.Outstanding())
		inst.PaidAmount = inst.PaidAmount.Add(apply)
		remaining = remaining.Sub(apply)

		inst.Status = schedule.NextStatus(previous, &inst, paidOn)
		if inst.Status == schedule.StatusPaid && previous != schedule.StatusPaid {
			stamp := paidOn
			inst.PaymentDate = &stamp
		}

		if apply.IsZero() && waive.IsZero() {
			continue
		}
		alloc.Lines = append(alloc.Lines, AllocationLine{
			Installment:    inst,
			PreviousStatus: previous,
			Applied:        apply,
			Waived:         waive,
		})
		alloc.AmountApplied = alloc.AmountApplied.Add(apply)
		alloc.PenaltyWaived = alloc.PenaltyWaived.Add(waive)
	}

	alloc.AmountUnapplied = remaining
	alloc.Settled = settled(rows, alloc.Lines)
	return alloc, nil
}

func settled(rows []schedule.Installment, lines []AllocationLine) bool {
	if len(lines) < len(rows) {
		return false
	}
	for _, line := range lines {
		if line.Installment.Status != schedule.StatusPaid {
			return false
		}
	}
	return true
}

// Parents lists the distinct owners of the touched installments in first-touch order.
func (a *Allocation) Parents() []schedule.Parent {
	seen := make(map[schedule.Parent]struct{}, len(a.Lines))
	parents := make([]schedule.Parent, 0, len(a.Lines))
	for i := range a.Lines {
		p := a.Lines[i].Installment.Parent()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		parents = append(parents, p)
	}
	return parents
}
