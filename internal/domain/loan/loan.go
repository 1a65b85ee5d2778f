package loan

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/money"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxDurationDays = 366
	MaxBatchSize    = 500
)

// Loan is a single token. A token issued as part of a batch carries its BatchID
// and owns no installments of its own.
type Loan struct {
	ID           int64
	CustomerID   int64
	BatchID      *int64
	DailyAmount  decimal.Decimal
	TotalAmount  decimal.Decimal
	DurationDays int
	StartDate    time.Time
	Status       schedule.ParentStatus
	IssuedBy     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Batch groups BatchSize tokens repaid through one shared schedule.
type Batch struct {
	ID           int64
	CustomerID   int64
	Size         int
	DailyAmount  decimal.Decimal
	TotalAmount  decimal.Decimal
	DurationDays int
	StartDate    time.Time
	Status       schedule.ParentStatus
	IssuedBy     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Loans        []Loan
}

// IssueCommand records an externally priced issuance. DailyAmount is per token;
// a BatchSize of zero issues a single token.
type IssueCommand struct {
	CustomerID   int64
	IssuedBy     int64
	BatchSize    int
	DailyAmount  decimal.Decimal
	DurationDays int
	StartDate    time.Time
}

func (c *IssueCommand) Validate() error {
	if c.CustomerID <= 0 {
		return apperrors.NewValidationError("customerId", "must be positive")
	}
	if c.IssuedBy <= 0 {
		return apperrors.NewValidationError("issuedBy", "issuing actor is required")
	}
	if c.BatchSize < 0 || c.BatchSize > MaxBatchSize {
		return apperrors.NewValidationError("batchSize", fmt.Sprintf("must be between 0 and %d", MaxBatchSize))
	}
	if !c.DailyAmount.IsPositive() {
		return fmt.Errorf("%w: daily amount must be greater than zero, got %s", apperrors.ErrInvalidAmount, c.DailyAmount.String())
	}
	if err := money.RequireCents("daily amount", c.DailyAmount); err != nil {
		return err
	}
	if c.DurationDays <= 0 || c.DurationDays > MaxDurationDays {
		return apperrors.NewValidationError("durationDays", fmt.Sprintf("must be between 1 and %d", MaxDurationDays))
	}
	if c.StartDate.IsZero() {
		return apperrors.NewValidationError("startDate", "is required")
	}
	return nil
}

func (c *IssueCommand) IsBatch() bool {
	return c.BatchSize > 0
}

// InstallmentAmount is what falls due each day for the issued loan or batch.
func (c *IssueCommand) InstallmentAmount() decimal.Decimal {
	if c.IsBatch() {
		return c.DailyAmount.Mul(decimal.NewFromInt(int64(c.BatchSize)))
	}
	return c.DailyAmount
}

func (c *IssueCommand) TotalAmount() decimal.Decimal {
	return c.InstallmentAmount().Mul(decimal.NewFromInt(int64(c.DurationDays)))
}

// Issuance is the outcome of Issue. Exactly one of Loan and Batch is set.
type Issuance struct {
	Parent       schedule.Parent
	Loan         *Loan
	Batch        *Batch
	Installments []schedule.Installment
	Debit        *ledger.IssuanceDebit
}

// GenerateSchedule lays out one installment per day, the first due the day after
// start. Owner ids are left for the store to fill in.
func GenerateSchedule(start time.Time, amount decimal.Decimal, durationDays int) ([]schedule.Installment, error) {
	if durationDays <= 0 || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: invalid terms for schedule generation", apperrors.ErrInvalidArgument)
	}

	first := schedule.DateOf(start)
	installments := make([]schedule.Installment, 0, durationDays)
	for day := 1; day <= durationDays; day++ {
		installments = append(installments, schedule.Installment{
			DueDate:           first.AddDate(0, 0, day),
			InstallmentAmount: amount,
			PenaltyAmount:     decimal.Zero,
			PenaltyWaived:     decimal.Zero,
			PaidAmount:        decimal.Zero,
			TotalDue:          amount,
			Status:            schedule.StatusPending,
		})
	}

	total := decimal.Zero
	for i := range installments {
		total = total.Add(installments[i].TotalDue)
	}
	expected := amount.Mul(decimal.NewFromInt(int64(durationDays)))
	if !total.Equal(expected) {
		return nil, fmt.Errorf("%w: schedule generation failed sanity check - total %s != expected %s",
			apperrors.ErrInternalServer, total.StringFixed(2), expected.StringFixed(2))
	}
	return installments, nil
}
