package payment

import (
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/money"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeCash         Mode = "cash"
	ModeMobileMoney  Mode = "mobile_money"
	ModeBankTransfer Mode = "bank_transfer"
)

func ParseMode(s string) (Mode, error) {
	if strings.TrimSpace(s) == "" {
		return ModeCash, nil
	}
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCash, ModeMobileMoney, ModeBankTransfer:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment mode %q", apperrors.ErrInvalidArgument, s)
	}
}

// Record is one immutable payment row funding one installment. All rows written
// by a single allocation share a ReceiptID.
type Record struct {
	ID            int64
	ReceiptID     uuid.UUID
	InstallmentID int64
	LoanID        *int64
	BatchID       *int64
	Amount        decimal.Decimal
	PenaltyWaived decimal.Decimal
	Mode          Mode
	PaymentDate   time.Time
	RecordedBy    int64
	Remarks       string
	CreatedAt     time.Time
}

type RecordPaymentCommand struct {
	ActorID      int64
	Target       schedule.Target
	Amount       decimal.Decimal
	Mode         Mode
	PaymentDate  time.Time
	WaiverBudget decimal.Decimal
	Remarks      string
}

func (c *RecordPaymentCommand) Validate() error {
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be greater than zero, got %s", apperrors.ErrInvalidAmount, c.Amount.String())
	}
	if c.WaiverBudget.IsNegative() {
		return fmt.Errorf("%w: penalty waiver must not be negative, got %s", apperrors.ErrInvalidAmount, c.WaiverBudget.String())
	}
	if err := money.RequireCents("payment amount", c.Amount); err != nil {
		return err
	}
	if err := money.RequireCents("penalty waiver", c.WaiverBudget); err != nil {
		return err
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	if c.ActorID <= 0 {
		return fmt.Errorf("%w: recording actor is required", apperrors.ErrInvalidArgument)
	}
	if c.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", apperrors.ErrInvalidArgument)
	}
	return nil
}

type Result struct {
	ReceiptID       uuid.UUID
	Target          schedule.Target
	Records         []Record
	Installments    []schedule.Installment
	AmountApplied   decimal.Decimal
	AmountUnapplied decimal.Decimal
	PenaltyWaived   decimal.Decimal
	ClosedParents   []schedule.Parent
	Closed          bool
	LedgerCredited  bool
}
