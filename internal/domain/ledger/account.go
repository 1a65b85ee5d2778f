package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

// Account is the running cash balance of one actor: the organization or a field agent.
type Account struct {
	ID             int64
	ActorID        int64
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is an append-only log row. BalanceAfter snapshots the account
// balance right after this row was applied.
type Transaction struct {
	ID            int64
	AccountID     int64
	Type          TransactionType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	ReferenceType ReferenceKind
	ReferenceID   string
	Note          string
	RecordedBy    int64
	CreatedAt     time.Time
}

// Signed returns the amount as it contributes to the balance.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

type TransferResult struct {
	Debit       Transaction
	Credit      Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// IssuanceDebit reports the outcome of debiting an issuer for a new loan or batch.
// Applied is false when the balance could not cover it and issuance went ahead anyway.
type IssuanceDebit struct {
	Applied bool
	Balance decimal.Decimal
}

// Reconciliation compares the stored balance with the signed sum of the log.
type Reconciliation struct {
	ActorID        int64
	CurrentBalance decimal.Decimal
	Credits        decimal.Decimal
	Debits         decimal.Decimal
}

func (r *Reconciliation) Consistent() bool {
	return r.CurrentBalance.Equal(r.Credits.Sub(r.Debits))
}
