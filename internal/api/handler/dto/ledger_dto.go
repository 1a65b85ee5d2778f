package dto

import (
	"collection-ledger/internal/domain/ledger"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountResponse struct {
	ID             string    `json:"id"`
	ActorID        int64     `json:"actorId"`
	CurrentBalance string    `json:"currentBalance"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:             fmt.Sprint(a.ID),
		ActorID:        a.ActorID,
		CurrentBalance: a.CurrentBalance.StringFixed(2),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type TransactionResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balanceAfter"`
	ReferenceType string    `json:"referenceType"`
	ReferenceID   string    `json:"referenceId"`
	Note          string    `json:"note,omitempty"`
	RecordedBy    int64     `json:"recordedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewTransactionResponse(t *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            fmt.Sprint(t.ID),
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		BalanceAfter:  t.BalanceAfter.StringFixed(2),
		ReferenceType: string(t.ReferenceType),
		ReferenceID:   t.ReferenceID,
		Note:          t.Note,
		RecordedBy:    t.RecordedBy,
		CreatedAt:     t.CreatedAt,
	}
}

func NewTransactionResponses(txns []ledger.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		resp = append(resp, NewTransactionResponse(&txns[i]))
	}
	return resp
}

type TransferRequest struct {
	FromActorID int64  `json:"fromActorId"`
	ToActorID   int64  `json:"toActorId"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason"`
}

// ToFundCommand maps a transfer or funding request. A zero FromActorID funds
// from the organization account.
func (r *TransferRequest) ToFundCommand(recordedBy int64) (ledger.FundCommand, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return ledger.FundCommand{}, err
	}
	if r.ToActorID <= 0 {
		return ledger.FundCommand{}, fmt.Errorf("toActorId must be positive")
	}
	return ledger.FundCommand{
		FromActorID: r.FromActorID,
		ToActorID:   r.ToActorID,
		Amount:      amount,
		Reason:      strings.TrimSpace(r.Reason),
		RecordedBy:  recordedBy,
	}, nil
}

type SettleRequest struct {
	AgentActorID int64  `json:"agentActorId"`
	Amount       string `json:"amount"`
	Reason       string `json:"reason"`
}

func (r *SettleRequest) ParsedAmount() (decimal.Decimal, error) {
	if r.AgentActorID <= 0 {
		return decimal.Zero, fmt.Errorf("agentActorId must be positive")
	}
	return parseAmount("amount", r.Amount)
}

type TransferResponse struct {
	Debit       TransactionResponse `json:"debit"`
	Credit      TransactionResponse `json:"credit"`
	FromBalance string              `json:"fromBalance"`
	ToBalance   string              `json:"toBalance"`
}

func NewTransferResponse(r *ledger.TransferResult) TransferResponse {
	return TransferResponse{
		Debit:       NewTransactionResponse(&r.Debit),
		Credit:      NewTransactionResponse(&r.Credit),
		FromBalance: r.FromBalance.StringFixed(2),
		ToBalance:   r.ToBalance.StringFixed(2),
	}
}

type ReconciliationResponse struct {
	ActorID        int64  `json:"actorId"`
	CurrentBalance string `json:"currentBalance"`
	Credits        string `json:"credits"`
	Debits         string `json:"debits"`
	Consistent     bool   `json:"consistent"`
}

func NewReconciliationResponse(r *ledger.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		ActorID:        r.ActorID,
		CurrentBalance: r.CurrentBalance.StringFixed(2),
		Credits:        r.Credits.StringFixed(2),
		Debits:         r.Debits.StringFixed(2),
		Consistent:     r.Consistent(),
	}
}
