package event

import (
	"context"
	"time"
)

const (
	RoutingKeyPaymentRecorded  = "collection.payment.recorded"
	RoutingKeyTargetClosed     = "collection.target.closed"
	RoutingKeyAccrualCompleted = "collection.accrual.completed"
	RoutingKeyLedgerTransfer   = "ledger.transfer.completed"
)

type Publisher interface {
	PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error
	PublishTargetClosed(ctx context.Context, event TargetClosedEvent) error
	PublishAccrualCompleted(ctx context.Context, event AccrualCompletedEvent) error
	PublishLedgerTransfer(ctx context.Context, event LedgerTransferEvent) error
}

type PaymentRecordedEvent struct {
	ReceiptID       string    `json:"receiptId"`
	TargetKind      string    `json:"targetKind"`
	TargetID        int64     `json:"targetId"`
	ActorID         int64     `json:"actorId"`
	Amount          string    `json:"amount"`
	AmountApplied   string    `json:"amountApplied"`
	AmountUnapplied string    `json:"amountUnapplied"`
	PenaltyWaived   string    `json:"penaltyWaived"`
	InstallmentIDs  []int64   `json:"installmentIds"`
	Closed          bool      `json:"closed"`
	Timestamp       time.Time `json:"timestamp"`
}

type TargetClosedEvent struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	ReceiptID string    `json:"receiptId"`
	Timestamp time.Time `json:"timestamp"`
}

type AccrualCompletedEvent struct {
	AsOfDate              string    `json:"asOfDate"`
	InstallmentsProcessed int       `json:"installmentsProcessed"`
	TotalPenaltyAdded     string    `json:"totalPenaltyAdded"`
	LoansFlaggedOverdue   int       `json:"loansFlaggedOverdue"`
	Errors                int       `json:"errors"`
	Timestamp             time.Time `json:"timestamp"`
}

type LedgerTransferEvent struct {
	FromActorID   int64     `json:"fromActorId"`
	ToActorID     int64     `json:"toActorId"`
	Amount        string    `json:"amount"`
	ReferenceType string    `json:"referenceType"`
	ReferenceID   string    `json:"referenceId"`
	Timestamp     time.Time `json:"timestamp"`
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentRecorded(context.Context, PaymentRecordedEvent) error {
	return nil
}

func (NoopPublisher) PublishTargetClosed(context.Context, TargetClosedEvent) error {
	return nil
}

func (NoopPublisher) PublishAccrualCompleted(context.Context, AccrualCompletedEvent) error {
	return nil
}

func (NoopPublisher) PublishLedgerTransfer(context.Context, LedgerTransferEvent) error {
	return nil
}
