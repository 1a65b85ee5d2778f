package dto

import (
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/schedule"
	"fmt"
	"time"
)

type RecordPaymentRequest struct {
	TargetKind    string `json:"targetKind"`
	TargetID      int64  `json:"targetId"`
	Amount        string `json:"amount"`
	Mode          string `json:"mode"`
	PaymentDate   string `json:"paymentDate"`
	PenaltyWaiver string `json:"penaltyWaiver"`
	Remarks       string `json:"remarks"`
}

// ToCommand builds the allocation command. An empty payment date means today.
func (r *RecordPaymentRequest) ToCommand(actorID int64, today time.Time) (payment.RecordPaymentCommand, error) {
	kind, err := schedule.ParseTargetKind(r.TargetKind)
	if err != nil {
		return payment.RecordPaymentCommand{}, err
	}
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return payment.RecordPaymentCommand{}, err
	}
	waiver, err := parseOptionalAmount("penaltyWaiver", r.PenaltyWaiver)
	if err != nil {
		return payment.RecordPaymentCommand{}, err
	}
	mode, err := payment.ParseMode(r.Mode)
	if err != nil {
		return payment.RecordPaymentCommand{}, err
	}
	paymentDate := schedule.DateOf(today)
	if r.PaymentDate != "" {
		if paymentDate, err = schedule.ParseDate(r.PaymentDate); err != nil {
			return payment.RecordPaymentCommand{}, fmt.Errorf("invalid paymentDate format (use YYYY-MM-DD): %w", err)
		}
	}
	return payment.RecordPaymentCommand{
		ActorID:      actorID,
		Target:       schedule.Target{Kind: kind, ID: r.TargetID},
		Amount:       amount,
		Mode:         mode,
		PaymentDate:  paymentDate,
		WaiverBudget: waiver,
		Remarks:      r.Remarks,
	}, nil
}

type PaymentRecordResponse struct {
	ID            string    `json:"id"`
	ReceiptID     string    `json:"receiptId"`
	InstallmentID string    `json:"installmentId"`
	LoanID        *int64    `json:"loanId,omitempty"`
	BatchID       *int64    `json:"batchId,omitempty"`
	Amount        string    `json:"amount"`
	PenaltyWaived string    `json:"penaltyWaived"`
	Mode          string    `json:"mode"`
	PaymentDate   string    `json:"paymentDate"`
	RecordedBy    int64     `json:"recordedBy"`
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PaymentResultResponse struct {
	ReceiptID       string                  `json:"receiptId"`
	TargetKind      string                  `json:"targetKind"`
	TargetID        int64                   `json:"targetId"`
	AmountApplied   string                  `json:"amountApplied"`
	AmountUnapplied string                  `json:"amountUnapplied"`
	PenaltyWaived   string                  `json:"penaltyWaived"`
	Closed          bool                    `json:"closed"`
	ClosedParents   []string                `json:"closedParents,omitempty"`
	LedgerCredited  bool                    `json:"ledgerCredited"`
	Records         []PaymentRecordResponse `json:"records"`
	Installments    []InstallmentResponse   `json:"installments"`
}

func NewPaymentRecordResponse(r payment.Record) PaymentRecordResponse {
	return PaymentRecordResponse{
		ID:            fmt.Sprint(r.ID),
		ReceiptID:     r.ReceiptID.String(),
		InstallmentID: fmt.Sprint(r.InstallmentID),
		LoanID:        r.LoanID,
		BatchID:       r.BatchID,
		Amount:        r.Amount.StringFixed(2),
		PenaltyWaived: r.PenaltyWaived.StringFixed(2),
		Mode:          string(r.Mode),
		PaymentDate:   r.PaymentDate.Format(schedule.DateLayout),
		RecordedBy:    r.RecordedBy,
		Remarks:       r.Remarks,
		CreatedAt:     r.CreatedAt,
	}
}

func NewPaymentRecordResponses(records []payment.Record) []PaymentRecordResponse {
	resp := make([]PaymentRecordResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, NewPaymentRecordResponse(r))
	}
	return resp
}

func NewPaymentResultResponse(res *payment.Result) PaymentResultResponse {
	closed := make([]string, 0, len(res.ClosedParents))
	for _, p := range res.ClosedParents {
		closed = append(closed, p.String())
	}
	return PaymentResultResponse{
		ReceiptID:       res.ReceiptID.String(),
		TargetKind:      string(res.Target.Kind),
		TargetID:        res.Target.ID,
		AmountApplied:   res.AmountApplied.StringFixed(2),
		AmountUnapplied: res.AmountUnapplied.StringFixed(2),
		PenaltyWaived:   res.PenaltyWaived.StringFixed(2),
		Closed:          res.Closed,
		ClosedParents:   closed,
		LedgerCredited:  res.LedgerCredited,
		Records:         NewPaymentRecordResponses(res.Records),
		Installments:    NewInstallmentResponses(res.Installments),
	}
}
