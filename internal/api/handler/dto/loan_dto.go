package dto

import (
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/schedule"
	"fmt"
	"time"
)

type IssueRequest struct {
	CustomerID   int64  `json:"customerId"`
	BatchSize    int    `json:"batchSize"`
	DailyAmount  string `json:"dailyAmount"`
	DurationDays int    `json:"durationDays"`
	StartDate    string `json:"startDate"`
}

func (r *IssueRequest) ToCommand(issuedBy int64) (loan.IssueCommand, error) {
	daily, err := parseAmount("dailyAmount", r.DailyAmount)
	if err != nil {
		return loan.IssueCommand{}, err
	}
	start, err := schedule.ParseDate(r.StartDate)
	if err != nil {
		return loan.IssueCommand{}, fmt.Errorf("invalid startDate format (use YYYY-MM-DD): %w", err)
	}
	return loan.IssueCommand{
		CustomerID:   r.CustomerID,
		IssuedBy:     issuedBy,
		BatchSize:    r.BatchSize,
		DailyAmount:  daily,
		DurationDays: r.DurationDays,
		StartDate:    start,
	}, nil
}

type LoanResponse struct {
	ID           string    `json:"id"`
	CustomerID   int64     `json:"customerId"`
	BatchID      *int64    `json:"batchId,omitempty"`
	DailyAmount  string    `json:"dailyAmount"`
	TotalAmount  string    `json:"totalAmount"`
	DurationDays int       `json:"durationDays"`
	StartDate    string    `json:"startDate"`
	Status       string    `json:"status"`
	IssuedBy     int64     `json:"issuedBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type BatchResponse struct {
	ID           string         `json:"id"`
	CustomerID   int64          `json:"customerId"`
	Size         int            `json:"size"`
	DailyAmount  string         `json:"dailyAmount"`
	TotalAmount  string         `json:"totalAmount"`
	DurationDays int            `json:"durationDays"`
	StartDate    string         `json:"startDate"`
	Status       string         `json:"status"`
	IssuedBy     int64          `json:"issuedBy"`
	CreatedAt    time.Time      `json:"createdAt"`
	Loans        []LoanResponse `json:"loans,omitempty"`
}

type InstallmentResponse struct {
	ID                string     `json:"id"`
	LoanID            *int64     `json:"loanId,omitempty"`
	BatchID           *int64     `json:"batchId,omitempty"`
	DueDate           string     `json:"dueDate"`
	InstallmentAmount string     `json:"installmentAmount"`
	PenaltyAmount     string     `json:"penaltyAmount"`
	PenaltyWaived     string     `json:"penaltyWaived"`
	PaidAmount        string     `json:"paidAmount"`
	TotalDue          string     `json:"totalDue"`
	Outstanding       string     `json:"outstanding"`
	Status            string     `json:"status"`
	PaymentDate       *time.Time `json:"paymentDate,omitempty"`
}

type IssuanceResponse struct {
	Parent        string                `json:"parent"`
	Loan          *LoanResponse         `json:"loan,omitempty"`
	Batch         *BatchResponse        `json:"batch,omitempty"`
	Installments  []InstallmentResponse `json:"installments"`
	DebitApplied  *bool                 `json:"debitApplied,omitempty"`
	IssuerBalance *string               `json:"issuerBalance,omitempty"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:           fmt.Sprint(l.ID),
		CustomerID:   l.CustomerID,
		BatchID:      l.BatchID,
		DailyAmount:  l.DailyAmount.StringFixed(2),
		TotalAmount:  l.TotalAmount.StringFixed(2),
		DurationDays: l.DurationDays,
		StartDate:    l.StartDate.Format(schedule.DateLayout),
		Status:       string(l.Status),
		IssuedBy:     l.IssuedBy,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func NewBatchResponse(b *loan.Batch) BatchResponse {
	loans := make([]LoanResponse, 0, len(b.Loans))
	for i := range b.Loans {
		loans = append(loans, NewLoanResponse(&b.Loans[i]))
	}
	return BatchResponse{
		ID:           fmt.Sprint(b.ID),
		CustomerID:   b.CustomerID,
		Size:         b.Size,
		DailyAmount:  b.DailyAmount.StringFixed(2),
		TotalAmount:  b.TotalAmount.StringFixed(2),
		DurationDays: b.DurationDays,
		StartDate:    b.StartDate.Format(schedule.DateLayout),
		Status:       string(b.Status),
		IssuedBy:     b.IssuedBy,
		CreatedAt:    b.CreatedAt,
		Loans:        loans,
	}
}

func NewInstallmentResponse(inst *schedule.Installment) InstallmentResponse {
	return InstallmentResponse{
		ID:                fmt.Sprint(inst.ID),
		LoanID:            inst.LoanID,
		BatchID:           inst.BatchID,
		DueDate:           inst.DueDate.Format(schedule.DateLayout),
		InstallmentAmount: inst.InstallmentAmount.StringFixed(2),
		PenaltyAmount:     inst.PenaltyAmount.StringFixed(2),
		PenaltyWaived:     inst.PenaltyWaived.StringFixed(2),
		PaidAmount:        inst.PaidAmount.StringFixed(2),
		TotalDue:          inst.TotalDue.StringFixed(2),
		Outstanding:       inst.Outstanding().StringFixed(2),
		Status:            string(inst.Status),
		PaymentDate:       inst.PaymentDate,
	}
}

func NewInstallmentResponses(installments []schedule.Installment) []InstallmentResponse {
	resp := make([]InstallmentResponse, 0, len(installments))
	for i := range installments {
		resp = append(resp, NewInstallmentResponse(&installments[i]))
	}
	return resp
}

func NewIssuanceResponse(is *loan.Issuance) IssuanceResponse {
	resp := IssuanceResponse{
		Parent:       is.Parent.String(),
		Installments: NewInstallmentResponses(is.Installments),
	}
	if is.Loan != nil {
		l := NewLoanResponse(is.Loan)
		resp.Loan = &l
	}
	if is.Batch != nil {
		b := NewBatchResponse(is.Batch)
		resp.Batch = &b
	}
	if is.Debit != nil {
		applied := is.Debit.Applied
		balance := is.Debit.Balance.StringFixed(2)
		resp.DebitApplied = &applied
		resp.IssuerBalance = &balance
	}
	return resp
}
