package handler

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/penalty"
	"collection-ledger/internal/domain/schedule"
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RecordPayment(ctx context.Context, cmd payment.RecordPaymentCommand) (*payment.Result, error) {
	args := m.Called(ctx, cmd)
	if res, ok := args.Get(0).(*payment.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentService) GetReceipt(ctx context.Context, receiptID uuid.UUID) ([]payment.Record, error) {
	args := m.Called(ctx, receiptID)
	if records, ok := args.Get(0).([]payment.Record); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockPenaltyService struct {
	mock.Mock
}

func (m *MockPenaltyService) Accrue(ctx context.Context, asOf time.Time) (*penalty.AccrualResult, error) {
	args := m.Called(ctx, asOf)
	if res, ok := args.Get(0).(*penalty.AccrualResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPenaltyService) GetActivePolicy(ctx context.Context) (*penalty.Policy, error) {
	args := m.Called(ctx)
	if p, ok := args.Get(0).(*penalty.Policy); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPenaltyService) CreatePolicy(ctx context.Context, p penalty.Policy) (*penalty.Policy, error) {
	args := m.Called(ctx, p)
	if created, ok := args.Get(0).(*penalty.Policy); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPenaltyService) ActivatePolicy(ctx context.Context, policyID int64) (*penalty.Policy, error) {
	args := m.Called(ctx, policyID)
	if p, ok := args.Get(0).(*penalty.Policy); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Issue(ctx context.Context, cmd loan.IssueCommand) (*loan.Issuance, error) {
	args := m.Called(ctx, cmd)
	if is, ok := args.Get(0).(*loan.Issuance); ok {
		return is, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetSchedule(ctx context.Context, parent schedule.Parent) ([]schedule.Installment, error) {
	args := m.Called(ctx, parent)
	if installments, ok := args.Get(0).([]schedule.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) EnsureAccount(ctx context.Context, actorID int64) (*ledger.Account, error) {
	args := m.Called(ctx, actorID)
	if a, ok := args.Get(0).(*ledger.Account); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, actorID int64) (*ledger.Account, error) {
	args := m.Called(ctx, actorID)
	if a, ok := args.Get(0).(*ledger.Account); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) Credit(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.Reference, recordedBy int64) (decimal.Decimal, error) {
	args := m.Called(ctx, actorID, amount, ref, recordedBy)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerService) Debit(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.Reference, recordedBy int64) (decimal.Decimal, error) {
	args := m.Called(ctx, actorID, amount, ref, recordedBy)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, fromActorID, toActorID int64, amount decimal.Decimal, ref ledger.Reference, recordedBy int64) (*ledger.TransferResult, error) {
	args := m.Called(ctx, fromActorID, toActorID, amount, ref, recordedBy)
	if res, ok := args.Get(0).(*ledger.TransferResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) FundAccount(ctx context.Context, cmd ledger.FundCommand) (*ledger.TransferResult, error) {
	args := m.Called(ctx, cmd)
	if res, ok := args.Get(0).(*ledger.TransferResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) SettleCash(ctx context.Context, agentActorID int64, amount decimal.Decimal, reason string, recordedBy int64) (*ledger.TransferResult, error) {
	args := m.Called(ctx, agentActorID, amount, reason, recordedBy)
	if res, ok := args.Get(0).(*ledger.TransferResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) DebitForIssuance(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.TokenCreationReference, recordedBy int64) (*ledger.IssuanceDebit, error) {
	args := m.Called(ctx, actorID, amount, ref, recordedBy)
	if res, ok := args.Get(0).(*ledger.IssuanceDebit); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) ListTransactions(ctx context.Context, actorID int64, limit, offset int) ([]ledger.Transaction, error) {
	args := m.Called(ctx, actorID, limit, offset)
	if txns, ok := args.Get(0).([]ledger.Transaction); ok {
		return txns, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerService) Reconcile(ctx context.Context, actorID int64) (*ledger.Reconciliation, error) {
	args := m.Called(ctx, actorID)
	if rec, ok := args.Get(0).(*ledger.Reconciliation); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func withURLParam(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, chi.RouteCtxKey, &chi.Context{
		URLParams: chi.RouteParams{Keys: []string{key}, Values: []string{value}},
	})
}
