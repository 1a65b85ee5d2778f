package loan

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/schedule"
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

type TxMock struct {
	pgx.Tx
}

var tx pgx.Tx = &TxMock{}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	t, _ := args.Get(0).(pgx.Tx)
	return t, args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, l *Loan) error {
	args := m.Called(ctx, tx, l)
	return args.Error(0)
}

func (m *MockRepository) CreateBatchInTx(ctx context.Context, tx pgx.Tx, b *Batch) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockRepository) InsertInstallmentsInTx(ctx context.Context, tx pgx.Tx, parent schedule.Parent, installments []schedule.Installment) ([]schedule.Installment, error) {
	args := m.Called(ctx, tx, parent, installments)
	if rf, ok := args.Get(0).(func(schedule.Parent, []schedule.Installment) []schedule.Installment); ok {
		return rf(parent, installments), args.Error(1)
	}
	saved, _ := args.Get(0).([]schedule.Installment)
	return saved, args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	l, _ := args.Get(0).(*Loan)
	return l, args.Error(1)
}

func (m *MockRepository) GetScheduleByParent(ctx context.Context, parent schedule.Parent) ([]schedule.Installment, error) {
	args := m.Called(ctx, parent)
	rows, _ := args.Get(0).([]schedule.Installment)
	return rows, args.Error(1)
}

type MockDebiter struct {
	mock.Mock
}

func (m *MockDebiter) DebitForIssuance(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.TokenCreationReference, recordedBy int64) (*ledger.IssuanceDebit, error) {
	args := m.Called(ctx, actorID, amount, ref, recordedBy)
	debit, _ := args.Get(0).(*ledger.IssuanceDebit)
	return debit, args.Error(1)
}

// stampOwner mimics the store filling in ids and the owning parent.
func stampOwner(parent schedule.Parent, installments []schedule.Installment) []schedule.Installment {
	out := make([]schedule.Installment, len(installments))
	for i, inst := range installments {
		id := parent.ID
		inst.ID = int64(i + 1)
		if parent.Kind == schedule.ParentBatch {
			inst.BatchID = &id
		} else {
			inst.LoanID = &id
		}
		out[i] = inst
	}
	return out
}
