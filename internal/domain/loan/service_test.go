package loan

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var startDate = time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func singleCommand() IssueCommand {
	return IssueCommand{CustomerID: 3, IssuedBy: 5, DailyAmount: d("10"), DurationDays: 30, StartDate: startDate}
}

func TestGenerateSchedule(t *testing.T) {
	installments, err := GenerateSchedule(startDate, d("10"), 3)

	require.NoError(t, err)
	require.Len(t, installments, 3)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), installments[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), installments[2].DueDate)
	for _, inst := range installments {
		assert.Equal(t, schedule.StatusPending, inst.Status)
		assert.True(t, d("10").Equal(inst.TotalDue))
		assert.NoError(t, inst.Validate())
	}

	_, err = GenerateSchedule(startDate, d("10"), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = GenerateSchedule(startDate, decimal.Zero, 3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestIssueCommand(t *testing.T) {
	cmd := singleCommand()
	assert.NoError(t, cmd.Validate())
	assert.True(t, d("300").Equal(cmd.TotalAmount()))

	cmd.BatchSize = 4
	assert.True(t, d("40").Equal(cmd.InstallmentAmount()))
	assert.True(t, d("1200").Equal(cmd.TotalAmount()))

	bad := singleCommand()
	bad.DailyAmount = decimal.Zero
	assert.ErrorIs(t, bad.Validate(), apperrors.ErrInvalidAmount)

	bad = singleCommand()
	bad.DurationDays = MaxDurationDays + 1
	assert.ErrorIs(t, bad.Validate(), apperrors.ErrValidation)

	bad = singleCommand()
	bad.BatchSize = -1
	assert.ErrorIs(t, bad.Validate(), apperrors.ErrValidation)

	bad = singleCommand()
	bad.DailyAmount = d("10.005")
	assert.ErrorIs(t, bad.Validate(), apperrors.ErrInvalidAmount)
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("Single token", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockDebiter := new(MockDebiter)
		service := NewLoanService(mockRepo, mockDebiter, logger)
		loanParent := schedule.Parent{Kind: schedule.ParentLoan, ID: 11}

		mockRepo.On("BeginTx", ctx).Return(tx, nil).Once()
		mockRepo.On("CreateLoanInTx", ctx, tx, mock.MatchedBy(func(l *Loan) bool {
			return l.BatchID == nil && l.TotalAmount.Equal(d("300")) && l.Status == schedule.ParentActive
		})).Run(func(args mock.Arguments) { args.Get(2).(*Loan).ID = 11 }).Return(nil).Once()
		mockRepo.On("InsertInstallmentsInTx", ctx, tx, loanParent, mock.MatchedBy(func(rows []schedule.Installment) bool {
			return len(rows) == 30
		})).Return(stampOwner, nil).Once()
		mockRepo.On("CommitTx", ctx, tx).Return(nil).Once()
		mockDebiter.On("DebitForIssuance", ctx, int64(5), mock.MatchedBy(func(a decimal.Decimal) bool { return a.Equal(d("300")) }),
			ledger.TokenCreationReference{ParentKind: "loan", ParentID: 11}, int64(5)).
			Return(&ledger.IssuanceDebit{Applied: true, Balance: d("700")}, nil).Once()

		issuance, err := service.Issue(ctx, singleCommand())

		require.NoError(t, err)
		assert.Equal(t, loanParent, issuance.Parent)
		require.NotNil(t, issuance.Loan)
		assert.Nil(t, issuance.Batch)
		assert.Len(t, issuance.Installments, 30)
		assert.Equal(t, int64(11), *issuance.Installments[0].LoanID)
		assert.True(t, issuance.Debit.Applied)
		mockRepo.AssertExpectations(t)
		mockDebiter.AssertExpectations(t)
	})

	t.Run("Batch with child tokens", func(t *testing.T) {
		mockRepo := new(MockRepository)
		service := NewLoanService(mockRepo, nil, logger)
		cmd := singleCommand()
		cmd.BatchSize = 3
		batchParent := schedule.Parent{Kind: schedule.ParentBatch, ID: 4}

		mockRepo.On("BeginTx", ctx).Return(tx, nil).Once()
		mockRepo.On("CreateBatchInTx", ctx, tx, mock.MatchedBy(func(b *Batch) bool {
			return b.Size == 3 && b.DailyAmount.Equal(d("30")) && b.TotalAmount.Equal(d("900"))
		})).Run(func(args mock.Arguments) { args.Get(2).(*Batch).ID = 4 }).Return(nil).Once()
		mockRepo.On("CreateLoanInTx", ctx, tx, mock.MatchedBy(func(l *Loan) bool {
			return l.BatchID != nil && *l.BatchID == 4 && l.DailyAmount.Equal(d("10"))
		})).Return(nil).Times(3)
		mockRepo.On("InsertInstallmentsInTx", ctx, tx, batchParent, mock.Anything).Return(stampOwner, nil).Once()
		mockRepo.On("CommitTx", ctx, tx).Return(nil).Once()

		issuance, err := service.Issue(ctx, cmd)

		require.NoError(t, err)
		require.NotNil(t, issuance.Batch)
		assert.Len(t, issuance.Batch.Loans, 3)
		assert.Equal(t, batchParent, issuance.Parent)
		assert.True(t, d("30").Equal(issuance.Installments[0].InstallmentAmount))
		assert.Nil(t, issuance.Debit)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Insert failure rolls back and skips debit", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockDebiter := new(MockDebiter)
		service := NewLoanService(mockRepo, mockDebiter, logger)
		dbErr := errors.New("insert failed")

		mockRepo.On("BeginTx", ctx).Return(tx, nil).Once()
		mockRepo.On("CreateLoanInTx", ctx, tx, mock.Anything).Return(nil).Once()
		mockRepo.On("InsertInstallmentsInTx", ctx, tx, mock.Anything, mock.Anything).Return(nil, dbErr).Once()
		mockRepo.On("RollbackTx", ctx, tx).Return(nil).Once()

		_, err := service.Issue(ctx, singleCommand())

		assert.ErrorIs(t, err, dbErr)
		mockRepo.AssertExpectations(t)
		mockDebiter.AssertNotCalled(t, "DebitForIssuance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Ledger failure keeps issuance", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockDebiter := new(MockDebiter)
		service := NewLoanService(mockRepo, mockDebiter, logger)

		mockRepo.On("BeginTx", ctx).Return(tx, nil).Once()
		mockRepo.On("CreateLoanInTx", ctx, tx, mock.Anything).Return(nil).Once()
		mockRepo.On("InsertInstallmentsInTx", ctx, tx, mock.Anything, mock.Anything).Return(stampOwner, nil).Once()
		mockRepo.On("CommitTx", ctx, tx).Return(nil).Once()
		mockDebiter.On("DebitForIssuance", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, apperrors.ErrDatabase).Once()

		issuance, err := service.Issue(ctx, singleCommand())

		require.NoError(t, err)
		assert.Nil(t, issuance.Debit)
	})

	t.Run("Invalid command", func(t *testing.T) {
		mockRepo := new(MockRepository)
		service := NewLoanService(mockRepo, nil, logger)
		cmd := singleCommand()
		cmd.CustomerID = 0

		_, err := service.Issue(ctx, cmd)

		assert.ErrorIs(t, err, apperrors.ErrValidation)
		mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
	})
}

func TestGetLoan(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockRepository)
	service := NewLoanService(mockRepo, nil, logger)

	mockRepo.On("GetLoanByID", ctx, int64(11)).Return(&Loan{ID: 11}, nil).Once()
	mockRepo.On("GetLoanByID", ctx, int64(12)).Return(nil, apperrors.ErrNotFound).Once()

	l, err := service.GetLoan(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), l.ID)

	_, err = service.GetLoan(ctx, 12)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetSchedule(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockRepository)
	service := NewLoanService(mockRepo, nil, logger)
	parent := schedule.Parent{Kind: schedule.ParentBatch, ID: 4}

	mockRepo.On("GetScheduleByParent", ctx, parent).Return([]schedule.Installment{}, nil).Once()

	_, err := service.GetSchedule(ctx, parent)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
