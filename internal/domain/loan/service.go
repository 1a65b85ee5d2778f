package loan

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

type LoanService interface {
	Issue(ctx context.Context, cmd IssueCommand) (*Issuance, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetSchedule(ctx context.Context, parent schedule.Parent) ([]schedule.Installment, error)
}

// IssuanceDebiter charges the issuing actor for a new loan or batch.
type IssuanceDebiter interface {
	DebitForIssuance(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.TokenCreationReference, recordedBy int64) (*ledger.IssuanceDebit, error)
}

type loanServiceImpl struct {
	repo   Repository
	ledger IssuanceDebiter
	logger *slog.Logger
}

// NewLoanService wires issuance. A nil debiter disables ledger booking.
func NewLoanService(r Repository, debiter IssuanceDebiter, logger *slog.Logger) LoanService {
	logger = logger.With("component", "LoanService")
	if debiter == nil {
		logger.Info("Ledger booking disabled for issuance")
	}
	return &loanServiceImpl{repo: r, ledger: debiter, logger: logger}
}

func (s *loanServiceImpl) Issue(ctx context.Context, cmd IssueCommand) (*Issuance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.With("customerID", cmd.CustomerID, "issuedBy", cmd.IssuedBy, "batchSize", cmd.BatchSize)
	logger.InfoContext(ctx, "Issuing loan")

	installments, err := GenerateSchedule(cmd.StartDate, cmd.InstallmentAmount(), cmd.DurationDays)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to generate schedule", "error", err)
		return nil, fmt.Errorf("failed to generate schedule: %w", err)
	}

	issuance, err := s.persist(ctx, cmd, installments)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save issuance and schedule", "error", err)
		return nil, err
	}

	if s.ledger != nil {
		ref := ledger.TokenCreationReference{ParentKind: string(issuance.Parent.Kind), ParentID: issuance.Parent.ID}
		debit, debitErr := s.ledger.DebitForIssuance(ctx, cmd.IssuedBy, cmd.TotalAmount(), ref, cmd.IssuedBy)
		if debitErr != nil {
			// The schedule is committed; the ledger gap is reported, not rolled back.
			logger.ErrorContext(ctx, "Issuance saved but ledger debit failed", "parent", issuance.Parent.String(), slog.Any("error", debitErr))
		} else {
			issuance.Debit = debit
		}
	}

	logger.InfoContext(ctx, "Issuance recorded", "parent", issuance.Parent.String(),
		"installments", len(issuance.Installments), "total", cmd.TotalAmount().String())
	return issuance, nil
}

func (s *loanServiceImpl) persist(ctx context.Context, cmd IssueCommand, installments []schedule.Installment) (issuance *Issuance, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic occurred during issuance", "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	start := schedule.DateOf(cmd.StartDate)
	issuance = &Issuance{}

	if cmd.IsBatch() {
		b := &Batch{
			CustomerID:   cmd.CustomerID,
			Size:         cmd.BatchSize,
			DailyAmount:  cmd.InstallmentAmount(),
			TotalAmount:  cmd.TotalAmount(),
			DurationDays: cmd.DurationDays,
			StartDate:    start,
			Status:       schedule.ParentActive,
			IssuedBy:     cmd.IssuedBy,
		}
		if err = s.repo.CreateBatchInTx(ctx, tx, b); err != nil {
			return nil, err
		}
		perLoanTotal := cmd.DailyAmount.Mul(decimal.NewFromInt(int64(cmd.DurationDays)))
		for i := 0; i < cmd.BatchSize; i++ {
			batchID := b.ID
			child := Loan{
				CustomerID:   cmd.CustomerID,
				BatchID:      &batchID,
				DailyAmount:  cmd.DailyAmount,
				TotalAmount:  perLoanTotal,
				DurationDays: cmd.DurationDays,
				StartDate:    start,
				Status:       schedule.ParentActive,
				IssuedBy:     cmd.IssuedBy,
			}
			if err = s.repo.CreateLoanInTx(ctx, tx, &child); err != nil {
				return nil, err
			}
			b.Loans = append(b.Loans, child)
		}
		issuance.Batch = b
		issuance.Parent = schedule.Parent{Kind: schedule.ParentBatch, ID: b.ID}
	} else {
		l := &Loan{
			CustomerID:   cmd.CustomerID,
			DailyAmount:  cmd.DailyAmount,
			TotalAmount:  cmd.TotalAmount(),
			DurationDays: cmd.DurationDays,
			StartDate:    start,
			Status:       schedule.ParentActive,
			IssuedBy:     cmd.IssuedBy,
		}
		if err = s.repo.CreateLoanInTx(ctx, tx, l); err != nil {
			return nil, err
		}
		issuance.Loan = l
		issuance.Parent = schedule.Parent{Kind: schedule.ParentLoan, ID: l.ID}
	}

	issuance.Installments, err = s.repo.InsertInstallmentsInTx(ctx, tx, issuance.Parent, installments)
	if err != nil {
		return nil, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return issuance, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		return nil, err
	}
	return l, nil
}

func (s *loanServiceImpl) GetSchedule(ctx context.Context, parent schedule.Parent) ([]schedule.Installment, error) {
	installments, err := s.repo.GetScheduleByParent(ctx, parent)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, fmt.Errorf("%w: no schedule for %s", apperrors.ErrNotFound, parent)
	}
	return installments, nil
}
