package penalty

import (
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/event"
	"collection-ledger/internal/infrastructure/monitoring"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/retry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	rowPenalized = "penalized"
	rowSkipped   = "skipped"
	rowFailed    = "failed"
)

type PenaltyService interface {
	Accrue(ctx context.Context, asOf time.Time) (*AccrualResult, error)

	GetActivePolicy(ctx context.Context) (*Policy, error)

	CreatePolicy(ctx context.Context, p Policy) (*Policy, error)

	ActivatePolicy(ctx context.Context, policyID int64) (*Policy, error)
}

type penaltyServiceImpl struct {
	repo        Repository
	publisher   event.Publisher
	workers     int
	retryPolicy retry.Policy
	logger      *slog.Logger
}

func NewPenaltyService(r Repository, publisher event.Publisher, workers int, retryPolicy retry.Policy, logger *slog.Logger) PenaltyService {
	if workers < 1 {
		workers = 1
	}
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &penaltyServiceImpl{
		repo:        r,
		publisher:   publisher,
		workers:     workers,
		retryPolicy: retryPolicy,
		logger:      logger.With("component", "PenaltyService"),
	}
}

type rowOutcome struct {
	result  string
	penalty decimal.Decimal
	flagged bool
}

func (s *penaltyServiceImpl) Accrue(ctx context.Context, asOf time.Time) (*AccrualResult, error) {
	asOf = schedule.DateOf(asOf)
	startTime := time.Now()
	logger := s.logger.With("asOf", asOf.Format(schedule.DateLayout))

	policy, err := s.GetActivePolicy(ctx)
	if err != nil {
		return nil, err
	}
	logger = logger.With("policyID", policy.ID, "penaltyType", string(policy.Type), "graceDays", policy.GraceDays)

	candidates, err := s.repo.ListAccrualCandidates(ctx, asOf.AddDate(0, 0, -policy.GraceDays))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list accrual candidates", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list accrual candidates: %w", err)
	}
	logger.InfoContext(ctx, "Starting penalty accrual", slog.Int("candidates", len(candidates)))

	result := &AccrualResult{AsOf: asOf, TotalPenaltyAdded: decimal.Zero}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, rowErr := s.accrueRow(ctx, policy, id, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case rowErr != nil:
				logger.ErrorContext(ctx, "Failed to accrue penalty", slog.Int64("installmentID", id), slog.Any("error", rowErr))
				result.Errors++
				monitoring.RecordAccrualRow(rowFailed, decimal.Zero)
			case outcome.result == rowPenalized:
				result.InstallmentsProcessed++
				result.TotalPenaltyAdded = result.TotalPenaltyAdded.Add(outcome.penalty)
				if outcome.flagged {
					result.LoansFlaggedOverdue++
				}
				monitoring.RecordAccrualRow(rowPenalized, outcome.penalty)
			default:
				result.Skipped++
				monitoring.RecordAccrualRow(rowSkipped, decimal.Zero)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.WarnContext(ctx, "Penalty accrual interrupted", slog.Int("processed", result.InstallmentsProcessed), slog.Any("error", err))
		return result, fmt.Errorf("penalty accrual interrupted: %w", err)
	}

	summary := logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("installments_processed", result.InstallmentsProcessed),
		slog.String("total_penalty_added", result.TotalPenaltyAdded.StringFixed(2)),
		slog.Int("parents_flagged_overdue", result.LoansFlaggedOverdue),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors_encountered", result.Errors),
	)
	if result.Errors > 0 {
		summary.WarnContext(ctx, "Penalty accrual finished with errors")
	} else {
		summary.InfoContext(ctx, "Penalty accrual finished")
	}

	if pubErr := s.publisher.PublishAccrualCompleted(ctx, event.AccrualCompletedEvent{
		AsOfDate:              asOf.Format(schedule.DateLayout),
		InstallmentsProcessed: result.InstallmentsProcessed,
		TotalPenaltyAdded:     result.TotalPenaltyAdded.StringFixed(2),
		LoansFlaggedOverdue:   result.LoansFlaggedOverdue,
		Errors:                result.Errors,
		Timestamp:             time.Now().UTC(),
	}); pubErr != nil {
		logger.WarnContext(ctx, "Failed to publish accrual event", slog.Any("error", pubErr))
	}
	return result, nil
}

func (s *penaltyServiceImpl) accrueRow(ctx context.Context, policy *Policy, installmentID int64, asOf time.Time) (rowOutcome, error) {
	var outcome rowOutcome
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var txErr error
		outcome, txErr = s.accrueRowInTx(ctx, policy, installmentID, asOf)
		return txErr
	})
	return outcome, err
}

// accrueRowInTx re-reads the row under lock so a row penalized by a concurrent
// or earlier run is skipped.
func (s *penaltyServiceImpl) accrueRowInTx(ctx context.Context, policy *Policy, installmentID int64, asOf time.Time) (outcome rowOutcome, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return outcome, err
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic occurred during penalty accrual", "installmentID", installmentID, "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil || outcome.result != rowPenalized {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	inst, err := s.repo.LockInstallmentInTx(ctx, tx, installmentID)
	if err != nil {
		return outcome, err
	}
	if !policy.Eligible(inst, asOf) {
		outcome.result = rowSkipped
		return outcome, nil
	}

	previous := inst.Status
	penalty := policy.PenaltyFor(inst)
	inst.PenaltyAmount = penalty
	inst.TotalDue = inst.InstallmentAmount.Add(penalty)
	inst.Status = schedule.StatusOverdue
	if !schedule.CanTransition(previous, inst.Status) {
		return outcome, apperrors.NewStateError("installment", inst.ID, string(previous),
			fmt.Errorf("%w: illegal transition to %s", apperrors.ErrValidation, inst.Status))
	}
	if err = s.repo.ApplyPenaltyInTx(ctx, tx, inst); err != nil {
		return outcome, err
	}

	flagged, err := s.repo.FlagParentOverdueInTx(ctx, tx, inst.Parent())
	if err != nil {
		return outcome, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return outcome, err
	}

	s.logger.DebugContext(ctx, "Penalty applied", "installmentID", inst.ID, "parent", inst.Parent().String(),
		"penalty", penalty.String(), "previousStatus", string(previous), "parentFlagged", flagged)
	return rowOutcome{result: rowPenalized, penalty: penalty, flagged: flagged}, nil
}

func (s *penaltyServiceImpl) GetActivePolicy(ctx context.Context) (*Policy, error) {
	policy, err := s.repo.GetActivePolicy(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNoActivePolicy
		}
		s.logger.ErrorContext(ctx, "Failed to load active penalty policy", slog.Any("error", err))
		return nil, err
	}
	return policy, nil
}

func (s *penaltyServiceImpl) CreatePolicy(ctx context.Context, p Policy) (*Policy, error) {
	p.Active = false
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePolicy(ctx, &p); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create penalty policy", slog.Any("error", err))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Penalty policy created", "policyID", p.ID, "penaltyType", string(p.Type), "value", p.Value.String())
	return &p, nil
}

func (s *penaltyServiceImpl) ActivatePolicy(ctx context.Context, policyID int64) (policy *Policy, err error) {
	if policyID <= 0 {
		return nil, fmt.Errorf("%w: policy id must be positive", apperrors.ErrInvalidArgument)
	}
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	policy, err = s.repo.ActivatePolicyInTx(ctx, tx, policyID)
	if err != nil {
		return nil, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Penalty policy activated", "policyID", policyID)
	return policy, nil
}
