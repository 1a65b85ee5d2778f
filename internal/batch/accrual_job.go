package batch

import (
	"collection-ledger/internal/domain/penalty"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AccrualJob runs the daily penalty pass for the current date.
type AccrualJob struct {
	penaltyService penalty.PenaltyService
	now            func() time.Time
	logger         *slog.Logger
}

func NewAccrualJob(penaltySvc penalty.PenaltyService, logger *slog.Logger) *AccrualJob {
	if penaltySvc == nil || logger == nil {
		panic("AccrualJob dependencies cannot be nil")
	}
	return &AccrualJob{
		penaltyService: penaltySvc,
		now:            time.Now,
		logger:         logger.With("job", "PenaltyAccrual"),
	}
}

func (j *AccrualJob) Run(ctx context.Context) error {
	startTime := time.Now()
	asOf := schedule.DateOf(j.now())
	j.logger.InfoContext(ctx, "Starting daily penalty accrual job.", "asOf", asOf.Format(schedule.DateLayout))

	result, err := j.penaltyService.Accrue(ctx, asOf)
	if err != nil && result == nil {
		if errors.Is(err, apperrors.ErrNoActivePolicy) {
			j.logger.WarnContext(ctx, "No active penalty policy, nothing to accrue.")
			return nil
		}
		j.logger.ErrorContext(ctx, "Penalty accrual aborted.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, accrual failed: %w", err)
	}

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("installments_processed", result.InstallmentsProcessed),
		slog.String("total_penalty_added", result.TotalPenaltyAdded.StringFixed(2)),
		slog.Int("parents_flagged_overdue", result.LoansFlaggedOverdue),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors_encountered", result.Errors),
	)
	if err != nil {
		summaryLog.WarnContext(ctx, "Penalty accrual job interrupted.", slog.Any("error", err))
		return fmt.Errorf("job interrupted after %d installments: %w", result.InstallmentsProcessed, err)
	}
	if result.Errors > 0 {
		summaryLog.WarnContext(ctx, "Penalty accrual job finished with errors.")
		return fmt.Errorf("job completed with %d errors", result.Errors)
	}
	summaryLog.InfoContext(ctx, "Penalty accrual job finished successfully.")
	return nil
}
