package payment

import (
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/event"
	"collection-ledger/internal/infrastructure/lock"
	"collection-ledger/internal/infrastructure/monitoring"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/retry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PaymentService interface {
	RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (*Result, error)

	GetReceipt(ctx context.Context, receiptID uuid.UUID) ([]Record, error)
}

// LedgerCrediter books collected cash against the collecting actor.
type LedgerCrediter interface {
	Credit(ctx context.Context, actorID int64, amount decimal.Decimal, ref ledger.Reference, recordedBy int64) (decimal.Decimal, error)
}

type paymentServiceImpl struct {
	repo        Repository
	ledger      LedgerCrediter
	locker      lock.Locker
	publisher   event.Publisher
	retryPolicy retry.Policy
	logger      *slog.Logger
	now         func() time.Time
}

// NewPaymentService wires the allocator. A nil crediter disables ledger booking.
func NewPaymentService(r Repository, crediter LedgerCrediter, locker lock.Locker, publisher event.Publisher, retryPolicy retry.Policy, logger *slog.Logger) PaymentService {
	logger = logger.With("component", "PaymentService")
	if crediter == nil {
		logger.Info("Ledger booking disabled for collected payments")
	}
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &paymentServiceImpl{
		repo:        r,
		ledger:      crediter,
		locker:      locker,
		publisher:   publisher,
		retryPolicy: retryPolicy,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *paymentServiceImpl) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (result *Result, err error) {
	defer func() { monitoring.RecordPayment(paymentStatus(err)) }()

	if cmd.Mode == "" {
		cmd.Mode = ModeCash
	}
	if err = cmd.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.With("target", cmd.Target.String(), "actorID", cmd.ActorID)

	held, err := s.locker.Obtain(ctx, cmd.Target.LockKey())
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			logger.WarnContext(ctx, "Target is busy with another payment")
			return nil, fmt.Errorf("%w: %s is being updated by another payment", apperrors.ErrConcurrencyConflict, cmd.Target)
		}
		logger.ErrorContext(ctx, "Failed to obtain target lock", slog.Any("error", err))
		return nil, fmt.Errorf("failed to obtain lock for %s: %w", cmd.Target, err)
	}
	defer func() {
		if relErr := held.Release(context.WithoutCancel(ctx)); relErr != nil {
			logger.WarnContext(ctx, "Failed to release target lock", slog.Any("error", relErr))
		}
	}()

	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var txErr error
		result, txErr = s.allocateInTx(ctx, cmd)
		return txErr
	})
	if err != nil {
		logger.WarnContext(ctx, "Payment not recorded", "amount", cmd.Amount.String(), slog.Any("error", err))
		return nil, err
	}

	logger.InfoContext(ctx, "Payment recorded", "receiptID", result.ReceiptID, "applied", result.AmountApplied.String(),
		"unapplied", result.AmountUnapplied.String(), "waived", result.PenaltyWaived.String(), "closed", result.Closed)
	monitoring.RecordAllocation(result.AmountApplied, result.AmountUnapplied, result.PenaltyWaived)
	for _, p := range result.ClosedParents {
		monitoring.RecordParentClosed(string(p.Kind))
	}

	result.LedgerCredited = s.creditCollector(ctx, cmd, result.ReceiptID)
	s.publish(ctx, cmd, result)
	return result, nil
}

func (s *paymentServiceImpl) allocateInTx(ctx context.Context, cmd RecordPaymentCommand) (result *Result, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic occurred during payment allocation", "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	installments, err := s.repo.LockOutstandingInstallmentsInTx(ctx, tx, cmd.Target)
	if err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, s.emptyTargetError(ctx, tx, cmd.Target)
	}

	alloc, err := Allocate(installments, cmd.Amount, cmd.WaiverBudget, cmd.PaymentDate)
	if err != nil {
		return nil, err
	}

	receiptID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate receipt id: %w", err)
	}

	records := make([]Record, 0, len(alloc.Lines))
	updated := make([]schedule.Installment, 0, len(alloc.Lines))
	for i := range alloc.Lines {
		line := &alloc.Lines[i]
		if !schedule.CanTransition(line.PreviousStatus, line.Installment.Status) {
			return nil, apperrors.NewStateError("installment", line.Installment.ID, string(line.PreviousStatus),
				fmt.Errorf("%w: illegal transition to %s", apperrors.ErrValidation, line.Installment.Status))
		}
		if err = s.repo.UpdateInstallmentInTx(ctx, tx, &line.Installment); err != nil {
			return nil, err
		}
		updated = append(updated, line.Installment)
		records = append(records, Record{
			ReceiptID:     receiptID,
			InstallmentID: line.Installment.ID,
			LoanID:        line.Installment.LoanID,
			BatchID:       line.Installment.BatchID,
			Amount:        line.Applied,
			PenaltyWaived: line.Waived,
			Mode:          cmd.Mode,
			PaymentDate:   schedule.DateOf(cmd.PaymentDate),
			RecordedBy:    cmd.ActorID,
			Remarks:       cmd.Remarks,
		})
	}

	saved, err := s.repo.InsertPaymentRecordsInTx(ctx, tx, records)
	if err != nil {
		return nil, err
	}

	var closed []schedule.Parent
	for _, parent := range alloc.Parents() {
		unpaid, countErr := s.repo.CountUnpaidInstallmentsInTx(ctx, tx, parent)
		if countErr != nil {
			err = countErr
			return nil, err
		}
		if unpaid > 0 {
			continue
		}
		if err = s.repo.CloseParentInTx(ctx, tx, parent); err != nil {
			return nil, err
		}
		closed = append(closed, parent)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	return &Result{
		ReceiptID:       receiptID,
		Target:          cmd.Target,
		Records:         saved,
		Installments:    updated,
		AmountApplied:   alloc.AmountApplied,
		AmountUnapplied: alloc.AmountUnapplied,
		PenaltyWaived:   alloc.PenaltyWaived,
		ClosedParents:   closed,
		Closed:          len(closed) > 0 && alloc.Settled,
	}, nil
}

// emptyTargetError explains why a target had nothing to allocate against.
func (s *paymentServiceImpl) emptyTargetError(ctx context.Context, tx pgx.Tx, target schedule.Target) error {
	status, err := s.repo.GetTargetStatusInTx(ctx, tx, target)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: %s", apperrors.ErrNotFound, target)
		}
		return err
	}
	if status == schedule.ParentClosed {
		return apperrors.NewStateError(string(target.Kind), target.ID, string(status), apperrors.ErrTargetAlreadyClosed)
	}
	return apperrors.NewStateError(string(target.Kind), target.ID, string(status), apperrors.ErrNoOutstandingInstallments)
}

// creditCollector books the full cash amount to the collecting actor. The
// schedule is already committed, so a failure here is logged and counted only.
func (s *paymentServiceImpl) creditCollector(ctx context.Context, cmd RecordPaymentCommand, receiptID uuid.UUID) bool {
	if s.ledger == nil {
		return false
	}
	ref := ledger.CollectionReference{ReceiptID: receiptID, TargetKind: string(cmd.Target.Kind), TargetID: cmd.Target.ID}
	if _, err := s.ledger.Credit(ctx, cmd.ActorID, cmd.Amount, ref, cmd.ActorID); err != nil {
		s.logger.ErrorContext(ctx, "Payment committed but ledger credit failed",
			"receiptID", receiptID, "actorID", cmd.ActorID, "amount", cmd.Amount.String(), slog.Any("error", err))
		monitoring.RecordLedgerCreditGap()
		return false
	}
	return true
}

func (s *paymentServiceImpl) publish(ctx context.Context, cmd RecordPaymentCommand, result *Result) {
	ids := make([]int64, 0, len(result.Installments))
	for _, inst := range result.Installments {
		ids = append(ids, inst.ID)
	}
	now := s.now().UTC()
	if err := s.publisher.PublishPaymentRecorded(ctx, event.PaymentRecordedEvent{
		ReceiptID:       result.ReceiptID.String(),
		TargetKind:      string(cmd.Target.Kind),
		TargetID:        cmd.Target.ID,
		ActorID:         cmd.ActorID,
		Amount:          cmd.Amount.StringFixed(2),
		AmountApplied:   result.AmountApplied.StringFixed(2),
		AmountUnapplied: result.AmountUnapplied.StringFixed(2),
		PenaltyWaived:   result.PenaltyWaived.StringFixed(2),
		InstallmentIDs:  ids,
		Closed:          result.Closed,
		Timestamp:       now,
	}); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish payment event", "receiptID", result.ReceiptID, slog.Any("error", err))
	}
	for _, parent := range result.ClosedParents {
		if err := s.publisher.PublishTargetClosed(ctx, event.TargetClosedEvent{
			Kind:      string(parent.Kind),
			ID:        parent.ID,
			ReceiptID: result.ReceiptID.String(),
			Timestamp: now,
		}); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish close event", "parent", parent.String(), slog.Any("error", err))
		}
	}
}

func (s *paymentServiceImpl) GetReceipt(ctx context.Context, receiptID uuid.UUID) ([]Record, error) {
	records, err := s.repo.GetPaymentsByReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: receipt %s", apperrors.ErrNotFound, receiptID)
	}
	return records, nil
}

func paymentStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidAmount), errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrTargetAlreadyClosed), errors.Is(err, apperrors.ErrNoOutstandingInstallments):
		return "rejected"
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
