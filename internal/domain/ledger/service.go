package ledger

import (
	"collection-ledger/internal/event"
	"collection-ledger/internal/infrastructure/monitoring"
	"collection-ledger/internal/pkg/apperrors"
	"collection-ledger/internal/pkg/money"
	"collection-ledger/internal/pkg/retry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type LedgerService interface {
	EnsureAccount(ctx context.Context, actorID int64) (*Account, error)

	GetAccount(ctx context.Context, actorID int64) (*Account, error)

	Credit(ctx context.Context, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (decimal.Decimal, error)

	Debit(ctx context.Context, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (decimal.Decimal, error)

	Transfer(ctx context.Context, fromActorID, toActorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (*TransferResult, error)

	FundAccount(ctx context.Context, cmd FundCommand) (*TransferResult, error)

	SettleCash(ctx context.Context, agentActorID int64, amount decimal.Decimal, reason string, recordedBy int64) (*TransferResult, error)

	DebitForIssuance(ctx context.Context, actorID int64, amount decimal.Decimal, ref TokenCreationReference, recordedBy int64) (*IssuanceDebit, error)

	ListTransactions(ctx context.Context, actorID int64, limit, offset int) ([]Transaction, error)

	Reconcile(ctx context.Context, actorID int64) (*Reconciliation, error)
}

// FundCommand moves money between actors. A zero FromActorID means the
// configured organization actor.
type FundCommand struct {
	FromActorID int64
	ToActorID   int64
	Amount      decimal.Decimal
	Reason      string
	RecordedBy  int64
}

type ledgerServiceImpl struct {
	repo           Repository
	publisher      event.Publisher
	organizationID int64
	retryPolicy    retry.Policy
	logger         *slog.Logger
}

func NewLedgerService(r Repository, publisher event.Publisher, organizationActorID int64, retryPolicy retry.Policy, logger *slog.Logger) LedgerService {
	if organizationActorID <= 0 {
		panic("ledger service requires a configured organization actor id")
	}
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &ledgerServiceImpl{
		repo:           r,
		publisher:      publisher,
		organizationID: organizationActorID,
		retryPolicy:    retryPolicy,
		logger:         logger.With("component", "LedgerService"),
	}
}

func (s *ledgerServiceImpl) EnsureAccount(ctx context.Context, actorID int64) (*Account, error) {
	if actorID <= 0 {
		return nil, fmt.Errorf("%w: actor id must be positive", apperrors.ErrInvalidArgument)
	}
	acct, err := s.repo.GetAccountByActor(ctx, actorID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	acct, err = s.repo.CreateAccount(ctx, actorID)
	if err == nil {
		s.logger.InfoContext(ctx, "Ledger account created", "actorID", actorID, "accountID", acct.ID)
		return acct, nil
	}
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		s.logger.DebugContext(ctx, "Ledger account created concurrently, fetching existing", "actorID", actorID)
		return s.repo.GetAccountByActor(ctx, actorID)
	}
	return nil, err
}

func (s *ledgerServiceImpl) GetAccount(ctx context.Context, actorID int64) (*Account, error) {
	acct, err := s.repo.GetAccountByActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no ledger account for actor %d", apperrors.ErrNotFound, actorID)
		}
		return nil, err
	}
	return acct, nil
}

func (s *ledgerServiceImpl) Credit(ctx context.Context, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (decimal.Decimal, error) {
	return s.single(ctx, "credit", TypeCredit, actorID, amount, ref, recordedBy)
}

func (s *ledgerServiceImpl) Debit(ctx context.Context, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (decimal.Decimal, error) {
	return s.single(ctx, "debit", TypeDebit, actorID, amount, ref, recordedBy)
}

func (s *ledgerServiceImpl) single(ctx context.Context, op string, typ TransactionType, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (balance decimal.Decimal, err error) {
	defer func() { monitoring.RecordLedgerOperation(op, operationStatus(err)) }()

	if err = validateMutation(amount, ref); err != nil {
		return decimal.Zero, err
	}
	if _, err = s.EnsureAccount(ctx, actorID); err != nil {
		return decimal.Zero, err
	}

	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var txErr error
		balance, txErr = s.applyInTx(ctx, typ, actorID, amount, ref, recordedBy)
		return txErr
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger mutation failed", "operation", op, "actorID", actorID, "amount", amount.String(), slog.Any("error", err))
		return decimal.Zero, err
	}
	s.logger.InfoContext(ctx, "Ledger mutation applied", "operation", op, "actorID", actorID, "amount", amount.String(),
		"reference", string(ref.Kind()), "balance", balance.String())
	return balance, nil
}

func (s *ledgerServiceImpl) applyInTx(ctx context.Context, typ TransactionType, actorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (balance decimal.Decimal, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer s.rollbackOnError(ctx, tx, &err)

	acct, err := s.repo.LockAccountInTx(ctx, tx, actorID)
	if err != nil {
		return decimal.Zero, err
	}
	txn, err := s.post(ctx, tx, acct, typ, amount, ref, recordedBy)
	if err != nil {
		return decimal.Zero, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return decimal.Zero, err
	}
	return txn.BalanceAfter, nil
}

// post applies one mutation to a locked account and appends its log row.
func (s *ledgerServiceImpl) post(ctx context.Context, tx pgx.Tx, acct *Account, typ TransactionType, amount decimal.Decimal, ref Reference, recordedBy int64) (*Transaction, error) {
	newBalance := acct.CurrentBalance.Add(amount)
	if typ == TypeDebit {
		if acct.CurrentBalance.LessThan(amount) {
			return nil, apperrors.NewStateError("account", acct.ActorID, "balance "+acct.CurrentBalance.StringFixed(2),
				fmt.Errorf("%w: cannot debit %s", apperrors.ErrInsufficientBalance, amount.StringFixed(2)))
		}
		newBalance = acct.CurrentBalance.Sub(amount)
	}

	if err := s.repo.UpdateBalanceInTx(ctx, tx, acct.ID, newBalance); err != nil {
		return nil, err
	}
	txn := &Transaction{
		AccountID:     acct.ID,
		Type:          typ,
		Amount:        amount,
		BalanceAfter:  newBalance,
		ReferenceType: ref.Kind(),
		ReferenceID:   ref.ID(),
		Note:          ref.Note(),
		RecordedBy:    recordedBy,
	}
	if err := s.repo.InsertTransactionInTx(ctx, tx, txn); err != nil {
		return nil, err
	}
	acct.CurrentBalance = newBalance
	return txn, nil
}

func (s *ledgerServiceImpl) Transfer(ctx context.Context, fromActorID, toActorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (result *TransferResult, err error) {
	defer func() { monitoring.RecordLedgerOperation("transfer", operationStatus(err)) }()

	if err = validateMutation(amount, ref); err != nil {
		return nil, err
	}
	if fromActorID == toActorID {
		return nil, fmt.Errorf("%w: cannot transfer to the same actor %d", apperrors.ErrInvalidArgument, fromActorID)
	}
	for _, actorID := range []int64{fromActorID, toActorID} {
		if _, err = s.EnsureAccount(ctx, actorID); err != nil {
			return nil, err
		}
	}

	err = retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		var txErr error
		result, txErr = s.transferInTx(ctx, fromActorID, toActorID, amount, ref, recordedBy)
		return txErr
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Transfer failed", "fromActorID", fromActorID, "toActorID", toActorID,
			"amount", amount.String(), slog.Any("error", err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "Transfer completed", "fromActorID", fromActorID, "toActorID", toActorID,
		"amount", amount.String(), "reference", string(ref.Kind()))
	if pubErr := s.publisher.PublishLedgerTransfer(ctx, event.LedgerTransferEvent{
		FromActorID:   fromActorID,
		ToActorID:     toActorID,
		Amount:        amount.StringFixed(2),
		ReferenceType: string(ref.Kind()),
		ReferenceID:   ref.ID(),
		Timestamp:     time.Now().UTC(),
	}); pubErr != nil {
		s.logger.WarnContext(ctx, "Failed to publish transfer event", slog.Any("error", pubErr))
	}
	return result, nil
}

func (s *ledgerServiceImpl) transferInTx(ctx context.Context, fromActorID, toActorID int64, amount decimal.Decimal, ref Reference, recordedBy int64) (result *TransferResult, err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollbackOnError(ctx, tx, &err)

	// Lock in actor id order so opposite transfers cannot deadlock.
	first, second := fromActorID, toActorID
	if second < first {
		first, second = second, first
	}
	locked := make(map[int64]*Account, 2)
	for _, actorID := range []int64{first, second} {
		acct, lockErr := s.repo.LockAccountInTx(ctx, tx, actorID)
		if lockErr != nil {
			return nil, lockErr
		}
		locked[actorID] = acct
	}

	debit, err := s.post(ctx, tx, locked[fromActorID], TypeDebit, amount, ref, recordedBy)
	if err != nil {
		return nil, err
	}
	credit, err := s.post(ctx, tx, locked[toActorID], TypeCredit, amount, ref, recordedBy)
	if err != nil {
		return nil, err
	}
	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return &TransferResult{
		Debit:       *debit,
		Credit:      *credit,
		FromBalance: debit.BalanceAfter,
		ToBalance:   credit.BalanceAfter,
	}, nil
}

func (s *ledgerServiceImpl) FundAccount(ctx context.Context, cmd FundCommand) (*TransferResult, error) {
	from := cmd.FromActorID
	if from == 0 {
		from = s.organizationID
	}
	ref := FundingReference{FromActorID: from, ToActorID: cmd.ToActorID, Reason: cmd.Reason}
	return s.Transfer(ctx, from, cmd.ToActorID, cmd.Amount, ref, cmd.RecordedBy)
}

func (s *ledgerServiceImpl) SettleCash(ctx context.Context, agentActorID int64, amount decimal.Decimal, reason string, recordedBy int64) (*TransferResult, error) {
	ref := SettlementReference{AgentActorID: agentActorID, Reason: reason}
	return s.Transfer(ctx, agentActorID, s.organizationID, amount, ref, recordedBy)
}

// DebitForIssuance debits the issuer for a new loan or batch. An insufficient
// balance is logged and the issuance proceeds without a ledger row.
func (s *ledgerServiceImpl) DebitForIssuance(ctx context.Context, actorID int64, amount decimal.Decimal, ref TokenCreationReference, recordedBy int64) (*IssuanceDebit, error) {
	balance, err := s.Debit(ctx, actorID, amount, ref, recordedBy)
	if err == nil {
		return &IssuanceDebit{Applied: true, Balance: balance}, nil
	}
	if errors.Is(err, apperrors.ErrInsufficientBalance) {
		s.logger.WarnContext(ctx, "Issuer balance insufficient, proceeding with issuance",
			"actorID", actorID, "amount", amount.String(), "reference", ref.ID(), slog.Any("error", err))
		monitoring.RecordIssuanceDebitSkipped()
		current := decimal.Zero
		if acct, getErr := s.repo.GetAccountByActor(ctx, actorID); getErr == nil {
			current = acct.CurrentBalance
		}
		return &IssuanceDebit{Applied: false, Balance: current}, nil
	}
	return nil, err
}

func (s *ledgerServiceImpl) ListTransactions(ctx context.Context, actorID int64, limit, offset int) ([]Transaction, error) {
	acct, err := s.GetAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, acct.ID, limit, offset)
}

func (s *ledgerServiceImpl) Reconcile(ctx context.Context, actorID int64) (*Reconciliation, error) {
	acct, err := s.GetAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	credits, debits, err := s.repo.SumTransactions(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	rec := &Reconciliation{ActorID: actorID, CurrentBalance: acct.CurrentBalance, Credits: credits, Debits: debits}
	if !rec.Consistent() {
		s.logger.ErrorContext(ctx, "Ledger account balance does not match transaction log",
			"actorID", actorID, "balance", acct.CurrentBalance.String(), "credits", credits.String(), "debits", debits.String())
	}
	return rec, nil
}

func (s *ledgerServiceImpl) rollbackOnError(ctx context.Context, tx pgx.Tx, err *error) {
	if p := recover(); p != nil {
		s.logger.ErrorContext(ctx, "Panic occurred during ledger mutation", "error", p)
		_ = s.repo.RollbackTx(ctx, tx)
		panic(p)
	}
	if *err != nil {
		_ = s.repo.RollbackTx(ctx, tx)
	}
}

func validateMutation(amount decimal.Decimal, ref Reference) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: ledger amount must be greater than zero, got %s", apperrors.ErrInvalidAmount, amount.String())
	}
	if err := money.RequireCents("ledger amount", amount); err != nil {
		return err
	}
	if ref == nil {
		return fmt.Errorf("%w: ledger reference is required", apperrors.ErrInvalidArgument)
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}
	return nil
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, apperrors.ErrInvalidAmount), errors.Is(err, apperrors.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, apperrors.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
