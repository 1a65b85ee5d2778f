package handler

import (
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/domain/ledger"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

type LedgerHandler struct {
	service ledger.LedgerService
	logger  *slog.Logger
}

func NewLedgerHandler(s ledger.LedgerService, l *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: s,
		logger:  l.With("component", "LedgerHandler"),
	}
}

func (h *LedgerHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	actorID, err := getIDFromURL(r, "actorID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	acct, err := h.service.EnsureAccount(r.Context(), actorID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewAccountResponse(acct))
}

func (h *LedgerHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actorID, err := getIDFromURL(r, "actorID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	acct, err := h.service.GetAccount(r.Context(), actorID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewAccountResponse(acct))
}

// ListTransactions pages through an account's log, newest first.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actorID, err := getIDFromURL(r, "actorID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	limit, err := queryInt(r, "limit", defaultTransactionLimit)
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	if limit == 0 || limit > maxTransactionLimit {
		respondError(w, invalidArgument(fmt.Errorf("limit must be between 1 and %d", maxTransactionLimit)))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), actorID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewTransactionResponses(txns))
}

func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actorID, err := getIDFromURL(r, "actorID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	rec, err := h.service.Reconcile(r.Context(), actorID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !rec.Consistent() {
		h.logger.ErrorContext(r.Context(), "Ledger balance does not match its log", "actorID", actorID,
			"balance", rec.CurrentBalance.String(), "credits", rec.Credits.String(), "debits", rec.Debits.String())
	}
	respondJSON(w, http.StatusOK, dto.NewReconciliationResponse(rec))
}

// Transfer moves money between two actors. Without fromActorId the
// organization account funds the transfer.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	recordedBy, err := requireActor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	cmd, err := req.ToFundCommand(recordedBy)
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	result, err := h.service.FundAccount(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewTransferResponse(result))
}

// Settle hands an agent's collected cash back to the organization.
func (h *LedgerHandler) Settle(w http.ResponseWriter, r *http.Request) {
	recordedBy, err := requireActor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	amount, err := req.ParsedAmount()
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	result, err := h.service.SettleCash(r.Context(), req.AgentActorID, amount, req.Reason, recordedBy)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewTransferResponse(result))
}
