package handler

import (
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/schedule"
	"log/slog"
	"net/http"
)

type LoanHandler struct {
	service loan.LoanService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// Issue records a priced loan or batch and lays out its daily schedule. The
// issuing actor is debited for the total.
func (h *LoanHandler) Issue(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireActor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.IssueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	cmd, err := req.ToCommand(actorID)
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	issuance, err := h.service.Issue(r.Context(), cmd)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewIssuanceResponse(issuance))
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getIDFromURL(r, "loanID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

func (h *LoanHandler) GetLoanSchedule(w http.ResponseWriter, r *http.Request) {
	h.getSchedule(w, r, schedule.ParentLoan, "loanID")
}

func (h *LoanHandler) GetBatchSchedule(w http.ResponseWriter, r *http.Request) {
	h.getSchedule(w, r, schedule.ParentBatch, "batchID")
}

func (h *LoanHandler) getSchedule(w http.ResponseWriter, r *http.Request, kind schedule.ParentKind, param string) {
	id, err := getIDFromURL(r, param)
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	installments, err := h.service.GetSchedule(r.Context(), schedule.Parent{Kind: kind, ID: id})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewInstallmentResponses(installments))
}
