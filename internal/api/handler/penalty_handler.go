package handler

import (
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/domain/penalty"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type PenaltyHandler struct {
	service penalty.PenaltyService
	logger  *slog.Logger
	now     func() time.Time
}

func NewPenaltyHandler(s penalty.PenaltyService, l *slog.Logger) *PenaltyHandler {
	return &PenaltyHandler{
		service: s,
		logger:  l.With("component", "PenaltyHandler"),
		now:     time.Now,
	}
}

// RunAccrual triggers the daily accrual pass outside the cron schedule. An
// empty body accrues as of today.
func (h *PenaltyHandler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var req dto.AccrualRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, invalidArgument(err))
		return
	}
	asOf, err := req.AsOfDate(h.now())
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	result, err := h.service.Accrue(r.Context(), asOf)
	if err != nil && result == nil {
		respondError(w, err)
		return
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "Accrual interrupted", "asOf", req.AsOf, "error", err)
	}

	respondJSON(w, http.StatusOK, dto.NewAccrualResponse(result))
}

func (h *PenaltyHandler) GetActivePolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.service.GetActivePolicy(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPolicyResponse(policy))
}

func (h *PenaltyHandler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	p, err := req.ToPolicy()
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	created, err := h.service.CreatePolicy(r.Context(), p)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.NewPolicyResponse(created))
}

func (h *PenaltyHandler) ActivatePolicy(w http.ResponseWriter, r *http.Request) {
	policyID, err := getIDFromURL(r, "policyID")
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	policy, err := h.service.ActivatePolicy(r.Context(), policyID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewPolicyResponse(policy))
}
