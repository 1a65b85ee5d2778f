package handler

import (
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/domain/payment"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	service payment.PaymentService
	logger  *slog.Logger
	now     func() time.Time
}

func NewPaymentHandler(s payment.PaymentService, l *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: s,
		logger:  l.With("component", "PaymentHandler"),
		now:     time.Now,
	}
}

// RecordPayment allocates a cash payment across the outstanding installments
// of a loan, batch or customer.
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actorID, err := requireActor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.RecordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, invalidArgument(err))
		return
	}
	cmd, err := req.ToCommand(actorID, h.now())
	if err != nil {
		respondError(w, invalidArgument(err))
		return
	}

	result, err := h.service.RecordPayment(r.Context(), cmd)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Payment rejected", "target", cmd.Target.String(), "error", err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewPaymentResultResponse(result))
}

func (h *PaymentHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receiptID, err := uuid.Parse(chi.URLParam(r, "receiptID"))
	if err != nil {
		respondError(w, invalidArgument(fmt.Errorf("receiptID must be a UUID")))
		return
	}

	records, err := h.service.GetReceipt(r.Context(), receiptID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPaymentRecordResponses(records))
}
