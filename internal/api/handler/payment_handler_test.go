package handler

import (
	"bytes"
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/api/middleware"
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/schedule"
	"collection-ledger/internal/pkg/apperrors"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPaymentHandler(svc *MockPaymentService) *PaymentHandler {
	h := NewPaymentHandler(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	h.now = func() time.Time { return time.Date(2026, 3, 9, 15, 30, 0, 0, time.UTC) }
	return h
}

func paymentRequest(body string, actorID int64) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
	if actorID > 0 {
		req = req.WithContext(middleware.WithActorID(req.Context(), actorID))
	}
	return req
}

func TestPaymentHandlerRecordPayment(t *testing.T) {
	receiptID := uuid.MustParse("7b1f3c2e-9d7a-4f4c-8a51-2f0e6c1d9b10")
	loanID := int64(42)

	t.Run("records payment and defaults date and mode", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestPaymentHandler(svc)
		expectedCmd := payment.RecordPaymentCommand{
			ActorID:      7,
			Target:       schedule.Target{Kind: schedule.TargetLoan, ID: loanID},
			Amount:       decimal.RequireFromString("150"),
			Mode:         payment.ModeCash,
			PaymentDate:  time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			WaiverBudget: decimal.Zero,
		}
		svc.On("RecordPayment", mock.Anything, mock.MatchedBy(func(cmd payment.RecordPaymentCommand) bool {
			return cmd.ActorID == expectedCmd.ActorID && cmd.Target == expectedCmd.Target &&
				cmd.Amount.Equal(expectedCmd.Amount) && cmd.Mode == expectedCmd.Mode &&
				cmd.PaymentDate.Equal(expectedCmd.PaymentDate) && cmd.WaiverBudget.IsZero()
		})).Return(&payment.Result{
			ReceiptID:       receiptID,
			Target:          expectedCmd.Target,
			AmountApplied:   decimal.RequireFromString("100"),
			AmountUnapplied: decimal.RequireFromString("50"),
			PenaltyWaived:   decimal.Zero,
			ClosedParents:   []schedule.Parent{{Kind: schedule.ParentLoan, ID: loanID}},
			Closed:          true,
			LedgerCredited:  true,
		}, nil).Once()

		rec := httptest.NewRecorder()
		h.RecordPayment(rec, paymentRequest(`{"targetKind":"loan","targetId":42,"amount":"150"}`, 7))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.PaymentResultResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, receiptID.String(), resp.ReceiptID)
		assert.Equal(t, "100.00", resp.AmountApplied)
		assert.Equal(t, "50.00", resp.AmountUnapplied)
		assert.True(t, resp.Closed)
		assert.Equal(t, []string{"loan:42"}, resp.ClosedParents)
		svc.AssertExpectations(t)
	})

	t.Run("rejects request without actor", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestPaymentHandler(svc)

		rec := httptest.NewRecorder()
		h.RecordPayment(rec, paymentRequest(`{"targetKind":"loan","targetId":42,"amount":"150"}`, 0))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"unknown field", `{"targetKind":"loan","targetId":42,"amount":"150","extra":1}`},
			{"bad amount", `{"targetKind":"loan","targetId":42,"amount":"abc"}`},
			{"sub-cent amount", `{"targetKind":"loan","targetId":42,"amount":"99.996"}`},
			{"sub-cent waiver", `{"targetKind":"loan","targetId":42,"amount":"10","penaltyWaiver":"0.005"}`},
			{"missing amount", `{"targetKind":"loan","targetId":42}`},
			{"bad target kind", `{"targetKind":"agent","targetId":42,"amount":"10"}`},
			{"bad mode", `{"targetKind":"loan","targetId":42,"amount":"10","mode":"cheque"}`},
			{"bad date", `{"targetKind":"loan","targetId":42,"amount":"10","paymentDate":"09/03/2026"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockPaymentService)
				h := newTestPaymentHandler(svc)

				rec := httptest.NewRecorder()
				h.RecordPayment(rec, paymentRequest(tt.body, 7))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				svc.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("maps domain errors to status codes", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"non positive amount", fmt.Errorf("%w: payment amount must be greater than zero", apperrors.ErrInvalidAmount), http.StatusBadRequest, "invalid_amount"},
			{"unknown target", fmt.Errorf("loan 42: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
			{"closed target", apperrors.NewStateError("loan", 42, "closed", apperrors.ErrTargetAlreadyClosed), http.StatusUnprocessableEntity, "target_closed"},
			{"nothing outstanding", apperrors.NewStateError("loan", 42, "active", apperrors.ErrNoOutstandingInstallments), http.StatusUnprocessableEntity, "no_outstanding_installments"},
			{"lock contention", fmt.Errorf("lock target: %w", apperrors.ErrConcurrencyConflict), http.StatusConflict, "conflict"},
			{"database failure", fmt.Errorf("%w: boom", apperrors.ErrDatabase), http.StatusInternalServerError, "internal"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := new(MockPaymentService)
				h := newTestPaymentHandler(svc)
				svc.On("RecordPayment", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

				rec := httptest.NewRecorder()
				h.RecordPayment(rec, paymentRequest(`{"targetKind":"loan","targetId":42,"amount":"150"}`, 7))

				assert.Equal(t, tt.wantStatus, rec.Code)
				var resp dto.ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			})
		}
	})
}

func TestPaymentHandlerGetReceipt(t *testing.T) {
	receiptID := uuid.MustParse("7b1f3c2e-9d7a-4f4c-8a51-2f0e6c1d9b10")
	loanID := int64(42)

	t.Run("returns receipt rows", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestPaymentHandler(svc)
		svc.On("GetReceipt", mock.Anything, receiptID).Return([]payment.Record{{
			ID:            1,
			ReceiptID:     receiptID,
			InstallmentID: 11,
			LoanID:        &loanID,
			Amount:        decimal.RequireFromString("50"),
			PenaltyWaived: decimal.Zero,
			Mode:          payment.ModeCash,
			PaymentDate:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			RecordedBy:    7,
		}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/payments/receipts/"+receiptID.String(), nil)
		req = req.WithContext(withURLParam(req.Context(), "receiptID", receiptID.String()))
		rec := httptest.NewRecorder()
		h.GetReceipt(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.PaymentRecordResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "50.00", resp[0].Amount)
		assert.Equal(t, "2026-03-09", resp[0].PaymentDate)
		svc.AssertExpectations(t)
	})

	t.Run("rejects malformed receipt id", func(t *testing.T) {
		svc := new(MockPaymentService)
		h := newTestPaymentHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/payments/receipts/nope", nil)
		req = req.WithContext(withURLParam(req.Context(), "receiptID", "nope"))
		rec := httptest.NewRecorder()
		h.GetReceipt(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
