package handler

import (
	"bytes"
	"collection-ledger/internal/api/handler/dto"
	"collection-ledger/internal/domain/penalty"
	"collection-ledger/internal/pkg/apperrors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestPenaltyHandler(svc *MockPenaltyService) *PenaltyHandler {
	h := NewPenaltyHandler(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	h.now = func() time.Time { return time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC) }
	return h
}

func TestPenaltyHandlerRunAccrual(t *testing.T) {
	today := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	t.Run("empty body accrues as of today", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("Accrue", mock.Anything, today).Return(&penalty.AccrualResult{
			AsOf:                  today,
			InstallmentsProcessed: 3,
			TotalPenaltyAdded:     decimal.RequireFromString("15"),
			LoansFlaggedOverdue:   2,
		}, nil).Once()

		rec := httptest.NewRecorder()
		h.RunAccrual(rec, httptest.NewRequest(http.MethodPost, "/accruals", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.AccrualResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "2026-03-09", resp.AsOf)
		assert.Equal(t, 3, resp.InstallmentsProcessed)
		assert.Equal(t, "15.00", resp.TotalPenaltyAdded)
		assert.Equal(t, 2, resp.LoansFlaggedOverdue)
		svc.AssertExpectations(t)
	})

	t.Run("explicit asOf date", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		svc.On("Accrue", mock.Anything, asOf).Return(&penalty.AccrualResult{AsOf: asOf, TotalPenaltyAdded: decimal.Zero}, nil).Once()

		rec := httptest.NewRecorder()
		h.RunAccrual(rec, httptest.NewRequest(http.MethodPost, "/accruals", strings.NewReader(`{"asOf":"2026-03-01"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("interrupted run still reports partial result", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("Accrue", mock.Anything, today).Return(&penalty.AccrualResult{
			AsOf:                  today,
			InstallmentsProcessed: 1,
			TotalPenaltyAdded:     decimal.RequireFromString("5"),
		}, context.Canceled).Once()

		rec := httptest.NewRecorder()
		h.RunAccrual(rec, httptest.NewRequest(http.MethodPost, "/accruals", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no active policy", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("Accrue", mock.Anything, today).Return(nil, apperrors.ErrNoActivePolicy).Once()

		rec := httptest.NewRecorder()
		h.RunAccrual(rec, httptest.NewRequest(http.MethodPost, "/accruals", nil))

		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})

	t.Run("bad asOf", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)

		rec := httptest.NewRecorder()
		h.RunAccrual(rec, httptest.NewRequest(http.MethodPost, "/accruals", strings.NewReader(`{"asOf":"yesterday"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Accrue", mock.Anything, mock.Anything)
	})
}

func TestPenaltyHandlerPolicies(t *testing.T) {
	policy := &penalty.Policy{ID: 3, Type: penalty.TypePercent, Value: decimal.RequireFromString("2.5"), GraceDays: 1, Active: true}

	t.Run("get active policy", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("GetActivePolicy", mock.Anything).Return(policy, nil).Once()

		rec := httptest.NewRecorder()
		h.GetActivePolicy(rec, httptest.NewRequest(http.MethodGet, "/penalty-policies/active", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.PolicyResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "3", resp.ID)
		assert.Equal(t, "percent", resp.PenaltyType)
		assert.Equal(t, "2.5", resp.Value)
		assert.True(t, resp.Active)
	})

	t.Run("create policy", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("CreatePolicy", mock.Anything, mock.MatchedBy(func(p penalty.Policy) bool {
			return p.Type == penalty.TypeFixed && p.Value.Equal(decimal.NewFromInt(5)) && p.GraceDays == 2 && !p.Active
		})).Return(&penalty.Policy{ID: 4, Type: penalty.TypeFixed, Value: decimal.NewFromInt(5), GraceDays: 2}, nil).Once()

		rec := httptest.NewRecorder()
		h.CreatePolicy(rec, httptest.NewRequest(http.MethodPost, "/penalty-policies",
			strings.NewReader(`{"penaltyType":"fixed","value":"5","graceDays":2}`)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("create policy with validation failure", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("CreatePolicy", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewValidationError("value", "percent penalty cannot exceed 100")).Once()

		rec := httptest.NewRecorder()
		h.CreatePolicy(rec, httptest.NewRequest(http.MethodPost, "/penalty-policies",
			strings.NewReader(`{"penaltyType":"percent","value":"120"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "value", resp.Error.Field)
	})

	t.Run("activate policy", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("ActivatePolicy", mock.Anything, int64(3)).Return(policy, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/penalty-policies/3/activate", nil)
		req = req.WithContext(withURLParam(req.Context(), "policyID", "3"))
		rec := httptest.NewRecorder()
		h.ActivatePolicy(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("activate unknown policy", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("ActivatePolicy", mock.Anything, int64(9)).Return(nil, fmt.Errorf("policy 9: %w", apperrors.ErrNotFound)).Once()

		req := httptest.NewRequest(http.MethodPost, "/penalty-policies/9/activate", nil)
		req = req.WithContext(withURLParam(req.Context(), "policyID", "9"))
		rec := httptest.NewRecorder()
		h.ActivatePolicy(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unexpected failure is internal", func(t *testing.T) {
		svc := new(MockPenaltyService)
		h := newTestPenaltyHandler(svc)
		svc.On("GetActivePolicy", mock.Anything).Return(nil, errors.New("boom")).Once()

		rec := httptest.NewRecorder()
		h.GetActivePolicy(rec, httptest.NewRequest(http.MethodGet, "/penalty-policies/active", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
