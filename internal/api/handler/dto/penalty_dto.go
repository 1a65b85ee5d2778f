package dto

import (
	"collection-ledger/internal/domain/penalty"
	"collection-ledger/internal/domain/schedule"
	"fmt"
	"time"
)

type CreatePolicyRequest struct {
	PenaltyType string `json:"penaltyType"`
	Value       string `json:"value"`
	GraceDays   int    `json:"graceDays"`
	Activate    bool   `json:"activate"`
}

func (r *CreatePolicyRequest) ToPolicy() (penalty.Policy, error) {
	typ, err := penalty.ParseType(r.PenaltyType)
	if err != nil {
		return penalty.Policy{}, err
	}
	value, err := parseAmount("value", r.Value)
	if err != nil {
		return penalty.Policy{}, err
	}
	return penalty.Policy{Type: typ, Value: value, GraceDays: r.GraceDays, Active: r.Activate}, nil
}

type PolicyResponse struct {
	ID          string    `json:"id"`
	PenaltyType string    `json:"penaltyType"`
	Value       string    `json:"value"`
	GraceDays   int       `json:"graceDays"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewPolicyResponse(p *penalty.Policy) PolicyResponse {
	return PolicyResponse{
		ID:          fmt.Sprint(p.ID),
		PenaltyType: string(p.Type),
		Value:       p.Value.String(),
		GraceDays:   p.GraceDays,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type AccrualRequest struct {
	AsOf string `json:"asOf"`
}

// AsOfDate falls back to today when no date is given.
func (r *AccrualRequest) AsOfDate(today time.Time) (time.Time, error) {
	if r.AsOf == "" {
		return schedule.DateOf(today), nil
	}
	d, err := schedule.ParseDate(r.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid asOf format (use YYYY-MM-DD): %w", err)
	}
	return d, nil
}

type AccrualResponse struct {
	AsOf                  string `json:"asOf"`
	InstallmentsProcessed int    `json:"installmentsProcessed"`
	TotalPenaltyAdded     string `json:"totalPenaltyAdded"`
	LoansFlaggedOverdue   int    `json:"loansFlaggedOverdue"`
	Skipped               int    `json:"skipped"`
	Errors                int    `json:"errors"`
}

func NewAccrualResponse(r *penalty.AccrualResult) AccrualResponse {
	return AccrualResponse{
		AsOf:                  r.AsOf.Format(schedule.DateLayout),
		InstallmentsProcessed: r.InstallmentsProcessed,
		TotalPenaltyAdded:     r.TotalPenaltyAdded.StringFixed(2),
		LoansFlaggedOverdue:   r.LoansFlaggedOverdue,
		Skipped:               r.Skipped,
		Errors:                r.Errors,
	}
}
