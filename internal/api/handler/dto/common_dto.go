package dto

import (
	"collection-ledger/internal/pkg/money"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type TokenRequest struct {
	Username string `json:"username"`
	ActorID  int64  `json:"actorId"`
}

func (r *TokenRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if r.ActorID <= 0 {
		return fmt.Errorf("actorId must be positive")
	}
	return nil
}

type TokenResponse struct {
	Token string `json:"token"`
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", field, err)
	}
	if err := money.RequireCents(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func parseOptionalAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return parseAmount(field, value)
}
