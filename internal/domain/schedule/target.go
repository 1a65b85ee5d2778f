package schedule

import (
	"fmt"
	"strings"
)

type ParentKind string

const (
	ParentLoan  ParentKind = "loan"
	ParentBatch ParentKind = "batch"
)

// Parent is the loan or batch that owns an installment.
type Parent struct {
	Kind ParentKind
	ID   int64
}

func (p Parent) String() string {
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

type ParentStatus string

const (
	ParentActive  ParentStatus = "active"
	ParentOverdue ParentStatus = "overdue"
	ParentClosed  ParentStatus = "closed"
)

type TargetKind string

const (
	TargetLoan     TargetKind = "loan"
	TargetBatch    TargetKind = "batch"
	TargetCustomer TargetKind = "customer"
)

// Target is what a payment is recorded against: one loan, one batch, or every
// open loan and batch of a customer.
type Target struct {
	Kind TargetKind
	ID   int64
}

func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TargetLoan, TargetBatch, TargetCustomer:
		return k, nil
	default:
		return "", fmt.Errorf("unknown target kind %q", s)
	}
}

func (t Target) Validate() error {
	if _, err := ParseTargetKind(string(t.Kind)); err != nil {
		return err
	}
	if t.ID <= 0 {
		return fmt.Errorf("target id must be positive")
	}
	return nil
}

// LockKey identifies the target for per-target serialization.
func (t Target) LockKey() string {
	return fmt.Sprintf("collection:target:%s:%d", t.Kind, t.ID)
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}
