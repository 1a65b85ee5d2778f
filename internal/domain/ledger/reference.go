package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type ReferenceKind string

const (
	RefCollection       ReferenceKind = "collection"
	RefFunding          ReferenceKind = "funding"
	RefTokenCreation    ReferenceKind = "token_creation"
	RefSettlement       ReferenceKind = "settlement"
	RefManualAdjustment ReferenceKind = "manual_adjustment"
)

// Reference ties a ledger transaction to the business event that caused it.
// Each kind is its own type carrying only the fields that kind needs.
type Reference interface {
	Kind() ReferenceKind
	ID() string
	Note() string
	Validate() error
}

// CollectionReference is cash collected against a loan, batch or customer.
type CollectionReference struct {
	ReceiptID  uuid.UUID
	TargetKind string
	TargetID   int64
}

func (r CollectionReference) Kind() ReferenceKind { return RefCollection }
func (r CollectionReference) ID() string          { return r.ReceiptID.String() }

func (r CollectionReference) Note() string {
	return fmt.Sprintf("collection on %s %d", r.TargetKind, r.TargetID)
}

func (r CollectionReference) Validate() error {
	if r.ReceiptID == uuid.Nil {
		return fmt.Errorf("collection reference requires a receipt id")
	}
	if r.TargetID <= 0 {
		return fmt.Errorf("collection reference requires a target id")
	}
	return nil
}

// FundingReference is money moved from one actor to another, usually the
// organization funding a field agent.
type FundingReference struct {
	FromActorID int64
	ToActorID   int64
	Reason      string
}

func (r FundingReference) Kind() ReferenceKind { return RefFunding }

func (r FundingReference) ID() string {
	return strconv.FormatInt(r.FromActorID, 10) + "->" + strconv.FormatInt(r.ToActorID, 10)
}

func (r FundingReference) Note() string { return r.Reason }

func (r FundingReference) Validate() error {
	if r.FromActorID <= 0 || r.ToActorID <= 0 {
		return fmt.Errorf("funding reference requires both actors")
	}
	if r.FromActorID == r.ToActorID {
		return fmt.Errorf("funding reference cannot move money to the same actor")
	}
	return nil
}

// TokenCreationReference is the issuance of a single token or a batch.
type TokenCreationReference struct {
	ParentKind string
	ParentID   int64
}

func (r TokenCreationReference) Kind() ReferenceKind { return RefTokenCreation }

func (r TokenCreationReference) ID() string {
	return r.ParentKind + ":" + strconv.FormatInt(r.ParentID, 10)
}

func (r TokenCreationReference) Note() string {
	return fmt.Sprintf("issuance of %s %d", r.ParentKind, r.ParentID)
}

func (r TokenCreationReference) Validate() error {
	if r.ParentKind == "" || r.ParentID <= 0 {
		return fmt.Errorf("token creation reference requires the issued loan or batch")
	}
	return nil
}

// SettlementReference is an agent handing collected cash back to the organization.
type SettlementReference struct {
	AgentActorID int64
	Reason       string
}

func (r SettlementReference) Kind() ReferenceKind { return RefSettlement }
func (r SettlementReference) ID() string          { return strconv.FormatInt(r.AgentActorID, 10) }
func (r SettlementReference) Note() string        { return r.Reason }

func (r SettlementReference) Validate() error {
	if r.AgentActorID <= 0 {
		return fmt.Errorf("settlement reference requires the settling agent")
	}
	return nil
}

type ManualAdjustmentReference struct {
	Reason     string
	ApprovedBy int64
}

func (r ManualAdjustmentReference) Kind() ReferenceKind { return RefManualAdjustment }
func (r ManualAdjustmentReference) ID() string          { return strconv.FormatInt(r.ApprovedBy, 10) }
func (r ManualAdjustmentReference) Note() string        { return r.Reason }

func (r ManualAdjustmentReference) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("manual adjustment requires a reason")
	}
	if r.ApprovedBy <= 0 {
		return fmt.Errorf("manual adjustment requires an approver")
	}
	return nil
}
