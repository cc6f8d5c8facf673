package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MappingRecord is a persisted mapping decision keyed by (source org, target org, source account)
type MappingRecord struct {
	ID                int64     `json:"id"`
	SourceOrgID       string    `json:"source_org_id"`
	TargetOrgID       string    `json:"target_org_id"`
	SourceAccountID   string    `json:"source_account_id"`
	SourceAccountCode string    `json:"source_account_code"`
	SourceAccountName string    `json:"source_account_name"`
	TargetAccountID   string    `json:"target_account_id,omitempty"`
	TargetAccountCode string    `json:"target_account_code,omitempty"`
	TargetAccountName string    `json:"target_account_name,omitempty"`
	Confidence        int       `json:"confidence"`
	Strategy          string    `json:"strategy"`
	Status            string    `json:"status"`
	ApprovedBy        string    `json:"approved_by"`
	ApprovedAt        time.Time `json:"approved_at"`
	Notes             string    `json:"notes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Key returns the natural key of the record
func (r *MappingRecord) Key() MappingKey {
	return MappingKey{SourceOrgID: r.SourceOrgID, TargetOrgID: r.TargetOrgID, SourceAccountID: r.SourceAccountID}
}

// NewMappingRecord converts a reviewed candidate into a record
func NewMappingRecord(c MappingCandidate, status, approvedBy string, at time.Time) *MappingRecord {
	r := &MappingRecord{
		SourceOrgID:       c.SourceOrgID,
		TargetOrgID:       c.TargetOrgID,
		SourceAccountID:   c.Source.ID,
		SourceAccountCode: c.Source.Code,
		SourceAccountName: c.Source.Name,
		Confidence:        c.Confidence,
		Strategy:          c.Strategy,
		Status:            status,
		ApprovedBy:        approvedBy,
		ApprovedAt:        at,
		Notes:             c.Notes,
	}
	if c.Target != nil {
		r.TargetAccountID = c.Target.ID
		r.TargetAccountCode = c.Target.Code
		r.TargetAccountName = c.Target.Name
	}
	return r
}

// EliminationRecord is a persisted elimination decision keyed by (source line, target line)
type EliminationRecord struct {
	ID                int64           `json:"id"`
	SourceOrgID       string          `json:"source_org_id"`
	TargetOrgID       string          `json:"target_org_id"`
	SourceLineID      string          `json:"source_line_id"`
	TargetLineID      string          `json:"target_line_id"`
	MatchType         string          `json:"match_type"`
	Confidence        int             `json:"confidence"`
	EliminationAmount decimal.Decimal `json:"elimination_amount"`
	Period            string          `json:"period"`
	Status            string          `json:"status"`
	ApprovedBy        string          `json:"approved_by"`
	ApprovedAt        time.Time       `json:"approved_at"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Key returns the natural key of the record
func (r *EliminationRecord) Key() EliminationKey {
	return EliminationKey{SourceLineID: r.SourceLineID, TargetLineID: r.TargetLineID}
}

// NewEliminationRecord converts a reviewed candidate into a record
func NewEliminationRecord(c EliminationCandidate, period, status, approvedBy string, at time.Time) *EliminationRecord {
	return &EliminationRecord{
		SourceOrgID:       c.Source.OrgID,
		TargetOrgID:       c.Target.OrgID,
		SourceLineID:      c.Source.ID,
		TargetLineID:      c.Target.ID,
		MatchType:         c.MatchType,
		Confidence:        c.Confidence,
		EliminationAmount: c.EliminationAmount,
		Period:            period,
		Status:            status,
		ApprovedBy:        approvedBy,
		ApprovedAt:        at,
		Notes:             c.Notes,
	}
}
