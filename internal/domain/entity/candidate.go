package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MappingCandidate is a suggested mapping from a source account to a target account.
// Target is nil for the no-match variant, which always carries confidence 0.
type MappingCandidate struct {
	SourceOrgID string   `json:"source_org_id"`
	TargetOrgID string   `json:"target_org_id"`
	Source      Account  `json:"source"`
	Target      *Account `json:"target,omitempty"`
	Confidence  int      `json:"confidence"`
	Strategy    string   `json:"strategy"`
	Notes       string   `json:"notes"`
}

// NewMappingCandidate builds a candidate that points at a target account
func NewMappingCandidate(source, target Account, confidence int, strategy, notes string) MappingCandidate {
	t := target
	return MappingCandidate{
		SourceOrgID: source.OrgID,
		TargetOrgID: target.OrgID,
		Source:      source,
		Target:      &t,
		Confidence:  ClampConfidence(confidence),
		Strategy:    strategy,
		Notes:       notes,
	}
}

// NoTarget builds the no-match candidate for a source account
func NoTarget(source Account, targetOrgID string) MappingCandidate {
	return MappingCandidate{
		SourceOrgID: source.OrgID,
		TargetOrgID: targetOrgID,
		Source:      source,
		Confidence:  MinConfidence,
		Strategy:    StrategyNoMatch,
		Notes:       "No matching account found - manual mapping required",
	}
}

// HasTarget returns true if the candidate points at a target account
func (c *MappingCandidate) HasTarget() bool {
	return c.Target != nil
}

// TargetAccountID returns the target account id, or "" for the no-match variant
func (c *MappingCandidate) TargetAccountID() string {
	if c.Target == nil {
		return ""
	}
	return c.Target.ID
}

// Key returns the natural key of the mapping
func (c *MappingCandidate) Key() MappingKey {
	return MappingKey{SourceOrgID: c.SourceOrgID, TargetOrgID: c.TargetOrgID, SourceAccountID: c.Source.ID}
}

// WithManualTarget returns a copy pointing at an operator-selected target
func (c MappingCandidate) WithManualTarget(target Account) MappingCandidate {
	t := target
	c.Target = &t
	c.TargetOrgID = target.OrgID
	c.Confidence = MaxConfidence
	c.Strategy = StrategyManualSelection
	c.Notes = fmt.Sprintf("Manually selected: %s - %s", target.Code, target.Name)
	return c
}

// EliminationCandidate is a probable intercompany pair between two ledgers
type EliminationCandidate struct {
	Source            JournalLine     `json:"source"`
	Target            JournalLine     `json:"target"`
	MatchType         string          `json:"match_type"`
	Confidence        int             `json:"confidence"`
	EliminationAmount decimal.Decimal `json:"elimination_amount"`
	Notes             string          `json:"notes"`
}

// Key returns the natural key of the elimination
func (c *EliminationCandidate) Key() EliminationKey {
	return EliminationKey{SourceLineID: c.Source.ID, TargetLineID: c.Target.ID}
}

// EliminationAmount returns min(|a|, |b|)
func EliminationAmount(a, b decimal.Decimal) decimal.Decimal {
	return decimal.Min(a.Abs(), b.Abs())
}

// ClampConfidence bounds a score to [0, 100]
func ClampConfidence(c int) int {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// MappingKey is the natural key of a mapping decision
type MappingKey struct {
	SourceOrgID     string
	TargetOrgID     string
	SourceAccountID string
}

// String renders the key for logs and errors
func (k MappingKey) String() string {
	return k.SourceOrgID + "/" + k.TargetOrgID + "/" + k.SourceAccountID
}

// EliminationKey is the natural key of an elimination decision
type EliminationKey struct {
	SourceLineID string
	TargetLineID string
}

// String renders the key for logs and errors
func (k EliminationKey) String() string {
	return k.SourceLineID + "/" + k.TargetLineID
}
