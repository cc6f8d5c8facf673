// Package intercompany detects paired transactions between two ledgers that must be
// eliminated on consolidation.
package intercompany

import (
	"fmt"
	"sort"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// PoolStats records the pre-filtered pool sizes for one match type
type PoolStats struct {
	MatchType  string `json:"match_type"`
	SourcePool int    `json:"source_pool"`
	TargetPool int    `json:"target_pool"`
	Pairs      int    `json:"pairs"`
	Emitted    int    `json:"emitted"`
}

// Result is the output of a detection pass
type Result struct {
	Candidates []entity.EliminationCandidate
	Pools      []PoolStats
}

// Detector cross-references journal lines of organization A against organization B
type Detector struct {
	orgA Profile
	orgB Profile
}

// NewDetector creates a detector for the given pair of organizations
func NewDetector(orgA, orgB Profile) *Detector {
	return &Detector{orgA: orgA, orgB: orgB}
}

// Detect returns revenue/COGS candidates followed by payable/receivable candidates
// whose confidence is at least threshold
func (d *Detector) Detect(linesA, linesB []entity.JournalLine, threshold int) []entity.EliminationCandidate {
	return d.Run(linesA, linesB, threshold).Candidates
}

// Run is Detect with per-pool statistics
func (d *Detector) Run(linesA, linesB []entity.JournalLine, threshold int) Result {
	revenue, revStats := d.DetectRevenueCOGS(linesA, linesB, threshold)
	payable, payStats := d.DetectPayableReceivable(linesA, linesB, threshold)

	candidates := make([]entity.EliminationCandidate, 0, len(revenue)+len(payable))
	candidates = append(candidates, revenue...)
	candidates = append(candidates, payable...)

	return Result{
		Candidates: candidates,
		Pools:      []PoolStats{revStats, payStats},
	}
}

// DetectRevenueCOGS pairs A's revenue lines referencing B with B's direct-cost lines referencing A
func (d *Detector) DetectRevenueCOGS(linesA, linesB []entity.JournalLine, threshold int) ([]entity.EliminationCandidate, PoolStats) {
	sales := d.filter(linesA, d.orgB, func(l *entity.JournalLine) bool {
		return l.AccountType == entity.AccountTypeRevenue
	})
	costs := d.filter(linesB, d.orgA, func(l *entity.JournalLine) bool {
		return l.AccountType == entity.AccountTypeDirectCosts
	})
	return d.cross(entity.MatchTypeRevenueCOGS, "Revenue/COGS elimination", sales, costs, threshold)
}

// DetectPayableReceivable pairs A's receivable lines referencing B with B's payable lines referencing A
func (d *Detector) DetectPayableReceivable(linesA, linesB []entity.JournalLine, threshold int) ([]entity.EliminationCandidate, PoolStats) {
	receivables := d.filter(linesA, d.orgB, (*entity.JournalLine).IsReceivable)
	payables := d.filter(linesB, d.orgA, (*entity.JournalLine).IsPayable)
	return d.cross(entity.MatchTypePayableReceivable, "Payable/Receivable elimination", receivables, payables, threshold)
}

// filter applies the account predicate and the counterparty reference pre-filter.
// The result is ordered by (date, id).
func (d *Detector) filter(lines []entity.JournalLine, counterparty Profile, keep func(*entity.JournalLine) bool) []entity.JournalLine {
	var out []entity.JournalLine
	for i := range lines {
		l := &lines[i]
		if keep(l) && counterparty.MentionedIn(l.Text()) {
			out = append(out, *l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *Detector) cross(matchType, label string, as, bs []entity.JournalLine, threshold int) ([]entity.EliminationCandidate, PoolStats) {
	stats := PoolStats{
		MatchType:  matchType,
		SourcePool: len(as),
		TargetPool: len(bs),
		Pairs:      len(as) * len(bs),
	}

	var out []entity.EliminationCandidate
	for _, a := range as {
		for _, b := range bs {
			confidence := d.Score(a, b).Total()
			if confidence < threshold {
				continue
			}
			desc := a.Description
			if desc == "" {
				desc = "N/A"
			}
			out = append(out, entity.EliminationCandidate{
				Source:            a,
				Target:            b,
				MatchType:         matchType,
				Confidence:        confidence,
				EliminationAmount: entity.EliminationAmount(a.NetAmount, b.NetAmount),
				Notes:             fmt.Sprintf("%s: %s", label, desc),
			})
		}
	}
	stats.Emitted = len(out)
	return out, stats
}
