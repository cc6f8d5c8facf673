package service

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
)

// Summary is printed at the end of every run, including failed ones
type Summary struct {
	Kind        string `json:"kind"`
	RunID       string `json:"run_id,omitempty"`
	SourceOrgID string `json:"source_org_id"`
	TargetOrgID string `json:"target_org_id"`
	Period      string `json:"period,omitempty"`
	DryRun      bool   `json:"dry_run"`
	ReviewOnly  bool   `json:"review_only"`

	Considered     int `json:"considered"`
	AutoApproved   int `json:"auto_approved"`
	ManualApproved int `json:"manual_approved"`
	Rejected       int `json:"rejected"`
	Deferred       int `json:"deferred"`
	Unreviewed     int `json:"unreviewed"`
	Errors         int `json:"errors"`

	Invalid         int  `json:"invalid"`
	PersistFailures int  `json:"persist_failures"`
	AlreadyApproved int  `json:"already_approved"`
	Imported        int  `json:"imported"`
	Refused         int  `json:"refused"`
	Persisted       int  `json:"persisted"`
	Quit            bool `json:"quit"`

	Breakdown  review.Breakdown         `json:"breakdown"`
	Strategies map[string]int           `json:"strategies,omitempty"`
	Pools      []intercompany.PoolStats `json:"pools,omitempty"`

	AverageConfidence float64         `json:"average_confidence"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	ApprovedAmount    decimal.Decimal `json:"approved_amount"`
}

func newSummary(kind, sourceOrg, targetOrg string) *Summary {
	return &Summary{
		Kind:        kind,
		SourceOrgID: sourceOrg,
		TargetOrgID: targetOrg,
		Strategies:  map[string]int{},
	}
}

// Approved returns auto plus manual approvals
func (s *Summary) Approved() int {
	return s.AutoApproved + s.ManualApproved
}

// Render writes a human-readable summary
func (s *Summary) Render(w io.Writer) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%s summary: %s -> %s", strings.ToUpper(s.Kind), s.SourceOrgID, s.TargetOrgID)
	if s.Period != "" {
		fmt.Fprintf(w, " (%s)", s.Period)
	}
	fmt.Fprintln(w)
	switch {
	case s.DryRun:
		fmt.Fprintln(w, "Mode: dry run, nothing persisted")
	case s.ReviewOnly:
		fmt.Fprintln(w, "Mode: review only, nothing persisted")
	}
	fmt.Fprintln(w, line)

	fmt.Fprintf(w, "Considered:        %d\n", s.Considered)
	fmt.Fprintf(w, "Auto-approved:     %d\n", s.AutoApproved)
	fmt.Fprintf(w, "Manually approved: %d\n", s.ManualApproved)
	fmt.Fprintf(w, "Rejected:          %d\n", s.Rejected)
	fmt.Fprintf(w, "Deferred:          %d\n", s.Deferred)
	if s.Unreviewed > 0 {
		fmt.Fprintf(w, "Unreviewed:        %d\n", s.Unreviewed)
	}
	fmt.Fprintf(w, "Errors:            %d\n", s.Errors)
	if s.Invalid > 0 {
		fmt.Fprintf(w, "  invalid records:      %d\n", s.Invalid)
	}
	if s.PersistFailures > 0 {
		fmt.Fprintf(w, "  persistence failures: %d\n", s.PersistFailures)
	}
	if s.AlreadyApproved > 0 {
		fmt.Fprintf(w, "Already approved (skipped): %d\n", s.AlreadyApproved)
	}
	if s.Imported > 0 {
		fmt.Fprintf(w, "Imported:          %d\n", s.Imported)
	}

	fmt.Fprintf(w, "\nConfidence: high %d, medium %d, low %d, none %d\n",
		s.Breakdown.High, s.Breakdown.Medium, s.Breakdown.Low, s.Breakdown.None)

	if len(s.Strategies) > 0 {
		names := make([]string, 0, len(s.Strategies))
		for name := range s.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "Strategies:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-22s %d\n", name, s.Strategies[name])
		}
	}

	if len(s.Pools) > 0 {
		fmt.Fprintln(w, "Match types:")
		for _, p := range s.Pools {
			fmt.Fprintf(w, "  %-20s pool %dx%d, %d pairs, %d emitted\n",
				p.MatchType, p.SourcePool, p.TargetPool, p.Pairs, p.Emitted)
		}
		fmt.Fprintf(w, "Average confidence: %.1f\n", s.AverageConfidence)
		fmt.Fprintf(w, "Total elimination amount:    %s\n", s.TotalAmount.StringFixed(2))
		fmt.Fprintf(w, "Approved elimination amount: %s\n", s.ApprovedAmount.StringFixed(2))
	}

	if s.Quit {
		fmt.Fprintln(w, "\nReview stopped early; remaining items are left for the next run.")
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunID)
	}
}
