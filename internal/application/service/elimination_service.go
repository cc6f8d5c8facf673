package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/domain/workflow"
	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
	"github.com/garyjia/ledger-consolidation/pkg/utils"
)

// EliminationOptions configures one intercompany detection run
type EliminationOptions struct {
	SourceOrgID    string
	TargetOrgID    string
	Period         utils.Period
	MatchThreshold int
	ExportPath     string
	DryRun         bool
	ShowAll        bool
	ReviewOnly     bool

	// Provider answers the review queue; nil leaves queued candidates unreviewed
	Provider review.DecisionProvider
}

// Persists reports whether the run writes to the decision store
func (o EliminationOptions) Persists() bool {
	return !o.DryRun && !o.ReviewOnly
}

// EliminationService runs the load, detect, review and persist pipeline for intercompany eliminations
type EliminationService interface {
	Run(ctx context.Context, opts EliminationOptions) (*Summary, error)
}

type eliminationServiceImpl struct {
	source     port.LedgerDataSource
	store      port.DecisionStore
	runs       port.RunRepository
	controller *review.Controller
	exporter   port.Exporter
	profiles   map[string]intercompany.Profile
	logger     Logger
	now        func() time.Time
}

// NewEliminationService creates a new EliminationService.
// profiles supplies the names and aliases used for entity references, keyed by org id.
func NewEliminationService(
	source port.LedgerDataSource,
	store port.DecisionStore,
	runs port.RunRepository,
	controller *review.Controller,
	exporter port.Exporter,
	profiles map[string]intercompany.Profile,
	logger Logger,
) EliminationService {
	return &eliminationServiceImpl{
		source:     source,
		store:      store,
		runs:       runs,
		controller: controller,
		exporter:   exporter,
		profiles:   profiles,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one detection run. The only error returned is a fatal load failure
// or an unknown organization; every other problem is counted in the summary.
func (s *eliminationServiceImpl) Run(ctx context.Context, opts EliminationOptions) (*Summary, error) {
	summary := newSummary(entity.RunKindEliminations, opts.SourceOrgID, opts.TargetOrgID)
	summary.Period = opts.Period.Label()
	summary.DryRun = opts.DryRun
	summary.ReviewOnly = opts.ReviewOnly

	orgA, err := s.profile(opts.SourceOrgID)
	if err != nil {
		return summary, err
	}
	orgB, err := s.profile(opts.TargetOrgID)
	if err != nil {
		return summary, err
	}

	linesA, linesB, err := loadPair(ctx, opts.SourceOrgID, opts.TargetOrgID,
		func(ctx context.Context, orgID string) ([]entity.JournalLine, error) {
			return s.source.GetJournalLines(ctx, orgID, opts.Period.From, opts.Period.To)
		})
	if err != nil {
		s.logger.Error("Failed to load journal lines", "error", err)
		return summary, err
	}
	s.logger.Info("Journal lines loaded",
		"period", summary.Period,
		"source_org", opts.SourceOrgID, "source_lines", len(linesA),
		"target_org", opts.TargetOrgID, "target_lines", len(linesB))

	linesA = s.validLines(linesA, summary)
	linesB = s.validLines(linesB, summary)

	result := intercompany.NewDetector(orgA, orgB).Run(linesA, linesB, opts.MatchThreshold)
	summary.Pools = result.Pools
	for _, p := range result.Pools {
		s.logger.Info("Match type scored",
			"match_type", p.MatchType,
			"source_pool", p.SourcePool, "target_pool", p.TargetPool,
			"pairs", p.Pairs, "emitted", p.Emitted)
	}

	candidates := result.Candidates
	if !opts.ShowAll {
		candidates = s.skipApproved(ctx, candidates, summary)
	}

	var run *entity.ReconciliationRun
	if opts.Persists() {
		run = s.startRun(ctx, opts, summary)
	}

	summary.Considered = len(candidates)
	threshold := s.controller.Threshold()
	total := 0
	for _, c := range candidates {
		summary.Strategies[c.MatchType]++
		summary.Breakdown.Add(threshold, c.Confidence)
		summary.TotalAmount = summary.TotalAmount.Add(c.EliminationAmount)
		total += c.Confidence
	}
	if len(candidates) > 0 {
		summary.AverageConfidence = float64(total) / float64(len(candidates))
	}

	if opts.ExportPath != "" && s.exporter != nil {
		if err := s.exporter.ExportEliminations(opts.ExportPath, candidates); err != nil {
			s.logger.Error("Failed to export eliminations", "path", opts.ExportPath, "error", err)
			summary.Errors++
		}
	}

	provider := opts.Provider
	if opts.ReviewOnly {
		provider = nil
	}
	outcome, err := s.controller.ReviewEliminations(ctx, candidates, provider)
	if err != nil {
		return summary, fmt.Errorf("review eliminations: %w", err)
	}

	summary.AutoApproved = outcome.Count(workflow.StateAutoApproved)
	summary.ManualApproved = outcome.Count(workflow.StateManualApproved)
	summary.Rejected = outcome.Count(workflow.StateRejected)
	summary.Deferred = outcome.Count(workflow.StateDeferred)
	summary.Unreviewed = len(outcome.Unreviewed)
	summary.Refused = outcome.Refused
	summary.Quit = outcome.Quit

	flushCtx := context.WithoutCancel(ctx)
	for _, r := range outcome.Decided {
		if r.State.IsApproved() {
			summary.ApprovedAmount = summary.ApprovedAmount.Add(r.Candidate.EliminationAmount)
		}
		if !opts.Persists() {
			continue
		}
		status, ok := recordStatus(r.State)
		if !ok {
			continue
		}
		rec := entity.NewEliminationRecord(r.Candidate, summary.Period, status, r.ApprovedBy, r.DecidedAt)
		if err := s.store.UpsertElimination(flushCtx, rec); err != nil {
			s.logger.Error("Failed to persist elimination", "key", rec.Key().String(), "error", err)
			summary.PersistFailures++
			summary.Errors++
			continue
		}
		summary.Persisted++
	}

	if run != nil {
		fillRun(run, summary, s.now())
		if err := s.runs.Complete(flushCtx, run); err != nil {
			s.logger.Error("Failed to record run completion", "run_id", run.ID, "error", err)
		}
	}

	s.logger.Info("Elimination run finished",
		"period", summary.Period,
		"considered", summary.Considered,
		"auto_approved", summary.AutoApproved,
		"manual_approved", summary.ManualApproved,
		"rejected", summary.Rejected,
		"deferred", summary.Deferred,
		"approved_amount", summary.ApprovedAmount.StringFixed(2),
		"errors", summary.Errors)
	return summary, nil
}

func (s *eliminationServiceImpl) profile(orgID string) (intercompany.Profile, error) {
	p, ok := s.profiles[orgID]
	if !ok {
		return intercompany.Profile{}, fmt.Errorf("no organization profile configured for %q", orgID)
	}
	return p, nil
}

func (s *eliminationServiceImpl) validLines(lines []entity.JournalLine, summary *Summary) []entity.JournalLine {
	out := make([]entity.JournalLine, 0, len(lines))
	for _, l := range lines {
		if err := entity.ValidateJournalLine(l); err != nil {
			s.logger.Error("Skipping invalid journal line", "error", err)
			summary.Invalid++
			summary.Errors++
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *eliminationServiceImpl) skipApproved(ctx context.Context, candidates []entity.EliminationCandidate, summary *Summary) []entity.EliminationCandidate {
	approved, err := s.store.ApprovedEliminationKeys(ctx)
	if err != nil {
		s.logger.Error("Failed to read approved eliminations, keeping all candidates", "error", err)
		summary.Errors++
		return candidates
	}

	out := make([]entity.EliminationCandidate, 0, len(candidates))
	for _, c := range candidates {
		if approved[c.Key()] {
			summary.AlreadyApproved++
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *eliminationServiceImpl) startRun(ctx context.Context, opts EliminationOptions, summary *Summary) *entity.ReconciliationRun {
	from, to := opts.Period.From, opts.Period.To
	run := &entity.ReconciliationRun{
		ID:                   uuid.NewString(),
		Kind:                 entity.RunKindEliminations,
		SourceOrgID:          opts.SourceOrgID,
		TargetOrgID:          opts.TargetOrgID,
		PeriodFrom:           &from,
		PeriodTo:             &to,
		AutoApproveThreshold: s.controller.Threshold().AutoApprove,
		MatchThreshold:       opts.MatchThreshold,
		StartedAt:            s.now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("Failed to record run start", "error", err)
		summary.Errors++
		return nil
	}
	summary.RunID = run.ID
	return run
}
