package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/domain/workflow"
	"github.com/garyjia/ledger-consolidation/internal/mapping"
	"github.com/garyjia/ledger-consolidation/internal/review"
)

// MappingOptions configures one account-mapping run
type MappingOptions struct {
	SourceOrgID string
	TargetOrgID string
	ExportPath  string
	ImportPath  string
	DryRun      bool
	ShowAll     bool
	ReviewOnly  bool

	// Provider answers the review queue; nil leaves queued candidates unreviewed
	Provider review.DecisionProvider
}

// Persists reports whether the run writes to the decision store
func (o MappingOptions) Persists() bool {
	return !o.DryRun && !o.ReviewOnly
}

// MappingService runs the load, suggest, review and persist pipeline for account mappings
type MappingService interface {
	Run(ctx context.Context, opts MappingOptions) (*Summary, error)
}

type mappingServiceImpl struct {
	source     port.LedgerDataSource
	store      port.DecisionStore
	runs       port.RunRepository
	controller *review.Controller
	exporter   port.Exporter
	importer   port.MappingImporter
	logger     Logger
	now        func() time.Time
}

// NewMappingService creates a new MappingService
func NewMappingService(
	source port.LedgerDataSource,
	store port.DecisionStore,
	runs port.RunRepository,
	controller *review.Controller,
	exporter port.Exporter,
	importer port.MappingImporter,
	logger Logger,
) MappingService {
	return &mappingServiceImpl{
		source:     source,
		store:      store,
		runs:       runs,
		controller: controller,
		exporter:   exporter,
		importer:   importer,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one mapping run. The only error returned is a fatal load failure;
// every other problem is counted in the summary.
func (s *mappingServiceImpl) Run(ctx context.Context, opts MappingOptions) (*Summary, error) {
	summary := newSummary(entity.RunKindMappings, opts.SourceOrgID, opts.TargetOrgID)
	summary.DryRun = opts.DryRun
	summary.ReviewOnly = opts.ReviewOnly

	sources, targets, err := loadPair(ctx, opts.SourceOrgID, opts.TargetOrgID, s.source.GetAccounts)
	if err != nil {
		s.logger.Error("Failed to load accounts", "error", err)
		return summary, err
	}
	s.logger.Info("Accounts loaded",
		"source_org", opts.SourceOrgID, "source_accounts", len(sources),
		"target_org", opts.TargetOrgID, "target_accounts", len(targets))

	sources = s.validAccounts(sources, summary)
	targets = s.validAccounts(targets, summary)

	if !opts.ShowAll {
		sources = s.skipApproved(ctx, opts, sources, summary)
	}

	var run *entity.ReconciliationRun
	if opts.Persists() {
		run = s.startRun(ctx, opts, summary)
	}

	candidates := mapping.NewSuggester(opts.TargetOrgID).Suggest(sources, targets)
	summary.Considered = len(candidates)
	threshold := s.controller.Threshold()
	for _, c := range candidates {
		summary.Strategies[c.Strategy]++
		summary.Breakdown.Add(threshold, c.Confidence)
	}
	s.logger.Info("Mapping candidates computed",
		"candidates", len(candidates),
		"high", summary.Breakdown.High, "medium", summary.Breakdown.Medium,
		"low", summary.Breakdown.Low, "none", summary.Breakdown.None)

	if opts.ExportPath != "" && s.exporter != nil {
		if err := s.exporter.ExportMappings(opts.ExportPath, candidates); err != nil {
			s.logger.Error("Failed to export mappings", "path", opts.ExportPath, "error", err)
			summary.Errors++
		}
	}

	// Writes use a context that outlives cancellation so decisions made before
	// an interrupt are still stored.
	flushCtx := context.WithoutCancel(ctx)

	if opts.ImportPath != "" && s.importer != nil {
		candidates = s.applyImport(flushCtx, opts, candidates, summary)
	}

	provider := opts.Provider
	if opts.ReviewOnly {
		provider = nil
	}
	outcome, err := s.controller.ReviewMappings(ctx, candidates, targets, provider)
	if err != nil {
		return summary, fmt.Errorf("review mappings: %w", err)
	}

	summary.AutoApproved = outcome.Count(workflow.StateAutoApproved)
	summary.ManualApproved += outcome.Count(workflow.StateManualApproved)
	summary.Rejected = outcome.Count(workflow.StateRejected)
	summary.Deferred = outcome.Count(workflow.StateDeferred)
	summary.Unreviewed = len(outcome.Unreviewed)
	summary.Refused = outcome.Refused
	summary.Quit = outcome.Quit

	if opts.Persists() {
		for _, r := range outcome.Decided {
			status, ok := recordStatus(r.State)
			if !ok {
				continue
			}
			rec := entity.NewMappingRecord(r.Candidate, status, r.ApprovedBy, r.DecidedAt)
			s.persistMapping(flushCtx, rec, summary)
		}
	}

	if run != nil {
		s.completeRun(flushCtx, run, summary)
	}

	s.logger.Info("Mapping run finished",
		"considered", summary.Considered,
		"auto_approved", summary.AutoApproved,
		"manual_approved", summary.ManualApproved,
		"rejected", summary.Rejected,
		"deferred", summary.Deferred,
		"errors", summary.Errors)
	return summary, nil
}

func (s *mappingServiceImpl) validAccounts(accounts []entity.Account, summary *Summary) []entity.Account {
	out := make([]entity.Account, 0, len(accounts))
	for _, a := range accounts {
		if err := entity.ValidateAccount(a); err != nil {
			s.logger.Error("Skipping invalid account", "error", err)
			summary.Invalid++
			summary.Errors++
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *mappingServiceImpl) skipApproved(ctx context.Context, opts MappingOptions, sources []entity.Account, summary *Summary) []entity.Account {
	approved, err := s.store.ApprovedMappingKeys(ctx, opts.SourceOrgID, opts.TargetOrgID)
	if err != nil {
		s.logger.Error("Failed to read approved mappings, suggesting all accounts", "error", err)
		summary.Errors++
		return sources
	}

	out := make([]entity.Account, 0, len(sources))
	for _, a := range sources {
		if approved[a.ID] && a.IsActive() {
			summary.AlreadyApproved++
			continue
		}
		out = append(out, a)
	}
	return out
}

// applyImport persists imported mappings as manual approvals and drops their
// source accounts from the review queue
func (s *mappingServiceImpl) applyImport(ctx context.Context, opts MappingOptions, candidates []entity.MappingCandidate, summary *Summary) []entity.MappingCandidate {
	imported, skipped, err := s.importer.ImportMappings(opts.ImportPath)
	if err != nil {
		s.logger.Error("Failed to import mappings", "path", opts.ImportPath, "error", err)
		summary.Errors++
		return candidates
	}
	if skipped > 0 {
		s.logger.Error("Skipped imported mappings without target account", "path", opts.ImportPath, "skipped", skipped)
		summary.Invalid += skipped
		summary.Errors += skipped
	}

	decided := make(map[string]bool, len(imported))
	for _, c := range imported {
		if c.SourceOrgID == "" {
			c.SourceOrgID = opts.SourceOrgID
		}
		if c.TargetOrgID == "" {
			c.TargetOrgID = opts.TargetOrgID
		}
		if c.SourceOrgID != opts.SourceOrgID || c.TargetOrgID != opts.TargetOrgID {
			continue
		}
		decided[c.Source.ID] = true
		summary.Imported++
		summary.ManualApproved++

		if opts.Persists() {
			rec := entity.NewMappingRecord(c, entity.DecisionStatusApproved, entity.ApprovedByManual, s.now())
			s.persistMapping(ctx, rec, summary)
		}
	}

	out := make([]entity.MappingCandidate, 0, len(candidates))
	for _, c := range candidates {
		if decided[c.Source.ID] {
			continue
		}
		out = append(out, c)
	}
	s.logger.Info("Mappings imported", "imported", summary.Imported, "remaining", len(out))
	return out
}

func (s *mappingServiceImpl) persistMapping(ctx context.Context, rec *entity.MappingRecord, summary *Summary) {
	if err := s.store.UpsertMapping(ctx, rec); err != nil {
		s.logger.Error("Failed to persist mapping", "key", rec.Key().String(), "error", err)
		summary.PersistFailures++
		summary.Errors++
		return
	}
	summary.Persisted++
}

func (s *mappingServiceImpl) startRun(ctx context.Context, opts MappingOptions, summary *Summary) *entity.ReconciliationRun {
	run := &entity.ReconciliationRun{
		ID:                   uuid.NewString(),
		Kind:                 entity.RunKindMappings,
		SourceOrgID:          opts.SourceOrgID,
		TargetOrgID:          opts.TargetOrgID,
		AutoApproveThreshold: s.controller.Threshold().AutoApprove,
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

func (s *mappingServiceImpl) completeRun(ctx context.Context, run *entity.ReconciliationRun, summary *Summary) {
	fillRun(run, summary, s.now())
	if err := s.runs.Complete(ctx, run); err != nil {
		s.logger.Error("Failed to record run completion", "run_id", run.ID, "error", err)
	}
}

// recordStatus maps a terminal review state to the stored decision status.
// Deferred candidates are not stored so they come back next run.
func recordStatus(state workflow.State) (string, bool) {
	switch state {
	case workflow.StateAutoApproved, workflow.StateManualApproved:
		return entity.DecisionStatusApproved, true
	case workflow.StateRejected:
		return entity.DecisionStatusRejected, true
	default:
		return "", false
	}
}

func fillRun(run *entity.ReconciliationRun, summary *Summary, at time.Time) {
	run.Considered = summary.Considered
	run.AutoApproved = summary.AutoApproved
	run.ManualApproved = summary.ManualApproved
	run.Rejected = summary.Rejected
	run.Deferred = summary.Deferred
	run.Errors = summary.Errors
	run.Status = entity.RunStatusCompleted
	if summary.Quit {
		run.ErrorMessage = fmt.Sprintf("review stopped with %d unreviewed", summary.Unreviewed)
	}
	run.CompletedAt = &at
}
