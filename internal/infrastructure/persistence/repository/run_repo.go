package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/sqlite"
)

const dateLayout = "2006-01-02"

// RunRepository implements port.RunRepository
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new reconciliation run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) port.RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a run in RUNNING state
func (r *RunRepository) Create(ctx context.Context, run *entity.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (
			id, kind, source_org_id, target_org_id, period_from, period_to,
			auto_approve_threshold, match_threshold, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if run.Status == "" {
		run.Status = entity.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		run.ID,
		run.Kind,
		run.SourceOrgID,
		run.TargetOrgID,
		nullDate(run.PeriodFrom),
		nullDate(run.PeriodTo),
		run.AutoApproveThreshold,
		run.MatchThreshold,
		run.Status,
		run.StartedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create reconciliation run",
			zap.String("run_id", run.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create reconciliation run: %w", err)
	}
	return nil
}

// Complete records the final counts and status of a run
func (r *RunRepository) Complete(ctx context.Context, run *entity.ReconciliationRun) error {
	query := `
		UPDATE reconciliation_runs SET
			considered = ?, auto_approved = ?, manual_approved = ?,
			rejected = ?, deferred = ?, errors = ?,
			status = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`
	if run.Status == "" || run.Status == entity.RunStatusRunning {
		run.Status = entity.RunStatusCompleted
	}
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		run.Considered,
		run.AutoApproved,
		run.ManualApproved,
		run.Rejected,
		run.Deferred,
		run.Errors,
		run.Status,
		nullString(run.ErrorMessage),
		completedAt,
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to complete reconciliation run",
			zap.String("run_id", run.ID),
			zap.Error(err))
		return fmt.Errorf("failed to complete reconciliation run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("reconciliation run %s not found", run.ID)
	}
	return nil
}

// GetByID returns a run, or nil when it does not exist
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.ReconciliationRun, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, selectRuns+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRecent returns the most recently started runs first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*entity.ReconciliationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, selectRuns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("Failed to list reconciliation runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list reconciliation runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

const selectRuns = `
	SELECT id, kind, source_org_id, target_org_id, period_from, period_to,
		auto_approve_threshold, match_threshold,
		considered, auto_approved, manual_approved, rejected, deferred, errors,
		status, error_message, started_at, completed_at
	FROM reconciliation_runs`

func scanRuns(rows *sql.Rows) ([]*entity.ReconciliationRun, error) {
	var runs []*entity.ReconciliationRun
	for rows.Next() {
		var run entity.ReconciliationRun
		var from, to, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&run.SourceOrgID,
			&run.TargetOrgID,
			&from,
			&to,
			&run.AutoApproveThreshold,
			&run.MatchThreshold,
			&run.Considered,
			&run.AutoApproved,
			&run.ManualApproved,
			&run.Rejected,
			&run.Deferred,
			&run.Errors,
			&run.Status,
			&errMsg,
			&run.StartedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation run: %w", err)
		}
		run.PeriodFrom = parseNullDate(from)
		run.PeriodTo = parseNullDate(to)
		run.ErrorMessage = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

var _ port.RunRepository = (*RunRepository)(nil)
