package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/sqlite"
)

// DecisionRepository implements port.DecisionStore on SQLite.
// Each upsert is a single INSERT ... ON CONFLICT statement, so concurrent
// writers on the same key resolve as last-writer-wins.
type DecisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDecisionRepository creates a new decision store
func NewDecisionRepository(db *sql.DB, logger *zap.Logger) port.DecisionStore {
	return &DecisionRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertMapping inserts or updates the mapping for (source org, target org, source account)
func (r *DecisionRepository) UpsertMapping(ctx context.Context, rec *entity.MappingRecord) error {
	query := `
		INSERT INTO account_mappings (
			source_org_id, target_org_id, source_account_id,
			source_account_code, source_account_name,
			target_account_id, target_account_code, target_account_name,
			confidence, strategy, status, approved_by, approved_at, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_org_id, target_org_id, source_account_id) DO UPDATE SET
			source_account_code = excluded.source_account_code,
			source_account_name = excluded.source_account_name,
			target_account_id   = excluded.target_account_id,
			target_account_code = excluded.target_account_code,
			target_account_name = excluded.target_account_name,
			confidence          = excluded.confidence,
			strategy            = excluded.strategy,
			status              = excluded.status,
			approved_by         = excluded.approved_by,
			approved_at         = excluded.approved_at,
			notes               = excluded.notes,
			updated_at          = excluded.updated_at
		RETURNING id
	`

	now := r.now()
	approvedAt := rec.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = now
	}

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		rec.SourceOrgID,
		rec.TargetOrgID,
		rec.SourceAccountID,
		rec.SourceAccountCode,
		rec.SourceAccountName,
		nullString(rec.TargetAccountID),
		nullString(rec.TargetAccountCode),
		nullString(rec.TargetAccountName),
		rec.Confidence,
		rec.Strategy,
		rec.Status,
		rec.ApprovedBy,
		approvedAt.UTC(),
		rec.Notes,
		now,
		now,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to upsert account mapping",
			zap.String("key", rec.Key().String()),
			zap.Error(err))
		return &entity.PersistenceError{Key: rec.Key().String(), Err: err}
	}

	rec.ApprovedAt = approvedAt
	rec.UpdatedAt = now
	return nil
}

// UpsertElimination inserts or updates the elimination for (source line, target line)
func (r *DecisionRepository) UpsertElimination(ctx context.Context, rec *entity.EliminationRecord) error {
	query := `
		INSERT INTO intercompany_eliminations (
			source_org_id, target_org_id, source_line_id, target_line_id,
			match_type, confidence, elimination_amount, period,
			status, approved_by, approved_at, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_line_id, target_line_id) DO UPDATE SET
			source_org_id      = excluded.source_org_id,
			target_org_id      = excluded.target_org_id,
			match_type         = excluded.match_type,
			confidence         = excluded.confidence,
			elimination_amount = excluded.elimination_amount,
			period             = excluded.period,
			status             = excluded.status,
			approved_by        = excluded.approved_by,
			approved_at        = excluded.approved_at,
			notes              = excluded.notes,
			updated_at         = excluded.updated_at
		RETURNING id
	`

	now := r.now()
	approvedAt := rec.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = now
	}

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		rec.SourceOrgID,
		rec.TargetOrgID,
		rec.SourceLineID,
		rec.TargetLineID,
		rec.MatchType,
		rec.Confidence,
		rec.EliminationAmount.String(),
		rec.Period,
		rec.Status,
		rec.ApprovedBy,
		approvedAt.UTC(),
		rec.Notes,
		now,
		now,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to upsert intercompany elimination",
			zap.String("key", rec.Key().String()),
			zap.Error(err))
		return &entity.PersistenceError{Key: rec.Key().String(), Err: err}
	}

	rec.ApprovedAt = approvedAt
	rec.UpdatedAt = now
	return nil
}

// ApprovedMappingKeys returns the approved source account ids for an org pair
func (r *DecisionRepository) ApprovedMappingKeys(ctx context.Context, sourceOrgID, targetOrgID string) (map[string]bool, error) {
	query := `
		SELECT source_account_id FROM account_mappings
		WHERE source_org_id = ? AND target_org_id = ? AND status = ?
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, sourceOrgID, targetOrgID, entity.DecisionStatusApproved)
	if err != nil {
		r.logger.Error("Failed to load approved mappings", zap.Error(err))
		return nil, fmt.Errorf("failed to load approved mappings: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan approved mapping: %w", err)
		}
		keys[id] = true
	}
	return keys, rows.Err()
}

// ApprovedEliminationKeys returns the approved (source line, target line) pairs
func (r *DecisionRepository) ApprovedEliminationKeys(ctx context.Context) (map[entity.EliminationKey]bool, error) {
	query := `SELECT source_line_id, target_line_id FROM intercompany_eliminations WHERE status = ?`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, entity.DecisionStatusApproved)
	if err != nil {
		r.logger.Error("Failed to load approved eliminations", zap.Error(err))
		return nil, fmt.Errorf("failed to load approved eliminations: %w", err)
	}
	defer rows.Close()

	keys := make(map[entity.EliminationKey]bool)
	for rows.Next() {
		var k entity.EliminationKey
		if err := rows.Scan(&k.SourceLineID, &k.TargetLineID); err != nil {
			return nil, fmt.Errorf("failed to scan approved elimination: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// ListMappings returns mapping records ordered by source account code
func (r *DecisionRepository) ListMappings(ctx context.Context, filter port.MappingFilter) ([]*entity.MappingRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.SourceOrgID != "" {
		where = append(where, "source_org_id = ?")
		args = append(args, filter.SourceOrgID)
	}
	if filter.TargetOrgID != "" {
		where = append(where, "target_org_id = ?")
		args = append(args, filter.TargetOrgID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, source_org_id, target_org_id, source_account_id,
			source_account_code, source_account_name,
			target_account_id, target_account_code, target_account_name,
			confidence, strategy, status, approved_by, approved_at, notes,
			created_at, updated_at
		FROM account_mappings` + whereClause(where) + `
		ORDER BY source_account_code, source_account_id` + limitClause(filter.Limit, filter.Offset)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list account mappings", zap.Error(err))
		return nil, fmt.Errorf("failed to list account mappings: %w", err)
	}
	defer rows.Close()

	var records []*entity.MappingRecord
	for rows.Next() {
		var rec entity.MappingRecord
		var targetID, targetCode, targetName sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.SourceOrgID,
			&rec.TargetOrgID,
			&rec.SourceAccountID,
			&rec.SourceAccountCode,
			&rec.SourceAccountName,
			&targetID,
			&targetCode,
			&targetName,
			&rec.Confidence,
			&rec.Strategy,
			&rec.Status,
			&rec.ApprovedBy,
			&rec.ApprovedAt,
			&rec.Notes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account mapping: %w", err)
		}
		rec.TargetAccountID = targetID.String
		rec.TargetAccountCode = targetCode.String
		rec.TargetAccountName = targetName.String
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// ListEliminations returns elimination records ordered by id
func (r *DecisionRepository) ListEliminations(ctx context.Context, filter port.EliminationFilter) ([]*entity.EliminationRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Period != "" {
		where = append(where, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, source_org_id, target_org_id, source_line_id, target_line_id,
			match_type, confidence, elimination_amount, period,
			status, approved_by, approved_at, notes, created_at, updated_at
		FROM intercompany_eliminations` + whereClause(where) + `
		ORDER BY id` + limitClause(filter.Limit, filter.Offset)

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list intercompany eliminations", zap.Error(err))
		return nil, fmt.Errorf("failed to list intercompany eliminations: %w", err)
	}
	defer rows.Close()

	var records []*entity.EliminationRecord
	for rows.Next() {
		var rec entity.EliminationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SourceOrgID,
			&rec.TargetOrgID,
			&rec.SourceLineID,
			&rec.TargetLineID,
			&rec.MatchType,
			&rec.Confidence,
			&rec.EliminationAmount,
			&rec.Period,
			&rec.Status,
			&rec.ApprovedBy,
			&rec.ApprovedAt,
			&rec.Notes,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intercompany elimination: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountMappings returns the number of stored mapping rows
func (r *DecisionRepository) CountMappings(ctx context.Context) (int, error) {
	return r.count(ctx, "account_mappings")
}

// CountEliminations returns the number of stored elimination rows
func (r *DecisionRepository) CountEliminations(ctx context.Context) (int, error) {
	return r.count(ctx, "intercompany_eliminations")
}

func (r *DecisionRepository) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func limitClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

var _ port.DecisionStore = (*DecisionRepository)(nil)
