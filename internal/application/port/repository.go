package port

import (
	"context"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// MappingFilter narrows ListMappings
type MappingFilter struct {
	SourceOrgID string
	TargetOrgID string
	Status      string
	Limit       int
	Offset      int
}

// EliminationFilter narrows ListEliminations
type EliminationFilter struct {
	Period string
	Status string
	Limit  int
	Offset int
}

// DecisionStore persists reviewed decisions keyed by their natural keys.
// Upserts are atomic: an existing key is updated in place, never duplicated.
type DecisionStore interface {
	UpsertMapping(ctx context.Context, record *entity.MappingRecord) error
	UpsertElimination(ctx context.Context, record *entity.EliminationRecord) error

	// ApprovedMappingKeys returns the source account ids already approved for the org pair
	ApprovedMappingKeys(ctx context.Context, sourceOrgID, targetOrgID string) (map[string]bool, error)
	// ApprovedEliminationKeys returns the (source line, target line) pairs already approved
	ApprovedEliminationKeys(ctx context.Context) (map[entity.EliminationKey]bool, error)

	ListMappings(ctx context.Context, filter MappingFilter) ([]*entity.MappingRecord, error)
	ListEliminations(ctx context.Context, filter EliminationFilter) ([]*entity.EliminationRecord, error)
	CountMappings(ctx context.Context) (int, error)
	CountEliminations(ctx context.Context) (int, error)
}

// RunRepository records reconciliation runs
type RunRepository interface {
	Create(ctx context.Context, run *entity.ReconciliationRun) error
	Complete(ctx context.Context, run *entity.ReconciliationRun) error
	GetByID(ctx context.Context, id string) (*entity.ReconciliationRun, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ReconciliationRun, error)
}

// LedgerWriter stores synced ledger snapshots for the SQLite data source
type LedgerWriter interface {
	SaveAccounts(ctx context.Context, accounts []entity.Account) error
	SaveJournalLines(ctx context.Context, lines []entity.JournalLine) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
