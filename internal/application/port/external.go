package port

import (
	"context"
	"time"

	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// LedgerDataSource reads one organization's ledger. No rows is an empty slice, not an error;
// transport or parse failures are returned as *entity.DataSourceError.
type LedgerDataSource interface {
	GetAccounts(ctx context.Context, orgID string) ([]entity.Account, error)
	GetJournalLines(ctx context.Context, orgID string, from, to time.Time) ([]entity.JournalLine, error)
}
