package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/ledger-consolidation/pkg/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "store.db"), MaxOpenConns: 4}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Migrate(""))
	return db.DB
}

func mappingRecord(sourceAccount string, confidence int, status string) *entity.MappingRecord {
	return &entity.MappingRecord{
		SourceOrgID:       "org-a",
		TargetOrgID:       "org-b",
		SourceAccountID:   sourceAccount,
		SourceAccountCode: "200",
		SourceAccountName: "Accounts Payable",
		TargetAccountID:   "b-200",
		TargetAccountCode: "200",
		TargetAccountName: "Trade Creditors",
		Confidence:        confidence,
		Strategy:          entity.StrategyExactCode,
		Status:            status,
		ApprovedBy:        entity.ApprovedByAuto,
		ApprovedAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Notes:             "Code 200 matches exactly",
	}
}

func TestDecisionRepository_UpsertMappingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	first := mappingRecord("a-200", 98, entity.DecisionStatusApproved)
	require.NoError(t, store.UpsertMapping(ctx, first))
	second := mappingRecord("a-200", 98, entity.DecisionStatusApproved)
	require.NoError(t, store.UpsertMapping(ctx, second))

	n, err := store.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, first.ID, second.ID)

	// Later write overwrites in place
	updated := mappingRecord("a-200", 100, entity.DecisionStatusApproved)
	updated.Strategy = entity.StrategyManualSelection
	updated.ApprovedBy = entity.ApprovedByManual
	updated.TargetAccountID = "b-210"
	updated.Notes = "Manually selected"
	require.NoError(t, store.UpsertMapping(ctx, updated))

	records, err := store.ListMappings(ctx, port.MappingFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 100, records[0].Confidence)
	assert.Equal(t, entity.StrategyManualSelection, records[0].Strategy)
	assert.Equal(t, entity.ApprovedByManual, records[0].ApprovedBy)
	assert.Equal(t, "b-210", records[0].TargetAccountID)
	assert.Equal(t, "Manually selected", records[0].Notes)
	assert.True(t, records[0].ApprovedAt.Equal(updated.ApprovedAt))
}

func TestDecisionRepository_NoTargetMapping(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	rec := mappingRecord("a-999", 0, entity.DecisionStatusRejected)
	rec.TargetAccountID, rec.TargetAccountCode, rec.TargetAccountName = "", "", ""
	rec.Strategy = entity.StrategyNoMatch
	rec.ApprovedBy = entity.ApprovedByManual
	require.NoError(t, store.UpsertMapping(ctx, rec))

	records, err := store.ListMappings(ctx, port.MappingFilter{Status: entity.DecisionStatusRejected})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].TargetAccountID)
}

func TestDecisionRepository_ConcurrentUpsertsSameKey(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.UpsertMapping(ctx, mappingRecord("a-200", 90+i, entity.DecisionStatusApproved))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := store.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecisionRepository_ApprovedMappingKeys(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	require.NoError(t, store.UpsertMapping(ctx, mappingRecord("a-1", 98, entity.DecisionStatusApproved)))
	require.NoError(t, store.UpsertMapping(ctx, mappingRecord("a-2", 60, entity.DecisionStatusRejected)))
	other := mappingRecord("a-3", 98, entity.DecisionStatusApproved)
	other.TargetOrgID = "org-c"
	require.NoError(t, store.UpsertMapping(ctx, other))

	keys, err := store.ApprovedMappingKeys(ctx, "org-a", "org-b")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a-1": true}, keys)
}

func TestDecisionRepository_Eliminations(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	rec := func(src, tgt, period, status string) *entity.EliminationRecord {
		return &entity.EliminationRecord{
			SourceOrgID:       "org-a",
			TargetOrgID:       "org-b",
			SourceLineID:      src,
			TargetLineID:      tgt,
			MatchType:         entity.MatchTypeRevenueCOGS,
			Confidence:        100,
			EliminationAmount: decimal.RequireFromString("1234.56"),
			Period:            period,
			Status:            status,
			ApprovedBy:        entity.ApprovedByAuto,
			Notes:             "Revenue/COGS elimination: Sale",
		}
	}

	require.NoError(t, store.UpsertElimination(ctx, rec("a1", "b1", "2024-03", entity.DecisionStatusApproved)))
	require.NoError(t, store.UpsertElimination(ctx, rec("a1", "b1", "2024-03", entity.DecisionStatusApproved)))
	require.NoError(t, store.UpsertElimination(ctx, rec("a1", "b2", "2024-03", entity.DecisionStatusRejected)))
	require.NoError(t, store.UpsertElimination(ctx, rec("a9", "b9", "2024-04", entity.DecisionStatusApproved)))

	n, err := store.CountEliminations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	keys, err := store.ApprovedEliminationKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.True(t, keys[entity.EliminationKey{SourceLineID: "a1", TargetLineID: "b1"}])
	assert.False(t, keys[entity.EliminationKey{SourceLineID: "a1", TargetLineID: "b2"}])

	march, err := store.ListEliminations(ctx, port.EliminationFilter{Period: "2024-03"})
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(march[0].EliminationAmount))

	limited, err := store.ListEliminations(ctx, port.EliminationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b2", limited[0].TargetLineID)
}

func TestDecisionRepository_InvalidRecordIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionRepository(setupDB(t), zap.NewNop())

	bad := mappingRecord("a-1", 150, entity.DecisionStatusApproved)
	err := store.UpsertMapping(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrPersistence)
}

func TestDecisionRepository_JoinsTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	store := NewDecisionRepository(db, zap.NewNop())
	tm := sqlite.NewDB(db, zap.NewNop())

	err := tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := store.UpsertMapping(txCtx, mappingRecord("a-1", 98, entity.DecisionStatusApproved)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	n, err := store.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(setupDB(t), zap.NewNop())

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	run := &entity.ReconciliationRun{
		ID:                   "run-1",
		Kind:                 entity.RunKindEliminations,
		SourceOrgID:          "org-a",
		TargetOrgID:          "org-b",
		PeriodFrom:           &from,
		PeriodTo:             &to,
		AutoApproveThreshold: 95,
		MatchThreshold:       80,
	}
	require.NoError(t, runs.Create(ctx, run))
	assert.Equal(t, entity.RunStatusRunning, run.Status)

	run.Considered, run.AutoApproved, run.Rejected = 5, 3, 1
	require.NoError(t, runs.Complete(ctx, run))

	got, err := runs.GetByID(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.RunStatusCompleted, got.Status)
	assert.Equal(t, 5, got.Considered)
	assert.Equal(t, 3, got.AutoApproved)
	require.NotNil(t, got.PeriodFrom)
	assert.Equal(t, "2024-03-01", got.PeriodFrom.Format("2006-01-02"))
	assert.NotNil(t, got.CompletedAt)
	assert.True(t, got.IsFinished())

	missing, err := runs.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, runs.Create(ctx, &entity.ReconciliationRun{ID: "run-2", Kind: entity.RunKindMappings, SourceOrgID: "org-a", TargetOrgID: "org-b",
		StartedAt: time.Now().Add(time.Hour)}))
	list, err := runs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].ID)

	assert.Error(t, runs.Complete(ctx, &entity.ReconciliationRun{ID: "ghost"}))
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerRepository(setupDB(t), zap.NewNop())

	require.NoError(t, ledger.SaveAccounts(ctx, []entity.Account{
		{ID: "acc-2", OrgID: "org-a", Code: "400", Name: "Sales", Type: entity.AccountTypeRevenue},
		{ID: "acc-1", OrgID: "org-a", Code: "200", Name: "Accounts Payable", Type: entity.AccountTypeCurrentLiability, Status: entity.AccountStatusInactive},
		{ID: "acc-9", OrgID: "org-b", Code: "400", Name: "Sales", Type: entity.AccountTypeRevenue},
	}))

	accounts, err := ledger.GetAccounts(ctx, "org-a")
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "200", accounts[0].Code)
	assert.Equal(t, entity.AccountStatusInactive, accounts[0].Status)
	assert.Equal(t, entity.AccountStatusActive, accounts[1].Status)

	empty, err := ledger.GetAccounts(ctx, "org-z")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	line := func(id, date, amount string) entity.JournalLine {
		d, _ := time.Parse("2006-01-02", date)
		return entity.JournalLine{
			ID: id, OrgID: "org-a", JournalID: "j1", Date: d, Description: "Sale to Elevate",
			AccountRef: "acc-2", AccountCode: "400", AccountName: "Sales", AccountType: entity.AccountTypeRevenue,
			NetAmount: decimal.RequireFromString(amount), GrossAmount: decimal.RequireFromString(amount),
		}
	}
	taxed := line("l2", "2024-03-31", "100.10")
	taxed.TaxAmount = decimal.NewNullDecimal(decimal.RequireFromString("10.01"))

	require.NoError(t, ledger.SaveJournalLines(ctx, []entity.JournalLine{
		line("l1", "2024-03-01", "1000.00"),
		taxed,
		line("l3", "2024-04-01", "5"),
	}))

	lines, err := ledger.GetJournalLines(ctx, "org-a",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "l1", lines[0].ID)
	assert.True(t, decimal.RequireFromString("1000").Equal(lines[0].NetAmount))
	assert.False(t, lines[0].TaxAmount.Valid)
	assert.True(t, lines[1].TaxAmount.Valid)
	assert.True(t, decimal.RequireFromString("10.01").Equal(lines[1].TaxAmount.Decimal))
	assert.Equal(t, 31, lines[1].Date.Day())
}

func TestLedgerRepository_MalformedRowsAreFlagged(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	ledger := NewLedgerRepository(db, zap.NewNop())

	insert := `INSERT INTO journal_lines (org_id, line_id, date, account_type, net_amount, gross_amount, tax_amount)
		VALUES ('org-a', ?, ?, 'REVENUE', ?, ?, ?)`
	rows := [][]interface{}{
		{"good", "2024-03-02", "10.00", "10.00", nil},
		{"no-date", "", "10.00", "10.00", nil},
		{"us-date", "03/05/2024", "10.00", "10.00", nil},
		{"bad-net", "2024-03-03", "ten", "10.00", nil},
		{"bad-tax", "2024-03-04", "10.00", "10.00", "n/a"},
		{"april", "2024-04-01", "ten", "10.00", nil},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx, insert, r...)
		require.NoError(t, err)
	}

	lines, err := ledger.GetJournalLines(ctx, "org-a",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, lines, 5)

	byID := map[string]entity.JournalLine{}
	for _, l := range lines {
		byID[l.ID] = l
	}
	assert.NoError(t, entity.ValidateJournalLine(byID["good"]))
	for id, field := range map[string]string{"no-date": "date", "us-date": "date", "bad-net": "net_amount", "bad-tax": "tax_amount"} {
		err := entity.ValidateJournalLine(byID[id])
		require.Error(t, err, id)
		assert.ErrorIs(t, err, entity.ErrValidation)
		var ve *entity.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, field, ve.Field, id)
	}
}
