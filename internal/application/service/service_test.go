package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
	"github.com/garyjia/ledger-consolidation/pkg/utils"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Mock ledger source
type mockSource struct {
	getAccountsFunc     func(ctx context.Context, orgID string) ([]entity.Account, error)
	getJournalLinesFunc func(ctx context.Context, orgID string, from, to time.Time) ([]entity.JournalLine, error)
}

func (m *mockSource) GetAccounts(ctx context.Context, orgID string) ([]entity.Account, error) {
	if m.getAccountsFunc != nil {
		return m.getAccountsFunc(ctx, orgID)
	}
	return []entity.Account{}, nil
}

func (m *mockSource) GetJournalLines(ctx context.Context, orgID string, from, to time.Time) ([]entity.JournalLine, error) {
	if m.getJournalLinesFunc != nil {
		return m.getJournalLinesFunc(ctx, orgID, from, to)
	}
	return []entity.JournalLine{}, nil
}

// memStore keeps one row per natural key
type memStore struct {
	mu                    sync.Mutex
	mappings              map[entity.MappingKey]*entity.MappingRecord
	eliminations          map[entity.EliminationKey]*entity.EliminationRecord
	writes                int
	upsertMappingFunc     func(ctx context.Context, rec *entity.MappingRecord) error
	upsertEliminationFunc func(ctx context.Context, rec *entity.EliminationRecord) error
}

func newMemStore() *memStore {
	return &memStore{
		mappings:     map[entity.MappingKey]*entity.MappingRecord{},
		eliminations: map[entity.EliminationKey]*entity.EliminationRecord{},
	}
}

func (m *memStore) UpsertMapping(ctx context.Context, rec *entity.MappingRecord) error {
	if m.upsertMappingFunc != nil {
		if err := m.upsertMappingFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	cp := *rec
	m.mappings[rec.Key()] = &cp
	return nil
}

func (m *memStore) UpsertElimination(ctx context.Context, rec *entity.EliminationRecord) error {
	if m.upsertEliminationFunc != nil {
		if err := m.upsertEliminationFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	cp := *rec
	m.eliminations[rec.Key()] = &cp
	return nil
}

func (m *memStore) ApprovedMappingKeys(_ context.Context, src, tgt string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for k, r := range m.mappings {
		if k.SourceOrgID == src && k.TargetOrgID == tgt && r.Status == entity.DecisionStatusApproved {
			out[k.SourceAccountID] = true
		}
	}
	return out, nil
}

func (m *memStore) ApprovedEliminationKeys(context.Context) (map[entity.EliminationKey]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[entity.EliminationKey]bool{}
	for k, r := range m.eliminations {
		if r.Status == entity.DecisionStatusApproved {
			out[k] = true
		}
	}
	return out, nil
}

func (m *memStore) ListMappings(context.Context, port.MappingFilter) ([]*entity.MappingRecord, error) {
	return nil, nil
}

func (m *memStore) ListEliminations(context.Context, port.EliminationFilter) ([]*entity.EliminationRecord, error) {
	return nil, nil
}

func (m *memStore) CountMappings(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mappings), nil
}

func (m *memStore) CountEliminations(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.eliminations), nil
}

// Mock run repository
type mockRuns struct {
	created   []*entity.ReconciliationRun
	completed []*entity.ReconciliationRun
}

// ctxRuns rejects writes on a cancelled context, as SQLite does
type ctxRuns struct {
	mockRuns
}

func (m *ctxRuns) Complete(ctx context.Context, run *entity.ReconciliationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.mockRuns.Complete(ctx, run)
}

func (m *mockRuns) Create(_ context.Context, run *entity.ReconciliationRun) error {
	m.created = append(m.created, run)
	return nil
}

func (m *mockRuns) Complete(_ context.Context, run *entity.ReconciliationRun) error {
	m.completed = append(m.completed, run)
	return nil
}

func (m *mockRuns) GetByID(context.Context, string) (*entity.ReconciliationRun, error) {
	return nil, nil
}

func (m *mockRuns) ListRecent(context.Context, int) ([]*entity.ReconciliationRun, error) {
	return nil, nil
}

// Mock exporter and importer
type mockFiles struct {
	exported  []entity.MappingCandidate
	elims     []entity.EliminationCandidate
	imported  []entity.MappingCandidate
	skipped   int
	exportErr error
}

func (m *mockFiles) ExportMappings(_ string, c []entity.MappingCandidate) error {
	m.exported = c
	return m.exportErr
}

func (m *mockFiles) ExportEliminations(_ string, c []entity.EliminationCandidate) error {
	m.elims = c
	return m.exportErr
}

func (m *mockFiles) ImportMappings(string) ([]entity.MappingCandidate, int, error) {
	return m.imported, m.skipped, nil
}

func acct(id, org, code, name, typ string) entity.Account {
	return entity.Account{ID: id, OrgID: org, Code: code, Name: name, Type: typ, Status: entity.AccountStatusActive}
}

func ledgerAccounts() *mockSource {
	accounts := map[string][]entity.Account{
		"org-a": {
			acct("a1", "org-a", "200", "Accounts Payable", entity.AccountTypeCurrentLiability),
			acct("a2", "org-a", "400", "Sales", entity.AccountTypeRevenue),
			acct("a3", "org-a", "600", "Bank Fees", entity.AccountTypeExpense),
			acct("a4", "org-a", "999", "Suspense", entity.AccountTypeExpense),
			{ID: "", OrgID: "org-a", Code: "123", Name: "Broken", Type: entity.AccountTypeExpense, Status: entity.AccountStatusActive},
		},
		"org-b": {
			acct("b1", "org-b", "200", "Trade Creditors", entity.AccountTypeCurrentLiability),
			acct("b2", "org-b", "410", "sales", entity.AccountTypeRevenue),
			acct("b3", "org-b", "610", "Bank Fee", entity.AccountTypeExpense),
		},
	}
	return &mockSource{
		getAccountsFunc: func(_ context.Context, orgID string) ([]entity.Account, error) {
			return accounts[orgID], nil
		},
	}
}

func newMappingService(source port.LedgerDataSource, store port.DecisionStore, runs port.RunRepository, files *mockFiles) MappingService {
	controller := review.NewController(review.NewThreshold(95), zap.NewNop())
	return NewMappingService(source, store, runs, controller, files, files, nopLogger{})
}

func mappingOpts() MappingOptions {
	return MappingOptions{
		SourceOrgID: "org-a",
		TargetOrgID: "org-b",
		Provider:    review.StaticProvider{Action: review.ActionApprove},
	}
}

func TestMappingService_Run(t *testing.T) {
	store := newMemStore()
	runs := &mockRuns{}
	svc := newMappingService(ledgerAccounts(), store, runs, &mockFiles{})

	summary, err := svc.Run(context.Background(), mappingOpts())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Considered)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.Equal(t, 1, summary.ManualApproved)
	assert.Equal(t, 1, summary.Deferred)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, review.DefaultMaxAttempts, summary.Refused)
	assert.Equal(t, 1, summary.Strategies[entity.StrategyExactCode])
	assert.Equal(t, 1, summary.Strategies[entity.StrategyExactName])
	assert.Equal(t, 1, summary.Strategies[entity.StrategySimilarName])
	assert.Equal(t, 1, summary.Strategies[entity.StrategyNoMatch])
	assert.Equal(t, review.Breakdown{High: 2, Medium: 1, None: 1}, summary.Breakdown)

	assert.Equal(t, 3, summary.Persisted)
	require.Len(t, store.mappings, 3)
	auto := store.mappings[entity.MappingKey{SourceOrgID: "org-a", TargetOrgID: "org-b", SourceAccountID: "a1"}]
	require.NotNil(t, auto)
	assert.Equal(t, entity.ApprovedByAuto, auto.ApprovedBy)
	assert.Equal(t, 98, auto.Confidence)
	manual := store.mappings[entity.MappingKey{SourceOrgID: "org-a", TargetOrgID: "org-b", SourceAccountID: "a3"}]
	require.NotNil(t, manual)
	assert.Equal(t, entity.ApprovedByManual, manual.ApprovedBy)
	assert.Equal(t, "b3", manual.TargetAccountID)

	require.Len(t, runs.created, 1)
	require.Len(t, runs.completed, 1)
	assert.Equal(t, summary.RunID, runs.completed[0].ID)
	assert.Equal(t, entity.RunStatusCompleted, runs.completed[0].Status)
	assert.Equal(t, 95, runs.completed[0].AutoApproveThreshold)
}

func TestMappingService_RepeatedRunsAreIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, &mockFiles{})

	opts := mappingOpts()
	opts.ShowAll = true

	first, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Approved(), second.Approved())
	assert.Equal(t, first.AutoApproved, second.AutoApproved)
	assert.Len(t, store.mappings, 3)
	assert.Equal(t, 6, store.writes)
}

func TestMappingService_SkipsAlreadyApproved(t *testing.T) {
	store := newMemStore()
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, &mockFiles{})

	_, err := svc.Run(context.Background(), mappingOpts())
	require.NoError(t, err)

	second, err := svc.Run(context.Background(), mappingOpts())
	require.NoError(t, err)
	assert.Equal(t, 3, second.AlreadyApproved)
	assert.Equal(t, 1, second.Considered)
	assert.Equal(t, 1, second.Deferred)
}

func TestMappingService_DryRunWritesNothing(t *testing.T) {
	store := newMemStore()
	runs := &mockRuns{}
	files := &mockFiles{}
	svc := newMappingService(ledgerAccounts(), store, runs, files)

	opts := mappingOpts()
	opts.DryRun = true
	opts.ExportPath = "out.json"

	summary, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Considered)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.Equal(t, 1, summary.ManualApproved)
	assert.Zero(t, store.writes)
	assert.Empty(t, runs.created)
	assert.Empty(t, summary.RunID)
	assert.Len(t, files.exported, 4)
}

func TestMappingService_ReviewOnlySkipsQueue(t *testing.T) {
	store := newMemStore()
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, &mockFiles{})

	opts := mappingOpts()
	opts.ReviewOnly = true
	summary, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.Equal(t, 2, summary.Unreviewed)
	assert.Zero(t, store.writes)
}

func TestMappingService_QuitFlushesDecisions(t *testing.T) {
	store := newMemStore()
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, &mockFiles{})

	opts := mappingOpts()
	opts.Provider = review.NewScriptedProvider(review.Reject(), review.Quit())
	summary, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, summary.Quit)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Unreviewed)
	require.Len(t, store.mappings, 3)
	rejected := store.mappings[entity.MappingKey{SourceOrgID: "org-a", TargetOrgID: "org-b", SourceAccountID: "a3"}]
	require.NotNil(t, rejected)
	assert.Equal(t, entity.DecisionStatusRejected, rejected.Status)
}

func rejectWritesAfterCancel(store *memStore) {
	store.upsertMappingFunc = func(ctx context.Context, _ *entity.MappingRecord) error {
		return ctx.Err()
	}
	store.upsertEliminationFunc = func(ctx context.Context, _ *entity.EliminationRecord) error {
		return ctx.Err()
	}
}

func TestMappingService_CancelDuringReviewKeepsDecisions(t *testing.T) {
	store := newMemStore()
	rejectWritesAfterCancel(store)
	runs := &ctxRuns{}
	svc := NewMappingService(ledgerAccounts(), store, runs,
		review.NewController(review.NewThreshold(95), zap.NewNop()), &mockFiles{}, &mockFiles{}, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := mappingOpts()
	opts.Provider = review.DecisionProviderFunc(func(context.Context, review.Item) (review.Decision, error) {
		cancel()
		return review.Reject(), nil
	})
	summary, err := svc.Run(ctx, opts)
	require.NoError(t, err)

	assert.True(t, summary.Quit)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Unreviewed)
	assert.Equal(t, 3, summary.Persisted)
	assert.Zero(t, summary.PersistFailures)
	assert.Len(t, store.mappings, 3)
	require.Len(t, runs.completed, 1)
	assert.Equal(t, 1, runs.completed[0].Rejected)
}

func TestMappingService_PersistenceFailuresAreCounted(t *testing.T) {
	store := newMemStore()
	store.upsertMappingFunc = func(_ context.Context, rec *entity.MappingRecord) error {
		if rec.SourceAccountID == "a1" {
			return &entity.PersistenceError{Key: rec.Key().String(), Err: errors.New("disk full")}
		}
		return nil
	}
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, &mockFiles{})

	summary, err := svc.Run(context.Background(), mappingOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PersistFailures)
	assert.Equal(t, 2, summary.Persisted)
	assert.Equal(t, 2, summary.Errors)
	assert.Len(t, store.mappings, 2)
}

func TestMappingService_DataSourceErrorIsFatal(t *testing.T) {
	store := newMemStore()
	runs := &mockRuns{}
	source := &mockSource{
		getAccountsFunc: func(_ context.Context, orgID string) ([]entity.Account, error) {
			if orgID == "org-b" {
				return nil, &entity.DataSourceError{Org: orgID, Op: "get accounts", Err: errors.New("timeout")}
			}
			return []entity.Account{acct("a1", "org-a", "200", "AP", entity.AccountTypeCurrentLiability)}, nil
		},
	}
	svc := newMappingService(source, store, runs, &mockFiles{})

	summary, err := svc.Run(context.Background(), mappingOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrDataSource)
	require.NotNil(t, summary)
	assert.Zero(t, store.writes)
	assert.Empty(t, runs.created)
}

func TestMappingService_ImportPersistsManualDecisions(t *testing.T) {
	store := newMemStore()
	files := &mockFiles{
		imported: []entity.MappingCandidate{
			entity.NewMappingCandidate(
				acct("a4", "org-a", "999", "Suspense", entity.AccountTypeExpense),
				acct("b3", "org-b", "610", "Bank Fee", entity.AccountTypeExpense),
				100, entity.StrategyManualSelection, "imported"),
		},
		skipped: 2,
	}
	svc := newMappingService(ledgerAccounts(), store, &mockRuns{}, files)

	opts := mappingOpts()
	opts.ImportPath = "approved.json"
	summary, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 2, summary.ManualApproved)
	assert.Equal(t, 3, summary.Invalid)
	assert.Equal(t, 3, summary.Errors)
	assert.Zero(t, summary.Deferred)
	imported := store.mappings[entity.MappingKey{SourceOrgID: "org-a", TargetOrgID: "org-b", SourceAccountID: "a4"}]
	require.NotNil(t, imported)
	assert.Equal(t, entity.ApprovedByManual, imported.ApprovedBy)
	assert.Len(t, store.mappings, 4)
}

var (
	teelixir = intercompany.Profile{OrgID: "org-a", Name: "Teelixir"}
	elevate  = intercompany.Profile{OrgID: "org-b", Name: "Elevate Wholesale", Aliases: []string{"elevate"}}
)

func jl(id, org, typ, date, amount, desc string) entity.JournalLine {
	d, _ := time.Parse("2006-01-02", date)
	return entity.JournalLine{
		ID:          id,
		OrgID:       org,
		JournalID:   "j-" + id,
		Date:        d,
		Description: desc,
		AccountType: typ,
		NetAmount:   decimal.RequireFromString(amount),
		GrossAmount: decimal.RequireFromString(amount),
	}
}

func ledgerLines() *mockSource {
	lines := map[string][]entity.JournalLine{
		"org-a": {
			jl("a1", "org-a", entity.AccountTypeRevenue, "2024-03-01", "1000.00", "Sale to Elevate Wholesale"),
			jl("a2", "org-a", entity.AccountTypeRevenue, "2024-03-05", "500.00", "Elevate order 2"),
			{ID: "bad", OrgID: "org-a", AccountType: entity.AccountTypeRevenue},
		},
		"org-b": {
			jl("b1", "org-b", entity.AccountTypeDirectCosts, "2024-03-01", "1000.00", "Purchase from Teelixir"),
			jl("b2", "org-b", entity.AccountTypeDirectCosts, "2024-03-14", "500.00", "Teelixir restock"),
		},
	}
	return &mockSource{
		getJournalLinesFunc: func(_ context.Context, orgID string, _, _ time.Time) ([]entity.JournalLine, error) {
			return lines[orgID], nil
		},
	}
}

func newEliminationService(source port.LedgerDataSource, store port.DecisionStore, runs port.RunRepository, files *mockFiles) EliminationService {
	controller := review.NewController(review.NewThreshold(95), zap.NewNop())
	profiles := map[string]intercompany.Profile{"org-a": teelixir, "org-b": elevate}
	return NewEliminationService(source, store, runs, controller, files, profiles, nopLogger{})
}

func eliminationOpts() EliminationOptions {
	return EliminationOptions{
		SourceOrgID:    "org-a",
		TargetOrgID:    "org-b",
		Period:         utils.MonthPeriod(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		MatchThreshold: 80,
		Provider:       review.NewScriptedProvider(review.Reject()),
	}
}

func TestEliminationService_Run(t *testing.T) {
	store := newMemStore()
	runs := &mockRuns{}
	svc := newEliminationService(ledgerLines(), store, runs, &mockFiles{})

	summary, err := svc.Run(context.Background(), eliminationOpts())
	require.NoError(t, err)

	assert.Equal(t, "2024-03", summary.Period)
	assert.Equal(t, 2, summary.Considered)
	assert.Equal(t, 1, summary.AutoApproved)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 90.0, summary.AverageConfidence)
	assert.True(t, decimal.RequireFromString("1500").Equal(summary.TotalAmount))
	assert.True(t, decimal.RequireFromString("1000").Equal(summary.ApprovedAmount))
	require.Len(t, summary.Pools, 2)
	assert.Equal(t, 2, summary.Pools[0].SourcePool)

	require.Len(t, store.eliminations, 2)
	rec := store.eliminations[entity.EliminationKey{SourceLineID: "a1", TargetLineID: "b1"}]
	require.NotNil(t, rec)
	assert.Equal(t, entity.DecisionStatusApproved, rec.Status)
	assert.Equal(t, "2024-03", rec.Period)
	assert.Equal(t, 100, rec.Confidence)

	require.Len(t, runs.completed, 1)
	assert.Equal(t, 80, runs.completed[0].MatchThreshold)
	require.NotNil(t, runs.completed[0].PeriodFrom)
}

func TestEliminationService_CancelDuringReviewKeepsDecisions(t *testing.T) {
	store := newMemStore()
	rejectWritesAfterCancel(store)
	runs := &ctxRuns{}
	svc := newEliminationService(ledgerLines(), store, runs, &mockFiles{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := eliminationOpts()
	opts.Provider = review.DecisionProviderFunc(func(context.Context, review.Item) (review.Decision, error) {
		cancel()
		return review.Reject(), nil
	})
	summary, err := svc.Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AutoApproved)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 2, summary.Persisted)
	assert.Zero(t, summary.PersistFailures)
	assert.Len(t, store.eliminations, 2)
	require.Len(t, runs.completed, 1)
}

func TestEliminationService_DryRunWritesNothing(t *testing.T) {
	store := newMemStore()
	runs := &mockRuns{}
	files := &mockFiles{}
	svc := newEliminationService(ledgerLines(), store, runs, files)

	opts := eliminationOpts()
	opts.DryRun = true
	opts.ExportPath = "elims.xlsx"

	summary, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Considered)
	assert.Zero(t, store.writes)
	assert.Empty(t, runs.created)
	assert.Len(t, files.elims, 2)

	var buf bytes.Buffer
	summary.Render(&buf)
	assert.Contains(t, buf.String(), "dry run")
	assert.Contains(t, buf.String(), "revenue_cogs")
}

func TestEliminationService_SkipsApprovedPairs(t *testing.T) {
	store := newMemStore()
	svc := newEliminationService(ledgerLines(), store, &mockRuns{}, &mockFiles{})

	_, err := svc.Run(context.Background(), eliminationOpts())
	require.NoError(t, err)

	opts := eliminationOpts()
	opts.Provider = nil
	second, err := svc.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.AlreadyApproved)
	assert.Equal(t, 1, second.Considered)
	assert.Equal(t, 1, second.Unreviewed)
}

func TestEliminationService_UnknownOrg(t *testing.T) {
	svc := newEliminationService(ledgerLines(), newMemStore(), &mockRuns{}, &mockFiles{})

	opts := eliminationOpts()
	opts.TargetOrgID = "org-z"
	_, err := svc.Run(context.Background(), opts)
	assert.Error(t, err)
}

func TestEliminationService_DataSourceErrorIsFatal(t *testing.T) {
	store := newMemStore()
	source := &mockSource{
		getJournalLinesFunc: func(_ context.Context, orgID string, _, _ time.Time) ([]entity.JournalLine, error) {
			return nil, &entity.DataSourceError{Org: orgID, Op: "get journal lines", Err: errors.New("bad json")}
		},
	}
	svc := newEliminationService(source, store, &mockRuns{}, &mockFiles{})

	_, err := svc.Run(context.Background(), eliminationOpts())
	assert.ErrorIs(t, err, entity.ErrDataSource)
	assert.Zero(t, store.writes)
}
