package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/service"
	"github.com/garyjia/ledger-consolidation/internal/intercompany"
	"github.com/garyjia/ledger-consolidation/internal/review"
	"github.com/garyjia/ledger-consolidation/pkg/utils"
)

const snapshot = `{
  "accounts": [
    {"id": "a-200", "org_id": "teelixir", "code": "200", "name": "Accounts Payable", "type": "CURRENT_LIABILITY", "status": "ACTIVE"},
    {"id": "a-400", "org_id": "teelixir", "code": "400", "name": "Sales", "type": "REVENUE", "status": "ACTIVE"},
    {"id": "b-200", "org_id": "elevate", "code": "200", "name": "Trade Creditors", "type": "CURRENT_LIABILITY", "status": "ACTIVE"},
    {"id": "b-400", "org_id": "elevate", "code": "400", "name": "Sales", "type": "REVENUE", "status": "ACTIVE"}
  ],
  "journal_lines": [
    {"id": "l1", "org_id": "teelixir", "journal_id": "j1", "date": "2024-03-01", "description": "Sale to Elevate Wholesale",
     "account_type": "REVENUE", "net_amount": "1000.00", "gross_amount": "1000.00"},
    {"id": "l2", "org_id": "elevate", "journal_id": "j2", "date": "2024-03-01", "description": "Purchase from Teelixir",
     "account_type": "DIRECTCOSTS", "net_amount": "1000.00", "gross_amount": "1000.00"}
  ]
}`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(snapshot), 0o644))

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "store.db")
	cfg.Ledger = LedgerConfig{Source: "file", FilePath: ledgerPath}
	cfg.Profiles = map[string]intercompany.Profile{
		"teelixir": {OrgID: "teelixir", Name: "Teelixir"},
		"elevate":  {OrgID: "elevate", Name: "Elevate Wholesale", Aliases: []string{"elevate"}},
	}
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Ledger.Source = "file"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Review.AutoApproveThreshold = 120
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	_, err = c.NewHTTPServer()
	assert.Error(t, err)
	assert.False(t, c.Health().Overall)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.True(t, c.Health().Overall)
	assert.Error(t, c.Start(context.Background()))

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_PipelinesEndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	summary, err := c.Services().Mappings.Run(ctx, service.MappingOptions{
		SourceOrgID: "teelixir",
		TargetOrgID: "elevate",
		Provider:    review.StaticProvider{Action: review.ActionApprove},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.AutoApproved)
	assert.NotEmpty(t, summary.RunID)

	elims, err := c.Services().Eliminations.Run(ctx, service.EliminationOptions{
		SourceOrgID:    "teelixir",
		TargetOrgID:    "elevate",
		Period:         utils.MonthPeriod(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		MatchThreshold: 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, elims.AutoApproved)

	n, err := c.Repositories().Decisions.CountMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := c.Repositories().Runs.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	srv, err := c.NewHTTPServer()
	require.NoError(t, err)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/eliminations?period=2024-03", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source_line_id":"l1"`)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("count", 3, 42, "ignored", "error", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "count", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
