package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
	"github.com/garyjia/ledger-consolidation/internal/infrastructure/persistence/sqlite"
)

// LedgerRepository reads and writes the synced ledger_accounts and journal_lines tables
type LedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a SQLite-backed ledger source
func NewLedgerRepository(db *sql.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// GetAccounts returns every account of an organization
func (r *LedgerRepository) GetAccounts(ctx context.Context, orgID string) ([]entity.Account, error) {
	query := `
		SELECT account_id, org_id, code, name, type, class, status
		FROM ledger_accounts
		WHERE org_id = ?
		ORDER BY code, account_id
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		r.logger.Error("Failed to query ledger accounts", zap.String("org_id", orgID), zap.Error(err))
		return nil, &entity.DataSourceError{Org: orgID, Op: "get accounts", Err: err}
	}
	defer rows.Close()

	accounts := []entity.Account{}
	for rows.Next() {
		var a entity.Account
		if err := rows.Scan(&a.ID, &a.OrgID, &a.Code, &a.Name, &a.Type, &a.Class, &a.Status); err != nil {
			return nil, &entity.DataSourceError{Org: orgID, Op: "get accounts", Err: err}
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &entity.DataSourceError{Org: orgID, Op: "get accounts", Err: err}
	}
	return accounts, nil
}

// GetJournalLines returns an organization's lines dated within [from, to].
// Rows whose date is not YYYY-MM-DD are returned too; like rows with an
// unparseable amount they come back flagged with DecodeErr.
func (r *LedgerRepository) GetJournalLines(ctx context.Context, orgID string, from, to time.Time) ([]entity.JournalLine, error) {
	query := `
		SELECT line_id, org_id, journal_id, date, description,
			account_id, account_code, account_name, account_type, contact_name,
			net_amount, gross_amount, tax_amount
		FROM journal_lines
		WHERE org_id = ?
			AND (date BETWEEN ? AND ? OR date NOT GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]')
		ORDER BY date, line_id
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, orgID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		r.logger.Error("Failed to query journal lines", zap.String("org_id", orgID), zap.Error(err))
		return nil, &entity.DataSourceError{Org: orgID, Op: "get journal lines", Err: err}
	}
	defer rows.Close()

	lines := []entity.JournalLine{}
	for rows.Next() {
		var (
			l                entity.JournalLine
			date, net, gross string
			tax              sql.NullString
		)
		if err := rows.Scan(
			&l.ID,
			&l.OrgID,
			&l.JournalID,
			&date,
			&l.Description,
			&l.AccountRef,
			&l.AccountCode,
			&l.AccountName,
			&l.AccountType,
			&l.ContactName,
			&net,
			&gross,
			&tax,
		); err != nil {
			return nil, &entity.DataSourceError{Org: orgID, Op: "get journal lines", Err: err}
		}
		r.decodeLine(&l, date, net, gross, tax)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &entity.DataSourceError{Org: orgID, Op: "get journal lines", Err: err}
	}
	return lines, nil
}

// decodeLine parses the text columns of one row, recording the first failure on the line
func (r *LedgerRepository) decodeLine(l *entity.JournalLine, date, net, gross string, tax sql.NullString) {
	fail := func(field, value string, err error) {
		if l.DecodeErr != nil {
			return
		}
		l.DecodeErr = &entity.ValidationError{RecordID: l.ID, Field: field, Reason: fmt.Sprintf("unparseable %q", value)}
		r.logger.Warn("Malformed journal line",
			zap.String("org_id", l.OrgID),
			zap.String("line_id", l.ID),
			zap.String("field", field),
			zap.Error(err))
	}

	var err error
	if l.Date, err = time.Parse(dateLayout, date); err != nil {
		fail("date", date, err)
	}
	if l.NetAmount, err = decimal.NewFromString(net); err != nil {
		fail("net_amount", net, err)
	}
	if l.GrossAmount, err = decimal.NewFromString(gross); err != nil {
		fail("gross_amount", gross, err)
	}
	if tax.Valid {
		d, err := decimal.NewFromString(tax.String)
		if err != nil {
			fail("tax_amount", tax.String, err)
		} else {
			l.TaxAmount = decimal.NewNullDecimal(d)
		}
	}
}

// SaveAccounts replaces the stored snapshot rows for the given accounts
func (r *LedgerRepository) SaveAccounts(ctx context.Context, accounts []entity.Account) error {
	query := `
		INSERT INTO ledger_accounts (org_id, account_id, code, name, type, class, status, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (org_id, account_id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			type = excluded.type,
			class = excluded.class,
			status = excluded.status,
			synced_at = excluded.synced_at
	`
	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, a := range accounts {
		status := a.Status
		if status == "" {
			status = entity.AccountStatusActive
		}
		if _, err := exec.ExecContext(ctx, query, a.OrgID, a.ID, a.Code, a.Name, a.Type, a.Class, status); err != nil {
			r.logger.Error("Failed to save ledger account",
				zap.String("org_id", a.OrgID),
				zap.String("account_id", a.ID),
				zap.Error(err))
			return fmt.Errorf("failed to save account %s: %w", a.ID, err)
		}
	}
	return nil
}

// SaveJournalLines replaces the stored snapshot rows for the given lines
func (r *LedgerRepository) SaveJournalLines(ctx context.Context, lines []entity.JournalLine) error {
	query := `
		INSERT INTO journal_lines (
			org_id, line_id, journal_id, date, description,
			account_id, account_code, account_name, account_type, contact_name,
			net_amount, gross_amount, tax_amount, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (org_id, line_id) DO UPDATE SET
			journal_id = excluded.journal_id,
			date = excluded.date,
			description = excluded.description,
			account_id = excluded.account_id,
			account_code = excluded.account_code,
			account_name = excluded.account_name,
			account_type = excluded.account_type,
			contact_name = excluded.contact_name,
			net_amount = excluded.net_amount,
			gross_amount = excluded.gross_amount,
			tax_amount = excluded.tax_amount,
			synced_at = excluded.synced_at
	`
	exec := sqlite.ExecutorFrom(ctx, r.db)
	for _, l := range lines {
		var tax sql.NullString
		if l.TaxAmount.Valid {
			tax = sql.NullString{String: l.TaxAmount.Decimal.String(), Valid: true}
		}
		if _, err := exec.ExecContext(ctx, query,
			l.OrgID,
			l.ID,
			l.JournalID,
			l.Date.Format(dateLayout),
			l.Description,
			l.AccountRef,
			l.AccountCode,
			l.AccountName,
			l.AccountType,
			l.ContactName,
			l.NetAmount.String(),
			l.GrossAmount.String(),
			tax,
		); err != nil {
			r.logger.Error("Failed to save journal line",
				zap.String("org_id", l.OrgID),
				zap.String("line_id", l.ID),
				zap.Error(err))
			return fmt.Errorf("failed to save journal line %s: %w", l.ID, err)
		}
	}
	return nil
}

var (
	_ port.LedgerDataSource = (*LedgerRepository)(nil)
	_ port.LedgerWriter     = (*LedgerRepository)(nil)
)
