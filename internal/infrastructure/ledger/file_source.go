// Package ledger provides a LedgerDataSource backed by a JSON snapshot file.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/ledger-consolidation/internal/application/port"
	"github.com/garyjia/ledger-consolidation/internal/domain/entity"
)

// Snapshot is the on-disk layout: {"accounts": [...], "journal_lines": [...]}
type Snapshot struct {
	Accounts     []entity.Account `json:"accounts"`
	JournalLines []snapshotLine   `json:"journal_lines"`
}

// snapshotLine accepts dates as YYYY-MM-DD or RFC3339. Dates and amounts are
// decoded per line so one bad value only invalidates its own line.
type snapshotLine struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"`
	JournalID   string          `json:"journal_id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	AccountRef  string          `json:"account_ref"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	ContactName string          `json:"contact_name"`
	NetAmount   json.RawMessage `json:"net_amount"`
	GrossAmount json.RawMessage `json:"gross_amount"`
	TaxAmount   json.RawMessage `json:"tax_amount"`
}

// FileSource reads a snapshot once and serves it per organization
type FileSource struct {
	path   string
	logger *zap.Logger

	once     sync.Once
	accounts map[string][]entity.Account
	lines    map[string][]entity.JournalLine
	loadErr  error
}

// NewFileSource creates a file-backed ledger source
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// GetAccounts returns the organization's accounts from the snapshot
func (s *FileSource) GetAccounts(_ context.Context, orgID string) ([]entity.Account, error) {
	if err := s.load(); err != nil {
		return nil, &entity.DataSourceError{Org: orgID, Op: "get accounts", Err: err}
	}
	return append([]entity.Account{}, s.accounts[orgID]...), nil
}

// GetJournalLines returns the organization's lines dated within [from, to].
// Lines whose date could not be decoded are always returned, flagged with DecodeErr.
func (s *FileSource) GetJournalLines(_ context.Context, orgID string, from, to time.Time) ([]entity.JournalLine, error) {
	if err := s.load(); err != nil {
		return nil, &entity.DataSourceError{Org: orgID, Op: "get journal lines", Err: err}
	}

	start := truncateDay(from)
	end := truncateDay(to)
	out := []entity.JournalLine{}
	for _, l := range s.lines[orgID] {
		if l.Date.IsZero() && l.DecodeErr != nil {
			out = append(out, l)
			continue
		}
		d := truncateDay(l.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Snapshot returns the parsed accounts and lines, for loading into another store
func (s *FileSource) Snapshot() ([]entity.Account, []entity.JournalLine, error) {
	if err := s.load(); err != nil {
		return nil, nil, err
	}
	var accounts []entity.Account
	var lines []entity.JournalLine
	for _, a := range s.accounts {
		accounts = append(accounts, a...)
	}
	for _, l := range s.lines {
		lines = append(lines, l...)
	}
	return accounts, lines, nil
}

func (s *FileSource) load() error {
	s.once.Do(func() {
		s.loadErr = s.parse()
	})
	return s.loadErr
}

func (s *FileSource) parse() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read ledger snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse ledger snapshot %s: %w", s.path, err)
	}

	s.accounts = make(map[string][]entity.Account)
	for _, a := range snap.Accounts {
		s.accounts[a.OrgID] = append(s.accounts[a.OrgID], a)
	}

	s.lines = make(map[string][]entity.JournalLine)
	malformed := 0
	for _, sl := range snap.JournalLines {
		l := s.decodeLine(sl)
		if l.DecodeErr != nil {
			malformed++
		}
		s.lines[sl.OrgID] = append(s.lines[sl.OrgID], l)
	}

	s.logger.Info("Ledger snapshot loaded",
		zap.String("path", s.path),
		zap.Int("accounts", len(snap.Accounts)),
		zap.Int("journal_lines", len(snap.JournalLines)),
		zap.Int("malformed_lines", malformed))
	return nil
}

// decodeLine converts one snapshot line. The first field that fails to decode
// is recorded on the line instead of failing the snapshot.
func (s *FileSource) decodeLine(sl snapshotLine) entity.JournalLine {
	l := entity.JournalLine{
		ID:          sl.ID,
		OrgID:       sl.OrgID,
		JournalID:   sl.JournalID,
		Description: sl.Description,
		AccountRef:  sl.AccountRef,
		AccountCode: sl.AccountCode,
		AccountName: sl.AccountName,
		AccountType: sl.AccountType,
		ContactName: sl.ContactName,
	}

	fail := func(field string, err error) {
		if l.DecodeErr != nil {
			return
		}
		l.DecodeErr = &entity.ValidationError{RecordID: sl.ID, Field: field, Reason: err.Error()}
		s.logger.Warn("Malformed journal line in snapshot",
			zap.String("org_id", sl.OrgID),
			zap.String("line_id", sl.ID),
			zap.String("field", field),
			zap.Error(err))
	}

	date, err := ParseDate(sl.Date)
	if err != nil {
		fail("date", err)
	} else {
		l.Date = date
	}
	if l.NetAmount, err = decodeAmount(sl.NetAmount); err != nil {
		fail("net_amount", err)
	}
	if l.GrossAmount, err = decodeAmount(sl.GrossAmount); err != nil {
		fail("gross_amount", err)
	}
	if len(sl.TaxAmount) > 0 {
		if err := l.TaxAmount.UnmarshalJSON(sl.TaxAmount); err != nil {
			fail("tax_amount", err)
		}
	}
	return l
}

// decodeAmount accepts a JSON number or numeric string; a missing value is zero
func decodeAmount(raw json.RawMessage) (decimal.Decimal, error) {
	var d decimal.Decimal
	if len(raw) == 0 {
		return d, nil
	}
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %s", raw)
	}
	return d, nil
}

// ParseDate accepts YYYY-MM-DD or RFC3339
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ port.LedgerDataSource = (*FileSource)(nil)
