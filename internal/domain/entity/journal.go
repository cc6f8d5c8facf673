package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// JournalLine is a single posted line from an organization's ledger
type JournalLine struct {
	ID          string              `json:"id"`
	OrgID       string              `json:"org_id"`
	JournalID   string              `json:"journal_id"`
	Date        time.Time           `json:"date"`
	Description string              `json:"description,omitempty"`
	AccountRef  string              `json:"account_ref"`
	AccountCode string              `json:"account_code,omitempty"`
	AccountName string              `json:"account_name,omitempty"`
	AccountType string              `json:"account_type"`
	ContactName string              `json:"contact_name,omitempty"`
	NetAmount   decimal.Decimal     `json:"net_amount"`
	GrossAmount decimal.Decimal     `json:"gross_amount"`
	TaxAmount   decimal.NullDecimal `json:"tax_amount"`

	// DecodeErr is set by a data source that could not decode one of the line's fields
	DecodeErr *ValidationError `json:"-"`
}

// Text returns the lowercase description and contact used for entity references
func (l *JournalLine) Text() string {
	return strings.ToLower(strings.TrimSpace(l.Description + " " + l.ContactName))
}

// IsReceivable reports whether the line posts to a receivable account
func (l *JournalLine) IsReceivable() bool {
	return IsReceivableAccount(l.AccountType, l.AccountName, l.AccountCode)
}

// IsPayable reports whether the line posts to a payable account
func (l *JournalLine) IsPayable() bool {
	return IsPayableAccount(l.AccountType, l.AccountName, l.AccountCode)
}

// ValidateJournalLine checks the fields matching depends on
func ValidateJournalLine(l JournalLine) error {
	if l.DecodeErr != nil {
		return l.DecodeErr
	}
	switch {
	case strings.TrimSpace(l.ID) == "":
		return &ValidationError{RecordID: l.JournalID, Field: "id", Reason: "missing"}
	case strings.TrimSpace(l.AccountType) == "":
		return &ValidationError{RecordID: l.ID, Field: "account_type", Reason: "missing"}
	case l.Date.IsZero():
		return &ValidationError{RecordID: l.ID, Field: "date", Reason: "missing"}
	}
	return nil
}
