package entity

import "strings"

// Account is an immutable chart-of-accounts snapshot for one organization
type Account struct {
	ID     string `json:"id"`
	OrgID  string `json:"org_id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Class  string `json:"class,omitempty"`
	Status string `json:"status"`
}

// IsActive returns true if the account can take part in matching
func (a *Account) IsActive() bool {
	return strings.EqualFold(a.Status, AccountStatusActive)
}

// HasClass returns true if the account carries a class
func (a *Account) HasClass() bool {
	return a.Class != ""
}

// IsReceivable reports whether the account is a trade receivable
func (a *Account) IsReceivable() bool {
	return IsReceivableAccount(a.Type, a.Name, a.Code)
}

// IsPayable reports whether the account is a trade payable
func (a *Account) IsPayable() bool {
	return IsPayableAccount(a.Type, a.Name, a.Code)
}

// IsReceivableAccount classifies a current asset as a receivable by name or code
func IsReceivableAccount(accountType, name, code string) bool {
	if accountType != AccountTypeCurrentAsset {
		return false
	}
	return strings.Contains(strings.ToLower(name), "receivable") || strings.Contains(code, "1200")
}

// IsPayableAccount classifies a current liability as a payable by name or code
func IsPayableAccount(accountType, name, code string) bool {
	if accountType != AccountTypeCurrentLiability {
		return false
	}
	return strings.Contains(strings.ToLower(name), "payable") || strings.Contains(code, "2000")
}

// ValidateAccount checks the fields matching depends on
func ValidateAccount(a Account) error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return &ValidationError{RecordID: a.Code, Field: "id", Reason: "missing"}
	case strings.TrimSpace(a.Code) == "":
		return &ValidationError{RecordID: a.ID, Field: "code", Reason: "missing"}
	case strings.TrimSpace(a.Type) == "":
		return &ValidationError{RecordID: a.ID, Field: "type", Reason: "missing"}
	}
	return nil
}
