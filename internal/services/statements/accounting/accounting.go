// Package accounting is the ledger collaborator boundary.
//
// The pipeline never writes accounting records itself: it asks this service
// about accounts and hands it entry inputs. The Frappe/ERPNext client in
// frappe.go is the production implementation.
package accounting

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountInfo describes one ledger account as the collaborator sees it.
type AccountInfo struct {
	// Exists reports whether the account is known at all. When false the
	// remaining fields are zero values.
	Exists   bool
	IsGroup  bool
	OrgUnit  string
	Disabled bool
}

// EntryInput carries the fields needed to create one balanced ledger entry.
type EntryInput struct {
	OrgUnit       string
	PostingDate   string // ISO YYYY-MM-DD
	Description   string
	Currency      string
	DebitAccount  string
	DebitAmount   decimal.Decimal
	CreditAccount string
	CreditAmount  decimal.Decimal
}

// Service is the accounting collaborator contract.
type Service interface {
	// LookupAccount resolves one account by name. A missing account is not
	// an error: it comes back with Exists set to false.
	LookupAccount(ctx context.Context, name string) (AccountInfo, error)
	// CreateEntry creates one ledger entry and returns its identifier.
	CreateEntry(ctx context.Context, input EntryInput) (string, error)
}
