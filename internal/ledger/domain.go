// Package ledger posts customer receivable entries. Invoicing consumes it as
// a capability; full general-ledger accounting lives elsewhere.
package ledger

import (
	"errors"
	"time"
)

// Entry is one receivable posting against a customer account.
type Entry struct {
	ID           int64     `json:"id" db:"id"`
	AccountID    int64     `json:"account_id" db:"account_id"`
	EntryDate    time.Time `json:"entry_date" db:"entry_date"`
	CashAmount   float64   `json:"cash_amount" db:"cash_amount"`
	CreditAmount float64   `json:"credit_amount" db:"credit_amount"`
	Remarks      string    `json:"remarks" db:"remarks"`
	SourceRef    string    `json:"source_ref" db:"source_ref"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ReceivableInput describes a posting request.
type ReceivableInput struct {
	AccountID int64
	Cash      float64
	Credit    float64
	Date      time.Time
	Remarks   string
	SourceRef string
}

// ErrNotFound indicates the ledger entry was not found.
var ErrNotFound = errors.New("ledger: entry not found")
