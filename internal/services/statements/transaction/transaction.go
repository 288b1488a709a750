// Package transaction validates model candidates into transaction lines.
//
// Validation is strict by design: a candidate missing or malforming any field
// is rejected with a verbatim reason, never patched with a default. Rejections
// are data, not errors; only the caller decides whether zero accepted lines is
// fatal.
package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/norelinorth/statements/internal/services/statements/recovery"
)

// Status represents the lifecycle state of a transaction line.
type Status string

const (
	// StatusPending marks a freshly validated line awaiting synthesis.
	StatusPending Status = "pending"
	// StatusValidated marks a line re-checked and queued for synthesis.
	StatusValidated Status = "validated"
	// StatusPosted marks a line with a ledger entry behind it.
	StatusPosted Status = "posted"
	// StatusError marks a line whose synthesis failed.
	StatusError Status = "error"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusValidated, StatusPosted, StatusError:
		return status, nil
	}
	return "", fmt.Errorf("unknown transaction line status %q", value)
}

// dateLayout is the only accepted transaction date format.
const dateLayout = "2006-01-02"

// balanceTolerance absorbs sub-cent rounding between debit and credit.
var balanceTolerance = decimal.RequireFromString("0.01")

// Line is one proposed debit/credit movement derived from a document.
type Line struct {
	ID            string
	DocumentID    string
	Position      int
	Date          time.Time
	Description   string
	Currency      string
	DebitAccount  string
	DebitAmount   decimal.Decimal
	CreditAccount string
	CreditAmount  decimal.Decimal
	Status        Status
	LedgerEntryID string
	ErrorMessage  string
}

// Posted reports whether the line already has a ledger entry behind it.
func (l Line) Posted() bool {
	return l.Status == StatusPosted
}

// Rejection pairs a rejected candidate with its reason.
type Rejection struct {
	Position  int
	Candidate recovery.Candidate
	Reason    string
}

// Validate checks candidates in order and splits them into accepted lines and
// rejections. Checks short-circuit: the first failing field decides the
// reason. Accepted lines carry StatusPending and their original position.
func Validate(candidates []recovery.Candidate, documentID string) ([]Line, []Rejection) {
	var accepted []Line
	var rejected []Rejection

	for i, candidate := range candidates {
		line, reason := validateOne(candidate, documentID, i)
		if reason != "" {
			rejected = append(rejected, Rejection{Position: i, Candidate: candidate, Reason: reason})
			continue
		}
		accepted = append(accepted, line)
	}
	return accepted, rejected
}

func validateOne(candidate recovery.Candidate, documentID string, position int) (Line, string) {
	date, ok := parseDate(candidate["date"])
	if !ok {
		return Line{}, "invalid/missing date"
	}

	description := stringField(candidate, "description")
	if description == "" {
		return Line{}, "missing description"
	}

	currency := strings.ToUpper(stringField(candidate, "currency"))
	if len(currency) != 3 || money.GetCurrency(currency) == nil {
		return Line{}, fmt.Sprintf("unknown currency %q", stringField(candidate, "currency"))
	}

	debitAccount := stringField(candidate, "debit_account")
	if debitAccount == "" {
		return Line{}, "missing debit account"
	}
	creditAccount := stringField(candidate, "credit_account")
	if creditAccount == "" {
		return Line{}, "missing credit account"
	}

	debitAmount, ok := parseAmount(candidate["debit_amount"])
	if !ok || !debitAmount.IsPositive() {
		return Line{}, "debit amount must be a positive number"
	}
	creditAmount, ok := parseAmount(candidate["credit_amount"])
	if !ok || !creditAmount.IsPositive() {
		return Line{}, "credit amount must be a positive number"
	}

	if debitAmount.Sub(creditAmount).Abs().GreaterThan(balanceTolerance) {
		return Line{}, fmt.Sprintf("unbalanced: debit %s vs credit %s", debitAmount, creditAmount)
	}

	return Line{
		DocumentID:    documentID,
		Position:      position,
		Date:          date,
		Description:   description,
		Currency:      currency,
		DebitAccount:  debitAccount,
		DebitAmount:   debitAmount,
		CreditAccount: creditAccount,
		CreditAmount:  creditAmount,
		Status:        StatusPending,
	}, ""
}

// parseDate accepts only the unambiguous ISO form. Anything else is rejected;
// the import date is never substituted.
func parseDate(value any) (time.Time, bool) {
	text, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	text = strings.TrimSpace(text)
	date, err := time.Parse(dateLayout, text)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func stringField(candidate recovery.Candidate, key string) string {
	text, _ := candidate[key].(string)
	return strings.TrimSpace(text)
}

// parseAmount accepts the numeric shapes a JSON model response can carry:
// json.Number (the decoder's form), a raw float, or a numeric string.
func parseAmount(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Decimal{}, false
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		amount, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return amount, true
	case fmt.Stringer:
		amount, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return amount, true
	}
	return decimal.Decimal{}, false
}
