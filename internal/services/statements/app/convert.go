package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/norelinorth/statements/internal/services/statements/document"
	"github.com/norelinorth/statements/internal/services/statements/provider"
	"github.com/norelinorth/statements/internal/services/statements/storage"
	"github.com/norelinorth/statements/internal/services/statements/transaction"
)

const lineDateLayout = "2006-01-02"

func documentToRecord(doc document.Document) storage.DocumentRecord {
	return storage.DocumentRecord{
		ID:          doc.ID,
		OrgUnit:     doc.OrgUnit,
		Provider:    doc.Provider,
		Period:      doc.Period,
		FilePath:    doc.FilePath,
		Status:      string(doc.Status),
		PreviewJSON: string(doc.Preview),
		LinesFound:  doc.LinesFound,
		ErrorLog:    doc.ErrorLog,
		ImportDate:  doc.ImportDate,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func recordToDocument(record storage.DocumentRecord) (document.Document, error) {
	status, err := document.ParseStatus(record.Status)
	if err != nil {
		return document.Document{}, err
	}
	var preview json.RawMessage
	if record.PreviewJSON != "" {
		preview = json.RawMessage(record.PreviewJSON)
	}
	return document.Document{
		ID:         record.ID,
		OrgUnit:    record.OrgUnit,
		Provider:   record.Provider,
		Period:     record.Period,
		FilePath:   record.FilePath,
		Status:     status,
		Preview:    preview,
		LinesFound: record.LinesFound,
		ErrorLog:   record.ErrorLog,
		ImportDate: record.ImportDate,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}, nil
}

func lineToRecord(line transaction.Line) storage.LineRecord {
	return storage.LineRecord{
		ID:            line.ID,
		DocumentID:    line.DocumentID,
		Position:      line.Position,
		Date:          line.Date.Format(lineDateLayout),
		Description:   line.Description,
		Currency:      line.Currency,
		DebitAccount:  line.DebitAccount,
		DebitAmount:   line.DebitAmount.String(),
		CreditAccount: line.CreditAccount,
		CreditAmount:  line.CreditAmount.String(),
		Status:        string(line.Status),
		LedgerEntryID: line.LedgerEntryID,
		ErrorMessage:  line.ErrorMessage,
	}
}

func recordToLine(record storage.LineRecord) (transaction.Line, error) {
	status, err := transaction.ParseStatus(record.Status)
	if err != nil {
		return transaction.Line{}, err
	}
	date, err := time.Parse(lineDateLayout, record.Date)
	if err != nil {
		return transaction.Line{}, fmt.Errorf("parse line date %q: %w", record.Date, err)
	}
	debit, err := decimal.NewFromString(record.DebitAmount)
	if err != nil {
		return transaction.Line{}, fmt.Errorf("parse debit amount %q: %w", record.DebitAmount, err)
	}
	credit, err := decimal.NewFromString(record.CreditAmount)
	if err != nil {
		return transaction.Line{}, fmt.Errorf("parse credit amount %q: %w", record.CreditAmount, err)
	}
	return transaction.Line{
		ID:            record.ID,
		DocumentID:    record.DocumentID,
		Position:      record.Position,
		Date:          date,
		Description:   record.Description,
		Currency:      record.Currency,
		DebitAccount:  record.DebitAccount,
		DebitAmount:   debit,
		CreditAccount: record.CreditAccount,
		CreditAmount:  credit,
		Status:        status,
		LedgerEntryID: record.LedgerEntryID,
		ErrorMessage:  record.ErrorMessage,
	}, nil
}

// ruleJSON is the stored shape of one accounting rule.
type ruleJSON struct {
	Pattern       string `json:"pattern"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Description   string `json:"description,omitempty"`
	Enabled       bool   `json:"enabled"`
}

func providerToRecord(prov provider.Provider) (storage.ProviderRecord, error) {
	rules := make([]ruleJSON, 0, len(prov.Rules))
	for _, rule := range prov.Rules {
		rules = append(rules, ruleJSON{
			Pattern:       rule.Pattern,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
			Description:   rule.Description,
			Enabled:       rule.Enabled,
		})
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return storage.ProviderRecord{}, fmt.Errorf("encode provider rules: %w", err)
	}
	return storage.ProviderRecord{
		Name:           prov.Name,
		Enabled:        prov.Enabled,
		PromptTemplate: prov.PromptTemplate,
		RulesJSON:      string(rulesJSON),
		CreatedAt:      prov.CreatedAt,
		UpdatedAt:      prov.UpdatedAt,
	}, nil
}

func recordToProvider(record storage.ProviderRecord) (provider.Provider, error) {
	var rules []ruleJSON
	if record.RulesJSON != "" {
		if err := json.Unmarshal([]byte(record.RulesJSON), &rules); err != nil {
			return provider.Provider{}, fmt.Errorf("decode provider rules: %w", err)
		}
	}
	prov := provider.Provider{
		Name:           record.Name,
		Enabled:        record.Enabled,
		PromptTemplate: record.PromptTemplate,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	for _, rule := range rules {
		prov.Rules = append(prov.Rules, provider.AccountingRule{
			Pattern:       rule.Pattern,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
			Description:   rule.Description,
			Enabled:       rule.Enabled,
		})
	}
	return prov, nil
}
