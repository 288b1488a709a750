// Package prompt assembles the text-generation prompt for a parse run.
//
// Templates are plain strings with {placeholder} markers. Substitution is
// literal: no escaping, no conditionals. Size caps keep the prompt inside
// model context limits regardless of statement length.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/norelinorth/statements/internal/services/statements/extract"
	"github.com/norelinorth/statements/internal/services/statements/provider"
)

const (
	// maxTextChars caps the raw statement text carried into the prompt.
	maxTextChars = 3000
	// maxTables caps how many extracted tables are rendered.
	maxTables = 5
	// maxTableRows caps rows rendered per table.
	maxTableRows = 20
	// maxExampleRules caps how many accounting rules are shown as examples.
	maxExampleRules = 4

	examplesPlaceholder = "{accounting_examples}"
)

// Input carries everything a template may reference.
type Input struct {
	Provider   provider.Provider
	OrgUnit    string
	Period     string
	ImportDate time.Time
	Payload    extract.Payload
}

// Build renders the provider's prompt template against the input.
//
// When the template does not reference {accounting_examples} but the provider
// has enabled rules, the examples block is appended so the model always sees
// the allowed accounts.
func Build(input Input) string {
	examples := formatAccountingExamples(input.Provider)

	replacer := strings.NewReplacer(
		"{company}", input.OrgUnit,
		"{provider}", input.Provider.Name,
		"{statement_period}", input.Period,
		"{import_date}", input.ImportDate.UTC().Format("2006-01-02"),
		"{text}", truncate(input.Payload.Text, maxTextChars),
		"{tables}", formatTables(input.Payload.Tables),
		examplesPlaceholder, examples,
	)

	rendered := replacer.Replace(input.Provider.PromptTemplate)
	if examples != "" && !strings.Contains(input.Provider.PromptTemplate, examplesPlaceholder) {
		rendered = rendered + "\n\n" + examples
	}
	return rendered
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

// formatTables renders extracted tables as pipe-separated rows, capped at
// maxTables tables and maxTableRows rows each.
func formatTables(tables []extract.Table) string {
	if len(tables) == 0 {
		return ""
	}
	if len(tables) > maxTables {
		tables = tables[:maxTables]
	}

	var builder strings.Builder
	for i, table := range tables {
		fmt.Fprintf(&builder, "Table %d:\n", i+1)
		rows := table
		if len(rows) > maxTableRows {
			rows = rows[:maxTableRows]
		}
		for _, row := range rows {
			builder.WriteString(strings.Join(row, " | "))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}
	return strings.TrimRight(builder.String(), "\n")
}

// formatAccountingExamples renders up to maxExampleRules enabled rules plus
// the full account whitelist. Returns "" when no rules are enabled.
func formatAccountingExamples(p provider.Provider) string {
	rules := p.EnabledRules()
	if len(rules) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("Accounting examples:\n")
	shown := rules
	if len(shown) > maxExampleRules {
		shown = shown[:maxExampleRules]
	}
	for _, rule := range shown {
		fmt.Fprintf(&builder, "- pattern %q: debit %q, credit %q", rule.Pattern, rule.DebitAccount, rule.CreditAccount)
		if rule.Description != "" {
			fmt.Fprintf(&builder, " (%s)", rule.Description)
		}
		builder.WriteString("\n")
	}

	builder.WriteString("Use only these accounts:\n")
	for _, account := range p.AllowedAccounts() {
		fmt.Fprintf(&builder, "- %s\n", account)
	}
	return strings.TrimRight(builder.String(), "\n")
}
