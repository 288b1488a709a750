// Package provider models statement providers and their accounting rules.
//
// A provider carries the prompt template used to structure its statements and
// a set of accounting rules that teach the model which ledger accounts map to
// which transaction patterns. Rules double as the whitelist for validation.
package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyName indicates the provider name is required.
	ErrEmptyName = errors.New("provider name is required")
	// ErrDisabled indicates the provider is switched off for imports.
	ErrDisabled = errors.New("provider is disabled")
	// ErrTemplateMissing indicates the provider has no prompt template.
	ErrTemplateMissing = errors.New("provider has no prompt template")
)

// AccountingRule maps a transaction pattern to a pair of ledger accounts.
type AccountingRule struct {
	Pattern       string
	DebitAccount  string
	CreditAccount string
	Description   string
	Enabled       bool
}

// Provider is one statement source, e.g. a bank or a broker.
type Provider struct {
	Name           string
	Enabled        bool
	PromptTemplate string
	Rules          []AccountingRule
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput captures caller-provided fields for registering a provider.
type CreateInput struct {
	Name           string
	Enabled        bool
	PromptTemplate string
	Rules          []AccountingRule
}

// NormalizeCreateInput validates and canonicalizes create input.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateInput{}, ErrEmptyName
	}

	input.PromptTemplate = strings.TrimSpace(input.PromptTemplate)

	rules := make([]AccountingRule, 0, len(input.Rules))
	for _, rule := range input.Rules {
		rule.Pattern = strings.TrimSpace(rule.Pattern)
		rule.DebitAccount = strings.TrimSpace(rule.DebitAccount)
		rule.CreditAccount = strings.TrimSpace(rule.CreditAccount)
		rule.Description = strings.TrimSpace(rule.Description)
		if rule.Pattern == "" && rule.DebitAccount == "" && rule.CreditAccount == "" {
			continue
		}
		rules = append(rules, rule)
	}
	input.Rules = rules
	return input, nil
}

// Create constructs a normalized provider record.
func Create(input CreateInput, now func() time.Time) (Provider, error) {
	if now == nil {
		now = time.Now
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Provider{}, err
	}

	createdAt := now().UTC()
	return Provider{
		Name:           normalized.Name,
		Enabled:        normalized.Enabled,
		PromptTemplate: normalized.PromptTemplate,
		Rules:          normalized.Rules,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}, nil
}

// CheckReady reports whether the provider can drive a parse run.
func (p Provider) CheckReady() error {
	if !p.Enabled {
		return fmt.Errorf("%w: %s", ErrDisabled, p.Name)
	}
	if strings.TrimSpace(p.PromptTemplate) == "" {
		return fmt.Errorf("%w: %s", ErrTemplateMissing, p.Name)
	}
	return nil
}

// EnabledRules returns the enabled rules with the {provider} placeholder in
// account names expanded to the provider name.
func (p Provider) EnabledRules() []AccountingRule {
	var rules []AccountingRule
	for _, rule := range p.Rules {
		if !rule.Enabled {
			continue
		}
		rule.DebitAccount = strings.ReplaceAll(rule.DebitAccount, "{provider}", p.Name)
		rule.CreditAccount = strings.ReplaceAll(rule.CreditAccount, "{provider}", p.Name)
		rules = append(rules, rule)
	}
	return rules
}

// AllowedAccounts returns the distinct account names referenced by the
// enabled rules, in first-seen order. An empty result means the provider
// imposes no account whitelist.
func (p Provider) AllowedAccounts() []string {
	seen := make(map[string]struct{})
	var accounts []string
	for _, rule := range p.EnabledRules() {
		for _, account := range []string{rule.DebitAccount, rule.CreditAccount} {
			if account == "" {
				continue
			}
			if _, ok := seen[account]; ok {
				continue
			}
			seen[account] = struct{}{}
			accounts = append(accounts, account)
		}
	}
	return accounts
}
