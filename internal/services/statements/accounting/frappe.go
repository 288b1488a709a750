package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	platformerrors "github.com/norelinorth/statements/internal/platform/errors"
)

// maxErrorBodyBytes bounds how much of a failed response is read for
// diagnostics.
const maxErrorBodyBytes = 4 * 1024

// FrappeClient talks to a Frappe/ERPNext instance over its REST API.
type FrappeClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewFrappeClient builds a client for the given instance and API key pair.
func NewFrappeClient(baseURL, apiKey, apiSecret string) (*FrappeClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("frappe base url is required")
	}
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("frappe api key and secret are required")
	}

	return &FrappeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type frappeAccount struct {
	Name     string `json:"name"`
	IsGroup  int    `json:"is_group"`
	Company  string `json:"company"`
	Disabled int    `json:"disabled"`
}

type frappeJournalEntryLine struct {
	Account string `json:"account"`
	Debit   string `json:"debit_in_account_currency,omitempty"`
	Credit  string `json:"credit_in_account_currency,omitempty"`
}

type frappeJournalEntry struct {
	DocType     string                   `json:"doctype"`
	Company     string                   `json:"company"`
	PostingDate string                   `json:"posting_date"`
	UserRemark  string                   `json:"user_remark,omitempty"`
	Accounts    []frappeJournalEntryLine `json:"accounts"`
}

// LookupAccount resolves one account by name. A 404 means the account does
// not exist and is reported through AccountInfo, not as an error.
func (c *FrappeClient) LookupAccount(ctx context.Context, name string) (AccountInfo, error) {
	if c == nil || c.httpClient == nil {
		return AccountInfo{}, fmt.Errorf("accounting client is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return AccountInfo{}, fmt.Errorf("account name is required")
	}

	endpoint := c.baseURL + "/api/resource/Account/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("build account lookup request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return AccountInfo{}, platformerrors.Wrap(platformerrors.CodeAccountingFailure, "lookup account", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return AccountInfo{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return AccountInfo{}, c.statusError("lookup account", resp)
	}

	var payload struct {
		Data frappeAccount `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return AccountInfo{}, platformerrors.Wrap(platformerrors.CodeAccountingFailure, "decode account lookup response", err)
	}

	return AccountInfo{
		Exists:   true,
		IsGroup:  payload.Data.IsGroup != 0,
		OrgUnit:  payload.Data.Company,
		Disabled: payload.Data.Disabled != 0,
	}, nil
}

// CreateEntry creates one journal entry and returns its document name.
func (c *FrappeClient) CreateEntry(ctx context.Context, input EntryInput) (string, error) {
	if c == nil || c.httpClient == nil {
		return "", fmt.Errorf("accounting client is not configured")
	}
	if strings.TrimSpace(input.OrgUnit) == "" {
		return "", fmt.Errorf("org unit is required")
	}
	if strings.TrimSpace(input.PostingDate) == "" {
		return "", fmt.Errorf("posting date is required")
	}
	if strings.TrimSpace(input.DebitAccount) == "" || strings.TrimSpace(input.CreditAccount) == "" {
		return "", fmt.Errorf("debit and credit accounts are required")
	}

	entry := frappeJournalEntry{
		DocType:     "Journal Entry",
		Company:     input.OrgUnit,
		PostingDate: input.PostingDate,
		UserRemark:  input.Description,
		Accounts: []frappeJournalEntryLine{
			{Account: input.DebitAccount, Debit: input.DebitAmount.String()},
			{Account: input.CreditAccount, Credit: input.CreditAmount.String()},
		},
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode journal entry: %w", err)
	}

	endpoint := c.baseURL + "/api/resource/" + url.PathEscape("Journal Entry")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build journal entry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.CodeLedgerEntryFailed, "create journal entry", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError("create journal entry", resp)
	}

	var payload struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", platformerrors.Wrap(platformerrors.CodeLedgerEntryFailed, "decode journal entry response", err)
	}
	if strings.TrimSpace(payload.Data.Name) == "" {
		return "", platformerrors.New(platformerrors.CodeLedgerEntryFailed, "journal entry response carried no document name")
	}
	return payload.Data.Name, nil
}

func (c *FrappeClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.apiSecret)
	req.Header.Set("Accept", "application/json")
}

func (c *FrappeClient) statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return platformerrors.Internal(
		platformerrors.CodeAccountingFailure,
		fmt.Sprintf("%s: status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body))),
		fmt.Sprintf("%s failed with status %d", operation, resp.StatusCode),
	)
}
