package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	platformerrors "github.com/norelinorth/statements/internal/platform/errors"
	"github.com/norelinorth/statements/internal/services/statements/app"
	"github.com/norelinorth/statements/internal/services/statements/document"
	"github.com/norelinorth/statements/internal/services/statements/extract"
	"github.com/norelinorth/statements/internal/services/statements/provider"
	"github.com/norelinorth/statements/internal/services/statements/transaction"
)

// Handler serves the statements HTTP API.
type Handler struct {
	service *app.Service
	logger  *zap.Logger
}

type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps domain errors to HTTP responses. Internal detail stays in
// the logs; callers only see the sanitized message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var domainErr *platformerrors.Error
	if errors.As(err, &domainErr) {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
		c.JSON(domainErr.Code.HTTPStatus(), errorResp{
			Code:    string(domainErr.Code),
			Message: domainErr.Public(),
		})
		return
	}

	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, errorResp{
		Code:    string(platformerrors.CodeUnknown),
		Message: "The request could not be completed. Check the service logs for details.",
	})
}

type documentResp struct {
	ID         string `json:"id"`
	OrgUnit    string `json:"org_unit"`
	Provider   string `json:"provider"`
	Period     string `json:"period,omitempty"`
	FilePath   string `json:"file_path"`
	Status     string `json:"status"`
	HasPreview bool   `json:"has_preview"`
	LinesFound int    `json:"lines_found"`
	ErrorLog   string `json:"error_log,omitempty"`
	ImportDate string `json:"import_date"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toDocumentResp(doc document.Document) documentResp {
	return documentResp{
		ID:         doc.ID,
		OrgUnit:    doc.OrgUnit,
		Provider:   doc.Provider,
		Period:     doc.Period,
		FilePath:   doc.FilePath,
		Status:     string(doc.Status),
		HasPreview: doc.HasPreview(),
		LinesFound: doc.LinesFound,
		ErrorLog:   doc.ErrorLog,
		ImportDate: doc.ImportDate.Format("2006-01-02"),
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
}

type lineResp struct {
	ID            string `json:"id"`
	Position      int    `json:"position"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Currency      string `json:"currency"`
	DebitAccount  string `json:"debit_account"`
	DebitAmount   string `json:"debit_amount"`
	CreditAccount string `json:"credit_account"`
	CreditAmount  string `json:"credit_amount"`
	Status        string `json:"status"`
	LedgerEntryID string `json:"ledger_entry_id,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

func toLineResp(line transaction.Line) lineResp {
	return lineResp{
		ID:            line.ID,
		Position:      line.Position,
		Date:          line.Date.Format("2006-01-02"),
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

type createDocumentReq struct {
	OrgUnit  string `json:"org_unit" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Period   string `json:"period"`
	FilePath string `json:"file_path" binding:"required"`
}

func (h *Handler) createDocument(c *gin.Context) {
	var req createDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), document.CreateInput{
		OrgUnit:  req.OrgUnit,
		Provider: req.Provider,
		Period:   req.Period,
		FilePath: req.FilePath,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDocumentResp(doc))
}

func (h *Handler) getDocument(c *gin.Context) {
	detail, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	lines := make([]lineResp, 0, len(detail.Lines))
	for _, line := range detail.Lines {
		lines = append(lines, toLineResp(line))
	}
	c.JSON(http.StatusOK, gin.H{
		"document": toDocumentResp(detail.Document),
		"lines":    lines,
	})
}

func (h *Handler) extractPreview(c *gin.Context) {
	summary, err := h.service.ExtractPreview(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	tables := summary.Tables
	if tables == nil {
		tables = []extract.Table{}
	}
	c.JSON(http.StatusOK, gin.H{
		"page_count":   summary.PageCount,
		"text_preview": summary.TextPreview,
		"table_count":  summary.TableCount,
		"tables":       tables,
	})
}

func (h *Handler) parseTransactions(c *gin.Context) {
	summary, err := h.service.ParseTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	rejections := make([]gin.H, 0, len(summary.Rejections))
	for _, rejection := range summary.Rejections {
		rejections = append(rejections, gin.H{
			"position": rejection.Position,
			"reason":   rejection.Reason,
		})
	}
	resp := gin.H{
		"lines_accepted":  summary.LinesAccepted,
		"lines_rejected":  summary.LinesRejected,
		"rejections":      rejections,
		"recovered":       summary.Recovered,
		"total_attempted": summary.TotalAttempted,
	}
	if summary.Warning != "" {
		resp["warning"] = summary.Warning
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) synthesize(c *gin.Context) {
	summary, err := h.service.Synthesize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	lineErrors := make([]gin.H, 0, len(summary.Errors))
	for _, lineErr := range summary.Errors {
		lineErrors = append(lineErrors, gin.H{
			"position": lineErr.Position,
			"reason":   lineErr.Reason,
		})
	}
	entryIDs := summary.EntryIDs
	if entryIDs == nil {
		entryIDs = []string{}
	}
	resp := gin.H{
		"attempted": summary.Attempted,
		"created":   summary.Created,
		"entries":   entryIDs,
		"errors":    lineErrors,
	}
	if summary.Message != "" {
		resp["message"] = summary.Message
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) resetProcessing(c *gin.Context) {
	doc, err := h.service.ResetProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDocumentResp(doc))
}

type ruleReq struct {
	Pattern       string `json:"pattern"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Description   string `json:"description"`
	Enabled       bool   `json:"enabled"`
}

type putProviderReq struct {
	Enabled        bool      `json:"enabled"`
	PromptTemplate string    `json:"prompt_template"`
	Rules          []ruleReq `json:"rules"`
}

type providerResp struct {
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	PromptTemplate string    `json:"prompt_template"`
	Rules          []ruleReq `json:"rules"`
}

func toProviderResp(prov provider.Provider) providerResp {
	rules := make([]ruleReq, 0, len(prov.Rules))
	for _, rule := range prov.Rules {
		rules = append(rules, ruleReq{
			Pattern:       rule.Pattern,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
			Description:   rule.Description,
			Enabled:       rule.Enabled,
		})
	}
	return providerResp{
		Name:           prov.Name,
		Enabled:        prov.Enabled,
		PromptTemplate: prov.PromptTemplate,
		Rules:          rules,
	}
}

func (h *Handler) listProviders(c *gin.Context) {
	providers, err := h.service.ListProviders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]providerResp, 0, len(providers))
	for _, prov := range providers {
		resp = append(resp, toProviderResp(prov))
	}
	c.JSON(http.StatusOK, gin.H{"providers": resp})
}

func (h *Handler) getProvider(c *gin.Context) {
	prov, err := h.service.GetProvider(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProviderResp(prov))
}

func (h *Handler) putProvider(c *gin.Context) {
	var req putProviderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	input := provider.CreateInput{
		Name:           c.Param("name"),
		Enabled:        req.Enabled,
		PromptTemplate: req.PromptTemplate,
	}
	for _, rule := range req.Rules {
		input.Rules = append(input.Rules, provider.AccountingRule{
			Pattern:       rule.Pattern,
			DebitAccount:  rule.DebitAccount,
			CreditAccount: rule.CreditAccount,
			Description:   rule.Description,
			Enabled:       rule.Enabled,
		})
	}

	prov, err := h.service.PutProvider(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProviderResp(prov))
}
