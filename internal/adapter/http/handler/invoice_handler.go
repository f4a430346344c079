package handler

import (
	"strconv"

	"invoice-payment-service/internal/adapter/http/dto"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/pkg/apperror"
	"invoice-payment-service/pkg/pagination"
	"invoice-payment-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	invoiceSvc ports.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceSvc ports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceSvc: invoiceSvc}
}

// CreateInvoice handles POST /invoices.
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invoiceSvc.CreateInvoice(c.Request.Context(), req.ToPort())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromInvoice(inv))
}

// GetInvoice handles GET /invoices/:id.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.invoiceSvc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromInvoice(inv))
}

// ListInvoices handles GET /invoices?limit=&cursor=.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Params{Cursor: c.Query("cursor")}

	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.Error(c, apperror.Validation("limit must be an integer >= 1",
				apperror.FieldViolation{Field: "limit", Reason: "must be an integer >= 1"}))
			return
		}
		params.Limit = limit
	}

	page, err := h.invoiceSvc.ListInvoices(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromInvoicePage(page))
}
