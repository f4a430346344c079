package handler

import (
	"strings"

	"invoice-payment-service/internal/adapter/http/dto"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderMockOutcome    = "X-Mock-Outcome"
)

// PaymentHandler handles payment attempt endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// CreateAttempt handles POST /payments. A fresh attempt answers 201, an
// idempotent replay answers 200 with the original attempt.
func (h *PaymentHandler) CreateAttempt(c *gin.Context) {
	var req dto.CreatePaymentAttemptRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	attempt, created, err := h.paymentSvc.CreateAttempt(c.Request.Context(), ports.CreateAttemptRequest{
		InvoiceID:      req.InvoiceID,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if created {
		response.Created(c, dto.FromPaymentAttempt(attempt))
		return
	}
	response.OK(c, dto.FromPaymentAttempt(attempt))
}

// GetAttempt handles GET /payments/:id.
func (h *PaymentHandler) GetAttempt(c *gin.Context) {
	attempt, err := h.paymentSvc.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromPaymentAttempt(attempt))
}

// ConfirmAttempt handles POST /payments/:id/confirm. The request body is
// ignored; a declined payment answers with PAYMENT_FAILED.
func (h *PaymentHandler) ConfirmAttempt(c *gin.Context) {
	attempt, err := h.paymentSvc.ConfirmAttempt(c.Request.Context(), ports.ConfirmAttemptRequest{
		AttemptID:     c.Param("id"),
		ForcedOutcome: strings.TrimSpace(c.GetHeader(HeaderMockOutcome)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromPaymentAttempt(attempt))
}
