package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/service"
)

const signatureHeader = "X-Gateway-Signature"

// PaymentHandler handles payment gateway callbacks.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// ConfirmPaymentRequest is the gateway callback body. The signature
// covers the raw bytes, so the body is read before decoding.
type ConfirmPaymentRequest struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
}

// Confirm handles POST /v1/payments/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable request body"})
		return
	}

	var req ConfirmPaymentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.paymentService.Confirm(c.Request.Context(), req.OrderID, payload, c.GetHeader(signatureHeader), req.Success)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"order_id":       order.ID,
		"payment_status": string(order.PaymentStatus),
	})
}
