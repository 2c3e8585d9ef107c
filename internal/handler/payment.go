package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"busline/internal/service"
)

// PaymentHandler handles the three payment confirmation channels. All three
// converge on ReconciliationService.ConfirmPayment and are safe to receive
// zero, one, or many times in any order.
type PaymentHandler struct {
	reconciliationService *service.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(reconciliationService *service.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{reconciliationService: reconciliationService}
}

// PaymentStatusResponse is the HTTP representation of a reconciliation
// outcome.
type PaymentStatusResponse struct {
	BookingID      string `json:"booking_id"`
	BookingStatus  string `json:"booking_status"`
	ProviderStatus string `json:"provider_status"`
	TransactionID  string `json:"transaction_id,omitempty"`
}

// WebhookRequest is the provider's server-to-server notification payload.
type WebhookRequest struct {
	Token  string `json:"token"`
	Status string `json:"status,omitempty"`
}

func toPaymentStatusResponse(result *service.ConfirmResult) PaymentStatusResponse {
	return PaymentStatusResponse{
		BookingID:      result.Booking.ID,
		BookingStatus:  string(result.Booking.Status),
		ProviderStatus: string(result.ProviderStatus),
		TransactionID:  result.Booking.TransactionID,
	}
}

// CheckStatus handles GET /v1/payment/check-status/:token — the user-polled
// channel.
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	result, err := h.reconciliationService.ConfirmPayment(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentStatusResponse(result))
}

// Webhook handles POST /v1/payment/webhook — the provider push channel. It
// always answers 2xx after attempting reconciliation: a non-2xx here would
// only provoke provider retry storms for errors the provider cannot fix.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[WEBHOOK] unreadable payload: %v", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := h.reconciliationService.ConfirmPayment(c.Request.Context(), req.Token)
	if err != nil {
		log.Printf("[WEBHOOK] token=%s reconciliation failed: %v", req.Token, err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":       true,
		"booking_status": string(result.Booking.Status),
	})
}

// Callback handles GET /v1/payment/callback?token=... — the browser redirect
// channel. Unlike the webhook it surfaces errors distinctly to the user.
func (h *PaymentHandler) Callback(c *gin.Context) {
	token := c.Query("token")

	result, err := h.reconciliationService.ConfirmPayment(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentStatusResponse(result))
}
