package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradingbrain/licensing/internal/api/dto"
	"github.com/tradingbrain/licensing/internal/config"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/logger"
)

// PaymentWebhookHandler receives payment processor notifications
type PaymentWebhookHandler struct {
	config    *config.Configuration
	processor interfaces.WebhookProcessor
	logger    *logger.Logger
}

// NewPaymentWebhookHandler creates a new payment webhook handler
func NewPaymentWebhookHandler(
	cfg *config.Configuration,
	processor interfaces.WebhookProcessor,
	logger *logger.Logger,
) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		config:    cfg,
		processor: processor,
		logger:    logger,
	}
}

// @Summary Handle NOWPayments IPN
// @Description Verify a payment notification and issue a license for confirmed payments
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param x-nowpayments-sig header string true "HMAC-SHA512 signature of the sorted payload"
// @Success 200 {object} dto.WebhookAckResponse
// @Failure 401 {object} dto.WebhookErrorResponse
// @Failure 500 {object} dto.WebhookErrorResponse
// @Router /webhooks/nowpayments [post]
func (h *PaymentWebhookHandler) HandleNotification(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.Webhook.MaxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warnw("notification body too large", "limit", maxErr.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, dto.WebhookErrorResponse{Error: "Request body too large"})
			return
		}
		h.logger.Errorw("failed to read notification body", "error", err)
		c.JSON(http.StatusInternalServerError, dto.WebhookErrorResponse{Error: "Failed to read request body"})
		return
	}

	signature := c.GetHeader(h.config.Webhook.SignatureHeader)

	h.logger.Debugw("processing payment notification",
		"payload_length", len(body),
		"signature_present", signature != "",
	)

	result, err := h.processor.Process(c.Request.Context(), body, signature)
	if err != nil {
		status := http.StatusInternalServerError
		if ierr.IsPermissionDenied(err) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, dto.WebhookErrorResponse{Error: ierr.DisplayMessage(err)})
		return
	}

	h.logger.Debugw("payment notification acknowledged",
		"payment_id", result.PaymentID,
		"outcome", result.Outcome,
	)
	c.JSON(http.StatusOK, dto.WebhookAckResponse{Success: true})
}

// @Summary Webhook health check
// @Description Report that the payment webhook is reachable
// @Tags Webhooks
// @Produce json
// @Success 200 {object} dto.WebhookHealthResponse
// @Router /webhooks/nowpayments [get]
func (h *PaymentWebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.WebhookHealthResponse{
		Status:  "ok",
		Service: h.config.Webhook.ServiceName,
	})
}
