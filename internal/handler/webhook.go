package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/payment"
	"github.com/cinebook/cinebook/internal/repository"
	"github.com/cinebook/cinebook/internal/service"
)

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	Payments *service.PaymentService
}

func NewWebhookHandler(p *service.PaymentService) *WebhookHandler {
	return &WebhookHandler{Payments: p}
}

// Stripe handles the signed Stripe event feed.  Redelivery of an
// already-processed event returns 200 so Stripe stops retrying.
func (h *WebhookHandler) Stripe(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<16))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")

	if err := h.Payments.ConfirmWebhook(c.Request().Context(), body, sig); err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown payment reference"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
