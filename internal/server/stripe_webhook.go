package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/themeleon/themeleon/internal/config"
	paymentdomain "github.com/themeleon/themeleon/internal/payment/domain"
	"go.uber.org/zap"
)

// HandleStripeWebhook reconciles a Stripe delivery against the ledger. The
// responses are plain text because Stripe only cares about the status code;
// the bodies exist for humans reading delivery logs in the dashboard.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid signature")
		return
	}

	err = s.paymentSvc.ProcessEvent(c.Request.Context(), payload, c.Request.Header)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		c.String(http.StatusOK, "OK")
	case errors.Is(err, paymentdomain.ErrPaymentIncomplete):
		c.String(http.StatusOK, "Payment not completed")
	case errors.Is(err, paymentdomain.ErrAlreadyProcessed):
		// 200 so Stripe stops retrying a delivery we already credited.
		c.String(http.StatusOK, "Already processed")
	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrReplayedSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		c.String(http.StatusBadRequest, "Invalid signature")
	case errors.Is(err, paymentdomain.ErrNoAccount):
		c.String(http.StatusBadRequest, "No user ID found")
	case errors.Is(err, paymentdomain.ErrAccountNotFound):
		c.String(http.StatusNotFound, "User not found")
	case errors.Is(err, config.ErrMisconfigured):
		c.String(http.StatusInternalServerError, "Server configuration error")
	default:
		s.log.Error("webhook processing failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal error")
	}
}
