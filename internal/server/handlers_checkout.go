package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/checkout"
	"go.uber.org/zap"
)

type checkoutSessionPayload struct {
	FormData     *checkout.FormData `json:"form_data"`
	SubmissionID string             `json:"submission_id,omitempty"`
}

// handleCheckoutSession is the unauthenticated bridge the booking site posts
// carts to. Retries pass submission_id so an abandoned payment reuses its
// original submission instead of minting a duplicate.
func (h *httpHandler) handleCheckoutSession(c *gin.Context) {
	var request checkoutSessionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	result, err := h.checkout.CreateCheckoutSession(c.Request.Context(), checkout.Request{
		FormData:     request.FormData,
		SubmissionID: request.SubmissionID,
		Origin:       c.GetHeader("Origin"),
	})
	if err != nil {
		h.respondCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":           result.URL,
		"submission_id": result.SubmissionID,
	})
}

// respondCheckoutError keeps the public contract of the booking site: every
// checkout failure answers 400 with a bare error label, whatever went wrong
// internally.
func (h *httpHandler) respondCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyForm):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_form"})
	case errors.Is(err, checkout.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_email"})
	case errors.Is(err, checkout.ErrNoValidServices):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_valid_services"})
	default:
		h.logger.Error("checkout session failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "checkout_failed"})
	}
}
