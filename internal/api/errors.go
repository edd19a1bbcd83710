package api

import (
	"errors"
	"net/http"

	"marketplace-service/internal/pricing"
	"marketplace-service/internal/repository"
	"marketplace-service/internal/restclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/wizard"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	notConfiguredMessage  = "This feature requires the hosted backend, which is not configured"
	sessionExpiredMessage = "Your session has expired, please sign in again"
	loginPath             = "/login"
)

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// respondError maps the service error taxonomy onto HTTP answers
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		fieldErrs wizard.FieldErrors
		promoErr  *service.PromoError
		apiErr    *restclient.APIError
	)

	switch {
	case errors.As(err, &fieldErrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": fieldErrs,
		})

	case errors.As(err, &promoErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": promoErr.Result.Message,
			"promo": promoErr.Result,
		})

	case errors.Is(err, service.ErrListingHasNoPrice),
		errors.Is(err, service.ErrListingUnavailable),
		errors.Is(err, service.ErrSelfPurchase):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, pricing.ErrInvalidInput), errors.Is(err, service.ErrSellerRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrOrderInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrNotListingOwner), errors.Is(err, service.ErrNotWizardOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrWizardNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})

	case errors.Is(err, repository.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": notConfiguredMessage})

	case errors.Is(err, repository.ErrUnauthorized):
		if s := currentSession(c); s != nil {
			if cerr := h.sessions.Clear(c.Request.Context(), s); cerr != nil {
				h.logger.Error("Failed to clear session", zap.Error(cerr))
			}
		}
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":    sessionExpiredMessage,
			"redirect": loginPath,
		})

	case errors.As(err, &apiErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   apiErr.Message,
			"details": err.Error(),
		})

	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}
