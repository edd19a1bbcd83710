package api

import (
	"errors"
	"net/http"

	"marketplace-service/internal/service"
	"marketplace-service/internal/wizard"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.listings.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) categoryForm(c *gin.Context) {
	controls, err := h.listings.CategoryForm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"controls": controls})
}

func (h *Handler) startWizard(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	var req service.StartWizardRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	view, err := h.listings.Start(c.Request.Context(), sellerID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) getWizard(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	view, err := h.listings.Get(c.Request.Context(), sellerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateWizard(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	var patch wizard.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.listings.Update(c.Request.Context(), sellerID, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// nextStep answers a blocked transition with 422 and the unchanged wizard
func (h *Handler) nextStep(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	view, err := h.listings.Next(c.Request.Context(), sellerID, c.Param("id"))
	var fieldErrs wizard.FieldErrors
	if errors.As(err, &fieldErrs) && view != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": fieldErrs,
			"wizard": view,
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) prevStep(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	view, err := h.listings.Prev(c.Request.Context(), sellerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) saveDraft(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	listing, err := h.listings.SaveDraft(c.Request.Context(), sellerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) publishListing(c *gin.Context) {
	sellerID, ok := requireUser(c)
	if !ok {
		return
	}
	listing, err := h.listings.Publish(c.Request.Context(), sellerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}
