package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/catalog"
)

type catalogEntryPayload struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Active     *bool  `json:"active,omitempty"`
}

func (p catalogEntryPayload) active() bool {
	if p.Active == nil {
		return true
	}
	return *p.Active
}

func (h *httpHandler) handleListCatalogServices(c *gin.Context) {
	services, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (h *httpHandler) handleCreateCatalogService(c *gin.Context) {
	var request catalogEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ExternalID == "" || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	service, err := h.catalog.CreateService(c.Request.Context(), request.ExternalID, request.Name, request.Price, request.active())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

func (h *httpHandler) handleUpdateCatalogService(c *gin.Context) {
	var request catalogEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	service, err := h.catalog.UpdateService(c.Request.Context(), c.Param("id"), request.Name, request.Price, request.active())
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *httpHandler) handleDeleteCatalogService(c *gin.Context) {
	if err := h.catalog.DeleteService(c.Request.Context(), c.Param("id")); err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListCatalogOptions(c *gin.Context) {
	options, err := h.catalog.ListOptions(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": options})
}

func (h *httpHandler) handleCreateCatalogOption(c *gin.Context) {
	var request catalogEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ExternalID == "" || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	option, err := h.catalog.CreateOption(c.Request.Context(), request.ExternalID, request.Name, request.Price, request.active())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, option)
}

func (h *httpHandler) handleUpdateCatalogOption(c *gin.Context) {
	var request catalogEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	option, err := h.catalog.UpdateOption(c.Request.Context(), c.Param("id"), request.Name, request.Price, request.active())
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, option)
}

func (h *httpHandler) handleDeleteCatalogOption(c *gin.Context) {
	if err := h.catalog.DeleteOption(c.Request.Context(), c.Param("id")); err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) respondCatalogError(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	h.respondServiceError(c, err)
}
