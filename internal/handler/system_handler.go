package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/pkg/response"
	"github.com/opendiscourse/corpusd/internal/repo"
)

type SystemHandler struct {
	catalog      *repo.CatalogRepo
	authRequired bool
}

func NewSystemHandler(catalog *repo.CatalogRepo, authRequired bool) *SystemHandler {
	return &SystemHandler{catalog: catalog, authRequired: authRequired}
}

// Health never requires authentication; orchestration uses it for liveness.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(200, gin.H{"ok": true, "auth": h.authRequired})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.catalog.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
