package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
	"github.com/opendiscourse/corpusd/internal/vectorstore"
)

type SchemaHandler struct {
	ingest *ingest.Service
}

func NewSchemaHandler(ingestSvc *ingest.Service) *SchemaHandler {
	return &SchemaHandler{ingest: ingestSvc}
}

type schemaInitRequest struct {
	Collection      string `json:"collection"`
	Model           string `json:"model"`
	ProviderBaseURL string `json:"provider_base_url"`
}

// Init drops and recreates the vector collection. Destructive: everything
// previously ingested into the collection is gone afterwards.
func (h *SchemaHandler) Init(c *gin.Context) {
	var req schemaInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
		return
	}
	if req.Collection == "" || req.Model == "" {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "collection and model are required")
		return
	}
	err := h.ingest.InitSchema(c.Request.Context(), vectorstore.Schema{
		Collection:      req.Collection,
		Model:           req.Model,
		ProviderBaseURL: req.ProviderBaseURL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"status":     "recreated",
		"collection": req.Collection,
		"model":      req.Model,
	})
}
