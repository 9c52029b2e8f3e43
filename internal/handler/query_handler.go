package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
)

const defaultQueryK = 5

type QueryHandler struct {
	ingest *ingest.Service
}

func NewQueryHandler(ingestSvc *ingest.Service) *QueryHandler {
	return &QueryHandler{ingest: ingestSvc}
}

type queryRequest struct {
	Query string `json:"query"`
	K     *int   `json:"k"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
		return
	}
	k := defaultQueryK
	if req.K != nil {
		k = *req.K
	}
	matches, err := h.ingest.Search(c.Request.Context(), req.Query, k)
	if err != nil {
		handleError(c, err)
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	response.Success(c, gin.H{"matches": matches})
}
