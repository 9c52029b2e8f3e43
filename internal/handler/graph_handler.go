package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
)

type GraphHandler struct {
	graph *ingest.GraphService
}

func NewGraphHandler(graphSvc *ingest.GraphService) *GraphHandler {
	return &GraphHandler{graph: graphSvc}
}

type graphIngestRequest struct {
	Nodes []model.Node `json:"nodes"`
	Rels  []model.Rel  `json:"rels"`
}

func (h *GraphHandler) Ingest(c *gin.Context) {
	var req graphIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
		return
	}
	nodes, rels, err := h.graph.MergeGraph(c.Request.Context(), req.Nodes, req.Rels)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ingested_nodes": nodes, "ingested_rels": rels})
}

func (h *GraphHandler) Neighbors(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "key is required")
		return
	}
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "1"))
	nodes, rels, err := h.graph.Neighbors(c.Request.Context(), key, depth)
	if err != nil {
		handleError(c, err)
		return
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	if rels == nil {
		rels = []model.Rel{}
	}
	response.Success(c, gin.H{"nodes": nodes, "rels": rels})
}
