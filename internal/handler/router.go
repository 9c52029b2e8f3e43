package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/middleware"
	"github.com/opendiscourse/corpusd/internal/pkg/keyset"
)

type RouterDeps struct {
	Schema          *SchemaHandler
	Ingest          *IngestHandler
	Query           *QueryHandler
	Graph           *GraphHandler
	System          *SystemHandler
	Verifier        *keyset.Verifier
	IngestRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.System.Health)

	authGroup := api.Group("")
	authGroup.Use(middleware.BearerAuth(deps.Verifier))
	authGroup.POST("/schema/init", deps.Schema.Init)
	authGroup.POST("/query", deps.Query.Query)
	authGroup.GET("/graph/neighbors", deps.Graph.Neighbors)
	authGroup.GET("/stats", deps.System.Stats)

	ingestGroup := authGroup.Group("")
	if deps.IngestRateLimit > 0 {
		ingestGroup.Use(middleware.RateLimit(deps.IngestRateLimit))
	}
	ingestGroup.POST("/ingest", deps.Ingest.Ingest)
	ingestGroup.POST("/ingest_file", deps.Ingest.IngestFile)
	ingestGroup.POST("/graph/ingest", deps.Graph.Ingest)
}
