package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opendiscourse/corpusd/internal/extract"
	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
)

const maxUploadBytes = 64 << 20

var errFileTooLarge = errors.New("file exceeds upload limit")

// readLimited reads at most limit bytes and fails loudly on anything larger,
// so an oversize file is rejected instead of ingested truncated.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

type IngestHandler struct {
	ingest *ingest.Service
	graph  *ingest.GraphService
}

func NewIngestHandler(ingestSvc *ingest.Service, graphSvc *ingest.GraphService) *IngestHandler {
	return &IngestHandler{ingest: ingestSvc, graph: graphSvc}
}

type ingestRequest struct {
	Texts   []string   `json:"texts"`
	Sources []string   `json:"sources"`
	Tags    [][]string `json:"tags"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
		return
	}
	if len(req.Texts) == 0 {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "texts is required")
		return
	}
	if len(req.Sources) > 0 && len(req.Sources) != len(req.Texts) {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "sources must match texts")
		return
	}
	if len(req.Tags) > 0 && len(req.Tags) != len(req.Texts) {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "tags must match texts")
		return
	}
	docs := make([]model.Document, 0, len(req.Texts))
	for i, text := range req.Texts {
		doc := model.Document{Text: text}
		if len(req.Sources) > 0 {
			doc.Source = req.Sources[i]
		}
		if len(req.Tags) > 0 {
			doc.Tags = req.Tags[i]
		}
		docs = append(docs, doc)
	}
	count, err := h.ingest.IngestTexts(c.Request.Context(), docs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ingested_chunks": count})
}

// IngestFile mirrors the watcher path: extract text, then feed both the
// vector and the graph store.
func (h *IngestHandler) IngestFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "file is required")
		return
	}
	defer file.Close()
	data, err := readLimited(file, maxUploadBytes)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, errcode.Invalid, "file exceeds upload limit")
			return
		}
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "read file failed")
		return
	}
	source := c.PostForm("source")
	if source == "" {
		source = header.Filename
	}
	text, err := extract.Text(c.Request.Context(), header.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	count, err := h.ingest.IngestTexts(c.Request.Context(), []model.Document{{Text: text, Source: source}})
	if err != nil {
		handleError(c, err)
		return
	}
	if _, _, err := h.graph.IngestDocument(c.Request.Context(), source, text); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ingested_chunks": count})
}
